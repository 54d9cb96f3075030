package mux

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// maxKeptLines bounds the output tail kept in a Result.
const maxKeptLines = 200

// Job names the two completed sinks and the destination file.
type Job struct {
	Video  string
	Audio  string
	Output string
}

// Result is what the muxer left behind. A non-zero ExitCode is a muxer
// failure, not a Go error.
type Result struct {
	ExitCode int
	Lines    []string
}

func (r Result) Output() string { return strings.Join(r.Lines, "\n") }

// Runner starts the external muxer and streams its output line by line.
type Runner struct {
	binary string
	args   []string
	enc    encoding.Encoding
}

// New prepares a runner. argsTemplate is split on whitespace before the
// {video}, {audio} and {output} placeholders are substituted, so paths
// with spaces stay a single argument. encodingName is any WHATWG label
// ("utf-8", "gbk", ...).
func New(binary, argsTemplate, encodingName string) (*Runner, error) {
	if binary == "" {
		return nil, errors.New("muxer binary is required")
	}

	if encodingName == "" {
		encodingName = "utf-8"
	}
	enc, err := htmlindex.Get(encodingName)
	if err != nil {
		return nil, fmt.Errorf("unknown mux output encoding %q: %w", encodingName, err)
	}

	return &Runner{
		binary: binary,
		args:   strings.Fields(argsTemplate),
		enc:    enc,
	}, nil
}

// Args renders the command line for job.
func (r *Runner) Args(job Job) []string {
	repl := strings.NewReplacer("{video}", job.Video, "{audio}", job.Audio, "{output}", job.Output)
	out := make([]string, len(r.args))
	for i, a := range r.args {
		out[i] = repl.Replace(a)
	}
	return out
}

// Run blocks until the muxer exits. lineFn, if set, receives every stdout
// and stderr line as it arrives; calls are serialized.
func (r *Runner) Run(ctx context.Context, job Job, lineFn func(string)) (Result, error) {
	cmd := exec.CommandContext(ctx, r.binary, r.Args(job)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, err
	}

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("failed to start muxer: %w", err)
	}

	var (
		mu  sync.Mutex
		res Result
		wg  sync.WaitGroup
	)
	emit := func(line string) {
		mu.Lock()
		defer mu.Unlock()
		res.Lines = append(res.Lines, line)
		if len(res.Lines) > maxKeptLines {
			res.Lines = res.Lines[len(res.Lines)-maxKeptLines:]
		}
		if lineFn != nil {
			lineFn(line)
		}
	}

	for _, pipe := range []io.Reader{stdout, stderr} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.scan(pipe, emit)
		}()
	}

	// pipes must be drained before Wait closes them
	wg.Wait()
	err = cmd.Wait()

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		return res, err
	}
	return res, nil
}

func (r *Runner) scan(pipe io.Reader, emit func(string)) {
	sc := bufio.NewScanner(transform.NewReader(pipe, r.enc.NewDecoder()))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	sc.Split(scanLines)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " ")
		if line != "" {
			emit(line)
		}
	}
	// keep draining so the child never blocks on a full pipe
	_, _ = io.Copy(io.Discard, pipe)
}

// scanLines splits on \n, \r\n and bare \r (ffmpeg redraws its status
// line with carriage returns).
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		adv := i + 1
		if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
			adv++
		} else if data[i] == '\r' && i+1 == len(data) && !atEOF {
			// might be the first half of \r\n
			return 0, nil, nil
		}
		return adv, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
