package engine

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"github.com/datallboy/dashdl/internal/domain"
)

// ProgressRenderer draws one combined terminal bar for all streams of a
// session and prints a summary when the session ends.
type ProgressRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	bar     *progressbar.ProgressBar
	started time.Time

	totals map[domain.StreamKind]int64
	done   map[domain.StreamKind]int64
	kinds  int
}

func NewProgressRenderer(out io.Writer, kinds ...domain.StreamKind) *ProgressRenderer {
	bar := progressbar.NewOptions64(-1,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("Downloading"),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(20),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(out) }),
	)
	return &ProgressRenderer{
		out:     out,
		bar:     bar,
		started: time.Now(),
		totals:  make(map[domain.StreamKind]int64),
		done:    make(map[domain.StreamKind]int64),
		kinds:   len(kinds),
	}
}

func (r *ProgressRenderer) StreamTotal(kind domain.StreamKind, total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totals[kind] = total

	// Keep the spinner until every stream has declared its size
	if len(r.totals) == r.kinds {
		r.bar.ChangeMax64(sum(r.totals))
	}
	_ = r.bar.Set64(sum(r.done))
}

func (r *ProgressRenderer) StreamProgress(kind domain.StreamKind, done int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done[kind] = done
	_ = r.bar.Set64(sum(r.done))
}

func (r *ProgressRenderer) Diagnostic(domain.StreamKind, string) {}

func (r *ProgressRenderer) SessionComplete(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := sum(r.done)
	elapsed := time.Since(r.started)

	// Guard against division by zero or sub-millisecond durations
	seconds := elapsed.Seconds()
	if seconds < 0.1 {
		seconds = 0.1
	}
	avg := uint64(float64(current) / seconds)

	if err != nil {
		_ = r.bar.Exit()
		fmt.Fprintf(r.out, "\nFailed after %s: %s downloaded\n", elapsed.Truncate(time.Second), humanize.Bytes(uint64(current)))
		return
	}

	_ = r.bar.Finish()
	fmt.Fprintf(r.out, "Done: %s in %s (avg %s/s)\n",
		humanize.Bytes(uint64(current)), elapsed.Truncate(time.Second), humanize.Bytes(avg))
}

func sum(m map[domain.StreamKind]int64) int64 {
	var n int64
	for _, v := range m {
		n += v
	}
	return n
}
