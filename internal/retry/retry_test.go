package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/datallboy/dashdl/internal/domain"
	"github.com/datallboy/dashdl/internal/pacing"
)

type outcomeLog struct {
	outcomes []domain.Outcome
}

func (l *outcomeLog) Record(o domain.Outcome) { l.outcomes = append(l.outcomes, o) }

// failing returns an op that fails the first k calls.
func failing(k int, calls *int) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		*calls++
		if *calls <= k {
			return "", &domain.TransportError{Op: "get", Err: errors.New("connection reset")}
		}
		return "ok", nil
	}
}

func TestDoFailsThenSucceeds(t *testing.T) {
	for k := 0; k <= 5; k++ {
		var calls int
		var msgs []string
		log := &outcomeLog{}

		got, err := Do(context.Background(), DefaultPolicy(), log, func(m string) { msgs = append(msgs, m) }, failing(k, &calls))
		if err != nil {
			t.Fatalf("k=%d: unexpected error %v", k, err)
		}
		if got != "ok" {
			t.Fatalf("k=%d: got %q", k, got)
		}
		if calls != k+1 {
			t.Errorf("k=%d: calls = %d, want %d", k, calls, k+1)
		}
		if len(msgs) != k {
			t.Errorf("k=%d: %d diagnostics, want %d", k, len(msgs), k)
		}
		last := log.outcomes[len(log.outcomes)-1]
		if !last.Success || last.FirstAttempt != (k == 0) {
			t.Errorf("k=%d: last outcome %+v", k, last)
		}
		for i, o := range log.outcomes[:k] {
			if o.Success {
				t.Errorf("k=%d: outcome %d should be a failure", k, i)
			}
		}
	}
}

func TestDoExhausts(t *testing.T) {
	var calls int
	var msgs []string
	_, err := Do(context.Background(), DefaultPolicy(), nil, func(m string) { msgs = append(msgs, m) }, failing(100, &calls))

	if calls != 6 {
		t.Fatalf("calls = %d, want 6", calls)
	}
	if !errors.Is(err, domain.ErrRetryExhausted) {
		t.Fatalf("err = %v, want retry exhausted", err)
	}
	if !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("err = %v, should still match the underlying transport error", err)
	}
	var re *domain.RetryExhaustedError
	if !errors.As(err, &re) || re.Attempts != 6 {
		t.Fatalf("err = %#v, want 6 attempts", err)
	}

	for i, m := range msgs[:5] {
		if !strings.Contains(m, "retrying") {
			t.Errorf("diagnostic %d = %q, want retrying", i, m)
		}
	}
	if !strings.Contains(msgs[5], "exhausted") {
		t.Errorf("final diagnostic = %q, want exhausted", msgs[5])
	}
}

func TestDoZeroBudget(t *testing.T) {
	var calls int
	_, err := Do(context.Background(), Policy{}, nil, nil, failing(1, &calls))
	if calls != 1 || !errors.Is(err, domain.ErrRetryExhausted) {
		t.Fatalf("calls = %d err = %v", calls, err)
	}
}

func TestDoLeavesPacingAtFloorAfterRetriedSuccess(t *testing.T) {
	pacer := pacing.New(pacing.DefaultParams())
	var calls int

	_, err := Do(context.Background(), DefaultPolicy(), pacer, nil, failing(3, &calls))
	if err != nil {
		t.Fatal(err)
	}
	s := pacer.Snapshot()
	if s.PieceSize != 512 || s.ConsecutiveFirstTrySuccesses != 0 {
		t.Fatalf("pacing state = %+v, want floor with zero counter", s)
	}
}

func TestDoBackoffHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	op := func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("nope")
	}

	start := time.Now()
	_, err := Do(ctx, Policy{Budget: 5, Backoff: time.Hour}, nil, nil, op)
	if time.Since(start) > time.Second {
		t.Fatal("backoff did not observe cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled inside", err)
	}
}

func TestDoReportsCancellationInsteadOfRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var msgs []string
	op := func(context.Context) (int, error) {
		cancel()
		return 0, &domain.TransportError{Op: "get", Err: errors.New("request canceled")}
	}

	_, err := Do(ctx, DefaultPolicy(), nil, func(m string) { msgs = append(msgs, m) }, op)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled inside", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("diagnostics = %q, want exactly one", msgs)
	}
	if strings.Contains(msgs[0], "retrying") || !strings.Contains(msgs[0], "cancelled") {
		t.Errorf("diagnostic = %q, want a cancellation report", msgs[0])
	}
}
