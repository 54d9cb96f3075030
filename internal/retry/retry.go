package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/datallboy/dashdl/internal/domain"
)

// DefaultBudget is the number of retries after the first attempt.
const DefaultBudget = 5

// Policy controls how many times an operation is retried and how long to
// wait in between. A zero Backoff retries immediately.
type Policy struct {
	Budget     int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

func DefaultPolicy() Policy {
	return Policy{Budget: DefaultBudget}
}

// Recorder receives the outcome of every attempt. The pacing controller is
// the production implementation.
type Recorder interface {
	Record(domain.Outcome)
}

// Notify receives one human readable line per failed attempt.
type Notify func(msg string)

// Do runs op until it succeeds or Budget+1 attempts have failed.
//
// Every attempt is reported to rec: a success carries whether it was the
// first attempt, a failure always shrinks. When the budget is spent the
// last error is returned inside a *domain.RetryExhaustedError.
func Do[T any](ctx context.Context, p Policy, rec Recorder, notify Notify, op func(context.Context) (T, error)) (T, error) {
	var zero T
	budget := max(p.Budget, 0)
	delay := p.Backoff

	for attempt := 0; ; attempt++ {
		res, err := op(ctx)
		if err == nil {
			record(rec, domain.Succeeded(attempt == 0))
			return res, nil
		}

		record(rec, domain.Failed(err))

		if ctx.Err() != nil {
			emit(notify, fmt.Sprintf("attempt %d failed, cancelled: %v", attempt+1, ctx.Err()))
			return zero, &domain.RetryExhaustedError{Attempts: attempt + 1, Err: ctx.Err()}
		}

		if attempt >= budget {
			emit(notify, fmt.Sprintf("attempt %d failed, retries exhausted (%d): %v", attempt+1, budget, err))
			return zero, &domain.RetryExhaustedError{Attempts: attempt + 1, Err: err}
		}
		emit(notify, fmt.Sprintf("attempt %d failed, retrying (%d of %d): %v", attempt+1, attempt+1, budget, err))

		if delay > 0 {
			if err := sleep(ctx, delay); err != nil {
				return zero, &domain.RetryExhaustedError{Attempts: attempt + 1, Err: err}
			}
			// 2x backoff, capped
			delay *= 2
			if p.MaxBackoff > 0 && delay > p.MaxBackoff {
				delay = p.MaxBackoff
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func record(rec Recorder, o domain.Outcome) {
	if rec != nil {
		rec.Record(o)
	}
}

func emit(n Notify, msg string) {
	if n != nil {
		n(msg)
	}
}
