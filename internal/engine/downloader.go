package engine

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/datallboy/dashdl/internal/app"
	"github.com/datallboy/dashdl/internal/domain"
	"github.com/datallboy/dashdl/internal/infra/config"
	"github.com/datallboy/dashdl/internal/pacing"
	"github.com/datallboy/dashdl/internal/retry"
)

// Orchestrator runs every stream of a session concurrently against one
// shared pacing controller.
type Orchestrator struct {
	ctx    *app.Context
	pacer  *pacing.Controller
	policy retry.Policy
}

func NewOrchestrator(ctx *app.Context, pacer *pacing.Controller, policy retry.Policy) *Orchestrator {
	return &Orchestrator{
		ctx:    ctx,
		pacer:  pacer,
		policy: policy,
	}
}

// PacingParams maps the pacing config section onto controller params.
func PacingParams(c config.PacingConfig) pacing.Params {
	return pacing.Params{Initial: c.Initial, Min: c.Min, Max: c.Max, Step: c.Step}
}

// RetryPolicy maps the download config section onto a retry policy.
func RetryPolicy(c config.DownloadConfig) retry.Policy {
	return retry.Policy{Budget: c.MaxRetries, Backoff: c.RetryBackoff, MaxBackoff: c.MaxBackoff}
}

// Run downloads every stream from scratch and blocks until all of them are
// done or failed. One stream failing does not stop the others. The first
// failure is returned; pacing is reset whatever the outcome.
func (o *Orchestrator) Run(ctx context.Context, streams []StreamSpec, observer domain.Observer) (err error) {
	if observer == nil {
		observer = domain.NopObserver{}
	}
	defer func() { observer.SessionComplete(err) }()
	defer o.pacer.Reset()

	if len(streams) == 0 {
		return errors.New("no streams to download")
	}

	writer := NewFileWriter()
	defer writer.CloseAll()

	// Fresh download: discard whatever an earlier session left behind
	for _, s := range streams {
		if err := writer.Truncate(s.Path); err != nil {
			return fmt.Errorf("%s stream: %w", s.Kind, err)
		}
	}

	o.ctx.Logger.Info("Starting session: %d streams, piece size %d", len(streams), o.pacer.PieceSize())

	var g errgroup.Group
	for _, s := range streams {
		sd := NewStreamDownloader(s, o.ctx.Fetcher, o.pacer, o.policy, writer, observer, o.ctx.Logger)
		g.Go(func() error {
			if err := sd.Run(ctx); err != nil {
				return fmt.Errorf("%s stream: %w", s.Kind, err)
			}
			return nil
		})
	}

	err = g.Wait()
	for _, s := range streams {
		o.ctx.Logger.Debug("[%s] %d bytes on disk at %s", s.Kind, writer.Written(s.Path), s.Path)
	}
	if err != nil {
		o.ctx.Logger.Error("Session failed: %v", err)
	} else {
		o.ctx.Logger.Info("Session complete")
	}
	return err
}
