package engine

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/datallboy/dashdl/internal/app"
	"github.com/datallboy/dashdl/internal/domain"
	"github.com/datallboy/dashdl/internal/infra/logger"
	"github.com/datallboy/dashdl/internal/pacing"
	"github.com/datallboy/dashdl/internal/retry"
)

// StreamDownloader drives one stream to completion, one piece at a time.
// The sink must already be open in the writer.
type StreamDownloader struct {
	spec     StreamSpec
	fetcher  app.Fetcher
	pacer    *pacing.Controller
	policy   retry.Policy
	writer   *FileWriter
	observer domain.Observer
	log      *logger.Logger

	state    atomic.Int32
	progress domain.StreamProgress
}

func NewStreamDownloader(spec StreamSpec, fetcher app.Fetcher, pacer *pacing.Controller, policy retry.Policy,
	writer *FileWriter, observer domain.Observer, log *logger.Logger) *StreamDownloader {
	if observer == nil {
		observer = domain.NopObserver{}
	}
	return &StreamDownloader{
		spec:     spec,
		fetcher:  fetcher,
		pacer:    pacer,
		policy:   policy,
		writer:   writer,
		observer: observer,
		log:      log,
	}
}

func (d *StreamDownloader) State() StreamState {
	return StreamState(d.state.Load())
}

// Progress is only stable once Run has returned.
func (d *StreamDownloader) Progress() domain.StreamProgress {
	return d.progress
}

func (d *StreamDownloader) Run(ctx context.Context) error {
	kind := d.spec.Kind

	d.state.Store(int32(StateInit))
	d.progress = domain.StreamProgress{}
	d.observer.StreamProgress(kind, 0)

	d.state.Store(int32(StateFetching))

	for !d.progress.Complete() {
		req := domain.NextPiece(d.progress, d.pacer.PieceSize())

		res, err := retry.Do(ctx, d.policy, d.pacer, d.diagnostic, func(ctx context.Context) (domain.PieceResult, error) {
			return d.fetchPiece(ctx, req)
		})
		if err != nil {
			return d.fail(fmt.Errorf("piece %s: %w", req.Header(), err))
		}

		if !d.progress.TotalKnown || res.Total != d.progress.Total {
			if d.progress.TotalKnown {
				d.log.Warn("[%s] total shrank from %d to %d bytes, finishing after this piece", kind, d.progress.Total, res.Total)
			}
			d.progress.Total = res.Total
			d.progress.TotalKnown = true
			d.observer.StreamTotal(kind, res.Total)
			d.log.Debug("[%s] total %d bytes", kind, res.Total)
		}

		if err := d.writer.Append(d.spec.Path, res.Payload); err != nil {
			return d.fail(fmt.Errorf("write error: %w", err))
		}

		d.progress.Done += int64(len(res.Payload))
		d.observer.StreamProgress(kind, d.progress.Done)
	}

	d.state.Store(int32(StateDone))
	d.log.Info("[%s] complete: %d bytes", kind, d.progress.Done)
	return nil
}

// fetchPiece runs inside the retry loop, so a drifting total is retried
// like any other protocol fault. A later total at or below the bytes held
// once this piece lands is accepted and ends the stream.
func (d *StreamDownloader) fetchPiece(ctx context.Context, req domain.PieceRequest) (domain.PieceResult, error) {
	res, err := d.fetcher.Fetch(ctx, d.spec.URL, req)
	if err != nil {
		return domain.PieceResult{}, err
	}
	if d.progress.TotalKnown && res.Total != d.progress.Total &&
		res.Total > d.progress.Done+int64(len(res.Payload)) {
		return domain.PieceResult{}, &domain.ProtocolError{
			Reason: fmt.Sprintf("total changed from %d to %d", d.progress.Total, res.Total),
		}
	}
	return res, nil
}

func (d *StreamDownloader) diagnostic(msg string) {
	d.log.Warn("[Retry] %s stream: %s", d.spec.Kind, msg)
	d.observer.Diagnostic(d.spec.Kind, msg)
}

func (d *StreamDownloader) fail(err error) error {
	d.state.Store(int32(StateFailed))
	d.log.Error("[FAIL] %s stream at %d bytes: %v", d.spec.Kind, d.progress.Done, err)
	d.observer.Diagnostic(d.spec.Kind, err.Error())
	return err
}
