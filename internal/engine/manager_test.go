package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/datallboy/dashdl/internal/app"
	"github.com/datallboy/dashdl/internal/domain"
	"github.com/datallboy/dashdl/internal/fetch"
	"github.com/datallboy/dashdl/internal/fetch/fetchtest"
	"github.com/datallboy/dashdl/internal/pacing"
	"github.com/datallboy/dashdl/internal/retry"
)

func newTestManager(t *testing.T) (*SessionManager, *fetchtest.Server) {
	t.Helper()
	srv := fetchtest.NewServer(map[string]*fetchtest.Resource{
		"/video": {Data: fetchtest.Bytes(12000)},
		"/audio": {Data: fetchtest.Bytes(4000)},
	})
	t.Cleanup(srv.Close)

	appCtx := testContext(t, fetch.NewRangeFetcher(fetch.Options{}))
	orch := NewOrchestrator(appCtx, pacing.New(pacing.DefaultParams()), retry.DefaultPolicy())
	return NewSessionManager(appCtx, orch, false), srv
}

func TestSessionManagerRunNow(t *testing.T) {
	m, srv := newTestManager(t)

	s, err := m.RunNow(context.Background(), srv.URLFor("/video"), srv.URLFor("/audio"), nil)
	if err != nil {
		t.Fatal(err)
	}

	v, ok := m.Get(s.ID)
	if !ok {
		t.Fatal("session not found after run")
	}
	if v.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, error = %s", v.Status, v.Error)
	}
	if v.Video.Done != 12000 || v.Audio.Done != 4000 {
		t.Errorf("progress video=%+v audio=%+v", v.Video, v.Audio)
	}
	if v.FinishedAt.Before(v.StartedAt) {
		t.Error("finished before it started")
	}
	if m.Cancel(s.ID) {
		t.Error("cancelling a finished session should report false")
	}
}

func TestSessionManagerRejectsBadURLs(t *testing.T) {
	m, srv := newTestManager(t)

	tests := []struct {
		name         string
		video, audio string
	}{
		{"empty video", "", srv.URLFor("/audio")},
		{"relative audio", srv.URLFor("/video"), "/audio"},
		{"ftp scheme", "ftp://example.com/v.m4s", srv.URLFor("/audio")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Add(tt.video, tt.audio); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

func TestSessionManagerCancelQueued(t *testing.T) {
	m, srv := newTestManager(t)

	s, err := m.Add(srv.URLFor("/video"), srv.URLFor("/audio"))
	if err != nil {
		t.Fatal(err)
	}
	if !m.Cancel(s.ID) {
		t.Fatal("Cancel returned false for a queued session")
	}
	v, _ := m.Get(s.ID)
	if v.Status != domain.StatusFailed || v.Error != "Cancelled by user" {
		t.Fatalf("after cancel: %s %q", v.Status, v.Error)
	}
	if m.Cancel("does-not-exist") {
		t.Error("Cancel of an unknown id returned true")
	}
}

func TestSessionManagerStartLoop(t *testing.T) {
	m, srv := newTestManager(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx)

	first, err := m.Add(srv.URLFor("/video"), srv.URLFor("/audio"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.Add(srv.URLFor("/audio"), srv.URLFor("/video"))
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		a, _ := m.Get(first.ID)
		b, _ := m.Get(second.ID)
		if a.Status.Finished() && b.Status.Finished() {
			if a.Status != domain.StatusCompleted || b.Status != domain.StatusCompleted {
				t.Fatalf("statuses %s (%s), %s (%s)", a.Status, a.Error, b.Status, b.Error)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("sessions did not finish: %s, %s", a.Status, b.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}

	if list := m.List(0); len(list) != 2 || list[0].ID != second.ID {
		t.Errorf("List() = %d sessions, newest first expected", len(list))
	}
}

// blockingFetcher holds every request until its context is cancelled.
type blockingFetcher struct {
	started chan struct{}
	once    sync.Once
}

func (b *blockingFetcher) Fetch(ctx context.Context, _ string, _ domain.PieceRequest) (domain.PieceResult, error) {
	b.once.Do(func() { close(b.started) })
	<-ctx.Done()
	return domain.PieceResult{}, &domain.TransportError{Op: "get", Err: ctx.Err()}
}

var _ app.Fetcher = (*blockingFetcher)(nil)

func TestSessionManagerCancelRunning(t *testing.T) {
	f := &blockingFetcher{started: make(chan struct{})}
	appCtx := testContext(t, f)
	pacer := pacing.New(pacing.DefaultParams())
	m := NewSessionManager(appCtx, NewOrchestrator(appCtx, pacer, retry.DefaultPolicy()), false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx)

	s, err := m.Add("http://media.example/video.m4s", "http://media.example/audio.m4s")
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-f.started:
	case <-time.After(5 * time.Second):
		t.Fatal("session never started fetching")
	}
	if v, ok := m.Active(); !ok || v.ID != s.ID {
		t.Fatalf("Active() = %v, %v", v.ID, ok)
	}
	if !m.Cancel(s.ID) {
		t.Fatal("Cancel returned false for a running session")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		v, _ := m.Get(s.ID)
		if v.Status.Finished() {
			if v.Status != domain.StatusFailed || v.Error != "Cancelled by user" {
				t.Fatalf("after cancel: %s %q", v.Status, v.Error)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session still %s after cancel", v.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if _, ok := m.Active(); ok {
		t.Error("a session is still active after cancel")
	}
	if got := pacer.PieceSize(); got != pacing.DefaultInitial {
		t.Errorf("piece size = %d after cancel, want %d", got, pacing.DefaultInitial)
	}
}
