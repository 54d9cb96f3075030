package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/datallboy/dashdl/internal/app"
	"github.com/datallboy/dashdl/internal/domain"
)

// SessionManager runs download sessions one at a time. Sessions share the
// process-wide pacing controller, so they are never run concurrently.
type SessionManager struct {
	mu           sync.RWMutex
	app          *app.Context
	orchestrator *Orchestrator
	queue        []*domain.Session
	active       *domain.Session

	newJobChan chan struct{}
}

// Initializes a SessionManager
// if loadExisting is true, unfinished sessions are reloaded from the store
// if loadExisting is false, the database lookup is skipped (for CLI mode)
func NewSessionManager(app *app.Context, orchestrator *Orchestrator, loadExisting bool) *SessionManager {
	var queue []*domain.Session

	if loadExisting && app.Store != nil {
		active, err := app.Store.GetActiveSessions()
		if err != nil {
			app.Logger.Warn("Could not reload unfinished sessions: %v", err)
		}
		for _, v := range active {
			queue = append(queue, domain.SessionFromView(*v))
		}
	}

	return &SessionManager{
		app:          app,
		orchestrator: orchestrator,
		queue:        queue,
		newJobChan:   make(chan struct{}, 1),
	}
}

// Add creates a pending session and notifies the Start loop.
func (m *SessionManager) Add(videoURL, audioURL string) (*domain.Session, error) {
	s, err := m.newSession(videoURL, audioURL)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.queue = append(m.queue, s)
	m.mu.Unlock()

	// Signal the Start() loop that there is work to do
	select {
	case m.newJobChan <- struct{}{}:
	default:
		// Signal already pending, no need to block
	}

	return s, nil
}

// RunNow creates a session and runs it on the caller's goroutine. Used by
// the CLI, which has no Start loop.
func (m *SessionManager) RunNow(ctx context.Context, videoURL, audioURL string, observer domain.Observer) (*domain.Session, error) {
	s, err := m.newSession(videoURL, audioURL)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.queue = append(m.queue, s)
	m.mu.Unlock()

	return s, m.run(ctx, s, observer)
}

func (m *SessionManager) newSession(videoURL, audioURL string) (*domain.Session, error) {
	if err := validateStreamURL(videoURL); err != nil {
		return nil, fmt.Errorf("video url: %w", err)
	}
	if err := validateStreamURL(audioURL); err != nil {
		return nil, fmt.Errorf("audio url: %w", err)
	}

	id := ksuid.New().String()
	dir := filepath.Join(m.app.Config.Download.OutDir, id)

	s := &domain.Session{
		ID:        id,
		VideoURL:  videoURL,
		AudioURL:  audioURL,
		VideoPath: filepath.Join(dir, m.app.Config.Download.VideoFile),
		AudioPath: filepath.Join(dir, m.app.Config.Download.AudioFile),
		Status:    domain.StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	if err := m.save(s); err != nil {
		return nil, fmt.Errorf("failed to save session to database: %w", err)
	}
	return s, nil
}

func validateStreamURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func (m *SessionManager) Start(ctx context.Context) {
	for {
		var next *domain.Session

		m.mu.RLock()
		for _, s := range m.queue {
			if !s.Status.Finished() && s != m.active {
				next = s
				break
			}
		}
		m.mu.RUnlock()

		if next == nil {
			select {
			case <-m.newJobChan:
				continue
			case <-ctx.Done():
				return
			}
		}

		_ = m.run(ctx, next, nil)

		if ctx.Err() != nil {
			return
		}
	}
}

func (m *SessionManager) run(ctx context.Context, s *domain.Session, observer domain.Observer) error {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.mu.Lock()
	if s.Status.Finished() {
		// cancelled while still queued
		m.mu.Unlock()
		return nil
	}
	m.active = s
	s.CancelFunc = cancel
	s.Status = domain.StatusDownloading
	s.Error = ""
	s.StartedAt = time.Now().UTC()
	s.FinishedAt = time.Time{}
	s.ResetProgress()
	_ = m.saveLocked(s)
	m.mu.Unlock()

	observers := domain.MultiObserver{s}
	if observer != nil {
		observers = append(observers, observer)
	}

	m.app.Logger.Info("Session %s: downloading", s.ID)

	err := m.orchestrator.Run(jobCtx, []StreamSpec{
		{Kind: domain.StreamVideo, URL: s.VideoURL, Path: s.VideoPath},
		{Kind: domain.StreamAudio, URL: s.AudioURL, Path: s.AudioPath},
	}, observers)

	m.finalize(s, err)
	return err
}

// Get searches the live queue, then the store, for a session.
func (m *SessionManager) Get(id string) (domain.SessionView, bool) {
	m.mu.RLock()
	for _, s := range m.queue {
		if s.ID == id {
			v := s.View()
			m.mu.RUnlock()
			return v, true
		}
	}
	m.mu.RUnlock()

	// Get from DB as a fallback
	if m.app.Store != nil {
		v, err := m.app.Store.GetSession(id)
		if err == nil && v != nil {
			return *v, true
		}
	}

	return domain.SessionView{}, false
}

// List returns the live queue followed by stored history, newest first,
// without duplicates.
func (m *SessionManager) List(limit int) []domain.SessionView {
	m.mu.RLock()
	out := make([]domain.SessionView, 0, len(m.queue))
	seen := make(map[string]bool, len(m.queue))
	for i := len(m.queue) - 1; i >= 0; i-- {
		v := m.queue[i].View()
		seen[v.ID] = true
		out = append(out, v)
	}
	m.mu.RUnlock()

	if m.app.Store != nil {
		stored, err := m.app.Store.ListSessions(limit)
		if err != nil {
			m.app.Logger.Warn("Could not list stored sessions: %v", err)
		}
		for _, v := range stored {
			if !seen[v.ID] {
				out = append(out, *v)
			}
		}
	}

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Active returns the session currently downloading, if any.
func (m *SessionManager) Active() (domain.SessionView, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == nil {
		return domain.SessionView{}, false
	}
	return m.active.View(), true
}

// Cancel stops a queued or running session. It reports false for unknown
// or already finished sessions.
func (m *SessionManager) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.queue {
		if s.ID != id {
			continue
		}
		if s.Status.Finished() {
			return false
		}

		if s.CancelFunc != nil {
			s.CancelFunc()
			return true
		}

		// Never started: fail it in place so Start skips it
		s.Status = domain.StatusFailed
		s.Error = "Cancelled by user"
		s.FinishedAt = time.Now().UTC()
		_ = m.saveLocked(s)
		m.removeFromLiveQueue(s.ID)
		return true
	}
	return false
}

func (m *SessionManager) finalize(s *domain.Session, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.FinishedAt = time.Now().UTC()
	s.CancelFunc = nil

	if err != nil {
		s.Status = domain.StatusFailed
		if errors.Is(err, context.Canceled) {
			s.Error = "Cancelled by user"
		} else {
			s.Error = err.Error()
		}
		m.app.Logger.Error("Session %s failed: %s", s.ID, s.Error)
	} else {
		s.Status = domain.StatusCompleted
		m.app.Logger.Info("Session %s completed", s.ID)
	}

	// Persist the final outcome
	if err := m.saveLocked(s); err != nil {
		m.app.Logger.Error("Session %s: could not persist outcome: %v", s.ID, err)
	}

	m.active = nil
	m.removeFromLiveQueue(s.ID)
}

func (m *SessionManager) save(s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(s)
}

func (m *SessionManager) saveLocked(s *domain.Session) error {
	if m.app.Store == nil {
		return nil
	}
	return m.app.Store.SaveSession(s.View())
}

// removeFromLiveQueue keeps the live slice small by removing finished
// sessions; they stay reachable through the store.
func (m *SessionManager) removeFromLiveQueue(id string) {
	if m.app.Store == nil {
		// Without a store the queue is the only history
		return
	}
	for i, s := range m.queue {
		if s.ID == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			break
		}
	}
}
