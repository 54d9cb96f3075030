package domain

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type SessionStatus string

const (
	StatusPending     SessionStatus = "pending"
	StatusDownloading SessionStatus = "downloading"
	StatusCompleted   SessionStatus = "completed"
	StatusFailed      SessionStatus = "failed"
)

// Finished reports whether the status is terminal.
func (s SessionStatus) Finished() bool {
	return s == StatusCompleted || s == StatusFailed
}

// streamCounters holds the live progress of one stream. Written by the
// stream goroutine, read by the API and the CLI renderer.
type streamCounters struct {
	done       atomic.Int64
	total      atomic.Int64
	totalKnown atomic.Bool
}

func (c *streamCounters) snapshot() StreamProgress {
	return StreamProgress{
		Done:       c.done.Load(),
		Total:      c.total.Load(),
		TotalKnown: c.totalKnown.Load(),
	}
}

// Session represents one full download invocation covering both streams.
type Session struct {
	ID        string        `json:"id"`
	VideoURL  string        `json:"video_url"`
	AudioURL  string        `json:"audio_url"`
	VideoPath string        `json:"video_path"`
	AudioPath string        `json:"audio_path"`
	Status    SessionStatus `json:"status"`
	Error     string        `json:"error,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`

	CancelFunc context.CancelFunc `json:"-"`

	video streamCounters
	audio streamCounters

	mu          sync.Mutex
	diagnostics []string
}

const maxDiagnostics = 50

func (s *Session) counters(kind StreamKind) *streamCounters {
	if kind == StreamAudio {
		return &s.audio
	}
	return &s.video
}

// Progress returns the current progress of one stream.
func (s *Session) Progress(kind StreamKind) StreamProgress {
	return s.counters(kind).snapshot()
}

// SetProgress restores stored progress, used when hydrating from the store.
func (s *Session) SetProgress(kind StreamKind, p StreamProgress) {
	c := s.counters(kind)
	c.done.Store(p.Done)
	c.total.Store(p.Total)
	c.totalKnown.Store(p.TotalKnown)
}

// ResetProgress clears both streams before a fresh run.
func (s *Session) ResetProgress() {
	s.SetProgress(StreamVideo, StreamProgress{})
	s.SetProgress(StreamAudio, StreamProgress{})
}

// Diagnostics returns the most recent diagnostic messages.
func (s *Session) Diagnostics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.diagnostics))
	copy(out, s.diagnostics)
	return out
}

// Observer implementation so a Session can track its own run.

func (s *Session) StreamTotal(kind StreamKind, total int64) {
	c := s.counters(kind)
	c.total.Store(total)
	c.totalKnown.Store(true)
}

func (s *Session) StreamProgress(kind StreamKind, done int64) {
	s.counters(kind).done.Store(done)
}

func (s *Session) Diagnostic(kind StreamKind, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diagnostics = append(s.diagnostics, string(kind)+": "+msg)
	if len(s.diagnostics) > maxDiagnostics {
		s.diagnostics = s.diagnostics[len(s.diagnostics)-maxDiagnostics:]
	}
}

func (s *Session) SessionComplete(error) {}

// SessionView is a point-in-time copy of a session for the API and store.
type SessionView struct {
	ID          string         `json:"id"`
	VideoURL    string         `json:"video_url"`
	AudioURL    string         `json:"audio_url"`
	VideoPath   string         `json:"video_path"`
	AudioPath   string         `json:"audio_path"`
	Status      SessionStatus  `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   time.Time      `json:"started_at,omitempty"`
	FinishedAt  time.Time      `json:"finished_at,omitempty"`
	Video       StreamProgress `json:"video"`
	Audio       StreamProgress `json:"audio"`
	Diagnostics []string       `json:"diagnostics,omitempty"`
}

// View copies the session. Callers that mutate Status/Error concurrently
// must hold their own lock while calling it.
func (s *Session) View() SessionView {
	return SessionView{
		ID:          s.ID,
		VideoURL:    s.VideoURL,
		AudioURL:    s.AudioURL,
		VideoPath:   s.VideoPath,
		AudioPath:   s.AudioPath,
		Status:      s.Status,
		Error:       s.Error,
		CreatedAt:   s.CreatedAt,
		StartedAt:   s.StartedAt,
		FinishedAt:  s.FinishedAt,
		Video:       s.Progress(StreamVideo),
		Audio:       s.Progress(StreamAudio),
		Diagnostics: s.Diagnostics(),
	}
}

// SessionFromView rebuilds a live session from a stored copy.
func SessionFromView(v SessionView) *Session {
	s := &Session{
		ID:         v.ID,
		VideoURL:   v.VideoURL,
		AudioURL:   v.AudioURL,
		VideoPath:  v.VideoPath,
		AudioPath:  v.AudioPath,
		Status:     v.Status,
		Error:      v.Error,
		CreatedAt:  v.CreatedAt,
		StartedAt:  v.StartedAt,
		FinishedAt: v.FinishedAt,
	}
	s.SetProgress(StreamVideo, v.Video)
	s.SetProgress(StreamAudio, v.Audio)
	return s
}
