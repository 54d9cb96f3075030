package domain

import "sync"

// Observer receives the events the engine emits while a session runs.
// Implementations must be safe for concurrent use: both streams call in
// from their own goroutines.
type Observer interface {
	StreamTotal(kind StreamKind, total int64)
	StreamProgress(kind StreamKind, done int64)
	Diagnostic(kind StreamKind, msg string)
	SessionComplete(err error)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) StreamTotal(StreamKind, int64)    {}
func (NopObserver) StreamProgress(StreamKind, int64) {}
func (NopObserver) Diagnostic(StreamKind, string)    {}
func (NopObserver) SessionComplete(error)            {}

// MultiObserver fans events out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) StreamTotal(kind StreamKind, total int64) {
	for _, o := range m {
		o.StreamTotal(kind, total)
	}
}

func (m MultiObserver) StreamProgress(kind StreamKind, done int64) {
	for _, o := range m {
		o.StreamProgress(kind, done)
	}
}

func (m MultiObserver) Diagnostic(kind StreamKind, msg string) {
	for _, o := range m {
		o.Diagnostic(kind, msg)
	}
}

func (m MultiObserver) SessionComplete(err error) {
	for _, o := range m {
		o.SessionComplete(err)
	}
}

// Recorder collects events in memory. Useful for tests and for the API's
// diagnostics tail.
type Recorder struct {
	mu          sync.Mutex
	Totals      map[StreamKind]int64
	Progress    map[StreamKind][]int64
	Diagnostics []string
	Completed   bool
	Err         error
}

func NewRecorder() *Recorder {
	return &Recorder{
		Totals:   make(map[StreamKind]int64),
		Progress: make(map[StreamKind][]int64),
	}
}

func (r *Recorder) StreamTotal(kind StreamKind, total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Totals[kind] = total
}

func (r *Recorder) StreamProgress(kind StreamKind, done int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Progress[kind] = append(r.Progress[kind], done)
}

func (r *Recorder) Diagnostic(_ StreamKind, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Diagnostics = append(r.Diagnostics, msg)
}

func (r *Recorder) SessionComplete(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Completed = true
	r.Err = err
}

// ProgressOf returns a copy of the done sequence recorded for kind.
func (r *Recorder) ProgressOf(kind StreamKind) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int64, len(r.Progress[kind]))
	copy(out, r.Progress[kind])
	return out
}

// DiagnosticsCopy returns a copy of the recorded diagnostics.
func (r *Recorder) DiagnosticsCopy() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Diagnostics))
	copy(out, r.Diagnostics)
	return out
}
