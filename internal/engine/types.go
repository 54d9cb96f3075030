package engine

import "github.com/datallboy/dashdl/internal/domain"

// StreamSpec binds one stream kind to its source URL and local sink.
type StreamSpec struct {
	Kind domain.StreamKind
	URL  string
	Path string
}

// StreamState is the lifecycle of one StreamDownloader.
type StreamState int32

const (
	StateInit StreamState = iota
	StateFetching
	StateDone
	StateFailed
)

func (s StreamState) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateFetching:
		return "fetching"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
