package app

import (
	"context"

	"github.com/datallboy/dashdl/internal/domain"
	"github.com/datallboy/dashdl/internal/infra/config"
	"github.com/datallboy/dashdl/internal/infra/logger"
)

// Fetcher issues one ranged read. This allows the engine to be driven by a
// fake transport in tests without importing the fetch package.
type Fetcher interface {
	Fetch(ctx context.Context, url string, req domain.PieceRequest) (domain.PieceResult, error)
}

// Store persists session history.
type Store interface {
	SaveSession(s domain.SessionView) error
	GetSession(id string) (*domain.SessionView, error)
	ListSessions(limit int) ([]*domain.SessionView, error)
	GetActiveSessions() ([]*domain.SessionView, error)
	Close() error
}

// Context hold the core environment and shared resources for dashdl.
// It acts as the "Single Source of Truth" for the application state.
type Context struct {
	Config *config.Config
	Logger *logger.Logger

	Fetcher Fetcher
	Store   Store
}

// NewContext initializes the base environment.
func NewContext(cfg *config.Config, log *logger.Logger) *Context {
	return &Context{
		Config: cfg,
		Logger: log,
	}
}
