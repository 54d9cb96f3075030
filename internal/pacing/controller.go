package pacing

import (
	"fmt"
	"sync"

	"github.com/datallboy/dashdl/internal/domain"
)

const (
	DefaultInitial = 8 * 1024   // baseline piece size after every session
	DefaultMin     = 512        // floor a failure collapses to
	DefaultMax     = 256 * 1024 // ceiling for growth
	DefaultStep    = 512        // additive increase
)

// Params bounds the adaptive piece size.
type Params struct {
	Initial int64
	Min     int64
	Max     int64
	Step    int64
}

// DefaultParams returns the stock pacing bounds.
func DefaultParams() Params {
	return Params{
		Initial: DefaultInitial,
		Min:     DefaultMin,
		Max:     DefaultMax,
		Step:    DefaultStep,
	}
}

func (p Params) Validate() error {
	if p.Min <= 0 {
		return fmt.Errorf("pacing min must be positive, got %d", p.Min)
	}
	if p.Step <= 0 {
		return fmt.Errorf("pacing step must be positive, got %d", p.Step)
	}
	if p.Max < p.Min {
		return fmt.Errorf("pacing max (%d) is below min (%d)", p.Max, p.Min)
	}
	if p.Initial < p.Min || p.Initial > p.Max {
		return fmt.Errorf("pacing initial (%d) must be within [%d, %d]", p.Initial, p.Min, p.Max)
	}
	return nil
}

// State is a copy of the controller's counters.
type State struct {
	PieceSize                    int64
	ConsecutiveFirstTrySuccesses int
}

// Controller owns the piece size shared by every stream of a session.
//
// Growth is additive and only after two clean first-try pieces in a row;
// any failed attempt drops straight to the floor.
type Controller struct {
	mu     sync.Mutex
	params Params
	state  State
}

// New creates a controller at the baseline. Invalid params fall back to
// the defaults.
func New(p Params) *Controller {
	if p.Validate() != nil {
		p = DefaultParams()
	}
	return &Controller{
		params: p,
		state:  State{PieceSize: p.Initial},
	}
}

// Grow increases the piece size by one step, capped at the ceiling.
func (c *Controller) Grow() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grow()
}

func (c *Controller) grow() {
	c.state.PieceSize = min(c.state.PieceSize+c.params.Step, c.params.Max)
	c.state.ConsecutiveFirstTrySuccesses = 0
}

// Shrink collapses the piece size to the floor.
func (c *Controller) Shrink() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shrink()
}

func (c *Controller) shrink() {
	c.state.PieceSize = c.params.Min
	c.state.ConsecutiveFirstTrySuccesses = 0
}

// Record applies one attempt outcome. A success that needed retries is
// neutral.
func (c *Controller) Record(o domain.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !o.Success {
		c.shrink()
		return
	}
	if !o.FirstAttempt {
		return
	}
	c.state.ConsecutiveFirstTrySuccesses++
	if c.state.ConsecutiveFirstTrySuccesses > 1 {
		c.grow()
	}
}

// PieceSize returns the size the next request should use.
func (c *Controller) PieceSize() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.PieceSize
}

// Reset restores the baseline. Called once at the end of every session.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = State{PieceSize: c.params.Initial}
}

func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Params() Params { return c.params }
