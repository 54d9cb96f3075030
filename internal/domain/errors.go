package domain

import (
	"errors"
	"fmt"
)

// ErrTransport matches any *TransportError via errors.Is
var ErrTransport = errors.New("transport error")

// ErrProtocol matches any *ProtocolError via errors.Is
var ErrProtocol = errors.New("protocol error")

// ErrRetryExhausted matches any *RetryExhaustedError via errors.Is
var ErrRetryExhausted = errors.New("retries exhausted")

// ErrSessionNotFound is returned when a session ID is unknown
var ErrSessionNotFound = errors.New("session not found")

// TransportError wraps connection refused/reset and timeout faults.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// ProtocolError reports a response that breaks the ranged read contract:
// wrong status, missing or malformed length declaration, empty payload.
type ProtocolError struct {
	Reason string
	Status int
}

func (e *ProtocolError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("protocol: %s (status %d)", e.Reason, e.Status)
	}
	return "protocol: " + e.Reason
}

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

// RetryExhaustedError carries the last per-attempt error once the retry
// budget is spent.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }

func (e *RetryExhaustedError) Is(target error) bool { return target == ErrRetryExhausted }
