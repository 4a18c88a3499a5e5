// Package engine detects whether the optional high-effort PNG engine can
// be used and remembers the answer for the owning orchestrator.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Status is the tri-state availability of an optional engine.
type Status int

const (
	Untested Status = iota
	Available
	Unavailable
)

func (s Status) String() string {
	switch s {
	case Available:
		return "available"
	case Unavailable:
		return "unavailable"
	default:
		return "untested"
	}
}

// ErrUnavailable is matched (errors.Is) by every UnavailableError.
var ErrUnavailable = errors.New("engine unavailable")

// UnavailableError reports that the engine could not be initialised or
// stopped working. It is never fatal: callers fall back.
type UnavailableError struct {
	Engine string
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Engine, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// Capability owns the probe result for one engine. It is a value owned by
// an orchestrator instance, never a package global, so tests can pin it.
type Capability struct {
	mu      sync.Mutex
	engine  Engine
	status  Status
	lastErr error
}

// NewCapability creates an untested capability for e. A nil engine is
// permanently unavailable.
func NewCapability(e Engine) *Capability {
	return &Capability{engine: e}
}

// Engine returns the engine being probed.
func (c *Capability) Engine() Engine { return c.engine }

// Status returns the current status without probing.
func (c *Capability) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Err returns the error recorded by the last failed probe or run.
func (c *Capability) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Ensure probes the engine if it has not been probed yet and returns
// the resulting status.
func (c *Capability) Ensure(ctx context.Context) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != Untested {
		return c.status
	}
	if c.engine == nil {
		c.status = Unavailable
		c.lastErr = &UnavailableError{Engine: "deep engine", Err: errors.New("not configured")}
		return c.status
	}
	if err := c.engine.Init(ctx); err != nil {
		c.status = Unavailable
		c.lastErr = &UnavailableError{Engine: c.engine.Name(), Err: err}
		return c.status
	}
	c.status = Available
	c.lastErr = nil
	return c.status
}

// Reset forces the next Ensure to probe again (manual retry).
func (c *Capability) Reset() {
	c.mu.Lock()
	c.status = Untested
	c.lastErr = nil
	c.mu.Unlock()
}

// Force pins the status without probing. A nil engine cannot be forced
// available.
func (c *Capability) Force(s Status) {
	c.mu.Lock()
	if c.engine == nil && s == Available {
		s = Unavailable
	}
	c.status = s
	c.mu.Unlock()
}

// Observe recomputes the status from the outcome of a tuned-engine run:
// an UnavailableError degrades it, anything else leaves it available.
func (c *Capability) Observe(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if errors.Is(err, ErrUnavailable) {
		c.status = Unavailable
		c.lastErr = err
		return
	}
	c.status = Available
}
