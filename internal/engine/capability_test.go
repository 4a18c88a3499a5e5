package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type fakeEngine struct {
	initErr error
	inits   int
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Init(context.Context) error {
	f.inits++
	return f.initErr
}

func (f *fakeEngine) Optimize(_ context.Context, png []byte, _ Trial) ([]byte, error) {
	return png, nil
}

func TestCapability_ProbeOnce(t *testing.T) {
	e := &fakeEngine{}
	c := NewCapability(e)
	if c.Status() != Untested {
		t.Fatalf("initial status: %v", c.Status())
	}
	if got := c.Ensure(context.Background()); got != Available {
		t.Fatalf("ensure: got %v", got)
	}
	c.Ensure(context.Background())
	if e.inits != 1 {
		t.Errorf("init called %d times, want 1", e.inits)
	}
}

func TestCapability_InitFailureIsUnavailable(t *testing.T) {
	e := &fakeEngine{initErr: errors.New("module missing")}
	c := NewCapability(e)
	if got := c.Ensure(context.Background()); got != Unavailable {
		t.Fatalf("ensure: got %v", got)
	}
	if !errors.Is(c.Err(), ErrUnavailable) {
		t.Errorf("recorded error does not match ErrUnavailable: %v", c.Err())
	}

	// Manual retry after the environment is fixed.
	e.initErr = nil
	c.Reset()
	if c.Status() != Untested {
		t.Fatalf("after reset: %v", c.Status())
	}
	if got := c.Ensure(context.Background()); got != Available {
		t.Fatalf("re-probe: got %v", got)
	}
}

func TestCapability_NilEngine(t *testing.T) {
	c := NewCapability(nil)
	if got := c.Ensure(context.Background()); got != Unavailable {
		t.Fatalf("nil engine: got %v", got)
	}
}

func TestCapability_Observe(t *testing.T) {
	c := NewCapability(&fakeEngine{})
	c.Ensure(context.Background())

	c.Observe(fmt.Errorf("trial 2: %w", &UnavailableError{Engine: "fake", Err: errors.New("gone")}))
	if c.Status() != Unavailable {
		t.Fatalf("degraded run: got %v", c.Status())
	}

	c.Force(Available)
	c.Observe(errors.New("bad input"))
	if c.Status() != Available {
		t.Errorf("ordinary error should not degrade: got %v", c.Status())
	}
}

func TestZopfliPNG_MissingBinary(t *testing.T) {
	z := &ZopfliPNG{Path: "imgpress-definitely-missing-zopflipng"}
	c := NewCapability(z)
	if got := c.Ensure(context.Background()); got != Unavailable {
		t.Fatalf("missing binary: got %v", got)
	}

	_, err := z.Optimize(context.Background(), []byte{1}, Trial{})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("optimize before init: %v", err)
	}
}

func TestCapability_ForceNilEngine(t *testing.T) {
	c := NewCapability(nil)
	c.Force(Available)
	if c.Status() != Unavailable {
		t.Errorf("nil engine forced available: got %v", c.Status())
	}
}
