// Package scheduler sequences codec runs for the active image on one
// logical thread, yielding to the host between runs and dropping stale
// work when the active image changes.
package scheduler

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/AnyUserName/imgpress-cli/internal/codec"
	"github.com/AnyUserName/imgpress-cli/internal/progress"
	"github.com/AnyUserName/imgpress-cli/internal/raster"
	"github.com/AnyUserName/imgpress-cli/internal/store"
)

// State of the scheduler for the active image.
type State int

const (
	Idle State = iota
	Running
	Cancelled
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Cancelled:
		return "cancelled"
	default:
		return "idle"
	}
}

// Config wires the scheduler to its collaborators.
type Config struct {
	Registry *codec.Registry
	Store    *store.Store
	Settings *codec.Set
	Tracker  *progress.Tracker // optional

	// Yield hands control back to the host. Defaults to runtime.Gosched.
	Yield func()

	// OnEvent observes run lifecycle events. Called from the goroutine
	// running Tick.
	OnEvent func(Event)

	Logf func(format string, args ...any)
}

// entry is one pending run.
type entry struct {
	image *raster.SourceImage
	kind  codec.Kind
	force bool // run even if a result is cached
}

// Scheduler is a single-consumer run queue. SetActiveImage and
// RequeueCodec may be called from any goroutine; Tick and Run must be
// driven by one goroutine.
type Scheduler struct {
	cfg Config

	mu      sync.Mutex
	state   State
	active  *raster.SourceImage
	cycle   context.Context
	cancel  context.CancelFunc
	fresh   bool // queue must be built after a yield
	queue   []entry
	requeue []entry
}

// New creates an idle scheduler.
func New(cfg Config) *Scheduler {
	if cfg.Yield == nil {
		cfg.Yield = runtime.Gosched
	}
	if cfg.Settings == nil {
		cfg.Settings = codec.NewSet()
	}
	if cfg.Store == nil {
		cfg.Store = store.New()
	}
	return &Scheduler{cfg: cfg}
}

// SetActiveImage switches the active image. Pending work for the previous
// image is discarded and a run already in flight will not commit. A nil
// img clears the active image.
func (s *Scheduler) SetActiveImage(img *raster.SourceImage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		if s.state == Running {
			s.state = Cancelled
		}
	}
	s.queue = nil
	s.requeue = nil
	s.active = img
	s.cycle, s.cancel = nil, nil
	s.fresh = false
	if img == nil {
		return
	}
	s.cycle, s.cancel = context.WithCancel(context.Background())
	s.fresh = true
}

// Active returns the active image, or nil.
func (s *Scheduler) Active() *raster.SourceImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// RequeueCodec drops the cached result for kind on the active image and
// schedules a single re-run of it. Other codecs' results are untouched.
func (s *Scheduler) RequeueCodec(kind codec.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return
	}
	s.cfg.Store.Invalidate(store.Key{ImageID: s.active.ID, Kind: kind})
	if s.fresh {
		// The pending queue build will pick it up.
		return
	}
	for _, e := range s.queue {
		if e.kind == kind {
			return
		}
	}
	for _, e := range s.requeue {
		if e.kind == kind {
			return
		}
	}
	s.requeue = append(s.requeue, entry{image: s.active, kind: kind, force: true})
}

// UpdateSettings stores v for kind and requeues that codec alone.
func (s *Scheduler) UpdateSettings(kind codec.Kind, v codec.Settings) error {
	if err := s.cfg.Settings.Put(kind, v); err != nil {
		return err
	}
	if v.Enabled {
		s.RequeueCodec(kind)
		return nil
	}
	s.mu.Lock()
	if s.active != nil {
		s.cfg.Store.Invalidate(store.Key{ImageID: s.active.ID, Kind: kind})
	}
	s.mu.Unlock()
	return nil
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pending returns the number of queued runs.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) + len(s.requeue)
}

// Run drives Tick until there is no more work or ctx is done. Cancelling
// ctx stops the loop between runs; it is also passed to the codecs.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		more, err := s.Tick(ctx)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

// Tick advances the scheduler by one step: either the yield-then-build
// step after an image switch, or one codec run followed by a yield. It
// reports whether more work remains.
func (s *Scheduler) Tick(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	if s.active == nil {
		s.state = Idle
		s.mu.Unlock()
		return false, nil
	}
	if s.fresh {
		cycle := s.cycle
		s.mu.Unlock()

		// Let the host show the new original before any codec starts.
		s.cfg.Yield()

		s.mu.Lock()
		if s.cycle != cycle {
			// Switched again during the yield; the next tick handles it.
			s.mu.Unlock()
			return true, nil
		}
		s.buildLocked()
	}

	e, ok := s.popLocked()
	if !ok {
		s.state = Idle
		s.mu.Unlock()
		return false, nil
	}
	s.state = Running
	cycle := s.cycle
	s.mu.Unlock()

	s.runEntry(ctx, cycle, e)
	s.cfg.Yield()

	s.mu.Lock()
	defer s.mu.Unlock()
	more := s.fresh || len(s.queue)+len(s.requeue) > 0
	if !more && s.state == Running {
		s.state = Idle
	}
	return more, nil
}

// buildLocked fills the queue with every enabled codec that has no cached
// result, in priority order.
func (s *Scheduler) buildLocked() {
	s.fresh = false
	s.queue = s.queue[:0]
	for _, k := range s.cfg.Settings.Enabled(codec.Priority) {
		if s.cfg.Registry.Get(k) == nil {
			continue
		}
		if s.cfg.Store.Has(store.Key{ImageID: s.active.ID, Kind: k}) {
			continue
		}
		s.queue = append(s.queue, entry{image: s.active, kind: k})
	}
	s.logf("queued %d codecs for %s", len(s.queue), s.active.Name)
}

// popLocked takes the next entry, preferring single-codec re-runs.
func (s *Scheduler) popLocked() (entry, bool) {
	if len(s.requeue) > 0 {
		e := s.requeue[0]
		s.requeue = s.requeue[1:]
		return e, true
	}
	if len(s.queue) > 0 {
		e := s.queue[0]
		s.queue = s.queue[1:]
		return e, true
	}
	return entry{}, false
}

func (s *Scheduler) runEntry(ctx context.Context, cycle context.Context, e entry) {
	key := store.Key{ImageID: e.image.ID, Kind: e.kind}
	settings := s.cfg.Settings.Get(e.kind)
	adapter := s.cfg.Registry.Get(e.kind)
	if adapter == nil || !settings.Enabled {
		s.emit(Event{Type: Skipped, ImageID: e.image.ID, Kind: e.kind})
		return
	}
	if !e.force && s.cfg.Store.Has(key) {
		s.emit(Event{Type: Skipped, ImageID: e.image.ID, Kind: e.kind})
		return
	}

	id := e.kind.ID()
	if s.cfg.Tracker != nil {
		s.cfg.Tracker.Begin(id, e.image.ID)
	}
	s.emit(Event{Type: Started, ImageID: e.image.ID, Kind: e.kind})
	s.logf("running %s on %s", id, e.image.Name)

	updates, drained := s.drain(id)
	res, err := codec.Execute(ctx, adapter, e.image, settings, updates)
	if updates != nil {
		close(updates)
		<-drained
	}

	// Commit point: a switch of the active image while the codec ran
	// means the result is stale.
	s.mu.Lock()
	stale := cycle.Err() != nil
	if !stale && err == nil {
		s.cfg.Store.Put(key, res)
	}
	s.mu.Unlock()

	switch {
	case stale:
		if res != nil {
			res.Release()
		}
		if s.cfg.Tracker != nil {
			s.cfg.Tracker.Cancel(id)
		}
		s.logf("discarded %s for %s: image no longer active", id, e.image.Name)
		s.emit(Event{Type: Discarded, ImageID: e.image.ID, Kind: e.kind, Err: context.Canceled})
	case err != nil:
		if s.cfg.Tracker != nil {
			s.cfg.Tracker.Fail(id)
		}
		var re *codec.RunError
		if !errors.As(err, &re) {
			re = &codec.RunError{Kind: e.kind, Err: err}
		}
		s.logf("%s failed: %v", id, re.Err)
		s.emit(Event{Type: Failed, ImageID: e.image.ID, Kind: e.kind, Err: re})
	default:
		if s.cfg.Tracker != nil {
			s.cfg.Tracker.Finish(id)
		}
		s.logf("%s done: %d bytes (%.1f%%) in %dms", id, res.Size, res.Ratio*100, res.ElapsedMillis())
		s.emit(Event{Type: Succeeded, ImageID: e.image.ID, Kind: e.kind, Result: res})
	}
}

// drain starts forwarding codec updates into the tracker. Without a
// tracker there is nothing to forward to and codecs get a nil channel.
func (s *Scheduler) drain(key string) (chan progress.Update, <-chan struct{}) {
	if s.cfg.Tracker == nil {
		return nil, nil
	}
	updates := make(chan progress.Update, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range updates {
			s.cfg.Tracker.Apply(key, u)
		}
	}()
	return updates, done
}

func (s *Scheduler) emit(ev Event) {
	if s.cfg.OnEvent != nil {
		s.cfg.OnEvent(ev)
	}
}

func (s *Scheduler) logf(format string, args ...any) {
	if s.cfg.Logf != nil {
		s.cfg.Logf(format, args...)
	}
}
