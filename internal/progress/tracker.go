package progress

import (
	"sync"
	"time"
)

// State is the observable progress of one codec run.
type State struct {
	Key      string // codec id
	ImageID  string
	Fraction float64
	Phase    string
	ETA      time.Duration
	Active   bool // a run is in flight
	Updated  time.Time
}

// EtaMillis returns the ETA in whole milliseconds.
func (s State) EtaMillis() int64 { return s.ETA.Milliseconds() }

// Tracker keeps the latest State per codec and fans changes out to
// subscribers. Slow subscribers miss updates rather than block the run.
type Tracker struct {
	mu          sync.RWMutex
	states      map[string]State
	subscribers map[chan State]struct{}
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		states:      make(map[string]State),
		subscribers: make(map[chan State]struct{}),
	}
}

// Subscribe returns a channel receiving every state change.
func (t *Tracker) Subscribe(buffer int) chan State {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan State, buffer)
	t.mu.Lock()
	t.subscribers[ch] = struct{}{}
	t.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes ch.
func (t *Tracker) Unsubscribe(ch chan State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.subscribers[ch]; ok {
		delete(t.subscribers, ch)
		close(ch)
	}
}

// Begin resets the state for key at the start of a new run.
func (t *Tracker) Begin(key, imageID string) {
	t.set(State{Key: key, ImageID: imageID, Phase: PhaseStarting, Active: true})
}

// Apply folds a codec update into the current run. Fraction never moves
// backwards within a run; updates for inactive runs are dropped.
func (t *Tracker) Apply(key string, u Update) {
	t.mu.Lock()
	s, ok := t.states[key]
	if !ok || !s.Active {
		t.mu.Unlock()
		return
	}
	f := clampFraction(u.Fraction)
	if f > s.Fraction {
		s.Fraction = f
	}
	if u.Phase != "" {
		s.Phase = u.Phase
	}
	if u.ETA != nil {
		s.ETA = *u.ETA
	}
	t.store(s)
	t.mu.Unlock()
}

// Finish marks the run complete: fraction 1, terminal phase, no ETA.
func (t *Tracker) Finish(key string) {
	t.finalize(key, 1, PhaseDone)
}

// Fail marks the run as ended without a result.
func (t *Tracker) Fail(key string) {
	t.finalize(key, -1, PhaseFailed)
}

// Cancel clears the state for key entirely.
func (t *Tracker) Cancel(key string) {
	t.mu.Lock()
	delete(t.states, key)
	t.mu.Unlock()
}

// Snapshot returns the state for key.
func (t *Tracker) Snapshot(key string) (State, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.states[key]
	return s, ok
}

func (t *Tracker) finalize(key string, fraction float64, phase string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[key]
	if !ok {
		s = State{Key: key}
	}
	if fraction >= 0 {
		s.Fraction = fraction
	}
	s.Phase = phase
	s.ETA = 0
	s.Active = false
	t.store(s)
}

func (t *Tracker) set(s State) {
	t.mu.Lock()
	t.store(s)
	t.mu.Unlock()
}

// store must be called with t.mu held.
func (t *Tracker) store(s State) {
	s.Updated = time.Now()
	t.states[s.Key] = s
	for ch := range t.subscribers {
		select {
		case ch <- s:
		default:
		}
	}
}

func clampFraction(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
