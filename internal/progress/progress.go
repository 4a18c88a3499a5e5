// Package progress carries interim progress for long-running codec runs
// from the codec task to whoever is watching.
package progress

import (
	"context"
	"time"
)

// Phase labels shared by the tracker.
const (
	PhaseStarting = "starting"
	PhaseDone     = "done"
	PhaseFailed   = "failed"
)

// Update is one report from a running codec. ETA is optional.
type Update struct {
	Fraction float64        // 0..1
	Phase    string         // short human-friendly label
	ETA      *time.Duration // estimated remaining wall-clock time
}

// Send delivers u on ch, giving up if ctx is done. A nil ch discards u,
// so codecs can report unconditionally.
func Send(ctx context.Context, ch chan<- Update, u Update) {
	if ch == nil {
		return
	}
	select {
	case ch <- u:
	case <-ctx.Done():
	}
}

// Estimate extrapolates the remaining time from the elapsed time and the
// fraction completed so far. It returns 0 until there is something to
// extrapolate from.
func Estimate(elapsed time.Duration, fraction float64) time.Duration {
	if fraction <= 0 || elapsed <= 0 {
		return 0
	}
	if fraction >= 1 {
		return 0
	}
	total := float64(elapsed) / fraction
	return time.Duration(total - float64(elapsed))
}

// Eta is a convenience for building Update.ETA from a start time.
func Eta(start time.Time, fraction float64) *time.Duration {
	d := Estimate(time.Since(start), fraction)
	return &d
}
