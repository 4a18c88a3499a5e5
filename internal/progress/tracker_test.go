package progress

import (
	"context"
	"testing"
	"time"
)

func dur(d time.Duration) *time.Duration { return &d }

func TestTracker_MonotonicFraction(t *testing.T) {
	tr := NewTracker()
	tr.Begin("deep", "img-1")

	tr.Apply("deep", Update{Fraction: 0.4, Phase: "trial 2/5", ETA: dur(3 * time.Second)})
	tr.Apply("deep", Update{Fraction: 0.2, Phase: "trial 3/5", ETA: dur(5 * time.Second)})

	s, ok := tr.Snapshot("deep")
	if !ok {
		t.Fatal("no state")
	}
	if s.Fraction != 0.4 {
		t.Errorf("fraction went backwards: %v", s.Fraction)
	}
	if s.Phase != "trial 3/5" {
		t.Errorf("phase: got %q", s.Phase)
	}
	if s.EtaMillis() != 5000 {
		t.Errorf("eta need not be monotonic: got %d ms", s.EtaMillis())
	}
}

func TestTracker_FinishAndReset(t *testing.T) {
	tr := NewTracker()
	tr.Begin("deep", "img-1")
	tr.Apply("deep", Update{Fraction: 0.7, ETA: dur(time.Second)})
	tr.Finish("deep")

	s, _ := tr.Snapshot("deep")
	if s.Fraction != 1 || s.Phase != PhaseDone || s.ETA != 0 || s.Active {
		t.Fatalf("finished state: %+v", s)
	}

	// Late updates after completion are ignored.
	tr.Apply("deep", Update{Fraction: 0.1})
	if s, _ := tr.Snapshot("deep"); s.Fraction != 1 {
		t.Errorf("inactive run accepted update: %v", s.Fraction)
	}

	tr.Begin("deep", "img-2")
	s, _ = tr.Snapshot("deep")
	if s.Fraction != 0 || !s.Active || s.ImageID != "img-2" {
		t.Errorf("new run did not reset: %+v", s)
	}
}

func TestTracker_CancelClears(t *testing.T) {
	tr := NewTracker()
	tr.Begin("webp", "img")
	tr.Cancel("webp")
	if _, ok := tr.Snapshot("webp"); ok {
		t.Error("cancelled state still present")
	}
}

func TestTracker_Subscribe(t *testing.T) {
	tr := NewTracker()
	ch := tr.Subscribe(8)
	tr.Begin("deep", "img")
	tr.Apply("deep", Update{Fraction: 0.5})
	tr.Finish("deep")
	tr.Unsubscribe(ch)

	var got []State
	for s := range ch {
		got = append(got, s)
	}
	if len(got) != 3 {
		t.Fatalf("updates: got %d", len(got))
	}
	if got[2].Phase != PhaseDone {
		t.Errorf("last phase: %q", got[2].Phase)
	}
}

func TestEstimate(t *testing.T) {
	if got := Estimate(2*time.Second, 0.25); got != 6*time.Second {
		t.Errorf("estimate: got %v", got)
	}
	if Estimate(time.Second, 0) != 0 || Estimate(time.Second, 1) != 0 {
		t.Error("degenerate fractions should yield 0")
	}
}

func TestSend_NilAndCancelled(t *testing.T) {
	Send(context.Background(), nil, Update{Fraction: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ch := make(chan Update) // unbuffered, nobody reading
	Send(ctx, ch, Update{Fraction: 1})
}
