package tui

import (
	"strings"
	"testing"
	"time"
)

func TestModelApply(t *testing.T) {
	m := NewModel(nil, 2)
	m = m.apply(Update{Kind: ImageStarted, Image: "a.png"})
	m = m.apply(Update{Kind: CodecProgress, Codec: "deep", Fraction: 0.5, Phase: "filters m", ETA: time.Second})
	m = m.apply(Update{Kind: CodecProgress, Codec: "deep", Fraction: 0.25})
	if m.fraction != 0.5 {
		t.Errorf("fraction went backwards: %v", m.fraction)
	}
	m = m.apply(Update{Kind: CodecDone, Codec: "deep", Saved: 2048})
	m = m.apply(Update{Kind: CodecFailed, Codec: "avif", Err: "avifenc not found"})

	if m.results != 1 || m.errors != 1 || m.saved != 2048 {
		t.Errorf("counters: results=%d errors=%d saved=%d", m.results, m.errors, m.saved)
	}
	view := m.View()
	for _, want := range []string{"Image 1/2: a.png", "2.0 KB", "avif: avifenc not found"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestRenderBar(t *testing.T) {
	if got := renderBar(4, 0.5); got != "[==  ]" {
		t.Errorf("renderBar = %q", got)
	}
	if got := renderBar(4, 2); got != "[====]" {
		t.Errorf("renderBar clamps: %q", got)
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{
		12:      "12 B",
		2048:    "2.0 KB",
		3 << 20: "3.0 MB",
		-1536:   "-1.5 KB",
	}
	for n, want := range cases {
		if got := FormatBytes(n); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}
