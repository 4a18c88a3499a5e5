package hasher

import "testing"

func TestContentHash(t *testing.T) {
	a := ContentHash([]byte("imgpress"), 16)
	if len(a) != 16 {
		t.Fatalf("len: got %d", len(a))
	}
	if a != ContentHash([]byte("imgpress"), 16) {
		t.Error("hash not deterministic")
	}
	if a == ContentHash([]byte("imgpresS"), 16) {
		t.Error("different inputs collided")
	}
	if got := ContentHash([]byte("imgpress"), 8); got != a[:8] {
		t.Errorf("truncation: got %s, want %s", got, a[:8])
	}
	if got := ContentHash(nil, 0); len(got) != 16 {
		t.Errorf("hexLen 0 should return the full hash, got %q", got)
	}
}
