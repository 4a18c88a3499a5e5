package store

import (
	"testing"

	"github.com/AnyUserName/imgpress-cli/internal/codec"
)

func result(kind codec.Kind, data string) *codec.Result {
	return &codec.Result{Kind: kind, Data: []byte(data), Size: int64(len(data))}
}

func TestPutSupersedes(t *testing.T) {
	s := New()
	key := Key{ImageID: "a", Kind: codec.WebP}
	first := result(codec.WebP, "first")
	second := result(codec.WebP, "second!")

	s.Put(key, first)
	s.Put(key, second)

	got, ok := s.Get(key)
	if !ok || got != second {
		t.Fatalf("expected newer result, got %+v", got)
	}
	if !first.Released() {
		t.Error("superseded result not released")
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}

	// Re-putting the same pointer must not release it.
	s.Put(key, second)
	if second.Released() {
		t.Error("live result released on re-put")
	}
}

func TestCompositeKeysDoNotCollide(t *testing.T) {
	s := New()
	// Naive concatenation would map both of these to "ab1".
	s.Put(Key{ImageID: "ab", Kind: codec.Kind(1)}, result(codec.Kind(1), "x"))
	s.Put(Key{ImageID: "a", Kind: codec.Kind(1)}, result(codec.Kind(1), "y"))
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
}

func TestInvalidateLeavesSiblings(t *testing.T) {
	s := New()
	q := Key{ImageID: "img", Kind: codec.QuantizedLossy}
	w := Key{ImageID: "img", Kind: codec.WebP}
	wr := result(codec.WebP, "webp")
	qr := result(codec.QuantizedLossy, "png")
	s.Put(q, qr)
	s.Put(w, wr)

	if !s.Invalidate(q) {
		t.Fatal("Invalidate reported missing entry")
	}
	if s.Has(q) || !qr.Released() {
		t.Error("invalidated entry still cached")
	}
	if got, _ := s.Get(w); got != wr || wr.Released() {
		t.Error("sibling entry disturbed")
	}
	if s.Invalidate(q) {
		t.Error("second Invalidate should report false")
	}
}

func TestDropImage(t *testing.T) {
	s := New()
	a1 := result(codec.WebP, "1")
	a2 := result(codec.AVIF, "2")
	b1 := result(codec.WebP, "3")
	s.Put(Key{"a", codec.WebP}, a1)
	s.Put(Key{"a", codec.AVIF}, a2)
	s.Put(Key{"b", codec.WebP}, b1)

	if n := s.DropImage("a"); n != 2 {
		t.Fatalf("DropImage = %d, want 2", n)
	}
	if !a1.Released() || !a2.Released() || b1.Released() {
		t.Error("wrong buffers released")
	}
	if len(s.ForImage("a")) != 0 || len(s.ForImage("b")) != 1 {
		t.Error("ForImage after drop")
	}
	if s.Bytes() != 1 {
		t.Errorf("Bytes = %d", s.Bytes())
	}
}
