package codec

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"
)

func TestQuantized_PalettedOutput(t *testing.T) {
	src := testImage(t, 64, 64)
	before := append([]byte(nil), src.Pixels.Pix...)

	for _, q := range []int{1, 10, 75, 100} {
		s := DefaultSettings(QuantizedLossy)
		s.Quality = q
		out, err := (&Quantized{}).Run(context.Background(), src, s, nil)
		if err != nil {
			t.Fatalf("quality %d: %v", q, err)
		}
		img, err := png.Decode(bytes.NewReader(out.Data))
		if err != nil {
			t.Fatalf("quality %d: decode: %v", q, err)
		}
		p, ok := img.(*image.Paletted)
		if !ok {
			t.Fatalf("quality %d: got %T, want *image.Paletted", q, img)
		}
		if len(p.Palette) > paletteSize(q) {
			t.Errorf("quality %d: palette %d > %d", q, len(p.Palette), paletteSize(q))
		}
		if p.Bounds() != src.Pixels.Rect {
			t.Errorf("quality %d: bounds %v", q, p.Bounds())
		}
	}

	if !bytes.Equal(before, src.Pixels.Pix) {
		t.Error("dithering mutated the shared raster")
	}
}

func TestQuantized_SameSessionStable(t *testing.T) {
	src := testImage(t, 48, 32)
	s := DefaultSettings(QuantizedLossy)
	a, err := (&Quantized{}).Run(context.Background(), src, s, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := (&Quantized{}).Run(context.Background(), src, s, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Data, b.Data) {
		t.Error("quantized output differs between two calls")
	}
}

func TestPaletteSize(t *testing.T) {
	if paletteSize(100) != 256 {
		t.Errorf("q100: %d", paletteSize(100))
	}
	if n := paletteSize(1); n < 2 || n > 8 {
		t.Errorf("q1: %d", n)
	}
	if paletteSize(50) >= paletteSize(80) {
		t.Error("palette size should grow with quality")
	}
}
