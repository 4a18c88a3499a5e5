package codec

import (
	"bytes"
	"context"
	"image/color"
	"testing"

	xwebp "golang.org/x/image/webp"
)

func TestWebP_LosslessRoundTrip(t *testing.T) {
	src := testImage(t, 32, 24)
	s := DefaultSettings(WebP)
	s.Lossless = true
	s.Quality = 10 // ignored in lossless mode

	out, err := (&WebPAdapter{}).Run(context.Background(), src, s, nil)
	if err != nil {
		t.Fatal(err)
	}
	img, err := xwebp.Decode(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for y := 0; y < src.Height(); y++ {
		for x := 0; x < src.Width(); x++ {
			want := src.Pixels.NRGBAAt(x, y)
			if want.A == 0 {
				continue
			}
			got := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if got != want {
				t.Fatalf("pixel (%d,%d): got %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestWebP_LossyStable(t *testing.T) {
	src := testImage(t, 32, 32)
	s := DefaultSettings(WebP)
	a, err := (&WebPAdapter{}).Run(context.Background(), src, s, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := (&WebPAdapter{}).Run(context.Background(), src, s, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(a.Data, []byte("RIFF")) || !bytes.Equal(a.Data, b.Data) {
		t.Error("lossy webp output not stable within a session")
	}
}
