package codec

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/AnyUserName/imgpress-cli/internal/progress"
	"github.com/AnyUserName/imgpress-cli/internal/raster"
)

func testImage(t testing.TB, w, h int) *raster.SourceImage {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := uint8(255)
			if x < w/4 {
				a = uint8(x * 255 / (w / 4)) // soft left edge
			}
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: uint8((x ^ y) & 0xff), A: a,
			})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	src, err := raster.Load(raster.Input{Name: "fixture.png", Mime: "image/png", Data: buf.Bytes()})
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	return src
}

// samePixels decodes data and compares it against the source raster.
func samePixels(t *testing.T, src *raster.SourceImage, data []byte) {
	t.Helper()
	got, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if got.Bounds() != src.Pixels.Rect {
		t.Fatalf("bounds: got %v, want %v", got.Bounds(), src.Pixels.Rect)
	}
	for y := 0; y < src.Height(); y++ {
		for x := 0; x < src.Width(); x++ {
			want := src.Pixels.NRGBAAt(x, y)
			c := color.NRGBAModel.Convert(got.At(x, y)).(color.NRGBA)
			if c != want {
				t.Fatalf("pixel (%d,%d): got %v, want %v", x, y, c, want)
			}
		}
	}
}

func TestKind(t *testing.T) {
	for _, k := range All {
		got, err := ParseKind(k.ID())
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.ID(), got, err)
		}
	}
	if _, err := ParseKind("gif"); err == nil {
		t.Error("expected error for unknown codec")
	}
	if DeepIterativeLossless.Extension() != ".png" || WebP.Extension() != ".webp" || AVIF.Extension() != ".avif" {
		t.Error("unexpected extensions")
	}
	if Priority[0] != QuantizedLossy || Priority[len(Priority)-1] != DeepIterativeLossless {
		t.Errorf("priority order: %v", Priority)
	}
}

func TestSettingsValidate(t *testing.T) {
	for _, k := range All {
		if err := DefaultSettings(k).Validate(k); err != nil {
			t.Errorf("default settings for %s invalid: %v", k, err)
		}
	}
	bad := DefaultSettings(QuantizedLossy)
	bad.Quality = 0
	if bad.Validate(QuantizedLossy) == nil {
		t.Error("quality 0 accepted")
	}
	lossless := Settings{Lossless: true}
	if err := lossless.Validate(WebP); err != nil {
		t.Errorf("lossless webp ignores quality: %v", err)
	}
}

func TestExecute_RatioAndTiming(t *testing.T) {
	src := testImage(t, 64, 48)
	for _, a := range []Adapter{&Quantized{}, &Optimized{}} {
		res, err := Execute(context.Background(), a, src, DefaultSettings(a.Kind()), nil)
		if err != nil {
			t.Fatalf("%s: %v", a.Kind(), err)
		}
		if res.Size != int64(len(res.Data)) {
			t.Errorf("%s: size %d != len %d", a.Kind(), res.Size, len(res.Data))
		}
		want := float64(len(res.Data)) / float64(src.OriginalSize)
		if res.Ratio != want || res.Ratio <= 0 {
			t.Errorf("%s: ratio %v, want %v", a.Kind(), res.Ratio, want)
		}
		if res.Elapsed < 0 || res.Hash == "" || res.Mime != "image/png" {
			t.Errorf("%s: bad result metadata %+v", a.Kind(), res)
		}
	}
}

type stubAdapter struct {
	kind Kind
	run  func() (Output, error)
}

func (s *stubAdapter) Kind() Kind { return s.kind }

func (s *stubAdapter) Run(context.Context, *raster.SourceImage, Settings, chan<- progress.Update) (Output, error) {
	return s.run()
}

func TestExecute_IsolatesFailures(t *testing.T) {
	src := testImage(t, 8, 8)
	cases := map[string]func() (Output, error){
		"error": func() (Output, error) { return Output{}, errors.New("engine exploded") },
		"panic": func() (Output, error) { panic("boom") },
		"empty": func() (Output, error) { return Output{}, nil },
	}
	for name, run := range cases {
		_, err := Execute(context.Background(), &stubAdapter{kind: WebP, run: run}, src, DefaultSettings(WebP), nil)
		var re *RunError
		if !errors.As(err, &re) {
			t.Errorf("%s: expected RunError, got %v", name, err)
			continue
		}
		if re.Kind != WebP {
			t.Errorf("%s: kind %v", name, re.Kind)
		}
	}

	bad := DefaultSettings(WebP)
	bad.Quality = 101
	ok := func() (Output, error) { return Output{Data: []byte{1}}, nil }
	if _, err := Execute(context.Background(), &stubAdapter{kind: WebP, run: ok}, src, bad, nil); err == nil {
		t.Error("invalid settings accepted")
	}
}

func TestResultRelease(t *testing.T) {
	r := &Result{Data: []byte{1, 2, 3}, Size: 3}
	r.Release()
	if !r.Released() || r.Size != 3 || r.Bytes() != nil {
		t.Errorf("release: size %d released %v", r.Size, r.Released())
	}
}

func TestResultReleaseWhileReading(t *testing.T) {
	r := &Result{Data: []byte{1, 2, 3}, Size: 3}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			if b := r.Bytes(); b != nil && len(b) != 3 {
				t.Errorf("torn read: %v", b)
				return
			}
		}
	}()
	r.Release()
	<-done
	if r.Bytes() != nil {
		t.Error("buffer still held after release")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(Config{}, nil)
	kinds := r.Kinds()
	if len(kinds) != 5 {
		t.Fatalf("kinds: %v", kinds)
	}
	for i, k := range Priority {
		if kinds[i] != k {
			t.Errorf("kinds[%d] = %v, want %v", i, kinds[i], k)
		}
	}
	stub := &stubAdapter{kind: AVIF}
	r.Register(stub)
	if r.Get(AVIF) != Adapter(stub) {
		t.Error("register did not replace adapter")
	}

	empty := NewEmptyRegistry()
	if empty.String() != "no codecs registered" {
		t.Errorf("empty registry: %q", empty.String())
	}
}
