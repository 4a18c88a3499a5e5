package codec

import (
	"bytes"
	"context"
	"image"

	"github.com/chai2010/webp"

	"github.com/AnyUserName/imgpress-cli/internal/progress"
	"github.com/AnyUserName/imgpress-cli/internal/raster"
)

// WebPAdapter encodes the raster with libwebp. Lossless mode forces
// quality 100 and keeps RGB under transparent pixels.
type WebPAdapter struct{}

func (w *WebPAdapter) Kind() Kind { return WebP }

func (w *WebPAdapter) Run(_ context.Context, img *raster.SourceImage, s Settings, _ chan<- progress.Update) (Output, error) {
	quality := float32(s.Quality)
	if s.Lossless {
		quality = 100
	}

	// libwebp takes straight (non-premultiplied) RGBA bytes, which is
	// exactly the NRGBA layout; wrap without converting.
	straight := &image.RGBA{Pix: img.Pixels.Pix, Stride: img.Pixels.Stride, Rect: img.Pixels.Rect}

	var buf bytes.Buffer
	buf.Grow(256 * 1024) // pre-alloc 256KB
	err := webp.Encode(&buf, straight, &webp.Options{
		Lossless: s.Lossless,
		Quality:  quality,
		Exact:    s.Lossless,
	})
	if err != nil {
		return Output{}, err
	}

	engineName := "libwebp lossy"
	if s.Lossless {
		engineName = "libwebp lossless"
	}
	return Output{Data: buf.Bytes(), Mime: "image/webp", Engine: engineName}, nil
}
