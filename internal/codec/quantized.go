package codec

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync"

	"github.com/soniakeys/quant/median"

	"github.com/AnyUserName/imgpress-cli/internal/dither"
	"github.com/AnyUserName/imgpress-cli/internal/progress"
	"github.com/AnyUserName/imgpress-cli/internal/raster"
)

// Quantized reduces the raster to a palette (median cut) and writes a
// paletted PNG. It is best-effort: a quality target that cannot be met
// still yields output.
type Quantized struct{}

func (q *Quantized) Kind() Kind { return QuantizedLossy }

func (q *Quantized) Run(_ context.Context, img *raster.SourceImage, s Settings, _ chan<- progress.Update) (Output, error) {
	src := img.Pixels
	if s.Dither {
		// Private copy; the shared raster is never touched.
		src = dither.Alpha(img.Pixels, s.DitherLevels)
	}

	h := acquireQuantizer(paletteSize(s.Quality))
	defer h.release()

	data, err := h.encode(src, s.Quality >= ditherQualityMin)
	if err != nil {
		return Output{}, fmt.Errorf("encode paletted png: %w", err)
	}
	return Output{Data: data, Mime: "image/png", Engine: "median-cut"}, nil
}

// Below this quality the palette is mapped without error diffusion,
// which trades banding for a smaller file.
const ditherQualityMin = 20

// paletteSize maps quality 1-100 onto 2-256 palette entries.
func paletteSize(quality int) int {
	n := 2 + (quality*254+50)/100
	if n < 2 {
		n = 2
	}
	if n > 256 {
		n = 256
	}
	return n
}

// quantizer is one engine instance: a median-cut quantizer plus the
// scratch buffers the PNG encoder writes into. Instances come from a pool
// and must be released on every exit path.
type quantizer struct {
	colors int
	buf    bytes.Buffer
	encBuf *png.EncoderBuffer
}

var quantizerPool = sync.Pool{New: func() any { return new(quantizer) }}

func acquireQuantizer(colors int) *quantizer {
	h := quantizerPool.Get().(*quantizer)
	h.colors = colors
	return h
}

func (h *quantizer) release() {
	h.buf.Reset()
	quantizerPool.Put(h)
}

// Get and Put let the quantizer act as a png.EncoderBufferPool, so the
// encoder reuses its scratch space across runs.
func (h *quantizer) Get() *png.EncoderBuffer  { return h.encBuf }
func (h *quantizer) Put(b *png.EncoderBuffer) { h.encBuf = b }

func (h *quantizer) encode(src *image.NRGBA, diffuse bool) ([]byte, error) {
	pal := median.Quantizer(h.colors).Quantize(make(color.Palette, 0, h.colors), src)
	pal = ensureTransparent(pal, src, h.colors)

	dst := image.NewPaletted(src.Rect, pal)
	if diffuse {
		draw.FloydSteinberg.Draw(dst, src.Rect, src, src.Rect.Min)
	} else {
		draw.Draw(dst, src.Rect, src, src.Rect.Min, draw.Src)
	}

	enc := &png.Encoder{CompressionLevel: png.BestCompression, BufferPool: h}
	if err := enc.Encode(&h.buf, dst); err != nil {
		return nil, err
	}
	// The buffer goes back to the pool; hand out a copy.
	return append([]byte(nil), h.buf.Bytes()...), nil
}

// ensureTransparent makes sure fully transparent pixels have an exact
// palette entry, replacing the last entry when the palette is full.
func ensureTransparent(pal color.Palette, src *image.NRGBA, max int) color.Palette {
	if len(pal) == 0 {
		pal = color.Palette{color.NRGBA{A: 255}}
	}
	if !hasTransparent(src) {
		return pal
	}
	for _, c := range pal {
		if _, _, _, a := c.RGBA(); a == 0 {
			return pal
		}
	}
	if len(pal) < max {
		return append(pal, color.NRGBA{})
	}
	pal[len(pal)-1] = color.NRGBA{}
	return pal
}

func hasTransparent(img *image.NRGBA) bool {
	for y := 0; y < img.Rect.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+img.Rect.Dx()*4]
		for i := 3; i < len(row); i += 4 {
			if row[i] == 0 {
				return true
			}
		}
	}
	return false
}
