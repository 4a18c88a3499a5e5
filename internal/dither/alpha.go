// Package dither softens alpha quantization on semi-transparent edges with
// Floyd–Steinberg error diffusion over the alpha channel only.
package dither

import (
	"image"
	"math"
)

// DefaultLevels is the number of alpha steps used when the caller does
// not ask for a specific count.
const DefaultLevels = 32

// Alpha values at or beyond these bounds count as fully transparent or
// fully opaque and are never touched.
const (
	transparentMax = 2
	opaqueMin      = 253
)

// Alpha returns a copy of img whose alpha channel has been quantized to
// levels steps with error diffusion. img is not modified.
func Alpha(img *image.NRGBA, levels int) *image.NRGBA {
	dst := image.NewNRGBA(img.Rect)
	for y := 0; y < img.Rect.Dy(); y++ {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+img.Rect.Dx()*4],
			img.Pix[y*img.Stride:y*img.Stride+img.Rect.Dx()*4])
	}
	AlphaInPlace(dst, levels)
	return dst
}

// AlphaInPlace dithers the alpha channel of img in place. img must be a
// private copy; never pass a shared source raster.
func AlphaInPlace(img *image.NRGBA, levels int) {
	if levels < 2 {
		levels = DefaultLevels
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w == 0 || h == 0 {
		return
	}

	step := 255 / float64(levels-1)

	// Accumulated error lives in its own buffer so reading a pixel never
	// sees a value that was already written back.
	errBuf := make([]float64, w*h)

	for y := 0; y < h; y++ {
		row := y * img.Stride
		for x := 0; x < w; x++ {
			off := row + x*4 + 3
			orig := img.Pix[off]
			if orig <= transparentMax || orig >= opaqueMin {
				continue
			}

			adjusted := float64(orig) + errBuf[y*w+x]
			quantized := math.Round(adjusted/step) * step
			img.Pix[off] = clamp(quantized)

			diff := adjusted - quantized
			spread(errBuf, w, h, x+1, y, diff*7/16)
			spread(errBuf, w, h, x-1, y+1, diff*3/16)
			spread(errBuf, w, h, x, y+1, diff*5/16)
			spread(errBuf, w, h, x+1, y+1, diff*1/16)
		}
	}
}

func spread(buf []float64, w, h, x, y int, v float64) {
	if x < 0 || x >= w || y >= h {
		return
	}
	buf[y*w+x] += v
}

func clamp(v float64) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(math.Round(v))
	}
}
