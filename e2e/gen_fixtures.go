//go:build ignore

// gen_fixtures creates small test images for the E2E smoke run.
// Usage: go run gen_fixtures.go <output_dir>
//
//	imgpress compress <output_dir> -o out && imgpress validate out
package main

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gen_fixtures <output_dir>")
		os.Exit(1)
	}
	dir := os.Args[1]
	os.MkdirAll(filepath.Join(dir, "icons"), 0o755)

	// Opaque photo-like gradient (JPEG, re-encoded to a PNG container).
	writeJPEG(filepath.Join(dir, "banner.jpg"), gradient(400, 225))

	// Soft-edged sprites: the alpha dither case.
	for i := 1; i <= 3; i++ {
		name := fmt.Sprintf("sprite-%d.png", i)
		writePNG(filepath.Join(dir, "icons", name), softCircle(128, 128, uint8(i*70)))
	}

	// Horizontal alpha ramp over flat colour.
	writePNG(filepath.Join(dir, "ramp.png"), alphaGradient(256, 64))

	// Flat colour that the palette codec shrinks to almost nothing.
	writePNG(filepath.Join(dir, "flat.png"), flat(300, 300, color.NRGBA{R: 40, G: 90, B: 160, A: 255}))

	fmt.Fprintf(os.Stderr, "[gen_fixtures] created 6 fixtures in %s\n", dir)
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

// softCircle is a filled disc whose edge fades out over ~12px.
func softCircle(w, h int, hue uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	cx, cy := float64(w)/2, float64(h)/2
	r := math.Min(cx, cy) - 4
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy)
			a := (r - d) / 12
			a = math.Max(0, math.Min(1, a))
			img.SetNRGBA(x, y, color.NRGBA{
				R: hue, G: 255 - hue, B: uint8(x * 2), A: uint8(a * 255),
			})
		}
	}
	return img
}

func alphaGradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: 220, G: 60, B: 30,
				A: uint8(x * 255 / w),
			})
		}
	}
	return img
}

func flat(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func writePNG(path string, img *image.NRGBA) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		panic(err)
	}
}

func writeJPEG(path string, img *image.NRGBA) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 85}); err != nil {
		panic(err)
	}
}
