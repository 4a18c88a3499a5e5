package codec

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/AnyUserName/imgpress-cli/internal/progress"
	"github.com/AnyUserName/imgpress-cli/internal/raster"
)

// Optimized rewrites the lossless PNG container: metadata chunks are
// dropped and the image data is re-deflated, trying more strategies as
// Level rises. Decoded pixels are identical to the input.
type Optimized struct{}

func (o *Optimized) Kind() Kind { return LosslessOptimize }

func (o *Optimized) Run(ctx context.Context, img *raster.SourceImage, s Settings, _ chan<- progress.Update) (Output, error) {
	chunks, err := readChunks(img.Container)
	if err != nil {
		return Output{}, fmt.Errorf("parse container: %w", err)
	}

	best := img.Container
	try := func(candidate []byte) {
		if len(candidate) < len(best) {
			best = candidate
		}
	}

	for _, lvl := range zlibLevels(s.Level) {
		if err := ctx.Err(); err != nil {
			return Output{}, err
		}
		out, err := repack(chunks, lvl)
		if err != nil {
			return Output{}, fmt.Errorf("repack level %d: %w", lvl, err)
		}
		try(out)
	}

	// Higher levels also let the encoder pick fresh row filters. Only for
	// 8-bit sources, where re-encoding the raster loses nothing.
	if s.Level >= 4 && bitDepth(chunks) <= 8 {
		var buf bytes.Buffer
		enc := &png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img.Pixels); err != nil {
			return Output{}, fmt.Errorf("re-filter: %w", err)
		}
		refiltered, err := readChunks(buf.Bytes())
		if err != nil {
			return Output{}, fmt.Errorf("re-filter: %w", err)
		}
		refiltered = carryColour(refiltered, chunks)
		for _, lvl := range []int{zlib.BestCompression, zlib.HuffmanOnly} {
			out, err := repack(refiltered, lvl)
			if err != nil {
				return Output{}, fmt.Errorf("re-filter repack: %w", err)
			}
			try(out)
		}
	}

	if bytes.Equal(best, img.Container) {
		// Nothing beat the input; still strip the metadata.
		best = writeChunks(stripMetadata(chunks))
	}
	return Output{Data: best, Mime: "image/png", Engine: "zlib"}, nil
}

// zlibLevels maps optimisation level 0-6 to the deflate levels tried.
func zlibLevels(level int) []int {
	switch {
	case level <= 0:
		return []int{zlib.BestSpeed}
	case level == 1:
		return []int{zlib.DefaultCompression}
	case level == 2:
		return []int{zlib.BestCompression}
	case level <= 4:
		return []int{zlib.DefaultCompression, zlib.BestCompression}
	default:
		return []int{zlib.DefaultCompression, zlib.BestCompression, zlib.HuffmanOnly}
	}
}

func stripMetadata(chunks []pngChunk) []pngChunk {
	out := make([]pngChunk, 0, len(chunks))
	for _, c := range chunks {
		if !dropChunk(c.typ) {
			out = append(out, c)
		}
	}
	return out
}

// repack inflates the IDAT stream and deflates it again at level,
// emitting a single IDAT where the first one was.
func repack(chunks []pngChunk, level int) ([]byte, error) {
	var compressed bytes.Buffer
	for _, c := range chunks {
		if c.typ == "IDAT" {
			compressed.Write(c.data)
		}
	}

	zr, err := zlib.NewReader(&compressed)
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(zr)
	zr.Close()
	if err != nil {
		return nil, err
	}

	var deflated bytes.Buffer
	zw, err := zlib.NewWriterLevel(&deflated, level)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	out := make([]pngChunk, 0, len(chunks))
	wroteIDAT := false
	for _, c := range chunks {
		switch {
		case c.typ == "IDAT":
			if !wroteIDAT {
				out = append(out, pngChunk{typ: "IDAT", data: deflated.Bytes()})
				wroteIDAT = true
			}
		case dropChunk(c.typ):
		default:
			out = append(out, c)
		}
	}
	return writeChunks(out), nil
}
