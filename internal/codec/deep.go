package codec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/AnyUserName/imgpress-cli/internal/engine"
	"github.com/AnyUserName/imgpress-cli/internal/progress"
	"github.com/AnyUserName/imgpress-cli/internal/raster"
)

// Filter strategies tried by the tuned engine, one trial each.
var deepFilters = []string{"0", "m", "e", "p"}

// Deep is the deep-iterative lossless codec. When the engine is usable it
// runs one engine trial per filter strategy and keeps the smallest;
// otherwise it falls back to a plain best-compression PNG encode with
// adaptive row filters.
type Deep struct {
	Capability *engine.Capability
}

func (d *Deep) Kind() Kind { return DeepIterativeLossless }

func (d *Deep) Run(ctx context.Context, img *raster.SourceImage, s Settings, updates chan<- progress.Update) (Output, error) {
	if d.Capability != nil && d.Capability.Ensure(ctx) == engine.Available {
		out, err := d.tuned(ctx, img, s, updates)
		d.Capability.Observe(err)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, engine.ErrUnavailable) {
			return Output{}, err
		}
		// Engine degraded mid-run; finish on the fallback path.
	}
	return d.fallback(ctx, img, updates)
}

func (d *Deep) tuned(ctx context.Context, img *raster.SourceImage, s Settings, updates chan<- progress.Update) (Output, error) {
	eng := d.Capability.Engine()
	start := time.Now()
	total := len(deepFilters)

	var best []byte
	for i, filters := range deepFilters {
		progress.Send(ctx, updates, progress.Update{
			Fraction: float64(i) / float64(total),
			Phase:    fmt.Sprintf("filters %s (%d/%d)", filters, i+1, total),
			ETA:      etaAfter(start, i, total),
		})

		out, err := eng.Optimize(ctx, img.Container, engine.Trial{Iterations: s.Iterations, Filters: filters})
		if err != nil {
			return Output{}, fmt.Errorf("trial %s: %w", filters, err)
		}
		if best == nil || len(out) < len(best) {
			best = out
		}
	}

	progress.Send(ctx, updates, progress.Update{Fraction: 1, Phase: "finalizing"})
	return Output{Data: best, Mime: "image/png", Engine: eng.Name()}, nil
}

func (d *Deep) fallback(ctx context.Context, img *raster.SourceImage, updates chan<- progress.Update) (Output, error) {
	progress.Send(ctx, updates, progress.Update{Phase: "fallback encode"})

	var src image.Image = img.Pixels
	chunks, err := readChunks(img.Container)
	if err != nil {
		return Output{}, fmt.Errorf("parse container: %w", err)
	}
	if bitDepth(chunks) > 8 {
		// Pixels holds 8 bits per sample; decode the container at its
		// own depth instead.
		if src, err = png.Decode(bytes.NewReader(img.Container)); err != nil {
			return Output{}, fmt.Errorf("decode container: %w", err)
		}
	}

	var buf bytes.Buffer
	buf.Grow(len(img.Container))

	enc := &png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, src); err != nil {
		return Output{}, err
	}
	encoded, err := readChunks(buf.Bytes())
	if err != nil {
		return Output{}, err
	}

	progress.Send(ctx, updates, progress.Update{Fraction: 1, Phase: "finalizing"})
	return Output{Data: writeChunks(carryColour(encoded, chunks)), Mime: "image/png", Engine: "fallback"}, nil
}

// etaAfter estimates the remaining time once done of total trials have
// finished. Nothing is known before the first trial completes.
func etaAfter(start time.Time, done, total int) *time.Duration {
	if done == 0 {
		return nil
	}
	return progress.Eta(start, float64(done)/float64(total))
}
