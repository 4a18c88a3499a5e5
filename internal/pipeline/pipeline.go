// Package pipeline is the batch intake: it finds images under a root and
// decodes them in parallel into SourceImages for the orchestrator.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/AnyUserName/imgpress-cli/internal/raster"
)

// Config holds the intake parameters.
type Config struct {
	Root    string
	Workers int
	Logf    func(format string, args ...any)
}

// Batch is the outcome of an intake run. Images keep scan order, which
// is the selection order used for export.
type Batch struct {
	Images []*raster.SourceImage
	Errors []error // one *raster.DecodeError (or read error) per failed file
}

// Load scans cfg.Root and decodes every image found. Individual failures
// are collected in Batch.Errors; Load itself fails only when nothing was
// found or every file failed.
func Load(ctx context.Context, cfg Config) (*Batch, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	logf := cfg.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	files, err := raster.Scan(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no images found in %s", cfg.Root)
	}
	logf("found %d images", len(files))

	images := make([]*raster.SourceImage, len(files))
	errs := make([]error, len(files))
	var wg sync.WaitGroup
	sem := make(chan struct{}, cfg.Workers)

	for i, f := range files {
		wg.Add(1)
		go func(idx int, f raster.File) {
			defer wg.Done()
			sem <- struct{}{}        // acquire
			defer func() { <-sem }() // release

			if err := ctx.Err(); err != nil {
				errs[idx] = err
				return
			}
			in, err := raster.ReadInput(f)
			if err != nil {
				errs[idx] = fmt.Errorf("read %s: %w", f.RelPath, err)
				return
			}
			images[idx], errs[idx] = raster.Load(in)
			if errs[idx] == nil {
				logf("decoded: %s (%dx%d)", f.RelPath, images[idx].Width(), images[idx].Height())
			}
		}(i, f)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := &Batch{}
	for i := range files {
		if errs[i] != nil {
			b.Errors = append(b.Errors, errs[i])
			continue
		}
		b.Images = append(b.Images, images[i])
	}
	if len(b.Images) == 0 {
		return b, fmt.Errorf("all %d images failed to decode: %w", len(files), errors.Join(b.Errors...))
	}
	return b, nil
}
