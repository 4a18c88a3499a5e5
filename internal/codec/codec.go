// Package codec wraps the five compression engines behind one contract:
// take a SourceImage plus settings, return an encoded buffer or an error,
// never partial output.
package codec

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AnyUserName/imgpress-cli/internal/hasher"
	"github.com/AnyUserName/imgpress-cli/internal/progress"
	"github.com/AnyUserName/imgpress-cli/internal/raster"
)

// Adapter is implemented by every codec.
type Adapter interface {
	Kind() Kind

	// Run encodes img. Long-running codecs report interim progress on
	// updates, which may be nil. Run must not keep references to img's
	// buffers after it returns.
	Run(ctx context.Context, img *raster.SourceImage, s Settings, updates chan<- progress.Update) (Output, error)
}

// Output is the raw adapter result.
type Output struct {
	Data []byte
	Mime string
	// Engine names the implementation that produced Data, e.g. the
	// fallback path of the deep codec.
	Engine string
}

// Result is an immutable, timed compression result. A newer Result for
// the same image and codec supersedes it; it is never mutated except by
// Release. Once a Result is shared (stored, or sent in an event) its
// buffer may be released at any time, so read it with Bytes.
type Result struct {
	mu sync.Mutex

	Kind    Kind
	Data    []byte
	Mime    string
	Size    int64
	Ratio   float64 // Size / original size
	Elapsed time.Duration
	Engine  string
	Hash    string // xxhash64 of Data, 16 hex chars
}

// ElapsedMillis returns the run time in milliseconds.
func (r *Result) ElapsedMillis() int64 { return r.Elapsed.Milliseconds() }

// Bytes returns the output buffer, or nil once released. The returned
// slice stays valid after a later Release.
func (r *Result) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Data
}

// Release drops the output buffer. Size, Ratio and Hash stay readable.
func (r *Result) Release() {
	r.mu.Lock()
	r.Data = nil
	r.mu.Unlock()
}

// Released reports whether Release was called.
func (r *Result) Released() bool { return r.Bytes() == nil }

// RunError isolates a failure of one codec run.
type RunError struct {
	Kind Kind
	Err  error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Execute runs a with timing and failure isolation: errors and panics
// come back as *RunError and never escape as a panic.
func Execute(ctx context.Context, a Adapter, img *raster.SourceImage, s Settings, updates chan<- progress.Update) (res *Result, err error) {
	kind := a.Kind()
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &RunError{Kind: kind, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if err := s.Validate(kind); err != nil {
		return nil, &RunError{Kind: kind, Err: err}
	}
	if img.OriginalSize <= 0 {
		return nil, &RunError{Kind: kind, Err: errors.New("original size unknown")}
	}

	start := time.Now()
	out, err := a.Run(ctx, img, s, updates)
	elapsed := time.Since(start)
	if err != nil {
		var re *RunError
		if errors.As(err, &re) {
			return nil, re
		}
		return nil, &RunError{Kind: kind, Err: err}
	}
	if len(out.Data) == 0 {
		return nil, &RunError{Kind: kind, Err: errors.New("empty output")}
	}

	mime := out.Mime
	if mime == "" {
		mime = kind.Mime()
	}
	size := int64(len(out.Data))
	return &Result{
		Kind:    kind,
		Data:    out.Data,
		Mime:    mime,
		Size:    size,
		Ratio:   float64(size) / float64(img.OriginalSize),
		Elapsed: elapsed,
		Engine:  out.Engine,
		Hash:    hasher.ContentHash(out.Data, 16),
	}, nil
}
