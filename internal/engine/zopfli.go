package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync/atomic"
)

// Engine is the narrow contract of the optional deep PNG optimiser.
type Engine interface {
	Name() string
	// Init checks the engine can run in this environment.
	Init(ctx context.Context) error
	// Optimize recompresses a PNG container for one trial.
	Optimize(ctx context.Context, png []byte, trial Trial) ([]byte, error)
}

// Trial is one search step of the deep engine.
type Trial struct {
	Iterations int
	// Filters is a zopflipng filter strategy string: 0-4 for a fixed
	// row filter, m (minsum), e (entropy), p (predefined), b (brute force).
	Filters string
}

// Atomic counter for unique temp file names across goroutines.
var tempCounter atomic.Int64

// ZopfliPNG runs the external zopflipng binary.
// Install: brew install zopfli / apt install zopfli
type ZopfliPNG struct {
	// Path overrides the binary location; empty means look it up in PATH.
	Path string

	resolved atomic.Value // string
}

func (z *ZopfliPNG) Name() string { return "zopflipng" }

func (z *ZopfliPNG) Init(_ context.Context) error {
	name := z.Path
	if name == "" {
		name = "zopflipng"
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("zopflipng not found; install with: brew install zopfli: %w", err)
	}
	z.resolved.Store(path)
	return nil
}

func (z *ZopfliPNG) Optimize(ctx context.Context, data []byte, trial Trial) ([]byte, error) {
	path, _ := z.resolved.Load().(string)
	if path == "" {
		return nil, &UnavailableError{Engine: z.Name(), Err: fmt.Errorf("not initialised")}
	}
	if trial.Iterations <= 0 {
		trial.Iterations = 15
	}
	if trial.Filters == "" {
		trial.Filters = "0me"
	}

	id := tempCounter.Add(1)
	srcFile, err := os.CreateTemp("", fmt.Sprintf("imgpress_zopfli_src_%d_*.png", id))
	if err != nil {
		return nil, fmt.Errorf("create temp: %w", err)
	}
	srcPath := srcFile.Name()
	defer os.Remove(srcPath)

	if _, err := srcFile.Write(data); err != nil {
		srcFile.Close()
		return nil, fmt.Errorf("write temp png: %w", err)
	}
	srcFile.Close()

	dstFile, err := os.CreateTemp("", fmt.Sprintf("imgpress_zopfli_dst_%d_*.png", id))
	if err != nil {
		return nil, fmt.Errorf("create temp: %w", err)
	}
	dstPath := dstFile.Name()
	dstFile.Close()
	defer os.Remove(dstPath)

	cmd := exec.CommandContext(ctx, path,
		"--iterations="+strconv.Itoa(trial.Iterations),
		"--filters="+trial.Filters,
		"-y", // overwrite the pre-created destination
		srcPath,
		dstPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			// The binary vanished mid-session.
			return nil, &UnavailableError{Engine: z.Name(), Err: err}
		}
		return nil, fmt.Errorf("zopflipng: %w: %s", err, string(out))
	}

	return os.ReadFile(dstPath)
}
