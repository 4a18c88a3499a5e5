package codec

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/AnyUserName/imgpress-cli/internal/progress"
	"github.com/AnyUserName/imgpress-cli/internal/raster"
)

// Fixed AVIF encoder tuning.
const (
	avifSpeed    = 6 // 0=slowest, 10=fastest
	avifYUV      = "420"
	avifMaxQuant = 63
)

// Atomic counter for unique temp file names across goroutines.
var tempCounter atomic.Int64

// AVIFAdapter encodes to AVIF by shelling out to avifenc.
// Install: brew install libavif / apt install libavif-bin
type AVIFAdapter struct {
	// Path overrides the avifenc location; empty means PATH lookup.
	Path string

	once        sync.Once
	avifencPath string
}

func (a *AVIFAdapter) Kind() Kind { return AVIF }

// Available reports whether avifenc could be found.
func (a *AVIFAdapter) Available() bool {
	a.once.Do(func() {
		name := a.Path
		if name == "" {
			name = "avifenc"
		}
		if path, err := exec.LookPath(name); err == nil {
			a.avifencPath = path
		}
	})
	return a.avifencPath != ""
}

// avifQuantizer maps quality 1-100 onto avifenc's 0-63 scale, where lower
// is better.
func avifQuantizer(quality int) int {
	return avifMaxQuant - (quality * avifMaxQuant / 100)
}

func (a *AVIFAdapter) Run(ctx context.Context, img *raster.SourceImage, s Settings, _ chan<- progress.Update) (Output, error) {
	if !a.Available() {
		return Output{}, fmt.Errorf("avifenc not found in PATH; install with: brew install libavif")
	}
	q := avifQuantizer(s.Quality)

	// avifenc reads files; the container is already a PNG.
	id := tempCounter.Add(1)
	srcFile, err := os.CreateTemp("", fmt.Sprintf("imgpress_avif_src_%d_*.png", id))
	if err != nil {
		return Output{}, fmt.Errorf("create temp: %w", err)
	}
	srcPath := srcFile.Name()
	defer os.Remove(srcPath)

	if _, err := srcFile.Write(img.Container); err != nil {
		srcFile.Close()
		return Output{}, fmt.Errorf("write temp png: %w", err)
	}
	srcFile.Close()

	dstFile, err := os.CreateTemp("", fmt.Sprintf("imgpress_avif_dst_%d_*.avif", id))
	if err != nil {
		return Output{}, fmt.Errorf("create temp: %w", err)
	}
	dstPath := dstFile.Name()
	dstFile.Close()
	defer os.Remove(dstPath)

	cmd := exec.CommandContext(ctx, a.avifencPath,
		"--min", strconv.Itoa(q),
		"--max", strconv.Itoa(q),
		"--speed", strconv.Itoa(avifSpeed),
		"--yuv", avifYUV,
		"-j", "all",
		srcPath,
		dstPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return Output{}, fmt.Errorf("avifenc: %w: %s", err, string(out))
	}

	data, err := os.ReadFile(dstPath)
	if err != nil {
		return Output{}, err
	}
	return Output{Data: data, Mime: "image/avif", Engine: "avifenc"}, nil
}
