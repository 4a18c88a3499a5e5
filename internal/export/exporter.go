// Package export emits cached compression results for a batch of images
// at a throttled pace.
package export

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/AnyUserName/imgpress-cli/internal/codec"
	"github.com/AnyUserName/imgpress-cli/internal/manifest"
	"github.com/AnyUserName/imgpress-cli/internal/raster"
	"github.com/AnyUserName/imgpress-cli/internal/store"
)

// DefaultDelay is the pause between two emitted artifacts.
const DefaultDelay = 150 * time.Millisecond

// Exporter writes one artifact per image that has a cached result for
// the requested codec.
type Exporter struct {
	Store *store.Store
	// Delay between emissions. Zero disables throttling.
	Delay time.Duration
	// Profile is recorded in the manifest.
	Profile string
	// Manifest controls whether imgpress.manifest.json is written last.
	Manifest bool
	// EngineInfo, when set, is copied into the manifest.
	EngineInfo *manifest.EngineInfo
	// NoRegress skips results that are not smaller than their original.
	NoRegress bool

	Logf func(format string, args ...any)
}

// Emitted is one written artifact.
type Emitted struct {
	ImageID string
	Name    string
	Size    int64
}

// Report summarises an export.
type Report struct {
	Kind     codec.Kind
	Emitted  []Emitted
	Skipped  []string // names of images without a usable result
	Larger   []string // names skipped by NoRegress
	Manifest *manifest.Manifest
}

// Export iterates images in the given (selection) order. Images without a
// result for kind are skipped silently. It stops early only on a sink
// error or when ctx is done.
func (e *Exporter) Export(ctx context.Context, kind codec.Kind, images []*raster.SourceImage, sink Sink) (*Report, error) {
	rep := &Report{Kind: kind, Manifest: manifest.New(e.Profile, kind.ID())}
	rep.Manifest.EngineInfo = e.EngineInfo
	used := make(map[string]bool)

	for _, img := range images {
		res, ok := e.Store.Get(store.Key{ImageID: img.ID, Kind: kind})
		var data []byte
		if ok {
			data = res.Bytes()
		}
		if data == nil {
			rep.Skipped = append(rep.Skipped, img.Name)
			continue
		}
		if e.NoRegress && res.Size >= img.OriginalSize {
			rep.Larger = append(rep.Larger, img.Name)
			e.logf("skipped %s: %s output is not smaller than the original", img.Name, kind)
			continue
		}

		if len(rep.Emitted) > 0 {
			if err := e.wait(ctx); err != nil {
				return rep, err
			}
		} else if err := ctx.Err(); err != nil {
			return rep, err
		}

		name := uniqueName(artifactName(img, kind), used)
		if err := sink.Write(name, data); err != nil {
			return rep, fmt.Errorf("export %s: %w", img.Name, err)
		}
		rep.Emitted = append(rep.Emitted, Emitted{ImageID: img.ID, Name: name, Size: res.Size})
		e.record(rep.Manifest, img, res, name)
		e.logf("exported %s (%d bytes)", name, res.Size)
	}

	rep.Manifest.Stats.Skipped = len(rep.Skipped) + len(rep.Larger)
	if e.Manifest {
		data, err := manifest.Encode(rep.Manifest)
		if err != nil {
			return rep, err
		}
		if err := sink.Write(manifest.FileName, data); err != nil {
			return rep, fmt.Errorf("write manifest: %w", err)
		}
	} else {
		rep.Manifest.ComputeStats()
	}
	return rep, nil
}

func (e *Exporter) wait(ctx context.Context) error {
	if e.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(e.Delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Exporter) record(m *manifest.Manifest, img *raster.SourceImage, res *codec.Result, name string) {
	key := ManifestKey(img.Name)
	entry, ok := m.Images[key]
	if !ok {
		entry.Original = manifest.OriginalInfo{
			Name:     img.Name,
			Width:    img.Width(),
			Height:   img.Height(),
			Format:   img.Mime,
			Size:     img.OriginalSize,
			HasAlpha: !img.Pixels.Opaque(),
		}
	}
	entry.Artifacts = append(entry.Artifacts, manifest.Artifact{
		Codec:     res.Kind.ID(),
		Mime:      res.Mime,
		Size:      res.Size,
		Ratio:     res.Ratio,
		ElapsedMs: res.ElapsedMillis(),
		Engine:    res.Engine,
		Hash:      res.Hash,
		Path:      name,
	})
	m.Images[key] = entry
}

func (e *Exporter) logf(format string, args ...any) {
	if e.Logf != nil {
		e.Logf(format, args...)
	}
}

// ManifestKey is the image's relative name, slash-separated. The
// extension stays so that a.png and a.jpg get separate entries.
func ManifestKey(name string) string {
	return strings.ReplaceAll(name, "\\", "/")
}

// artifactName keeps the image's directory and applies the suggested
// output file name.
func artifactName(img *raster.SourceImage, kind codec.Kind) string {
	dir := path.Dir(strings.ReplaceAll(img.Name, "\\", "/"))
	return path.Join(dir, img.OutputName(kind.ID(), kind.Extension()))
}

// uniqueName suffixes -2, -3, ... when two images map to the same
// artifact name (e.g. a.png and a.jpg).
func uniqueName(name string, used map[string]bool) string {
	if !used[name] {
		used[name] = true
		return name
	}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 2; ; i++ {
		c := stem + "-" + strconv.Itoa(i) + ext
		if !used[c] {
			used[c] = true
			return c
		}
	}
}
