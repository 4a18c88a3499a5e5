package cmd

import (
	"context"
	"image"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AnyUserName/imgpress-cli/internal/codec"
	"github.com/AnyUserName/imgpress-cli/internal/export"
	"github.com/AnyUserName/imgpress-cli/internal/hasher"
	"github.com/AnyUserName/imgpress-cli/internal/raster"
	"github.com/AnyUserName/imgpress-cli/internal/store"
)

// writeExport exports two fake webp results into sink with a manifest.
func writeExport(t *testing.T, sink export.Sink) {
	t.Helper()
	st := store.New()
	var imgs []*raster.SourceImage
	for _, name := range []string{"a.png", "sub/b.png"} {
		img := &raster.SourceImage{
			ID:           name,
			Name:         name,
			Mime:         raster.MimePNG,
			OriginalSize: 100,
			Pixels:       image.NewNRGBA(image.Rect(0, 0, 3, 2)),
		}
		data := []byte("webp:" + name)
		st.Put(store.Key{ImageID: img.ID, Kind: codec.WebP}, &codec.Result{
			Kind:  codec.WebP,
			Data:  data,
			Mime:  codec.WebP.Mime(),
			Size:  int64(len(data)),
			Ratio: float64(len(data)) / 100,
			Hash:  hasher.ContentHash(data, 16),
		})
		imgs = append(imgs, img)
	}
	ex := &export.Exporter{Store: st, Profile: "balanced", Manifest: true}
	if _, err := ex.Export(context.Background(), codec.WebP, imgs, sink); err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestValidateDirectoryExport(t *testing.T) {
	dir := t.TempDir()
	sink, err := export.NewDirSink(dir)
	if err != nil {
		t.Fatal(err)
	}
	writeExport(t, sink)

	src, err := openExport(dir)
	if err != nil {
		t.Fatal(err)
	}
	if errs := validateManifest(src, true); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	// Tamper with one artifact.
	src.manifest.Images["sub/b.png"].Artifacts[0].Hash = "0000000000000000"
	errs := validateManifest(src, true)
	if len(errs) != 1 || !strings.Contains(errs[0], "hash mismatch") {
		t.Errorf("errors after tamper: %v", errs)
	}
}

func TestValidateArchiveExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.tar.zst")
	sink, err := export.NewArchiveSink(path)
	if err != nil {
		t.Fatal(err)
	}
	writeExport(t, sink)

	src, err := openExport(path)
	if err != nil {
		t.Fatal(err)
	}
	if errs := validateManifest(src, true); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if src.manifest.Stats.TotalArtifacts != 2 {
		t.Errorf("artifacts: %d", src.manifest.Stats.TotalArtifacts)
	}
}
