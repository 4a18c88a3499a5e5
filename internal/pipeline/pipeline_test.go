package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/AnyUserName/imgpress-cli/internal/raster"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	img.SetNRGBA(0, 0, color.NRGBA{A: 255})
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestLoadPartialFailure(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 8, 4)
	writePNG(t, filepath.Join(dir, "sub", "b.png"), 3, 3)
	if err := os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not a png"), 0o644); err != nil {
		t.Fatal(err)
	}

	b, err := Load(context.Background(), Config{Root: dir, Workers: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Images) != 2 || len(b.Errors) != 1 {
		t.Fatalf("images=%d errors=%d", len(b.Images), len(b.Errors))
	}
	var de *raster.DecodeError
	if !errors.As(b.Errors[0], &de) {
		t.Errorf("error not a DecodeError: %v", b.Errors[0])
	}
	if b.Images[0].Name != "a.png" || b.Images[1].Name != "sub/b.png" {
		t.Errorf("order: %s, %s", b.Images[0].Name, b.Images[1].Name)
	}
}

func TestLoadAllFailed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "x.jpg"), []byte{0xff, 0xd8, 0xff, 0}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(context.Background(), Config{Root: dir}); err == nil {
		t.Fatal("expected error when every image fails")
	}
}

func TestLoadEmptyDir(t *testing.T) {
	if _, err := Load(context.Background(), Config{Root: t.TempDir()}); err == nil {
		t.Fatal("expected error for empty directory")
	}
}
