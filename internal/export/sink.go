package export

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Sink receives exported artifacts. Names are slash-separated and
// relative.
type Sink interface {
	Write(name string, data []byte) error
	Close() error
}

// DirSink writes artifacts as files under Root.
type DirSink struct {
	Root string
}

// NewDirSink creates root if needed.
func NewDirSink(root string) (*DirSink, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir output: %w", err)
	}
	return &DirSink{Root: root}, nil
}

func (d *DirSink) Write(name string, data []byte) error {
	rel, err := cleanName(name)
	if err != nil {
		return err
	}
	p := filepath.Join(d.Root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}

func (d *DirSink) Close() error { return nil }

// ArchiveSink bundles artifacts into a zstd-compressed tar stream.
type ArchiveSink struct {
	f   *os.File
	zw  *zstd.Encoder
	tw  *tar.Writer
	now time.Time
}

// NewArchiveSink creates (truncating) the archive at path.
func NewArchiveSink(path string) (*ArchiveSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir output: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	// Artifacts are already compressed images; favour speed.
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		return nil, err
	}
	return &ArchiveSink{f: f, zw: zw, tw: tar.NewWriter(zw), now: time.Now()}, nil
}

func (a *ArchiveSink) Write(name string, data []byte) error {
	rel, err := cleanName(name)
	if err != nil {
		return err
	}
	hdr := &tar.Header{
		Name:    rel,
		Mode:    0o644,
		Size:    int64(len(data)),
		ModTime: a.now,
		Format:  tar.FormatPAX,
	}
	if err := a.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("tar header %s: %w", rel, err)
	}
	if _, err := a.tw.Write(data); err != nil {
		return fmt.Errorf("tar write %s: %w", rel, err)
	}
	return nil
}

// Close flushes the tar trailer and zstd frame, then the file.
func (a *ArchiveSink) Close() error {
	errTar := a.tw.Close()
	errZstd := a.zw.Close()
	errFile := a.f.Close()
	return errors.Join(errTar, errZstd, errFile)
}

// ReadArchive returns the contents of an archive written by ArchiveSink,
// keyed by entry name.
func ReadArchive(path string) (map[string][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out := make(map[string][]byte)
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", hdr.Name, err)
		}
		out[hdr.Name] = data
	}
}

// IsArchivePath reports whether path names a .tar.zst archive.
func IsArchivePath(p string) bool {
	return strings.HasSuffix(p, ".tar.zst") || strings.HasSuffix(p, ".tzst")
}

func cleanName(name string) (string, error) {
	rel := path.Clean(strings.TrimPrefix(filepath.ToSlash(name), "/"))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	return rel, nil
}
