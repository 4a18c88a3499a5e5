package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Input is what the file-intake side hands over: the encoded bytes plus
// the metadata it knows about the file.
type Input struct {
	Name string
	Mime string
	Data []byte
}

// SourceImage is an immutable decoded input. Pixels and Container are
// shared read-only by every codec run; callers that need to mutate pixels
// must work on a copy (see ClonePixels).
type SourceImage struct {
	ID           string
	Name         string
	Mime         string // sniffed mime of Encoded
	OriginalSize int64

	// Pixels is the RGBA8 raster (non-premultiplied, origin at 0,0).
	Pixels *image.NRGBA
	// Encoded is the original input buffer.
	Encoded []byte
	// Container is a lossless PNG of Pixels. It aliases Encoded when the
	// input already was a PNG.
	Container []byte
}

// Width returns the raster width in pixels.
func (s *SourceImage) Width() int { return s.Pixels.Rect.Dx() }

// Height returns the raster height in pixels.
func (s *SourceImage) Height() int { return s.Pixels.Rect.Dy() }

// ClonePixels returns a private copy of the raster.
func (s *SourceImage) ClonePixels() *image.NRGBA {
	dst := image.NewNRGBA(s.Pixels.Rect)
	copy(dst.Pix, s.Pixels.Pix)
	return dst
}

// BaseName is Name without directory and extension.
func (s *SourceImage) BaseName() string {
	base := filepath.Base(s.Name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// OutputName builds the suggested download name: <base>_<codec><ext>.
func (s *SourceImage) OutputName(codecID, ext string) string {
	return s.BaseName() + "_" + codecID + ext
}

// Load decodes in into a SourceImage. Any failure is returned as a
// *DecodeError.
func Load(in Input) (*SourceImage, error) {
	name := in.Name
	if name == "" {
		name = "image"
	}
	if len(in.Data) == 0 {
		return nil, &DecodeError{Name: name, Err: errors.New("empty buffer")}
	}

	// The declared mime is only a hint; trust the magic bytes.
	mime := Sniff(in.Data)
	if mime == "" {
		mime = strings.ToLower(in.Mime)
	}

	img, err := imaging.Decode(bytes.NewReader(in.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Name: name, Err: err}
	}

	pixels := imaging.Clone(img)
	if pixels.Rect.Dx() == 0 || pixels.Rect.Dy() == 0 {
		return nil, &DecodeError{Name: name, Err: fmt.Errorf("empty raster %dx%d", pixels.Rect.Dx(), pixels.Rect.Dy())}
	}

	// EXIF orientation only exists for JPEG, so a PNG input always
	// matches its own pixels and can serve as the container unchanged.
	container := in.Data
	if mime != MimePNG {
		container, err = encodeContainer(pixels)
		if err != nil {
			return nil, &DecodeError{Name: name, Err: fmt.Errorf("re-encode png: %w", err)}
		}
	}

	return &SourceImage{
		ID:           uuid.NewString(),
		Name:         name,
		Mime:         mime,
		OriginalSize: int64(len(in.Data)),
		Pixels:       pixels,
		Encoded:      in.Data,
		Container:    container,
	}, nil
}

func encodeContainer(img *image.NRGBA) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(512 * 1024) // pre-alloc 512KB

	enc := &png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
