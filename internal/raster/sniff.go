package raster

import "bytes"

// Canonical mime types understood by the loader.
const (
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeGIF  = "image/gif"
	MimeWebP = "image/webp"
	MimeBMP  = "image/bmp"
	MimeTIFF = "image/tiff"
)

var signatures = []struct {
	mime   string
	offset int
	magic  []byte
}{
	{MimePNG, 0, []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}},
	{MimeJPEG, 0, []byte{0xff, 0xd8, 0xff}},
	{MimeGIF, 0, []byte("GIF8")},
	{MimeWebP, 8, []byte("WEBP")},
	{MimeBMP, 0, []byte("BM")},
	{MimeTIFF, 0, []byte{0x49, 0x49, 0x2a, 0x00}},
	{MimeTIFF, 0, []byte{0x4d, 0x4d, 0x00, 0x2a}},
}

// Sniff returns the mime type implied by the leading bytes of data,
// or "" when no known signature matches.
func Sniff(data []byte) string {
	for _, s := range signatures {
		end := s.offset + len(s.magic)
		if len(data) < end {
			continue
		}
		if bytes.Equal(data[s.offset:end], s.magic) {
			return s.mime
		}
	}
	return ""
}

// MimeForExt maps a file extension (with or without dot) to a mime type.
func MimeForExt(ext string) string {
	if len(ext) > 0 && ext[0] == '.' {
		ext = ext[1:]
	}
	switch ext {
	case "png":
		return MimePNG
	case "jpg", "jpeg":
		return MimeJPEG
	case "gif":
		return MimeGIF
	case "webp":
		return MimeWebP
	case "bmp":
		return MimeBMP
	case "tif", "tiff":
		return MimeTIFF
	default:
		return ""
	}
}
