package codec

import (
	"fmt"
	"strings"
)

// Kind identifies one of the fixed set of compression engines.
type Kind int

const (
	QuantizedLossy Kind = iota
	LosslessOptimize
	DeepIterativeLossless
	WebP
	AVIF
)

// Priority is the fixed fast-first order in which codecs are attempted
// for a newly selected image.
var Priority = []Kind{QuantizedLossy, WebP, AVIF, LosslessOptimize, DeepIterativeLossless}

// All lists every kind in declaration order.
var All = []Kind{QuantizedLossy, LosslessOptimize, DeepIterativeLossless, WebP, AVIF}

var kindIDs = [...]string{
	QuantizedLossy:        "quantized",
	LosslessOptimize:      "optimized",
	DeepIterativeLossless: "deep",
	WebP:                  "webp",
	AVIF:                  "avif",
}

// ID is the short identifier used in file names, flags and logs.
func (k Kind) ID() string {
	if k < 0 || int(k) >= len(kindIDs) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindIDs[k]
}

func (k Kind) String() string { return k.ID() }

// Extension is the canonical output file extension, with dot.
func (k Kind) Extension() string {
	switch k {
	case WebP:
		return ".webp"
	case AVIF:
		return ".avif"
	default:
		return ".png"
	}
}

// Mime is the mime type of the codec's output.
func (k Kind) Mime() string {
	switch k {
	case WebP:
		return "image/webp"
	case AVIF:
		return "image/avif"
	default:
		return "image/png"
	}
}

// Lossless reports whether the codec's output is always pixel-identical.
func (k Kind) Lossless() bool {
	return k == LosslessOptimize || k == DeepIterativeLossless
}

// ParseKind resolves a codec id (case-insensitive).
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, id := range kindIDs {
		if id == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown codec %q (want one of %s)", s, strings.Join(kindIDs[:], ", "))
}
