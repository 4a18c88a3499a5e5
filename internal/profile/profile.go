// Package profile holds named settings presets for the codecs.
package profile

import (
	"sort"

	"github.com/AnyUserName/imgpress-cli/internal/codec"
)

// Profile defines the starting settings for every codec.
type Profile struct {
	Name         string
	Codecs       []string // codec ids to run, in any order
	Quality      int      // quantized and lossy webp, 1-100
	AVIFQuality  int      // avif, 1-100
	Level        int      // lossless optimize effort 0-6
	Iterations   int      // deep engine iterations
	WebPLossless bool
	Dither       bool // alpha dither before palette reduction
	DitherLevels int
}

// DefaultName is used when no profile is requested.
const DefaultName = "balanced"

// Built-in profiles.
var profiles = map[string]Profile{
	"balanced": {
		Name:         "balanced",
		Codecs:       []string{"quantized", "optimized", "deep", "webp", "avif"},
		Quality:      75,
		AVIFQuality:  50,
		Level:        2,
		Iterations:   15,
		Dither:       true,
		DitherLevels: 32,
	},
	"small": {
		Name:         "small",
		Codecs:       []string{"quantized", "optimized", "deep", "webp", "avif"},
		Quality:      60,
		AVIFQuality:  40,
		Level:        5,
		Iterations:   60,
		Dither:       true,
		DitherLevels: 16,
	},
	"fast": {
		Name:         "fast",
		Codecs:       []string{"quantized", "optimized", "webp"},
		Quality:      80,
		AVIFQuality:  60,
		Level:        1,
		Iterations:   5,
		Dither:       false,
		DitherLevels: 32,
	},
}

// Get returns a profile by name. Falls back to balanced if unknown.
func Get(name string) Profile {
	if p, ok := profiles[name]; ok {
		return p
	}
	p := profiles[DefaultName]
	p.Name = name // preserve requested name
	return p
}

// Names lists the built-in profiles, sorted.
func Names() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Settings returns the codec settings the profile implies for k.
func (p Profile) Settings(k codec.Kind) codec.Settings {
	s := codec.DefaultSettings(k)
	s.Enabled = p.enables(k)
	switch k {
	case codec.QuantizedLossy:
		s.Quality = p.Quality
		s.Dither = p.Dither
		s.DitherLevels = p.DitherLevels
	case codec.LosslessOptimize:
		s.Level = p.Level
	case codec.DeepIterativeLossless:
		s.Iterations = p.Iterations
	case codec.WebP:
		s.Quality = p.Quality
		s.Lossless = p.WebPLossless
	case codec.AVIF:
		s.Quality = p.AVIFQuality
	}
	return s
}

// Apply writes the profile's settings for every codec into set.
func (p Profile) Apply(set *codec.Set) error {
	for _, k := range codec.All {
		if err := set.Put(k, p.Settings(k)); err != nil {
			return err
		}
	}
	return nil
}

func (p Profile) enables(k codec.Kind) bool {
	for _, id := range p.Codecs {
		if id == k.ID() {
			return true
		}
	}
	return false
}
