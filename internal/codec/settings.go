package codec

import (
	"fmt"
	"sync"

	"github.com/AnyUserName/imgpress-cli/internal/dither"
)

// Settings is the per-codec parameter record. Each codec reads only the
// fields that apply to it.
type Settings struct {
	Enabled bool

	Quality    int  // 1-100: QuantizedLossy, WebP (lossy), AVIF
	Level      int  // 0-6: LosslessOptimize effort
	Iterations int  // DeepIterativeLossless, linear time/size trade
	Lossless   bool // WebP: pixel-identical mode, quality forced to 100

	Dither       bool // QuantizedLossy: alpha error diffusion first
	DitherLevels int
}

// DefaultSettings returns the starting settings for k.
func DefaultSettings(k Kind) Settings {
	s := Settings{Enabled: true}
	switch k {
	case QuantizedLossy:
		s.Quality = 75
		s.Dither = true
		s.DitherLevels = dither.DefaultLevels
	case LosslessOptimize:
		s.Level = 2
	case DeepIterativeLossless:
		s.Iterations = 15
	case WebP:
		s.Quality = 75
	case AVIF:
		s.Quality = 50
	}
	return s
}

// Validate checks the fields relevant to k.
func (s Settings) Validate(k Kind) error {
	switch k {
	case QuantizedLossy, AVIF:
		if s.Quality < 1 || s.Quality > 100 {
			return fmt.Errorf("%s: quality %d out of range 1-100", k, s.Quality)
		}
	case WebP:
		if !s.Lossless && (s.Quality < 1 || s.Quality > 100) {
			return fmt.Errorf("%s: quality %d out of range 1-100", k, s.Quality)
		}
	case LosslessOptimize:
		if s.Level < 0 || s.Level > 6 {
			return fmt.Errorf("%s: level %d out of range 0-6", k, s.Level)
		}
	case DeepIterativeLossless:
		if s.Iterations < 1 {
			return fmt.Errorf("%s: iterations must be positive, got %d", k, s.Iterations)
		}
	}
	return nil
}

// Set holds the current settings for every codec. Safe for concurrent use.
type Set struct {
	mu       sync.RWMutex
	settings [len(kindIDs)]Settings
}

// NewSet returns a Set initialised with DefaultSettings.
func NewSet() *Set {
	s := &Set{}
	for _, k := range All {
		s.settings[k] = DefaultSettings(k)
	}
	return s
}

// Get returns the settings for k.
func (s *Set) Get(k Kind) Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings[k]
}

// Put replaces the settings for k after validating them.
func (s *Set) Put(k Kind, v Settings) error {
	if err := v.Validate(k); err != nil {
		return err
	}
	s.mu.Lock()
	s.settings[k] = v
	s.mu.Unlock()
	return nil
}

// Enabled returns the enabled kinds in the order given.
func (s *Set) Enabled(order []Kind) []Kind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Kind
	for _, k := range order {
		if s.settings[k].Enabled {
			out = append(out, k)
		}
	}
	return out
}
