package codec

import (
	"fmt"
	"strings"
	"sync"

	"github.com/AnyUserName/imgpress-cli/internal/engine"
)

// Registry holds one adapter per codec kind.
type Registry struct {
	mu       sync.RWMutex
	adapters map[Kind]Adapter
}

// Config selects the external binaries used by the adapters.
type Config struct {
	AVIFEncPath string
}

// NewRegistry creates a registry with the five built-in adapters. The
// deep adapter consults capability before every run.
func NewRegistry(cfg Config, capability *engine.Capability) *Registry {
	r := &Registry{adapters: make(map[Kind]Adapter)}

	all := []Adapter{
		&Quantized{},
		&Optimized{},
		&Deep{Capability: capability},
		&WebPAdapter{},
		&AVIFAdapter{Path: cfg.AVIFEncPath},
	}
	for _, a := range all {
		r.adapters[a.Kind()] = a
	}
	return r
}

// NewEmptyRegistry creates a registry with no adapters.
func NewEmptyRegistry() *Registry {
	return &Registry{adapters: make(map[Kind]Adapter)}
}

// Register installs a, replacing any adapter of the same kind.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	r.adapters[a.Kind()] = a
	r.mu.Unlock()
}

// Get returns the adapter for k, or nil.
func (r *Registry) Get(k Kind) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[k]
}

// Kinds returns the registered kinds in priority order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Kind
	for _, k := range Priority {
		if _, ok := r.adapters[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// String returns a summary of registered codecs.
func (r *Registry) String() string {
	kinds := r.Kinds()
	if len(kinds) == 0 {
		return "no codecs registered"
	}
	ids := make([]string, len(kinds))
	for i, k := range kinds {
		ids[i] = k.ID()
	}
	return fmt.Sprintf("codecs: %s", strings.Join(ids, ", "))
}
