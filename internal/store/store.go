// Package store caches the latest compression result per image and codec.
package store

import (
	"sync"

	"github.com/AnyUserName/imgpress-cli/internal/codec"
)

// Key identifies one cached result.
type Key struct {
	ImageID string
	Kind    codec.Kind
}

// Store maps (image, codec) to the latest result. It owns the result
// buffers: a superseded or dropped result is released.
type Store struct {
	mu      sync.RWMutex
	results map[Key]*codec.Result
}

// New creates an empty store.
func New() *Store {
	return &Store{results: make(map[Key]*codec.Result)}
}

// Put stores r under key, releasing the result it replaces.
func (s *Store) Put(key Key, r *codec.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.results[key]; ok && prev != r {
		prev.Release()
	}
	s.results[key] = r
}

// Get returns the result for key.
func (s *Store) Get(key Key) (*codec.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[key]
	return r, ok
}

// Has reports whether key has a cached result.
func (s *Store) Has(key Key) bool {
	_, ok := s.Get(key)
	return ok
}

// Invalidate drops and releases the result for key. It reports whether
// an entry existed.
func (s *Store) Invalidate(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[key]
	if ok {
		r.Release()
		delete(s.results, key)
	}
	return ok
}

// ForImage returns the cached results for imageID keyed by codec.
func (s *Store) ForImage(imageID string) map[codec.Kind]*codec.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[codec.Kind]*codec.Result)
	for k, r := range s.results {
		if k.ImageID == imageID {
			out[k.Kind] = r
		}
	}
	return out
}

// DropImage removes every result for imageID and returns how many were
// released.
func (s *Store) DropImage(imageID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, r := range s.results {
		if k.ImageID == imageID {
			r.Release()
			delete(s.results, k)
			n++
		}
	}
	return n
}

// Len returns the number of cached results.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}

// Bytes returns the total size of live result buffers.
func (s *Store) Bytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, r := range s.results {
		n += int64(len(r.Bytes()))
	}
	return n
}
