package castor

import (
	"context"
	"sync"
)

// ArtifactStore is the content-addressable artifact store the hashing
// engine persists directory manifests into. It may be shared by multiple
// backend instances pointing at the same physical storage; implementations
// must be safe for concurrent use.
type ArtifactStore interface {
	// PersistManifest canonically serializes the manifest, hashes the
	// serialized form under the manifest's algorithm, stores it addressed
	// by that hash, and returns the resulting directory hash (value
	// carries DirSuffix).
	PersistManifest(ctx context.Context, m *Manifest) (Hash, error)

	// RegisterManifest makes a previously persisted manifest resolvable
	// by hash without recomputation.
	RegisterManifest(h Hash)

	// LocateArtifact resolves a hash to the path of its stored payload.
	LocateArtifact(h Hash) (string, bool)

	// HasArtifact reports whether the artifact physically exists. A
	// cached directory hash is only trusted while this holds.
	HasArtifact(h Hash) bool
}

// MemArtifacts is an in-memory ArtifactStore. It is the default for
// engines constructed without a persistent store and the workhorse of the
// package tests.
type MemArtifacts struct {
	mu        sync.Mutex
	objects   map[string][]byte // hash value -> serialized manifest
	manifests map[string]bool   // registered directory hashes
}

// NewMemArtifacts creates an empty in-memory artifact store.
func NewMemArtifacts() *MemArtifacts {
	return &MemArtifacts{
		objects:   make(map[string][]byte),
		manifests: make(map[string]bool),
	}
}

func (s *MemArtifacts) PersistManifest(ctx context.Context, m *Manifest) (Hash, error) {
	data, err := m.Serialize()
	if err != nil {
		return Hash{}, err
	}
	sum, err := SumBytes(m.Algo(), data)
	if err != nil {
		return Hash{}, err
	}

	h := NewHash(m.Algo(), sum+DirSuffix)
	s.mu.Lock()
	s.objects[h.Value] = data
	s.manifests[h.Value] = true
	s.mu.Unlock()
	return h, nil
}

func (s *MemArtifacts) RegisterManifest(h Hash) {
	s.mu.Lock()
	s.manifests[h.Value] = true
	s.mu.Unlock()
}

func (s *MemArtifacts) LocateArtifact(h Hash) (string, bool) {
	s.mu.Lock()
	_, ok := s.objects[h.Value]
	s.mu.Unlock()
	if !ok {
		return "", false
	}
	return "mem://" + shardValue(h.Value), true
}

func (s *MemArtifacts) HasArtifact(h Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[h.Value] != nil
}

// Manifest returns a stored manifest by directory hash.
func (s *MemArtifacts) Manifest(h Hash) (*Manifest, bool) {
	s.mu.Lock()
	data, ok := s.objects[h.Value]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	m, err := ParseManifest(h.Algo, data)
	if err != nil {
		return nil, false
	}
	return m, true
}

// Drop removes a stored artifact. Used to simulate out-of-band eviction.
func (s *MemArtifacts) Drop(h Hash) {
	s.mu.Lock()
	delete(s.objects, h.Value)
	delete(s.manifests, h.Value)
	s.mu.Unlock()
}

// shardValue lays a hash value out git-style: ab/cdef...
func shardValue(value string) string {
	if len(value) < 2 {
		return value
	}
	return value[:2] + "/" + value[2:]
}
