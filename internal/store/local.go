// Package store implements the persistent content-addressable artifact
// store backing the hashing engine.
//
// Layout (git-style sharding, zstd-compressed payloads):
//
//	basePath/
//	  objects/
//	    ab/cdef123...       file payloads and serialized manifests
//	    ab/cdef123....dir
//	  refs/, queue/, exec/  reference bookkeeping (castor.RefDB)
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio"

	"github.com/aweris/castor"
	"github.com/aweris/castor/internal/compression"
)

const defaultCacheEntries = 256

// Local is a filesystem-backed castor.ArtifactStore.
type Local struct {
	basePath string
	cache    *lruCache
	codec    *compression.Codec
	known    sync.Map // registered manifest hash values
}

// NewLocal opens (creating if needed) an artifact store rooted at basePath.
func NewLocal(basePath string) (*Local, error) {
	if err := os.MkdirAll(filepath.Join(basePath, "objects"), 0o755); err != nil {
		return nil, fmt.Errorf("create object dir: %w", err)
	}

	codec, err := compression.NewCodec(compression.Default)
	if err != nil {
		return nil, fmt.Errorf("create codec: %w", err)
	}

	return &Local{
		basePath: basePath,
		cache:    newLRUCache(defaultCacheEntries),
		codec:    codec,
	}, nil
}

// Path returns the store's root directory.
func (s *Local) Path() string { return s.basePath }

// PersistManifest serializes the manifest, hashes the canonical form and
// stores it addressed by the resulting directory hash.
func (s *Local) PersistManifest(ctx context.Context, m *castor.Manifest) (castor.Hash, error) {
	data, err := m.Serialize()
	if err != nil {
		return castor.Hash{}, err
	}
	sum, err := castor.SumBytes(m.Algo(), data)
	if err != nil {
		return castor.Hash{}, err
	}

	h := castor.NewHash(m.Algo(), sum+castor.DirSuffix)
	if err := s.Put(h.Value, data); err != nil {
		return castor.Hash{}, err
	}
	s.known.Store(h.Value, true)
	return h, nil
}

// RegisterManifest marks a previously persisted manifest as resolvable.
func (s *Local) RegisterManifest(h castor.Hash) {
	s.known.Store(h.Value, true)
}

// LocateArtifact resolves a hash to the payload's filesystem path.
func (s *Local) LocateArtifact(h castor.Hash) (string, bool) {
	path := s.objectPath(h.Value)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// HasArtifact reports whether the payload physically exists on disk.
func (s *Local) HasArtifact(h castor.Hash) bool {
	_, ok := s.LocateArtifact(h)
	return ok
}

// Manifest loads and parses a stored directory manifest.
func (s *Local) Manifest(h castor.Hash) (*castor.Manifest, error) {
	data, err := s.Get(h.Value)
	if err != nil {
		return nil, err
	}
	return castor.ParseManifest(h.Algo, data)
}

// Put stores a payload addressed by hash value. Existing objects are left
// untouched; content addressing makes rewrites pointless.
func (s *Local) Put(value string, data []byte) error {
	path := s.objectPath(value)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}
	if err := renameio.WriteFile(path, s.codec.Compress(data), 0o644); err != nil {
		return fmt.Errorf("write object %s: %w", value, err)
	}
	s.cache.Add(value, data)
	return nil
}

// Get retrieves a payload by hash value.
func (s *Local) Get(value string) ([]byte, error) {
	if data, ok := s.cache.Get(value); ok {
		return data, nil
	}

	raw, err := os.ReadFile(s.objectPath(value))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object not found: %s", value)
		}
		return nil, fmt.Errorf("read object %s: %w", value, err)
	}

	data, err := s.codec.Decompress(raw)
	if err != nil {
		return nil, fmt.Errorf("decompress object %s: %w", value, err)
	}

	s.cache.Add(value, data)
	return data, nil
}

// Evict drops an object from the memory cache, not from disk.
func (s *Local) Evict(value string) {
	s.cache.Remove(value)
}

// Remove deletes an object from disk and memory.
func (s *Local) Remove(value string) error {
	s.cache.Remove(value)
	s.known.Delete(value)
	err := os.Remove(s.objectPath(value))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Objects enumerates every stored hash value.
func (s *Local) Objects() ([]string, error) {
	var values []string
	root := filepath.Join(s.basePath, "objects")
	shards, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(root, shard.Name()))
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			values = append(values, shard.Name()+entry.Name())
		}
	}
	return values, nil
}

// objectPath shards objects git-style: objects/ab/cdef...
func (s *Local) objectPath(value string) string {
	if len(value) < 2 {
		return filepath.Join(s.basePath, "objects", value)
	}
	return filepath.Join(s.basePath, "objects", value[:2], value[2:])
}

// Close releases the compression codec.
func (s *Local) Close() error {
	return s.codec.Close()
}
