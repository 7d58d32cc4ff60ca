package castor

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio"
	"github.com/vmihailenco/msgpack/v5"
)

// fileEntry is the on-disk form of one fingerprint cache entry.
type fileEntry struct {
	Location string `msgpack:"location"`
	ModTime  int64  `msgpack:"mtime"` // unix nanoseconds
	Size     int64  `msgpack:"size"`
	Algo     string `msgpack:"algo"`
	Value    string `msgpack:"value"`
	HashSize int64  `msgpack:"hash_size"`
}

// FileFingerprints is a fingerprint cache persisted to a single msgpack
// file. It implements Sessioned: Acquire loads the file, Release flushes
// it back atomically. Acquisitions nest, so concurrent hashing calls on
// engines sharing one cache load and flush once.
type FileFingerprints struct {
	path    string
	observe FingerprintFunc

	mu      sync.Mutex
	refs    int
	dirty   bool
	entries map[Location]fingerprintEntry
}

// NewFileFingerprints creates a disk-persisted cache stored at path, using
// observe to read current fingerprints.
func NewFileFingerprints(path string, observe FingerprintFunc) *FileFingerprints {
	return &FileFingerprints{
		path:    path,
		observe: observe,
		entries: make(map[Location]fingerprintEntry),
	}
}

// Acquire loads the cache file on first acquisition.
func (c *FileFingerprints) Acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refs++
	if c.refs > 1 {
		return nil
	}
	return c.load()
}

// Release flushes the cache file on last release.
func (c *FileFingerprints) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refs == 0 {
		return fmt.Errorf("fingerprint cache released without acquire")
	}
	c.refs--
	if c.refs > 0 || !c.dirty {
		return nil
	}
	return c.flush()
}

func (c *FileFingerprints) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read fingerprint cache: %w", err)
	}

	var raw []fileEntry
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		// A corrupt cache only costs recomputation, never a wrong result.
		return nil
	}

	for _, e := range raw {
		loc, err := ParseLocation(e.Location)
		if err != nil {
			continue
		}
		c.entries[loc] = fingerprintEntry{
			fp:   Fingerprint{ModTime: time.Unix(0, e.ModTime), Size: e.Size},
			hash: Hash{Algo: e.Algo, Value: e.Value, Size: e.HashSize},
		}
	}
	return nil
}

func (c *FileFingerprints) flush() error {
	raw := make([]fileEntry, 0, len(c.entries))
	for loc, entry := range c.entries {
		raw = append(raw, fileEntry{
			Location: loc.String(),
			ModTime:  entry.fp.ModTime.UnixNano(),
			Size:     entry.fp.Size,
			Algo:     entry.hash.Algo,
			Value:    entry.hash.Value,
			HashSize: entry.hash.Size,
		})
	}

	data, err := msgpack.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode fingerprint cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create fingerprint cache dir: %w", err)
	}
	if err := renameio.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("write fingerprint cache: %w", err)
	}
	c.dirty = false
	return nil
}

func (c *FileFingerprints) Lookup(loc Location) (Hash, bool) {
	c.mu.Lock()
	entry, ok := c.entries[loc]
	c.mu.Unlock()
	if !ok {
		return Hash{}, false
	}

	current, ok := c.observe(loc)
	if !ok || !current.Equal(entry.fp) {
		c.mu.Lock()
		delete(c.entries, loc)
		c.dirty = true
		c.mu.Unlock()
		return Hash{}, false
	}
	return entry.hash, true
}

func (c *FileFingerprints) Store(loc Location, h Hash) {
	fp, ok := c.observe(loc)
	if !ok {
		return
	}
	c.mu.Lock()
	c.entries[loc] = fingerprintEntry{fp: fp, hash: h}
	c.dirty = true
	c.mu.Unlock()
}
