package castor

import (
	"sync"
	"time"
)

// Fingerprint is a cheap, backend-observable signal that a file is
// unchanged, typically modification time plus size.
type Fingerprint struct {
	ModTime time.Time
	Size    int64
}

// Equal compares fingerprints by wall-clock time and size.
func (fp Fingerprint) Equal(other Fingerprint) bool {
	return fp.Size == other.Size && fp.ModTime.Equal(other.ModTime)
}

// FingerprintFunc observes the current fingerprint of a location.
// The second return value is false when the location does not exist or
// the backend cannot fingerprint it.
type FingerprintFunc func(loc Location) (Fingerprint, bool)

// FingerprintCache maps a location's current fingerprint to a previously
// computed hash. Entries are advisory: a stale or evicted entry must only
// ever cost a recomputation, never produce a wrong result. Implementations
// must tolerate concurrent calls from multiple hashing workers; two
// workers storing the same deterministic hash is a benign race.
type FingerprintCache interface {
	Lookup(loc Location) (Hash, bool)
	Store(loc Location, h Hash)
}

// Sessioned is an optional extension of FingerprintCache. When a cache
// implements it, the engine acquires the cache at the start of every
// hashing call and releases it on every exit path.
type Sessioned interface {
	Acquire() error
	Release() error
}

// NopFingerprints always misses and discards writes. It is the default for
// backends that opt out of caching.
type NopFingerprints struct{}

func (NopFingerprints) Lookup(Location) (Hash, bool) { return Hash{}, false }
func (NopFingerprints) Store(Location, Hash)         {}

type fingerprintEntry struct {
	fp   Fingerprint
	hash Hash
}

// MemoryFingerprints keeps fingerprint entries in memory. A lookup only
// hits when the location's current fingerprint still matches the one
// recorded at store time.
type MemoryFingerprints struct {
	observe FingerprintFunc
	entries sync.Map // Location -> fingerprintEntry
}

// NewMemoryFingerprints creates an in-memory cache using observe to read
// current fingerprints.
func NewMemoryFingerprints(observe FingerprintFunc) *MemoryFingerprints {
	return &MemoryFingerprints{observe: observe}
}

func (c *MemoryFingerprints) Lookup(loc Location) (Hash, bool) {
	v, ok := c.entries.Load(loc)
	if !ok {
		return Hash{}, false
	}
	entry := v.(fingerprintEntry)
	current, ok := c.observe(loc)
	if !ok || !current.Equal(entry.fp) {
		c.entries.Delete(loc)
		return Hash{}, false
	}
	return entry.hash, true
}

func (c *MemoryFingerprints) Store(loc Location, h Hash) {
	fp, ok := c.observe(loc)
	if !ok {
		return
	}
	c.entries.Store(loc, fingerprintEntry{fp: fp, hash: h})
}
