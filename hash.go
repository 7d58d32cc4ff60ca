package castor

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// DirSuffix marks a hash value as a directory manifest hash. The suffix is
// part of the value itself, so a bare value string round-trips to the
// correct file/directory distinction.
const DirSuffix = ".dir"

// SizeUnknown is the sentinel for hashes whose payload size is not known.
// An unknown member size propagates to the directory aggregate.
const SizeUnknown int64 = -1

// Hash identifies a file's bytes or a directory's manifest.
// Two hashes are equal iff algorithm and value are equal; size is advisory.
type Hash struct {
	Algo  string
	Value string
	Size  int64
}

// NewHash creates a hash with unknown size.
func NewHash(algo, value string) Hash {
	return Hash{Algo: algo, Value: value, Size: SizeUnknown}
}

// IsZero reports whether the hash is the zero value.
func (h Hash) IsZero() bool {
	return h.Algo == "" && h.Value == ""
}

// IsDir reports whether the value encodes a directory manifest hash.
func (h Hash) IsDir() bool {
	return strings.HasSuffix(h.Value, DirSuffix)
}

// Equal compares algorithm and value, ignoring size.
func (h Hash) Equal(other Hash) bool {
	return h.Algo == other.Algo && h.Value == other.Value
}

// WithSize returns a copy of the hash carrying the given size.
func (h Hash) WithSize(size int64) Hash {
	h.Size = size
	return h
}

func (h Hash) String() string {
	if h.IsZero() {
		return ""
	}
	return h.Algo + ":" + h.Value
}

// ParseHash parses "algo:value" back into a Hash. Directory-ness is
// derived from the value alone, no extra flag travels with it.
func ParseHash(raw string) (Hash, error) {
	algo, value, ok := strings.Cut(raw, ":")
	if !ok || algo == "" || value == "" {
		return Hash{}, fmt.Errorf("invalid hash %q (expected algo:value)", raw)
	}
	return NewHash(algo, value), nil
}

// Manifest maps relative paths beneath a directory root to member hashes.
// It is a transient computation result; only its canonical serialized form
// is persisted, addressed by its own content hash.
type Manifest struct {
	algo    string
	entries map[string]Hash
}

// ManifestEntry is one member of a manifest's canonical form.
type ManifestEntry struct {
	Relpath string `json:"relpath"`
	Sum     string `json:"sum"`
}

// NewManifest creates an empty manifest for the given checksum algorithm.
func NewManifest(algo string) *Manifest {
	return &Manifest{algo: algo, entries: make(map[string]Hash)}
}

// Algo returns the manifest's checksum algorithm.
func (m *Manifest) Algo() string { return m.algo }

// Add records a member file by its path segments relative to the root.
func (m *Manifest) Add(parts []string, h Hash) {
	m.entries[strings.Join(parts, "/")] = h
}

// Get looks up a member by slash-joined relative path.
func (m *Manifest) Get(relpath string) (Hash, bool) {
	h, ok := m.entries[relpath]
	return h, ok
}

// Len returns the number of member files.
func (m *Manifest) Len() int { return len(m.entries) }

// Size sums the member sizes. Any member with unknown size makes the whole
// aggregate unknown.
func (m *Manifest) Size() int64 {
	var total int64
	for _, h := range m.entries {
		if h.Size == SizeUnknown {
			return SizeUnknown
		}
		total += h.Size
	}
	return total
}

// Entries returns the members sorted by relative path.
func (m *Manifest) Entries() []ManifestEntry {
	entries := make([]ManifestEntry, 0, len(m.entries))
	for relpath, h := range m.entries {
		entries = append(entries, ManifestEntry{Relpath: relpath, Sum: h.Value})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Relpath < entries[j].Relpath
	})
	return entries
}

// Serialize produces the canonical form: a JSON array of {relpath, sum}
// sorted by relpath. Sizes are deliberately excluded so that the resulting
// directory hash depends only on content, not on what a backend reports.
func (m *Manifest) Serialize() ([]byte, error) {
	return json.Marshal(m.Entries())
}

// ParseManifest decodes a canonical manifest back into member hashes.
// Member sizes are unknown after a round trip.
func ParseManifest(algo string, data []byte) (*Manifest, error) {
	var entries []ManifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	m := NewManifest(algo)
	for _, e := range entries {
		m.entries[e.Relpath] = NewHash(algo, e.Sum)
	}
	return m, nil
}
