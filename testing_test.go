package castor

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// memBackend is a scriptable in-memory backend covering the full optional
// capability surface. Wrapper types below narrow it for capability tests.
type memBackend struct {
	mu        sync.Mutex
	files     map[string][]byte
	versions  map[string]int64
	hashCalls map[string]int
	hashErr   map[string]error
	downErr   map[string]int // remaining scripted download failures per path
}

func newMemBackend() *memBackend {
	return &memBackend{
		files:     make(map[string][]byte),
		versions:  make(map[string]int64),
		hashCalls: make(map[string]int),
		hashErr:   make(map[string]error),
		downErr:   make(map[string]int),
	}
}

func (b *memBackend) put(path string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.files[path] = data
	b.versions[path]++
}

func (b *memBackend) calls(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hashCalls[path]
}

// observe is a FingerprintFunc backed by content versions. Directories
// fingerprint as the aggregate of their members, so directory hashes are
// cacheable too.
func (b *memBackend) observe(loc Location) (Fingerprint, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if data, ok := b.files[loc.Path()]; ok {
		return Fingerprint{
			ModTime: time.Unix(b.versions[loc.Path()], 0),
			Size:    int64(len(data)),
		}, true
	}

	var version, size int64
	found := false
	for p, data := range b.files {
		if strings.HasPrefix(p, loc.Path()+"/") {
			version += b.versions[p]
			size += int64(len(data))
			found = true
		}
	}
	if !found {
		return Fingerprint{}, false
	}
	return Fingerprint{ModTime: time.Unix(version, 0), Size: size}, true
}

func (b *memBackend) Scheme() string { return "mem" }

func (b *memBackend) Exists(ctx context.Context, loc Location) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.files[loc.Path()]; ok {
		return true, nil
	}
	return b.hasPrefix(loc.Path()), nil
}

func (b *memBackend) IsDir(ctx context.Context, loc Location) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.files[loc.Path()]; ok {
		return false, nil
	}
	return b.hasPrefix(loc.Path()), nil
}

// hasPrefix reports whether any file lives beneath path. Callers hold mu.
func (b *memBackend) hasPrefix(path string) bool {
	for p := range b.files {
		if strings.HasPrefix(p, path+"/") {
			return true
		}
	}
	return false
}

// WalkFiles follows filepath.WalkDir semantics: walking a file location
// visits the file itself.
func (b *memBackend) WalkFiles(ctx context.Context, loc Location) ([]Location, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.files[loc.Path()]; ok {
		return []Location{loc}, nil
	}
	var paths []string
	for p := range b.files {
		if strings.HasPrefix(p, loc.Path()+"/") {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	locs := make([]Location, len(paths))
	for i, p := range paths {
		locs[i] = NewLocation("mem", p)
	}
	return locs, nil
}

func (b *memBackend) GetFileHash(ctx context.Context, loc Location) (Hash, error) {
	b.mu.Lock()
	b.hashCalls[loc.Path()]++
	data, ok := b.files[loc.Path()]
	err := b.hashErr[loc.Path()]
	b.mu.Unlock()

	if err != nil {
		return Hash{}, err
	}
	if !ok {
		return Hash{}, fmt.Errorf("no such file: %s", loc)
	}
	sum, err := SumBytes(AlgoSHA256, data)
	if err != nil {
		return Hash{}, err
	}
	return Hash{Algo: AlgoSHA256, Value: sum, Size: int64(len(data))}, nil
}

func (b *memBackend) DownloadFile(ctx context.Context, from Location, toPath string) error {
	b.mu.Lock()
	if b.downErr[from.Path()] > 0 {
		b.downErr[from.Path()]--
		b.mu.Unlock()
		return fmt.Errorf("scripted download failure: %s", from)
	}
	data, ok := b.files[from.Path()]
	b.mu.Unlock()

	if !ok {
		return fmt.Errorf("no such file: %s", from)
	}
	return os.WriteFile(toPath, data, 0o644)
}

func (b *memBackend) UploadFile(ctx context.Context, fromPath string, to Location) error {
	data, err := os.ReadFile(fromPath)
	if err != nil {
		return err
	}
	b.put(to.Path(), data)
	return nil
}

func (b *memBackend) Remove(ctx context.Context, loc Location) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.files, loc.Path())
	return nil
}

func (b *memBackend) Copy(ctx context.Context, from, to Location) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.files[from.Path()]
	if !ok {
		return fmt.Errorf("no such file: %s", from)
	}
	b.files[to.Path()] = append([]byte(nil), data...)
	b.versions[to.Path()]++
	return nil
}

// strayWalkBackend reports one extra walk member that is not under the
// walked root.
type strayWalkBackend struct {
	*memBackend
	stray Location
}

func (b *strayWalkBackend) WalkFiles(ctx context.Context, loc Location) ([]Location, error) {
	files, err := b.memBackend.WalkFiles(ctx, loc)
	if err != nil {
		return nil, err
	}
	return append(files, b.stray), nil
}

// minimalBackend exposes only the required capability surface, so every
// optional operation must fail with NotSupported.
type minimalBackend struct {
	b *memBackend
}

func (m minimalBackend) Scheme() string { return m.b.Scheme() }

func (m minimalBackend) Exists(ctx context.Context, loc Location) (bool, error) {
	return m.b.Exists(ctx, loc)
}

func (m minimalBackend) IsDir(ctx context.Context, loc Location) (bool, error) {
	return m.b.IsDir(ctx, loc)
}

func (m minimalBackend) WalkFiles(ctx context.Context, loc Location) ([]Location, error) {
	return m.b.WalkFiles(ctx, loc)
}

func (m minimalBackend) GetFileHash(ctx context.Context, loc Location) (Hash, error) {
	return m.b.GetFileHash(ctx, loc)
}
