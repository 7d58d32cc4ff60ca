package castor

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// GetHash computes the content hash of a file or directory. Absence is a
// valid non-error result: the second return value is false when the
// location does not exist.
func (e *Engine) GetHash(ctx context.Context, loc Location) (Hash, bool, error) {
	var h Hash
	var found bool
	err := e.withSession(func() error {
		var err error
		h, found, err = e.getHash(ctx, loc)
		return err
	})
	return h, found, err
}

func (e *Engine) getHash(ctx context.Context, loc Location) (Hash, bool, error) {
	exists, err := e.backend.Exists(ctx, loc)
	if err != nil {
		return Hash{}, false, err
	}
	if !exists {
		return Hash{}, false, nil
	}

	cached, hit := e.fps.Lookup(loc)

	// A cached directory hash is only trusted while the backing manifest
	// artifact physically exists; a partially evicted cache-store must
	// trigger recollection, not a stale answer.
	if hit && cached.IsDir() && !e.store.HasArtifact(cached) {
		e.log.Debug("cached dir hash lost its manifest artifact, recomputing",
			zap.Stringer("location", loc), zap.String("hash", cached.Value))
		hit = false
	}

	// The cache is advisory: an entry computed under a different
	// algorithm is a miss, never an answer.
	if hit && cached.Algo != e.desc.Algo {
		hit = false
	}

	if hit {
		if cached.IsDir() {
			e.store.RegisterManifest(cached)
		}
		return cached, true, nil
	}

	isdir, err := e.backend.IsDir(ctx, loc)
	if err != nil {
		return Hash{}, false, err
	}

	var h Hash
	if isdir {
		h, err = e.getDirHash(ctx, loc)
	} else {
		h, err = e.backend.GetFileHash(ctx, loc)
	}
	if err != nil {
		return Hash{}, false, err
	}

	// Only cache while the content is still there; a location deleted
	// mid-computation must not leave a fingerprint behind.
	if stillThere, err := e.backend.Exists(ctx, loc); err == nil && stillThere {
		e.fps.Store(loc, h)
	}

	return h, true, nil
}

// GetDirHash turns a directory tree into a single deterministic content
// hash by collecting a manifest of every member file and persisting its
// canonical form into the artifact store.
func (e *Engine) GetDirHash(ctx context.Context, loc Location) (Hash, error) {
	var h Hash
	err := e.withSession(func() error {
		var err error
		h, err = e.getDirHash(ctx, loc)
		return err
	})
	return h, err
}

func (e *Engine) getDirHash(ctx context.Context, root Location) (Hash, error) {
	members, err := e.memberHashes(ctx, root)
	if err != nil {
		return Hash{}, err
	}

	manifest := NewManifest(e.desc.Algo)
	for member, h := range members {
		rel, err := member.RelTo(root)
		if err != nil {
			return Hash{}, err
		}
		// A walk of a file location visits the file itself; the root is
		// not a directory then.
		if len(rel) == 0 {
			return Hash{}, fmt.Errorf("%s is not a directory", root)
		}
		if rel[len(rel)-1] == IgnoreMarker {
			return Hash{}, &StructuralViolationError{Dir: member.Parent()}
		}
		manifest.Add(rel, h)
	}

	dirHash, err := e.store.PersistManifest(ctx, manifest)
	if err != nil {
		return Hash{}, fmt.Errorf("persist manifest for %s: %w", root, err)
	}

	return dirHash.WithSize(manifest.Size()), nil
}

// memberHashes obtains the (member file, hash) pairs beneath root. When
// the backend's listing reports checksums the pairs come straight from the
// listing; otherwise the walk resolves what it can through the fingerprint
// cache and hashes the rest across the worker pool.
func (e *Engine) memberHashes(ctx context.Context, root Location) (map[Location]Hash, error) {
	resolved := make(map[Location]Hash)
	var unresolved []Location

	if lister, ok := e.backend.(RichLister); ok {
		entries, err := lister.ListDetail(ctx, root)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.Sum == "" {
				unresolved = append(unresolved, entry.Loc)
				continue
			}
			resolved[entry.Loc] = Hash{Algo: e.desc.Algo, Value: entry.Sum, Size: entry.Size}
		}
	} else {
		files, err := e.backend.WalkFiles(ctx, root)
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			if h, ok := e.fps.Lookup(file); ok && h.Algo == e.desc.Algo {
				resolved[file] = h
				continue
			}
			unresolved = append(unresolved, file)
		}
	}

	if len(unresolved) == 0 {
		return resolved, nil
	}

	computed, err := e.calculateHashes(ctx, root, unresolved)
	if err != nil {
		return nil, err
	}
	for loc, h := range computed {
		resolved[loc] = h
	}
	return resolved, nil
}

// calculateHashes hashes a batch of files across the bounded hash pool.
// Files are order-independent; the first failure cancels units that have
// not started and propagates.
func (e *Engine) calculateHashes(ctx context.Context, root Location, batch []Location) (map[Location]Hash, error) {
	name := "hash " + root.String()
	e.rep.Begin(name, len(batch))
	defer e.rep.End(name)

	e.log.Debug("hashing batch",
		zap.Stringer("root", root),
		zap.Int("files", len(batch)),
		zap.Int("jobs", e.desc.HashJobs))

	var mu sync.Mutex
	results := make(map[Location]Hash, len(batch))

	p := e.hashPool(ctx)
	for _, member := range batch {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			h, err := e.backend.GetFileHash(ctx, member)
			if err != nil {
				return fmt.Errorf("hash %s: %w", member, err)
			}
			// Completed units are cacheable; failed or cancelled ones
			// never reach this point.
			e.fps.Store(member, h)
			e.rep.Step(name)

			mu.Lock()
			results[member] = h
			mu.Unlock()
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
