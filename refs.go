package castor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/renameio"
)

// Exec pointer names: singleton references to the ref currently being
// executed, applied, or checkpointed.
const (
	ExecBranch     = "branch"
	ExecApply      = "apply"
	ExecCheckpoint = "checkpoint"
)

// Ref is a versioned reference with the baseline revision it derives from.
type Ref struct {
	Name     string
	Rev      string
	Baseline string
}

// QueueEntry is queued work pinned to a baseline revision.
type QueueEntry struct {
	ID       string
	Baseline string
}

// RefDB is simple reference bookkeeping over a store directory:
//
//	dir/refs/<name>      "rev baseline"
//	dir/queue/<id>       "baseline"
//	dir/exec/<pointer>   "refname"
//
// It has no hashing or concurrency complexity of its own; it only consumes
// the store layout.
type RefDB struct {
	dir string
	mu  sync.Mutex
}

// OpenRefDB opens (creating if needed) a reference database rooted at dir.
func OpenRefDB(dir string) (*RefDB, error) {
	for _, sub := range []string{"refs", "queue", "exec"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create ref db: %w", err)
		}
	}
	return &RefDB{dir: dir}, nil
}

// SetRef records a reference.
func (db *RefDB) SetRef(name, rev, baseline string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return renameio.WriteFile(db.refPath(name), []byte(rev+" "+baseline+"\n"), 0o644)
}

// Ref looks up a reference by name.
func (db *RefDB) Ref(name string) (Ref, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.readRef(name)
}

func (db *RefDB) readRef(name string) (Ref, bool, error) {
	data, err := os.ReadFile(db.refPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return Ref{}, false, nil
		}
		return Ref{}, false, err
	}
	rev, baseline, _ := strings.Cut(strings.TrimSpace(string(data)), " ")
	return Ref{Name: name, Rev: rev, Baseline: baseline}, true, nil
}

// Refs lists every reference, sorted by name.
func (db *RefDB) Refs() ([]Ref, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.listRefs()
}

func (db *RefDB) listRefs() ([]Ref, error) {
	entries, err := os.ReadDir(filepath.Join(db.dir, "refs"))
	if err != nil {
		return nil, err
	}
	refs := make([]Ref, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ref, ok, err := db.readRef(entry.Name())
		if err != nil {
			return nil, err
		}
		if ok {
			refs = append(refs, ref)
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

// Enqueue records a queued work entry.
func (db *RefDB) Enqueue(id, baseline string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return renameio.WriteFile(db.queuePath(id), []byte(baseline+"\n"), 0o644)
}

// Queued lists queued work entries, sorted by id.
func (db *RefDB) Queued() ([]QueueEntry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.listQueued()
}

func (db *RefDB) listQueued() ([]QueueEntry, error) {
	entries, err := os.ReadDir(filepath.Join(db.dir, "queue"))
	if err != nil {
		return nil, err
	}
	queued := make([]QueueEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(db.queuePath(entry.Name()))
		if err != nil {
			return nil, err
		}
		queued = append(queued, QueueEntry{
			ID:       entry.Name(),
			Baseline: strings.TrimSpace(string(data)),
		})
	}
	sort.Slice(queued, func(i, j int) bool { return queued[i].ID < queued[j].ID })
	return queued, nil
}

// SetExec points an exec pointer at a reference.
func (db *RefDB) SetExec(pointer, refName string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return renameio.WriteFile(db.execPath(pointer), []byte(refName+"\n"), 0o644)
}

// Exec reads an exec pointer.
func (db *RefDB) Exec(pointer string) (string, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	data, err := os.ReadFile(db.execPath(pointer))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return strings.TrimSpace(string(data)), true, nil
}

// GC removes every reference whose baseline revision is not in keep, every
// queued entry whose baseline is not in keep (all of them when dropQueued),
// and clears exec pointers that pointed at a removed reference. It returns
// the number of removed items. An empty keep set removes nothing.
func (db *RefDB) GC(keep map[string]struct{}, dropQueued bool) (int, error) {
	if len(keep) == 0 {
		return 0, nil
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	refs, err := db.listRefs()
	if err != nil {
		return 0, err
	}
	queued, err := db.listQueued()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, ref := range refs {
		if _, kept := keep[ref.Baseline]; kept {
			continue
		}
		for _, pointer := range []string{ExecBranch, ExecApply, ExecCheckpoint} {
			data, err := os.ReadFile(db.execPath(pointer))
			if err != nil {
				continue
			}
			if strings.TrimSpace(string(data)) == ref.Name {
				if err := os.Remove(db.execPath(pointer)); err != nil {
					return removed, err
				}
			}
		}
		if err := os.Remove(db.refPath(ref.Name)); err != nil {
			return removed, err
		}
		removed++
	}

	for _, entry := range queued {
		_, kept := keep[entry.Baseline]
		if kept && !dropQueued {
			continue
		}
		if err := os.Remove(db.queuePath(entry.ID)); err != nil {
			return removed, err
		}
		removed++
	}

	return removed, nil
}

func (db *RefDB) refPath(name string) string {
	return filepath.Join(db.dir, "refs", name)
}

func (db *RefDB) queuePath(id string) string {
	return filepath.Join(db.dir, "queue", id)
}

func (db *RefDB) execPath(pointer string) string {
	return filepath.Join(db.dir, "exec", pointer)
}
