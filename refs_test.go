package castor

import (
	"testing"
)

func TestRefDBRoundTrip(t *testing.T) {
	db, err := OpenRefDB(t.TempDir())
	if err != nil {
		t.Fatalf("OpenRefDB: %v", err)
	}

	if err := db.SetRef("exp-b", "rev2", "rev1"); err != nil {
		t.Fatalf("SetRef: %v", err)
	}
	if err := db.SetRef("exp-a", "rev3", "rev1"); err != nil {
		t.Fatalf("SetRef: %v", err)
	}

	ref, ok, err := db.Ref("exp-b")
	if err != nil || !ok {
		t.Fatalf("Ref: %v, %v", ok, err)
	}
	if ref.Rev != "rev2" || ref.Baseline != "rev1" {
		t.Fatalf("ref = %+v", ref)
	}

	refs, err := db.Refs()
	if err != nil {
		t.Fatalf("Refs: %v", err)
	}
	if len(refs) != 2 || refs[0].Name != "exp-a" || refs[1].Name != "exp-b" {
		t.Fatalf("refs = %+v", refs)
	}

	if _, ok, _ := db.Ref("missing"); ok {
		t.Fatal("missing ref reported present")
	}

	if err := db.Enqueue("q1", "rev1"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	queued, err := db.Queued()
	if err != nil {
		t.Fatalf("Queued: %v", err)
	}
	if len(queued) != 1 || queued[0].Baseline != "rev1" {
		t.Fatalf("queued = %+v", queued)
	}

	if err := db.SetExec(ExecBranch, "exp-a"); err != nil {
		t.Fatalf("SetExec: %v", err)
	}
	name, ok, err := db.Exec(ExecBranch)
	if err != nil || !ok || name != "exp-a" {
		t.Fatalf("Exec = %q, %v, %v", name, ok, err)
	}
}

func TestRefDBGC(t *testing.T) {
	db, err := OpenRefDB(t.TempDir())
	if err != nil {
		t.Fatalf("OpenRefDB: %v", err)
	}

	// R1 derives from the kept baseline, R2 and the queued entry do not.
	if err := db.SetRef("R1", "revA", "rev1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetRef("R2", "revB", "rev2"); err != nil {
		t.Fatal(err)
	}
	if err := db.Enqueue("q1", "rev2"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetExec(ExecApply, "R2"); err != nil {
		t.Fatal(err)
	}

	removed, err := db.GC(map[string]struct{}{"rev1": {}}, false)
	if err != nil {
		t.Fatalf("GC: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}

	if _, ok, _ := db.Ref("R1"); !ok {
		t.Fatal("retained ref was removed")
	}
	if _, ok, _ := db.Ref("R2"); ok {
		t.Fatal("unretained ref survived")
	}
	queued, _ := db.Queued()
	if len(queued) != 0 {
		t.Fatalf("unretained queue entry survived: %+v", queued)
	}

	// The exec pointer at the removed ref is cleared.
	if _, ok, _ := db.Exec(ExecApply); ok {
		t.Fatal("exec pointer at removed ref survived")
	}
}

func TestRefDBGCEmptyKeepRemovesNothing(t *testing.T) {
	db, err := OpenRefDB(t.TempDir())
	if err != nil {
		t.Fatalf("OpenRefDB: %v", err)
	}
	if err := db.SetRef("R1", "revA", "rev1"); err != nil {
		t.Fatal(err)
	}
	if err := db.Enqueue("q1", "rev2"); err != nil {
		t.Fatal(err)
	}

	removed, err := db.GC(nil, true)
	if err != nil {
		t.Fatalf("GC: %v", err)
	}
	if removed != 0 {
		t.Fatalf("empty keep set removed %d entries", removed)
	}
	if _, ok, _ := db.Ref("R1"); !ok {
		t.Fatal("ref removed despite empty keep set")
	}
}

func TestRefDBGCDropQueued(t *testing.T) {
	db, err := OpenRefDB(t.TempDir())
	if err != nil {
		t.Fatalf("OpenRefDB: %v", err)
	}
	if err := db.SetRef("R1", "revA", "rev1"); err != nil {
		t.Fatal(err)
	}
	if err := db.Enqueue("q1", "rev1"); err != nil {
		t.Fatal(err)
	}
	if err := db.Enqueue("q2", "rev2"); err != nil {
		t.Fatal(err)
	}

	// dropQueued removes queued entries regardless of baseline.
	removed, err := db.GC(map[string]struct{}{"rev1": {}}, true)
	if err != nil {
		t.Fatalf("GC: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	queued, _ := db.Queued()
	if len(queued) != 0 {
		t.Fatalf("queued entries survived: %+v", queued)
	}
	if _, ok, _ := db.Ref("R1"); !ok {
		t.Fatal("retained ref was removed")
	}
}
