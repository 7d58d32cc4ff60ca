package castor

import (
	"context"
	"errors"
	"testing"
)

func TestMoveComposesCopyRemove(t *testing.T) {
	// memBackend copies and removes but has no native move.
	b := newMemBackend()
	b.put("src", []byte("data"))

	e := New(b)
	if err := e.Move(context.Background(), NewLocation("mem", "src"), NewLocation("mem", "dst")); err != nil {
		t.Fatalf("Move: %v", err)
	}

	if _, ok := b.files["src"]; ok {
		t.Fatal("source must be gone after move")
	}
	if string(b.files["dst"]) != "data" {
		t.Fatalf("destination holds %q", b.files["dst"])
	}
}

func TestOptionalOpsNotSupported(t *testing.T) {
	e := New(minimalBackend{b: newMemBackend()})
	ctx := context.Background()
	from := NewLocation("mem", "a")
	to := NewLocation("mem", "b")

	ops := map[string]error{
		"remove":   e.Remove(ctx, from),
		"copy":     e.Copy(ctx, from, to),
		"symlink":  e.Symlink(ctx, from, to),
		"hardlink": e.Hardlink(ctx, from, to),
		"reflink":  e.Reflink(ctx, from, to),
		"makedirs": e.Makedirs(ctx, from),
	}
	for op, err := range ops {
		var ns *NotSupportedError
		if !errors.As(err, &ns) {
			t.Errorf("%s: want NotSupportedError, got %v", op, err)
			continue
		}
		if ns.Op != op || ns.Scheme != "mem" {
			t.Errorf("%s: error names %s/%s", op, ns.Op, ns.Scheme)
		}
	}

	// Move needs copy, which the backend lacks.
	var ns *NotSupportedError
	if err := e.Move(ctx, from, to); !errors.As(err, &ns) {
		t.Errorf("move: want NotSupportedError, got %v", err)
	}
}
