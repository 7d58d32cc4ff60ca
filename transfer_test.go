package castor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func localLoc(elem ...string) Location {
	return NewLocation(SchemeLocal, filepath.ToSlash(filepath.Join(elem...)))
}

func TestDownloadFile(t *testing.T) {
	b := newMemBackend()
	b.put("obj/x", []byte("payload"))

	e := New(b)
	dest := localLoc(t.TempDir(), "x")

	err := e.Download(context.Background(), NewLocation("mem", "obj/x"), dest, TransferOptions{})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}

	data, err := os.ReadFile(filepath.FromSlash(dest.Path()))
	if err != nil {
		t.Fatalf("read destination: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("destination holds %q", data)
	}

	assertNoTempFiles(t, filepath.Dir(filepath.FromSlash(dest.Path())))
}

func TestDownloadFileCreatesParents(t *testing.T) {
	b := newMemBackend()
	b.put("obj/x", []byte("payload"))

	e := New(b)
	dest := localLoc(t.TempDir(), "deep", "nested", "x")

	err := e.Download(context.Background(), NewLocation("mem", "obj/x"), dest, TransferOptions{})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if _, err := os.Stat(filepath.FromSlash(dest.Path())); err != nil {
		t.Fatalf("destination missing: %v", err)
	}
}

func TestDownloadFileFailureLeavesNothing(t *testing.T) {
	b := newMemBackend()
	b.put("obj/x", []byte("payload"))
	b.downErr["obj/x"] = 1

	e := New(b)
	dir := t.TempDir()
	dest := localLoc(dir, "x")

	err := e.Download(context.Background(), NewLocation("mem", "obj/x"), dest, TransferOptions{})
	if err == nil {
		t.Fatal("scripted failure must surface")
	}
	if _, err := os.Stat(filepath.FromSlash(dest.Path())); !os.IsNotExist(err) {
		t.Fatal("failed download must not leave a destination object")
	}
	assertNoTempFiles(t, dir)
}

func TestDownloadDirPartialFailure(t *testing.T) {
	b := newMemBackend()
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		b.put("tree/"+name, []byte("content-"+name))
	}
	b.downErr["tree/c"] = 1

	e := New(b)
	dir := t.TempDir()
	dest := localLoc(dir)

	err := e.Download(context.Background(), NewLocation("mem", "tree"), dest, TransferOptions{})

	var pt *PartialTransferError
	if !errors.As(err, &pt) {
		t.Fatalf("want PartialTransferError, got %v", err)
	}
	if pt.Member.Path() != "tree/c" {
		t.Fatalf("failing member = %s", pt.Member)
	}
	if !strings.Contains(err.Error(), "scripted download failure") {
		t.Fatalf("member error lost: %v", err)
	}

	// The failed member left no destination object and no temp debris.
	if _, err := os.Stat(filepath.Join(dir, "c")); !os.IsNotExist(err) {
		t.Fatal("failed member must not exist at the destination")
	}
	assertNoTempFiles(t, dir)

	// A retry transfers the whole tree.
	if err := e.Download(context.Background(), NewLocation("mem", "tree"), dest, TransferOptions{}); err != nil {
		t.Fatalf("retry: %v", err)
	}
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("member %s missing after retry: %v", name, err)
		}
		if string(data) != "content-"+name {
			t.Fatalf("member %s holds %q", name, data)
		}
	}
}

func TestDownloadDirStrayMember(t *testing.T) {
	inner := newMemBackend()
	inner.put("tree/a", []byte("a"))
	inner.put("tree/b", []byte("b"))
	b := &strayWalkBackend{memBackend: inner, stray: NewLocation("mem", "elsewhere/c")}

	e := New(b)
	dir := t.TempDir()

	err := e.Download(context.Background(), NewLocation("mem", "tree"), localLoc(dir), TransferOptions{})
	if err == nil {
		t.Fatal("member outside the root must fail the transfer")
	}
	if !strings.Contains(err.Error(), "not under") {
		t.Fatalf("unexpected error: %v", err)
	}

	// Destinations resolve before any transfer starts, so nothing moved.
	entries, readErr := os.ReadDir(dir)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(entries) != 0 {
		t.Fatalf("members transferred despite the bad walk: %v", entries)
	}
}

func TestDownloadNotSupported(t *testing.T) {
	e := New(minimalBackend{b: newMemBackend()})

	err := e.Download(context.Background(), NewLocation("mem", "x"), localLoc(t.TempDir(), "x"), TransferOptions{})

	var ns *NotSupportedError
	if !errors.As(err, &ns) {
		t.Fatalf("want NotSupportedError, got %v", err)
	}
	if ns.Op != "download" || ns.Scheme != "mem" {
		t.Fatalf("error names %s/%s", ns.Op, ns.Scheme)
	}
}

func TestDownloadCrossScheme(t *testing.T) {
	e := New(newMemBackend())

	err := e.Download(context.Background(),
		NewLocation("s3", "bucket/x"), localLoc(t.TempDir(), "x"), TransferOptions{})

	var cs *CrossSchemeError
	if !errors.As(err, &cs) {
		t.Fatalf("want CrossSchemeError, got %v", err)
	}
}

func TestUploadFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(src, []byte("up"), 0o644); err != nil {
		t.Fatal(err)
	}

	b := newMemBackend()
	e := New(b)

	err := e.Upload(context.Background(), localLoc(src), NewLocation("mem", "dst/f.txt"), TransferOptions{})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if string(b.files["dst/f.txt"]) != "up" {
		t.Fatalf("uploaded object holds %q", b.files["dst/f.txt"])
	}
}

func TestUploadDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "sub/b.txt", "sub/deep/c.txt"} {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	b := newMemBackend()
	e := New(b)

	err := e.Upload(context.Background(), localLoc(dir), NewLocation("mem", "dst"), TransferOptions{})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	for _, name := range []string{"a.txt", "sub/b.txt", "sub/deep/c.txt"} {
		if string(b.files["dst/"+name]) != name {
			t.Fatalf("member %s not uploaded, got %q", name, b.files["dst/"+name])
		}
	}
}

func TestUploadCrossScheme(t *testing.T) {
	e := New(newMemBackend())

	err := e.Upload(context.Background(),
		NewLocation("s3", "bucket/x"), NewLocation("mem", "dst/x"), TransferOptions{})

	var cs *CrossSchemeError
	if !errors.As(err, &cs) {
		t.Fatalf("want CrossSchemeError, got %v", err)
	}
}

func TestUploadStreamNotSupported(t *testing.T) {
	e := New(minimalBackend{b: newMemBackend()})

	err := e.UploadStream(context.Background(), strings.NewReader("x"), NewLocation("mem", "dst/x"), TransferOptions{})

	var ns *NotSupportedError
	if !errors.As(err, &ns) {
		t.Fatalf("want NotSupportedError, got %v", err)
	}
	if ns.Op != "upload_stream" || ns.Scheme != "mem" {
		t.Fatalf("error names %s/%s", ns.Op, ns.Scheme)
	}
}

func TestTmpNameStaysAdjacent(t *testing.T) {
	tmp := tmpName("/data/dir/file")
	if filepath.Dir(tmp) != "/data/dir" {
		t.Fatalf("temp name %q left the destination directory", tmp)
	}
	if !strings.HasSuffix(tmp, ".tmp") {
		t.Fatalf("temp name %q", tmp)
	}
	if tmp == tmpName("/data/dir/file") {
		t.Fatal("temp names must not collide")
	}
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasSuffix(path, ".tmp") {
			t.Errorf("temp file left behind: %s", path)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
