package castor

import (
	"testing"
)

func TestHashEqualIgnoresSize(t *testing.T) {
	a := Hash{Algo: AlgoSHA256, Value: "abc", Size: 10}
	b := Hash{Algo: AlgoSHA256, Value: "abc", Size: SizeUnknown}
	if !a.Equal(b) {
		t.Fatal("hashes differing only in size must be equal")
	}

	c := Hash{Algo: AlgoMD5, Value: "abc", Size: 10}
	if a.Equal(c) {
		t.Fatal("hashes with different algorithms must not be equal")
	}
}

func TestHashIsDir(t *testing.T) {
	if NewHash(AlgoSHA256, "abc").IsDir() {
		t.Fatal("plain value must not be a directory hash")
	}
	if !NewHash(AlgoSHA256, "abc"+DirSuffix).IsDir() {
		t.Fatal("suffixed value must be a directory hash")
	}
}

func TestParseHashRoundTrip(t *testing.T) {
	h := NewHash(AlgoSHA256, "abc"+DirSuffix)
	parsed, err := ParseHash(h.String())
	if err != nil {
		t.Fatalf("ParseHash: %v", err)
	}
	if !parsed.Equal(h) {
		t.Fatalf("round trip changed hash: %v != %v", parsed, h)
	}
	if !parsed.IsDir() {
		t.Fatal("directory-ness must survive the round trip")
	}
	if parsed.Size != SizeUnknown {
		t.Fatalf("parsed size must be unknown, got %d", parsed.Size)
	}
}

func TestParseHashRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "abc", ":abc", "sha256:"} {
		if _, err := ParseHash(raw); err == nil {
			t.Errorf("ParseHash(%q) must fail", raw)
		}
	}
}

func TestManifestSerializeDeterministic(t *testing.T) {
	a := NewManifest(AlgoSHA256)
	a.Add([]string{"x", "1"}, NewHash(AlgoSHA256, "h1"))
	a.Add([]string{"y"}, NewHash(AlgoSHA256, "h2"))
	a.Add([]string{"x", "2"}, NewHash(AlgoSHA256, "h3"))

	b := NewManifest(AlgoSHA256)
	b.Add([]string{"y"}, NewHash(AlgoSHA256, "h2"))
	b.Add([]string{"x", "2"}, NewHash(AlgoSHA256, "h3"))
	b.Add([]string{"x", "1"}, NewHash(AlgoSHA256, "h1"))

	da, err := a.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	db, err := b.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if string(da) != string(db) {
		t.Fatalf("insertion order leaked into canonical form:\n%s\n%s", da, db)
	}
}

func TestManifestSerializeExcludesSizes(t *testing.T) {
	a := NewManifest(AlgoSHA256)
	a.Add([]string{"f"}, Hash{Algo: AlgoSHA256, Value: "h", Size: 10})

	b := NewManifest(AlgoSHA256)
	b.Add([]string{"f"}, Hash{Algo: AlgoSHA256, Value: "h", Size: SizeUnknown})

	da, _ := a.Serialize()
	db, _ := b.Serialize()
	if string(da) != string(db) {
		t.Fatal("member sizes must not affect the canonical form")
	}
}

func TestManifestSizeUnknownPropagates(t *testing.T) {
	m := NewManifest(AlgoSHA256)
	m.Add([]string{"a"}, Hash{Algo: AlgoSHA256, Value: "h1", Size: 5})
	m.Add([]string{"b"}, Hash{Algo: AlgoSHA256, Value: "h2", Size: 7})
	if got := m.Size(); got != 12 {
		t.Fatalf("Size() = %d, want 12", got)
	}

	m.Add([]string{"c"}, NewHash(AlgoSHA256, "h3"))
	if got := m.Size(); got != SizeUnknown {
		t.Fatalf("one unknown member must make the aggregate unknown, got %d", got)
	}
}

func TestParseManifestRoundTrip(t *testing.T) {
	m := NewManifest(AlgoSHA256)
	m.Add([]string{"sub", "f"}, Hash{Algo: AlgoSHA256, Value: "h1", Size: 5})
	m.Add([]string{"g"}, Hash{Algo: AlgoSHA256, Value: "h2", Size: 7})

	data, err := m.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	parsed, err := ParseManifest(AlgoSHA256, data)
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if parsed.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", parsed.Len())
	}
	h, ok := parsed.Get("sub/f")
	if !ok || h.Value != "h1" {
		t.Fatalf("Get(sub/f) = %v, %v", h, ok)
	}
	if h.Size != SizeUnknown {
		t.Fatal("member sizes must be unknown after a round trip")
	}
}
