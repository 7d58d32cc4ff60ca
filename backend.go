package castor

import (
	"context"
	"io"
	"runtime"
)

// IgnoreMarker is the control filename that must never be absorbed into a
// content-addressed manifest.
const IgnoreMarker = ".castorignore"

// Backend is the required capability surface of a storage adapter. Every
// concrete backend implements it; everything else is optional and probed
// by type assertion.
type Backend interface {
	// Scheme identifies the backend ("local", "s3", "http", ...).
	Scheme() string

	// Exists reports whether the location holds an object or directory.
	Exists(ctx context.Context, loc Location) (bool, error)

	// IsDir reports whether the location is a directory. Backends without
	// a directory concept return false.
	IsDir(ctx context.Context, loc Location) (bool, error)

	// WalkFiles enumerates every member file beneath loc.
	WalkFiles(ctx context.Context, loc Location) ([]Location, error)

	// GetFileHash computes the content hash of a single file using the
	// backend's configured checksum algorithm.
	GetFileHash(ctx context.Context, loc Location) (Hash, error)
}

// ListEntry is one result of a rich listing. Sum is empty when the backend
// does not report a checksum for the entry; Size is SizeUnknown when not
// reported.
type ListEntry struct {
	Loc  Location
	Sum  string
	Size int64
}

// RichLister is the optional listing primitive that reports a checksum per
// entry, enabling directory hashing with no per-file I/O.
type RichLister interface {
	ListDetail(ctx context.Context, loc Location) ([]ListEntry, error)
}

// Downloader copies one remote object to a local filesystem path.
type Downloader interface {
	DownloadFile(ctx context.Context, from Location, toPath string) error
}

// Uploader copies one local file to a remote location. Implementations
// must place the object atomically: the destination never observably
// holds a partial write.
type Uploader interface {
	UploadFile(ctx context.Context, fromPath string, to Location) error
}

// StreamUploader writes a stream to a remote location.
type StreamUploader interface {
	UploadStream(ctx context.Context, r io.Reader, to Location) error
}

// Remover deletes a single object.
type Remover interface {
	Remove(ctx context.Context, loc Location) error
}

// Copier duplicates an object within the same backend.
type Copier interface {
	Copy(ctx context.Context, from, to Location) error
}

// Mover relocates an object within the same backend. Backends without a
// native move get the copy-then-remove composition from the engine.
type Mover interface {
	Move(ctx context.Context, from, to Location) error
}

// Symlinker creates a symbolic link.
type Symlinker interface {
	Symlink(ctx context.Context, from, to Location) error
}

// Hardlinker creates a hard link.
type Hardlinker interface {
	Hardlink(ctx context.Context, from, to Location) error
}

// Reflinker creates a copy-on-write clone.
type Reflinker interface {
	Reflink(ctx context.Context, from, to Location) error
}

// DirMaker creates directories ahead of placement, for backends that
// need them.
type DirMaker interface {
	Makedirs(ctx context.Context, loc Location) error
}

// Descriptor is the immutable per-backend configuration. It is built once
// per backend instance and read-only thereafter.
type Descriptor struct {
	Scheme string
	Algo   string

	// Jobs bounds general transfer concurrency, HashJobs bounds hash
	// computation. Both default from available hardware parallelism.
	Jobs     int
	HashJobs int

	// Listing strategy knobs for backends that page through remote
	// listings.
	ListPageSize      int
	TraverseThreshold int
	TraverseWeight    int
	TraversePrefixLen int
}

// NewDescriptor builds a descriptor with default parallelism and listing
// settings for the given scheme and checksum algorithm.
func NewDescriptor(scheme, algo string) *Descriptor {
	cpus := runtime.NumCPU()
	return &Descriptor{
		Scheme:            scheme,
		Algo:              algo,
		Jobs:              4 * cpus,
		HashJobs:          max(1, min(4, cpus/2)),
		ListPageSize:      1000,
		TraverseThreshold: 500000,
		TraverseWeight:    5,
		TraversePrefixLen: 3,
	}
}
