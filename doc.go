// Package castor provides content-addressable hashing and transfer over
// heterogeneous storage backends.
//
// An Engine wraps one backend (local disk, S3, HTTP, ...) and computes
// stable content identities for files and whole directory trees, caching
// fingerprints to avoid rehashing unchanged content and moving data
// between backends with bounded concurrency and atomic placement.
//
// Basic usage:
//
//	b := local.New()
//	eng := castor.New(b,
//		castor.WithFingerprintCache(castor.NewMemoryFingerprints(local.Fingerprint)),
//		castor.WithArtifactStore(artifacts),
//	)
//
//	// Hash a file or directory tree. Directory hashes are deterministic
//	// manifest hashes, independent of enumeration order.
//	h, ok, err := eng.GetHash(ctx, castor.NewLocation("local", "/data/model"))
//
//	// Move data. Directory transfers fan out over a worker pool and fail
//	// loudly on the first member error.
//	err = eng.Download(ctx, src, dst, castor.TransferOptions{})
//
// Backends implement the required Backend interface plus any of the
// optional capability interfaces (Downloader, Uploader, RichLister, ...).
// Generic operations probe for a capability before any I/O and fail with
// a typed NotSupportedError when it is absent.
package castor
