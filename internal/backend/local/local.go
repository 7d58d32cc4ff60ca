// Package local implements the local filesystem backend. It carries the
// widest capability surface of the bundled backends: every optional
// primitive except reflink.
package local

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio"

	"github.com/aweris/castor"
)

// Backend adapts the local filesystem to the capability contract.
type Backend struct {
	algo string
}

// New creates a local backend hashing with sha256.
func New() *Backend {
	return &Backend{algo: castor.AlgoSHA256}
}

// NewWithAlgo creates a local backend with a specific checksum algorithm.
func NewWithAlgo(algo string) *Backend {
	return &Backend{algo: algo}
}

func (b *Backend) Scheme() string { return castor.SchemeLocal }

func osPath(loc castor.Location) string {
	return filepath.FromSlash(loc.Path())
}

func (b *Backend) Exists(ctx context.Context, loc castor.Location) (bool, error) {
	_, err := os.Stat(osPath(loc))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (b *Backend) IsDir(ctx context.Context, loc castor.Location) (bool, error) {
	info, err := os.Stat(osPath(loc))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

func (b *Backend) WalkFiles(ctx context.Context, loc castor.Location) ([]castor.Location, error) {
	var files []castor.Location
	err := filepath.WalkDir(osPath(loc), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		files = append(files, castor.NewLocation(castor.SchemeLocal, filepath.ToSlash(path)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (b *Backend) GetFileHash(ctx context.Context, loc castor.Location) (castor.Hash, error) {
	f, err := os.Open(osPath(loc))
	if err != nil {
		return castor.Hash{}, fmt.Errorf("open %s: %w", loc, err)
	}
	defer f.Close()

	sum, size, err := castor.SumReader(b.algo, f)
	if err != nil {
		return castor.Hash{}, fmt.Errorf("hash %s: %w", loc, err)
	}
	return castor.Hash{Algo: b.algo, Value: sum, Size: size}, nil
}

// Fingerprint observes modification time and size, the cheap signal the
// fingerprint cache keys on. Directories fingerprint as the aggregate of
// their member files: the newest member modification time plus the total
// size, so directory hashes are cacheable too.
func Fingerprint(loc castor.Location) (castor.Fingerprint, bool) {
	info, err := os.Stat(osPath(loc))
	if err != nil {
		return castor.Fingerprint{}, false
	}
	if !info.IsDir() {
		return castor.Fingerprint{ModTime: info.ModTime(), Size: info.Size()}, true
	}

	var latest time.Time
	var total int64
	err = filepath.WalkDir(osPath(loc), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		if fi.ModTime().After(latest) {
			latest = fi.ModTime()
		}
		total += fi.Size()
		return nil
	})
	if err != nil {
		return castor.Fingerprint{}, false
	}
	return castor.Fingerprint{ModTime: latest, Size: total}, true
}

func (b *Backend) DownloadFile(ctx context.Context, from castor.Location, toPath string) error {
	src, err := os.Open(osPath(from))
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(toPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func (b *Backend) UploadFile(ctx context.Context, fromPath string, to castor.Location) error {
	src, err := os.Open(fromPath)
	if err != nil {
		return err
	}
	defer src.Close()
	return b.writeAtomic(osPath(to), src)
}

func (b *Backend) UploadStream(ctx context.Context, r io.Reader, to castor.Location) error {
	return b.writeAtomic(osPath(to), r)
}

// writeAtomic stages into a renameio temp file next to dest, so dest never
// observably holds a partial write.
func (b *Backend) writeAtomic(dest string, r io.Reader) error {
	t, err := renameio.TempFile("", dest)
	if err != nil {
		return err
	}
	defer t.Cleanup()

	if _, err := io.Copy(t, r); err != nil {
		return err
	}
	return t.CloseAtomicallyReplace()
}

func (b *Backend) Remove(ctx context.Context, loc castor.Location) error {
	return os.RemoveAll(osPath(loc))
}

func (b *Backend) Copy(ctx context.Context, from, to castor.Location) error {
	src, err := os.Open(osPath(from))
	if err != nil {
		return err
	}
	defer src.Close()
	return b.writeAtomic(osPath(to), src)
}

func (b *Backend) Move(ctx context.Context, from, to castor.Location) error {
	if err := os.Rename(osPath(from), osPath(to)); err == nil {
		return nil
	}
	// Cross-device rename: fall back to copy-then-remove.
	if err := b.Copy(ctx, from, to); err != nil {
		return err
	}
	return os.Remove(osPath(from))
}

func (b *Backend) Symlink(ctx context.Context, from, to castor.Location) error {
	return os.Symlink(osPath(from), osPath(to))
}

func (b *Backend) Hardlink(ctx context.Context, from, to castor.Location) error {
	return os.Link(osPath(from), osPath(to))
}

func (b *Backend) Makedirs(ctx context.Context, loc castor.Location) error {
	return os.MkdirAll(osPath(loc), 0o755)
}
