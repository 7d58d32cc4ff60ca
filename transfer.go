package castor

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// TransferOptions tune a single upload or download call.
type TransferOptions struct {
	// Name is the logical name used for progress reporting. Defaults to
	// the source's final path element.
	Name string

	// NoProgress suppresses progress events for this call.
	NoProgress bool

	// Jobs overrides the backend's default transfer concurrency for
	// directory operations.
	Jobs int

	// Params are backend-specific pass-through parameters.
	Params map[string]string
}

func (o TransferOptions) reporter(e *Engine) Reporter {
	if o.NoProgress {
		return nopReporter{}
	}
	return e.rep
}

// Download moves an object or directory tree from this backend to the
// local filesystem. A destination on the backend's own non-local scheme is
// served by the backend's native copy instead, with zero bytes streamed
// through this machine.
func (e *Engine) Download(ctx context.Context, from, to Location, opts TransferOptions) error {
	dl, ok := e.backend.(Downloader)
	if !ok {
		return &NotSupportedError{Op: "download", Scheme: e.desc.Scheme}
	}
	if from.Scheme() != e.desc.Scheme {
		return &CrossSchemeError{Op: "download", From: from, To: to}
	}

	if to.Scheme() == e.desc.Scheme && to.Scheme() != SchemeLocal {
		e.log.Debug("same-provider copy, zero bytes streamed",
			zap.Stringer("from", from), zap.Stringer("to", to))
		return e.Copy(ctx, from, to)
	}
	if to.Scheme() != SchemeLocal {
		return &CrossSchemeError{Op: "download", From: from, To: to}
	}

	isdir, err := e.backend.IsDir(ctx, from)
	if err != nil {
		return err
	}
	if isdir {
		return e.downloadDir(ctx, dl, from, to, opts)
	}

	name := opts.Name
	if name == "" {
		name = to.Name()
	}
	rep := opts.reporter(e)
	rep.Begin(name, 1)
	defer rep.End(name)

	if err := e.downloadFile(ctx, dl, from, to); err != nil {
		return err
	}
	rep.Step(name)
	return nil
}

// downloadFile transfers into a temporary name adjacent to the final
// destination and moves it into place, so the destination never holds a
// partial object.
func (e *Engine) downloadFile(ctx context.Context, dl Downloader, from, to Location) error {
	dest := filepath.FromSlash(to.Path())
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
	}

	e.log.Debug("downloading", zap.Stringer("from", from), zap.Stringer("to", to))

	tmp := tmpName(dest)
	if err := dl.DownloadFile(ctx, from, tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("place %s: %w", dest, err)
	}
	return nil
}

// downloadDir fans member downloads out over the transfer pool. The
// directory succeeds only if every member does; the first member failure
// cancels pending members and propagates.
func (e *Engine) downloadDir(ctx context.Context, dl Downloader, from, to Location, opts TransferOptions) error {
	files, err := e.backend.WalkFiles(ctx, from)
	if err != nil {
		return err
	}
	// Destinations resolve before any member is submitted, so the pool is
	// never abandoned mid-loop.
	pairs, err := memberPairs(files, from, to)
	if err != nil {
		return err
	}

	name := opts.Name
	if name == "" {
		name = from.Name()
	}
	rep := opts.reporter(e)
	rep.Begin(name, len(pairs))
	defer rep.End(name)

	e.log.Debug("downloading directory",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.Int("files", len(pairs)))

	p := e.transferPool(ctx, opts.Jobs)
	for _, pair := range pairs {
		src, dst := pair.src, pair.dst
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := e.downloadFile(ctx, dl, src, dst); err != nil {
				return &PartialTransferError{Member: src, Err: err}
			}
			rep.Step(name)
			return nil
		})
	}
	return p.Wait()
}

// Upload moves a local file or directory tree onto this backend. Atomic
// placement of each object is the backend's responsibility.
func (e *Engine) Upload(ctx context.Context, from, to Location, opts TransferOptions) error {
	ul, ok := e.backend.(Uploader)
	if !ok {
		return &NotSupportedError{Op: "upload", Scheme: e.desc.Scheme}
	}
	if to.Scheme() != e.desc.Scheme {
		return &CrossSchemeError{Op: "upload", From: from, To: to}
	}
	if from.Scheme() != SchemeLocal {
		return &CrossSchemeError{Op: "upload", From: from, To: to}
	}

	src := filepath.FromSlash(from.Path())
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return e.uploadDir(ctx, ul, from, to, opts)
	}

	name := opts.Name
	if name == "" {
		name = from.Name()
	}
	rep := opts.reporter(e)
	rep.Begin(name, 1)
	defer rep.End(name)

	if err := e.uploadFile(ctx, ul, src, to); err != nil {
		return err
	}
	rep.Step(name)
	return nil
}

func (e *Engine) uploadFile(ctx context.Context, ul Uploader, fromPath string, to Location) error {
	if dm, ok := e.backend.(DirMaker); ok {
		if err := dm.Makedirs(ctx, to.Parent()); err != nil {
			return err
		}
	}
	e.log.Debug("uploading", zap.String("from", fromPath), zap.Stringer("to", to))
	return ul.UploadFile(ctx, fromPath, to)
}

func (e *Engine) uploadDir(ctx context.Context, ul Uploader, from, to Location, opts TransferOptions) error {
	files, err := localWalkFiles(from)
	if err != nil {
		return err
	}
	pairs, err := memberPairs(files, from, to)
	if err != nil {
		return err
	}

	name := opts.Name
	if name == "" {
		name = from.Name()
	}
	rep := opts.reporter(e)
	rep.Begin(name, len(pairs))
	defer rep.End(name)

	p := e.transferPool(ctx, opts.Jobs)
	for _, pair := range pairs {
		src, dst := pair.src, pair.dst
		srcPath := filepath.FromSlash(src.Path())
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := e.uploadFile(ctx, ul, srcPath, dst); err != nil {
				return &PartialTransferError{Member: src, Err: err}
			}
			rep.Step(name)
			return nil
		})
	}
	return p.Wait()
}

// UploadStream writes a stream to a single object on this backend.
func (e *Engine) UploadStream(ctx context.Context, r io.Reader, to Location, opts TransferOptions) error {
	su, ok := e.backend.(StreamUploader)
	if !ok {
		return &NotSupportedError{Op: "upload_stream", Scheme: e.desc.Scheme}
	}
	if to.Scheme() != e.desc.Scheme {
		return &CrossSchemeError{Op: "upload_stream", From: Location{}, To: to}
	}
	if dm, ok := e.backend.(DirMaker); ok {
		if err := dm.Makedirs(ctx, to.Parent()); err != nil {
			return err
		}
	}
	return su.UploadStream(ctx, r, to)
}

type memberPair struct {
	src Location
	dst Location
}

// memberPairs maps every member's relative path onto the destination root.
func memberPairs(files []Location, from, to Location) ([]memberPair, error) {
	pairs := make([]memberPair, 0, len(files))
	for _, src := range files {
		rel, err := src.RelTo(from)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, memberPair{src: src, dst: to.Join(rel...)})
	}
	return pairs, nil
}

// tmpName derives a temporary sibling name so the eventual rename stays on
// one filesystem.
func tmpName(path string) string {
	var buf [8]byte
	rand.Read(buf[:])
	return path + "." + hex.EncodeToString(buf[:]) + ".tmp"
}

// localWalkFiles enumerates regular files beneath a local directory
// location, for the upload fan-out.
func localWalkFiles(root Location) ([]Location, error) {
	var files []Location
	base := filepath.FromSlash(root.Path())
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		files = append(files, NewLocation(SchemeLocal, filepath.ToSlash(path)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
