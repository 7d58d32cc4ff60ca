package castor

import "context"

// Capability dispatch: each helper probes the backend for the optional
// primitive and fails with a uniform NotSupportedError when it is absent.
// Probing happens before any I/O.

// Remove deletes a single object.
func (e *Engine) Remove(ctx context.Context, loc Location) error {
	r, ok := e.backend.(Remover)
	if !ok {
		return &NotSupportedError{Op: "remove", Scheme: e.desc.Scheme}
	}
	return r.Remove(ctx, loc)
}

// Copy duplicates an object within the backend.
func (e *Engine) Copy(ctx context.Context, from, to Location) error {
	c, ok := e.backend.(Copier)
	if !ok {
		return &NotSupportedError{Op: "copy", Scheme: e.desc.Scheme}
	}
	return c.Copy(ctx, from, to)
}

// Move relocates an object within the backend. Backends without a native
// move get the copy-then-remove composition, which requires both
// primitives.
func (e *Engine) Move(ctx context.Context, from, to Location) error {
	if m, ok := e.backend.(Mover); ok {
		return m.Move(ctx, from, to)
	}
	if err := e.Copy(ctx, from, to); err != nil {
		return err
	}
	return e.Remove(ctx, from)
}

// Symlink creates a symbolic link.
func (e *Engine) Symlink(ctx context.Context, from, to Location) error {
	s, ok := e.backend.(Symlinker)
	if !ok {
		return &NotSupportedError{Op: "symlink", Scheme: e.desc.Scheme}
	}
	return s.Symlink(ctx, from, to)
}

// Hardlink creates a hard link.
func (e *Engine) Hardlink(ctx context.Context, from, to Location) error {
	h, ok := e.backend.(Hardlinker)
	if !ok {
		return &NotSupportedError{Op: "hardlink", Scheme: e.desc.Scheme}
	}
	return h.Hardlink(ctx, from, to)
}

// Reflink creates a copy-on-write clone.
func (e *Engine) Reflink(ctx context.Context, from, to Location) error {
	r, ok := e.backend.(Reflinker)
	if !ok {
		return &NotSupportedError{Op: "reflink", Scheme: e.desc.Scheme}
	}
	return r.Reflink(ctx, from, to)
}

// Makedirs creates directories ahead of placement.
func (e *Engine) Makedirs(ctx context.Context, loc Location) error {
	d, ok := e.backend.(DirMaker)
	if !ok {
		return &NotSupportedError{Op: "makedirs", Scheme: e.desc.Scheme}
	}
	return d.Makedirs(ctx, loc)
}
