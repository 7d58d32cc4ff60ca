package castor

import (
	"fmt"
	"strings"
)

// NotSupportedError reports that a backend lacks an optional primitive
// required by the requested operation.
type NotSupportedError struct {
	Op     string
	Scheme string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("%s is not supported for %s backends", e.Op, e.Scheme)
}

// MissingDepsError reports that a backend's client library or runtime
// requirement is unavailable. Hint tells the user how to fix it.
type MissingDepsError struct {
	Scheme string
	Deps   []string
	Hint   string
}

func (e *MissingDepsError) Error() string {
	msg := fmt.Sprintf("%s backend requires missing dependencies: %s",
		e.Scheme, strings.Join(e.Deps, ", "))
	if e.Hint != "" {
		msg += ". " + e.Hint
	}
	return msg
}

// StructuralViolationError reports an ignore-marker file found inside a
// directory being hashed. Absorbing the marker into a content-addressed
// manifest would silently change the directory's identity.
type StructuralViolationError struct {
	Dir Location
}

func (e *StructuralViolationError) Error() string {
	return fmt.Sprintf("%s file found inside directory %s being hashed", IgnoreMarker, e.Dir)
}

// CrossSchemeError reports a source/destination scheme pair this engine
// cannot bridge.
type CrossSchemeError struct {
	Op   string
	From Location
	To   Location
}

func (e *CrossSchemeError) Error() string {
	return fmt.Sprintf("cannot %s between %s and %s schemes",
		e.Op, e.From.Scheme(), e.To.Scheme())
}

// PartialTransferError reports a directory transfer aborted after a member
// failed. The member error is surfaced verbatim to preserve the root cause.
type PartialTransferError struct {
	Member Location
	Err    error
}

func (e *PartialTransferError) Error() string {
	return fmt.Sprintf("directory transfer aborted: %s failed: %v", e.Member, e.Err)
}

func (e *PartialTransferError) Unwrap() error { return e.Err }
