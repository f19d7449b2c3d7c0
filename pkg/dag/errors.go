package dag

import (
	"errors"
	"fmt"
)

// ArgumentError indicates that a caller supplied invalid arguments: a
// missing stream, a non-mapping options value, a missing id, or a missing
// version on an item that was expected to carry one. ArgumentErrors are
// never retried by callers; they indicate a programmer error at the call
// site (spec.md §7).
type ArgumentError struct {
	// Reason describes which argument was invalid and why.
	Reason string
}

// Error implements the error interface.
func (e *ArgumentError) Error() string {
	return "invalid argument: " + e.Reason
}

// newArgumentError constructs an ArgumentError with the given reason.
func newArgumentError(reason string) *ArgumentError {
	return &ArgumentError{Reason: reason}
}

var (
	errNilItem             = newArgumentError("nil item")
	errMissingID           = newArgumentError("missing id")
	errIDTooLong           = newArgumentError("id exceeds maximum length")
	errMissingVersion      = newArgumentError("missing version")
	errEmptyParentVersion  = newArgumentError("empty parent version")
	errMissingCallback     = newArgumentError("missing callback")
	errMissingStream       = newArgumentError("missing stream")
	errNonMappingOptions   = newArgumentError("options must be a mapping")
)

// IdMismatchError indicates that two items claim different logical ids
// during a merge. It is never recoverable.
type IdMismatchError struct {
	// X and Y are the mismatched ids, recorded as strings for diagnostics.
	X, Y string
}

// Error implements the error interface.
func (e *IdMismatchError) Error() string {
	return fmt.Sprintf("id mismatch: %q != %q", e.X, e.Y)
}

// NoLcaFoundError indicates that no lowest common ancestor exists between two
// roots, implying disconnected DAG components. This is a policy decision for
// the caller (e.g. force a new root); the core only reports it verbatim.
type NoLcaFoundError struct {
	RootX, RootY string
}

// Error implements the error interface.
func (e *NoLcaFoundError) Error() string {
	return fmt.Sprintf("no common ancestor found between %q and %q", e.RootX, e.RootY)
}

// LcaUnresolvableError indicates that an LCA version was identified by the
// LCA Finder but could not subsequently be retrieved from the store. This
// indicates that the store has lost an item and requires upstream repair.
type LcaUnresolvableError struct {
	Version     string
	Perspective string
}

// Error implements the error interface.
func (e *LcaUnresolvableError) Error() string {
	return fmt.Sprintf("lca %q unresolvable in perspective %q", e.Version, e.Perspective)
}

// LcaVersionMismatchError indicates that a folded pair of LCA items
// unexpectedly carries mismatched versions. This should not occur given a
// correct LCA Finder and indicates an internal invariant violation.
type LcaVersionMismatchError struct {
	X, Y string
}

// Error implements the error interface.
func (e *LcaVersionMismatchError) Error() string {
	return fmt.Sprintf("lca version mismatch: %q != %q", e.X, e.Y)
}

// MergeConflictError is recoverable: it surfaces the set of attribute names
// that require manual resolution. Callers may present these to a user or
// feed them to an automatic resolver; the Merger requires both of its input
// items to carry a version, so it does not accept a virtual head as a retry
// input.
type MergeConflictError struct {
	// Path is the location within the document at which the conflict
	// occurred (empty for a top-level body conflict).
	Path string
	// Attributes is the sorted list of conflicting attribute names.
	Attributes []string
}

// Error implements the error interface.
func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict on attributes %v", e.Attributes)
}

// StoreIOError wraps an error returned by the backing store, propagated
// verbatim per spec.md §7.
type StoreIOError struct {
	Err error
}

// Error implements the error interface.
func (e *StoreIOError) Error() string {
	return fmt.Sprintf("store i/o error: %v", e.Err)
}

// Unwrap allows errors.Is/errors.As to see through to the underlying store
// error.
func (e *StoreIOError) Unwrap() error {
	return e.Err
}

// WrapStoreError wraps a non-nil store-originated error as a StoreIOError.
// It returns nil if err is nil.
func WrapStoreError(err error) error {
	if err == nil {
		return nil
	}
	var storeErr *StoreIOError
	if errors.As(err, &storeErr) {
		return err
	}
	return &StoreIOError{Err: err}
}
