package lease

import "errors"

var (
	// ErrUnauthenticated is returned when no caller identity is available.
	ErrUnauthenticated = errors.New("lease: caller identity unavailable")

	// ErrConflict is returned by a store insert when a record for the same
	// (document, type, holder) already exists. The manager recovers from it
	// locally by treating the acquire as a refresh.
	ErrConflict = errors.New("lease: record already exists")

	// ErrNotFound is returned by store deletes/updates targeting a record
	// that no longer exists. Callers treat it as success: the desired end
	// state is already in place.
	ErrNotFound = errors.New("lease: record not found")

	// ErrStoreUnavailable wraps transient store I/O failures, including
	// per-call timeouts. It must never be interpreted as lease loss.
	ErrStoreUnavailable = errors.New("lease: store unavailable")
)
