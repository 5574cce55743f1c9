package leaseclient

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated means the server rejected the request for lack of a
// holder identity.
var ErrUnauthenticated = errors.New("leaseclient: unauthenticated")

// ErrStoreUnavailable means the server reported a transient store failure;
// retry rather than treating the lease as lost.
var ErrStoreUnavailable = errors.New("leaseclient: lease store unavailable")

type UnexpectedStatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("unexpected status: %s %s -> %d body=%q", e.Method, e.Path, e.Code, e.Body)
}
