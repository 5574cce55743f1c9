package leaseclient

import (
	"context"
	"errors"
	"time"
)

// StartHeartbeat refreshes the holder's queue entry periodically until ctx
// is cancelled. It returns a channel that surfaces transient errors and
// closes on exit.
// Semantics:
// - transient failures (network, ErrStoreUnavailable): reported, loop continues;
//   the lease only dies if failures persist past the server expiry window
// - ErrUnauthenticated: loop stops, the session is gone
// - ctx cancel: stop cleanly
func (c *Client) StartHeartbeat(ctx context.Context, documentType, documentID string, opt HeartbeatOptions) <-chan error {
	errCh := make(chan error, 1)

	if opt.Interval <= 0 {
		opt.Interval = 30 * time.Second
	}

	go func() {
		defer close(errCh)

		t := time.NewTicker(opt.Interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				err := c.Refresh(ctx, documentType, documentID)
				if err == nil {
					continue
				}
				if errors.Is(err, ErrUnauthenticated) {
					select {
					case errCh <- err:
					default:
					}
					return
				}
				// Transient: surface and keep beating.
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return errCh
}
