package lease

import (
	"context"
	"time"
)

// sweep purges every lease record of the document whose heartbeat went
// silent for longer than the expiry window. It runs before any read that
// feeds a decision, so a vanished holder never blocks new acquirers. The
// caller must re-List afterward rather than reuse a pre-sweep snapshot.
// Best-effort: failures are logged and the primary operation proceeds.
func (m *Manager) sweep(ctx context.Context, documentID, documentType string, now time.Time) {
	cutoff := now.Add(-m.cfg.ExpiryWindow)

	cctx, cancel := m.storeCtx(ctx)
	defer cancel()

	n, err := m.store.DeleteExpired(cctx, documentID, documentType, cutoff)
	if err != nil {
		m.log.Warn().
			Str("op", "sweep").
			Str("document", documentID).
			Str("type", documentType).
			Err(err).
			Msg("expiry sweep failed")
		return
	}
	if n > 0 {
		if m.metrics != nil {
			m.metrics.ExpiredTotal.Add(float64(n))
		}
		m.log.Info().
			Str("op", "sweep").
			Str("document", documentID).
			Str("type", documentType).
			Int64("reclaimed", n).
			Msg("expired leases reclaimed")
	}
}
