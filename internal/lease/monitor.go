package lease

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aebdigital/wens-app-sub000/internal/obs"
)

// ExpiryMonitor is the server-side hygiene sweep. Correctness does not
// depend on it: every operation sweeps its own document first. The monitor
// exists so a document nobody opens does not stay "locked" in the table
// forever after its holder vanished, and so the live-lease gauge stays
// current.
type ExpiryMonitor struct {
	store    Store
	log      zerolog.Logger
	metrics  *obs.Metrics
	window   time.Duration
	interval time.Duration
	now      func() time.Time
}

func NewExpiryMonitor(store Store, log zerolog.Logger, metrics *obs.Metrics, window, interval time.Duration) *ExpiryMonitor {
	if window <= 0 {
		window = DefaultExpiryWindow
	}
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &ExpiryMonitor{
		store:    store,
		log:      log,
		metrics:  metrics,
		window:   window,
		interval: interval,
		now:      time.Now,
	}
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
func (m *ExpiryMonitor) Run(ctx context.Context) {
	t := time.NewTicker(m.interval)
	defer t.Stop()

	m.sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.sweepOnce(ctx)
		}
	}
}

func (m *ExpiryMonitor) sweepOnce(ctx context.Context) {
	start := time.Now()
	cutoff := m.now().Add(-m.window)

	cleared, err := m.store.DeleteExpiredAll(ctx, cutoff)
	if err == nil && cleared > 0 && m.metrics != nil {
		m.metrics.ExpiredTotal.Add(float64(cleared))
	}

	live, countErr := m.store.CountLive(ctx, cutoff)
	if countErr == nil && m.metrics != nil {
		m.metrics.LeasesLive.Set(float64(live))
	}

	if cleared > 0 || err != nil || countErr != nil {
		ev := m.log.Info()
		if err != nil || countErr != nil {
			ev = m.log.Warn()
		}
		ev.Str("op", "expiry_monitor").
			Int64("cleared", cleared).
			Int64("live", live).
			AnErr("sweep_err", err).
			AnErr("count_err", countErr).
			Int64("latency_ms", time.Since(start).Milliseconds()).
			Msg("global expiry sweep")
	}
}
