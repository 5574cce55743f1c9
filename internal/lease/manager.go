// Package lease implements the document edit lease: one holder at a time
// may edit a given (documentID, documentType), everyone else waits in a
// FIFO queue kept alive by heartbeats and reclaimed on heartbeat silence.
package lease

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aebdigital/wens-app-sub000/internal/identity"
	"github.com/aebdigital/wens-app-sub000/internal/obs"
)

// Manager is the public lease surface: Acquire, Release, Refresh,
// GetLockInfo, CheckLockStatus. One instance owns its heartbeat timers and
// a per-document mutex, so concurrent calls from the same process for the
// same document serialize instead of interleaving their read-then-write
// sequences.
type Manager struct {
	store   Store
	ids     identity.Provider
	log     zerolog.Logger
	metrics *obs.Metrics
	cfg     Config
	now     func() time.Time

	hb *heartbeats

	mu   sync.Mutex
	keys map[string]*keyLock
}

func NewManager(store Store, ids identity.Provider, log zerolog.Logger, metrics *obs.Metrics, cfg Config) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		store:   store,
		ids:     ids,
		log:     log,
		metrics: metrics,
		cfg:     cfg,
		now:     time.Now,
		hb:      newHeartbeats(cfg.HeartbeatInterval),
		keys:    make(map[string]*keyLock),
	}
}

// Close stops every heartbeat timer owned by this manager and refuses new
// ones. Held leases are left to expire; callers wanting a clean handover
// release first.
func (m *Manager) Close() {
	m.hb.stopAll()
}

// Acquire enters the caller into the document's queue, or refreshes its
// existing entry. The returned Info is computed from a fresh post-mutation
// read: IsOwnLock is true iff the caller holds position 1 after the
// operation, which only happens immediately when the queue was empty.
func (m *Manager) Acquire(ctx context.Context, documentID, documentType string) (Info, error) {
	start := time.Now()
	caller, err := m.ids.Caller(ctx)
	if err != nil {
		m.countAcquire("error")
		return Info{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	unlock := m.lockKey(documentID, documentType)
	defer unlock()

	now := m.now()
	m.sweep(ctx, documentID, documentType, now)

	records, err := m.list(ctx, documentID, documentType)
	if err != nil {
		m.countAcquire("error")
		return Info{}, err
	}

	result := "queued"
	if holderIndex(records, caller.ID) >= 0 {
		// Re-acquire by the same caller is a refresh, not a new entry.
		result = "refresh"
		if err := m.touch(ctx, documentID, documentType, caller.ID, now); err != nil {
			m.countAcquire("error")
			return Info{}, err
		}
	} else {
		rec := Record{
			DocumentID:    documentID,
			DocumentType:  documentType,
			HolderID:      caller.ID,
			HolderName:    caller.Name,
			AcquiredAt:    now,
			LastHeartbeat: now,
			QueuePosition: tailPosition(records),
		}
		cctx, cancel := m.storeCtx(ctx)
		err = m.store.Insert(cctx, rec)
		cancel()
		switch {
		case errors.Is(err, ErrConflict):
			// Another thread of this caller registered between our read
			// and insert; fall back to the refresh path.
			result = "refresh"
			if err := m.touch(ctx, documentID, documentType, caller.ID, now); err != nil {
				m.countAcquire("error")
				return Info{}, err
			}
		case err != nil:
			m.countAcquire("error")
			return Info{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
	}

	records, err = m.list(ctx, documentID, documentType)
	if err != nil {
		m.countAcquire("error")
		return Info{}, err
	}
	m.reconcile(ctx, documentID, documentType, records)

	info := deriveInfo(records, caller.ID)
	if info.IsOwnLock && result == "queued" {
		result = "granted"
	}

	if !m.cfg.DisableLocalHeartbeats {
		m.startHeartbeat(documentID, documentType, caller)
	}

	m.countAcquire(result)
	if m.metrics != nil {
		m.metrics.QueueDepth.Observe(float64(len(records)))
		m.metrics.OpLatencyMS.WithLabelValues("acquire").Observe(float64(time.Since(start).Milliseconds()))
	}
	m.log.Info().
		Str("op", "acquire").
		Str("document", documentID).
		Str("type", documentType).
		Str("holder", caller.ID).
		Str("result", result).
		Bool("own_lock", info.IsOwnLock).
		Int("queue_position", info.QueuePosition).
		Int64("latency_ms", time.Since(start).Milliseconds()).
		Msg("lease acquire")

	return info, nil
}

// Release drops the caller's queue entry and renumbers the survivors. The
// local heartbeat timer is stopped first and unconditionally, even when the
// store delete fails, so a failed release never leaves a timer beating for
// a lease the UI believes is gone. Releasing an already-vanished record is
// a silent no-op.
func (m *Manager) Release(ctx context.Context, documentID, documentType string) error {
	start := time.Now()
	caller, err := m.ids.Caller(ctx)
	if err != nil {
		m.countRelease("error")
		return fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	m.hb.stop(hbKey(documentID, documentType, caller.ID))

	unlock := m.lockKey(documentID, documentType)
	defer unlock()

	cctx, cancel := m.storeCtx(ctx)
	err = m.store.Delete(cctx, documentID, documentType, caller.ID)
	cancel()
	if err != nil && !errors.Is(err, ErrNotFound) {
		m.countRelease("error")
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	m.sweep(ctx, documentID, documentType, m.now())
	if records, err := m.list(ctx, documentID, documentType); err == nil {
		m.reconcile(ctx, documentID, documentType, records)
	}

	m.countRelease("success")
	if m.metrics != nil {
		m.metrics.OpLatencyMS.WithLabelValues("release").Observe(float64(time.Since(start).Milliseconds()))
	}
	m.log.Info().
		Str("op", "release").
		Str("document", documentID).
		Str("type", documentType).
		Str("holder", caller.ID).
		Int64("latency_ms", time.Since(start).Milliseconds()).
		Msg("lease released")

	return nil
}

// Refresh is the heartbeat: it proves the caller is still alive, then
// renumbers the queue so the caller is promoted when records ahead of it
// expired since the last beat. Refreshing a record that was already
// reclaimed is a no-op, not an error.
func (m *Manager) Refresh(ctx context.Context, documentID, documentType string) error {
	caller, err := m.ids.Caller(ctx)
	if err != nil {
		m.countRefresh("error")
		return fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return m.refreshAs(ctx, documentID, documentType, caller)
}

func (m *Manager) refreshAs(ctx context.Context, documentID, documentType string, caller identity.Caller) error {
	start := time.Now()

	unlock := m.lockKey(documentID, documentType)
	defer unlock()

	now := m.now()
	m.sweep(ctx, documentID, documentType, now)

	if err := m.touch(ctx, documentID, documentType, caller.ID, now); err != nil {
		m.countRefresh("error")
		return err
	}

	if records, err := m.list(ctx, documentID, documentType); err == nil {
		m.reconcile(ctx, documentID, documentType, records)
	}

	m.countRefresh("success")
	if m.metrics != nil {
		m.metrics.OpLatencyMS.WithLabelValues("refresh").Observe(float64(time.Since(start).Milliseconds()))
	}
	m.log.Debug().
		Str("op", "refresh").
		Str("document", documentID).
		Str("type", documentType).
		Str("holder", caller.ID).
		Int64("latency_ms", time.Since(start).Milliseconds()).
		Msg("lease refreshed")

	return nil
}

// GetLockInfo reports the document's lease state, or nil when nobody holds
// or waits for it.
func (m *Manager) GetLockInfo(ctx context.Context, documentID, documentType string) (*Info, error) {
	caller, err := m.ids.Caller(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	unlock := m.lockKey(documentID, documentType)
	defer unlock()

	m.sweep(ctx, documentID, documentType, m.now())

	records, err := m.list(ctx, documentID, documentType)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	m.reconcile(ctx, documentID, documentType, records)

	info := deriveInfo(records, caller.ID)
	return &info, nil
}

// CheckLockStatus is GetLockInfo for call sites that always want a concrete
// status object: an unlocked document yields IsLocked=false instead of nil.
func (m *Manager) CheckLockStatus(ctx context.Context, documentID, documentType string) (Info, error) {
	info, err := m.GetLockInfo(ctx, documentID, documentType)
	if err != nil {
		return Info{}, err
	}
	if info == nil {
		return Info{IsLocked: false, QueuePosition: 1}, nil
	}
	return *info, nil
}

// --- internals ---

func (m *Manager) startHeartbeat(documentID, documentType string, caller identity.Caller) {
	// The scheduler refuses starts after Close, so a racing Acquire cannot
	// register a timer behind the shutdown.
	m.hb.start(hbKey(documentID, documentType, caller.ID), func(ctx context.Context) {
		// A missed beat is retried on the next tick; persistent failure
		// simply lets the lease expire.
		if err := m.refreshAs(ctx, documentID, documentType, caller); err != nil {
			m.log.Warn().
				Str("op", "heartbeat").
				Str("document", documentID).
				Str("type", documentType).
				Str("holder", caller.ID).
				Err(err).
				Msg("heartbeat refresh failed")
		}
	})
}

// touch bumps the caller's LastHeartbeat. A vanished record is success: the
// store treats the update as a no-op and the caller re-enters the queue on
// its next acquire.
func (m *Manager) touch(ctx context.Context, documentID, documentType, holderID string, now time.Time) error {
	cctx, cancel := m.storeCtx(ctx)
	defer cancel()

	hb := now
	err := m.store.UpdateFields(cctx, documentID, documentType, holderID, Fields{LastHeartbeat: &hb})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

func (m *Manager) list(ctx context.Context, documentID, documentType string) ([]Record, error) {
	cctx, cancel := m.storeCtx(ctx)
	defer cancel()

	records, err := m.store.List(cctx, documentID, documentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return records, nil
}

func (m *Manager) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.cfg.StoreTimeout)
}

// keyLock is one per-document mutex plus the number of operations holding
// or waiting for it, so the map entry can be dropped once nobody needs it.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// lockKey serializes operations on one document within this process. The
// map entry lives only while operations hold or wait on it: a waiter counts
// itself in before blocking, so an entry is never pruned out from under one.
func (m *Manager) lockKey(documentID, documentType string) func() {
	key := documentType + "/" + documentID

	m.mu.Lock()
	kl, ok := m.keys[key]
	if !ok {
		kl = &keyLock{}
		m.keys[key] = kl
	}
	kl.refs++
	m.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()

		m.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(m.keys, key)
		}
		m.mu.Unlock()
	}
}

func (m *Manager) countAcquire(result string) {
	if m.metrics != nil {
		m.metrics.AcquireTotal.WithLabelValues(result).Inc()
	}
}

func (m *Manager) countRelease(result string) {
	if m.metrics != nil {
		m.metrics.ReleaseTotal.WithLabelValues(result).Inc()
	}
}

func (m *Manager) countRefresh(result string) {
	if m.metrics != nil {
		m.metrics.RefreshTotal.WithLabelValues(result).Inc()
	}
}

func hbKey(documentID, documentType, holderID string) string {
	return documentType + "/" + documentID + "/" + holderID
}

func holderIndex(records []Record, holderID string) int {
	for i, r := range records {
		if r.HolderID == holderID {
			return i
		}
	}
	return -1
}

// tailPosition computes where a new entrant goes: one past the highest
// surviving position. Gaps from prior deletes are closed by the reconcile
// that follows the insert.
func tailPosition(records []Record) int {
	max := 0
	for _, r := range records {
		if r.QueuePosition > max {
			max = r.QueuePosition
		}
	}
	return max + 1
}

// deriveInfo builds the caller-facing view from records sorted by position.
func deriveInfo(records []Record, callerID string) Info {
	if len(records) == 0 {
		return Info{IsLocked: false, QueuePosition: 1}
	}

	head := records[0]
	info := Info{
		IsLocked:     true,
		LockedBy:     head.HolderID,
		LockedByName: head.HolderName,
		LockedAt:     head.AcquiredAt,
	}

	if i := holderIndex(records, callerID); i >= 0 {
		info.QueuePosition = i + 1
		info.IsOwnLock = i == 0
	} else {
		info.QueuePosition = len(records) + 1
	}
	return info
}
