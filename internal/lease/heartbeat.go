package lease

import (
	"context"
	"sync"
	"time"
)

// heartbeats owns one recurring timer per locally held document. The map
// belongs to a single Manager instance and is torn down by Close, so timers
// never leak across test runs or across multiple managers in one process.
type heartbeats struct {
	interval time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

func newHeartbeats(interval time.Duration) *heartbeats {
	return &heartbeats{
		interval: interval,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// start begins a recurring beat for the key. Any pre-existing timer for the
// same key is cancelled first, so repeated acquires never double-start.
// After stopAll, start is a no-op: registering and launching happen under
// one lock, so no timer can slip in behind a shutdown.
func (h *heartbeats) start(key string, beat func(context.Context)) {
	ctx, cancel := context.WithCancel(context.Background())

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		cancel()
		return
	}
	if prev, ok := h.cancels[key]; ok {
		prev()
	}
	h.cancels[key] = cancel
	h.wg.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()

		t := time.NewTicker(h.interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				beat(ctx)
			}
		}
	}()
}

// stop cancels the timer for the key. Idempotent: stopping a key with no
// running timer is a no-op.
func (h *heartbeats) stop(key string) {
	h.mu.Lock()
	cancel, ok := h.cancels[key]
	if ok {
		delete(h.cancels, key)
	}
	h.mu.Unlock()

	if ok {
		cancel()
	}
}

// stopAll cancels every timer, refuses future starts, and waits for the
// beat goroutines to exit.
func (h *heartbeats) stopAll() {
	h.mu.Lock()
	h.stopped = true
	for key, cancel := range h.cancels {
		cancel()
		delete(h.cancels, key)
	}
	h.mu.Unlock()

	h.wg.Wait()
}

func (h *heartbeats) active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.cancels)
}
