// leaseload simulates many users opening the same document at once: each
// client acquires, waits for its turn at queue position 1 while
// heartbeating, "edits" for a while, then releases. Useful for eyeballing
// queue fairness and expiry behavior against a running leaseserver.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/aebdigital/wens-app-sub000/pkg/leaseclient"
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:8080", "leaseserver base URL")
		docID     = flag.String("doc", "proj-1", "document id")
		docType   = flag.String("type", "spis", "document type")
		clients   = flag.Int("clients", 10, "number of concurrent editors")
		duration  = flag.Duration("duration", 30*time.Second, "test duration")
		editTime  = flag.Duration("edit", 500*time.Millisecond, "time spent editing while holding")
		pollEvery = flag.Duration("poll", 200*time.Millisecond, "status poll interval while waiting")
		heartbeat = flag.Duration("heartbeat", 2*time.Second, "heartbeat interval")
		crashRate = flag.Float64("crashrate", 0.05, "probability a holder vanishes without releasing")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	var (
		acquires  int64
		grants    int64
		queuedIn  int64
		releases  int64
		crashes   int64
		errCount  int64
		waitNanos int64
	)

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *clients; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()

			holder := leaseclient.Holder{
				ID:   uuid.NewString(),
				Name: fmt.Sprintf("editor-%d", i),
			}
			c := leaseclient.New(*baseURL, holder, &http.Client{Timeout: 10 * time.Second})

			for ctx.Err() == nil {
				info, err := c.Acquire(ctx, *docType, *docID)
				if err != nil {
					atomic.AddInt64(&errCount, 1)
					sleep(ctx, *pollEvery)
					continue
				}
				atomic.AddInt64(&acquires, 1)
				if !info.IsOwnLock {
					atomic.AddInt64(&queuedIn, 1)
				}

				// Keep the queue entry alive while waiting for position 1.
				hbCtx, hbCancel := context.WithCancel(ctx)
				hbErrs := c.StartHeartbeat(hbCtx, *docType, *docID, leaseclient.HeartbeatOptions{Interval: *heartbeat})
				go func() {
					for range hbErrs {
						atomic.AddInt64(&errCount, 1)
					}
				}()

				waitStart := time.Now()
				for !info.IsOwnLock && ctx.Err() == nil {
					sleep(ctx, *pollEvery)
					info, err = c.Status(ctx, *docType, *docID)
					if err != nil {
						atomic.AddInt64(&errCount, 1)
					}
				}

				if info.IsOwnLock {
					atomic.AddInt64(&grants, 1)
					atomic.AddInt64(&waitNanos, int64(time.Since(waitStart)))

					sleep(ctx, *editTime)

					if rand.Float64() < *crashRate {
						// Simulated crash: stop heartbeating, never release.
						// The server reclaims the lease after the expiry
						// window and promotes the next waiter.
						atomic.AddInt64(&crashes, 1)
						hbCancel()
						continue
					}
				}

				hbCancel()
				if err := c.Release(context.Background(), *docType, *docID); err != nil {
					atomic.AddInt64(&errCount, 1)
				} else {
					atomic.AddInt64(&releases, 1)
				}

				sleep(ctx, 50*time.Millisecond)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	fmt.Println("=== Document Lease Contention Test ===")
	fmt.Printf("duration: %s, clients: %d, document: %s/%s\n", elapsed, *clients, *docType, *docID)
	fmt.Printf("acquires:        %d\n", acquires)
	fmt.Printf("queued_entries:  %d\n", queuedIn)
	fmt.Printf("grants:          %d\n", grants)
	fmt.Printf("releases:        %d\n", releases)
	fmt.Printf("simulated_crash: %d\n", crashes)
	fmt.Printf("errors:          %d\n", errCount)
	if grants > 0 {
		fmt.Printf("avg_wait:        %s\n", time.Duration(waitNanos/grants))
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
