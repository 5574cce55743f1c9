package leaseclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testHolder() Holder {
	return Holder{ID: "user-a", Name: "Alice"}
}

func TestAcquireSendsIdentityAndDecodesInfo(t *testing.T) {
	var gotPath, gotID, gotName string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		gotID = r.Header.Get("X-Holder-ID")
		gotName = r.Header.Get("X-Holder-Name")
		_ = json.NewEncoder(w).Encode(LeaseInfo{
			IsLocked:      true,
			LockedBy:      "user-a",
			LockedByName:  "Alice",
			IsOwnLock:     true,
			QueuePosition: 1,
		})
	}))
	defer srv.Close()

	c := New(srv.URL, testHolder(), nil)
	info, err := c.Acquire(context.Background(), "spis", "proj-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if gotPath != "POST /v1/documents/spis/proj-1/acquire" {
		t.Fatalf("unexpected request: %s", gotPath)
	}
	if gotID != "user-a" || gotName != "Alice" {
		t.Fatalf("identity headers not sent: id=%q name=%q", gotID, gotName)
	}
	if !info.IsOwnLock || info.QueuePosition != 1 {
		t.Fatalf("unexpected lease info: %+v", info)
	}
}

func TestStatusUsesGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/documents/spis/proj-1" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(LeaseInfo{QueuePosition: 1})
	}))
	defer srv.Close()

	c := New(srv.URL, testHolder(), nil)
	info, err := c.Status(context.Background(), "spis", "proj-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if info.IsLocked {
		t.Fatalf("expected unlocked, got %+v", info)
	}
}

func TestStatusCodeMapping(t *testing.T) {
	cases := []struct {
		code int
		want error
	}{
		{http.StatusUnauthorized, ErrUnauthenticated},
		{http.StatusServiceUnavailable, ErrStoreUnavailable},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tc.code)
		}))
		c := New(srv.URL, testHolder(), nil)
		err := c.Release(context.Background(), "spis", "proj-1")
		srv.Close()
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.code, tc.want, err)
		}
	}
}

func TestUnexpectedStatusCarriesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "lease manager shut down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, testHolder(), nil)
	err := c.Refresh(context.Background(), "spis", "proj-1")

	var ue *UnexpectedStatusError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnexpectedStatusError, got %v", err)
	}
	if ue.Code != http.StatusInternalServerError || ue.Body != "lease manager shut down" {
		t.Fatalf("unexpected error detail: %+v", ue)
	}
}

func TestHeartbeatRefreshesUntilCancel(t *testing.T) {
	var refreshes int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&refreshes, 1)
	}))
	defer srv.Close()

	c := New(srv.URL, testHolder(), nil)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := c.StartHeartbeat(ctx, "spis", "proj-1", HeartbeatOptions{Interval: 10 * time.Millisecond})

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt64(&refreshes) < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("heartbeat too slow: %d refreshes", atomic.LoadInt64(&refreshes))
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case _, open := <-errCh:
		if open {
			t.Fatal("expected clean close, got an error")
		}
	case <-time.After(time.Second):
		t.Fatal("heartbeat channel never closed after cancel")
	}
}

func TestHeartbeatStopsOnUnauthenticated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "who are you", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, testHolder(), nil)
	errCh := c.StartHeartbeat(context.Background(), "spis", "proj-1", HeartbeatOptions{Interval: 5 * time.Millisecond})

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("expected ErrUnauthenticated, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("heartbeat never reported the auth failure")
	}

	// The loop must have exited, not just reported.
	select {
	case _, open := <-errCh:
		if open {
			t.Fatal("expected channel close after auth failure")
		}
	case <-time.After(time.Second):
		t.Fatal("heartbeat kept running after auth failure")
	}
}

func TestHeartbeatKeepsBeatingThroughTransientErrors(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1)%2 == 1 {
			http.Error(w, "db down", http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, testHolder(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := c.StartHeartbeat(ctx, "spis", "proj-1", HeartbeatOptions{Interval: 5 * time.Millisecond})

	// At least one transient error surfaces...
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrStoreUnavailable) {
			t.Fatalf("expected ErrStoreUnavailable, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("transient error never surfaced")
	}

	// ...and the loop keeps refreshing regardless.
	before := atomic.LoadInt64(&calls)
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt64(&calls) <= before+2 {
		if time.Now().After(deadline) {
			t.Fatal("heartbeat stopped after a transient error")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
