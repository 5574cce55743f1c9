package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aebdigital/wens-app-sub000/internal/identity"
	"github.com/aebdigital/wens-app-sub000/internal/lease"
)

// Identity headers the UI gateway forwards with every request.
const (
	headerHolderID   = "X-Holder-ID"
	headerHolderName = "X-Holder-Name"
)

type Server struct {
	mgr *lease.Manager
	log zerolog.Logger
	mux *http.ServeMux
}

type contextKey string

const requestIDKey contextKey = "req_id"

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withCaller stashes the caller identity from the request headers into the
// context. Requests without a holder ID pass through unauthenticated and
// fail inside the manager.
func withCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(headerHolderID); id != "" {
			ctx := identity.WithCaller(r.Context(), identity.Caller{
				ID:   id,
				Name: r.Header.Get(headerHolderName),
			})
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

func NewServer(mgr *lease.Manager, log zerolog.Logger) *Server {
	s := &Server{mgr: mgr, log: log, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return withRequestID(withCaller(s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Document lease endpoints (simple path parsing to avoid extra router deps)
	s.mux.HandleFunc("/v1/documents/", s.handleDocuments)
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	// Expected:
	// GET  /v1/documents/{type}/{id}          -> status
	// POST /v1/documents/{type}/{id}/acquire
	// POST /v1/documents/{type}/{id}/refresh
	// POST /v1/documents/{type}/{id}/release
	path := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	path = strings.Trim(path, "/")

	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		writeErr(w, http.StatusBadRequest, "document type and id required")
		return
	}
	docType, docID := parts[0], parts[1]
	action := ""
	if len(parts) > 2 {
		action = parts[2]
	}
	if len(parts) > 3 {
		writeErr(w, http.StatusNotFound, "invalid path")
		return
	}

	switch r.Method {
	case http.MethodGet:
		if action != "" {
			writeErr(w, http.StatusNotFound, "invalid path")
			return
		}
		s.handleStatus(w, r, docID, docType)

	case http.MethodPost:
		switch action {
		case "acquire":
			s.handleAcquire(w, r, docID, docType)
		case "refresh":
			s.handleRefresh(w, r, docID, docType)
		case "release":
			s.handleRelease(w, r, docID, docType)
		default:
			writeErr(w, http.StatusNotFound, "unknown action")
		}

	default:
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// --- Handlers ---

type leaseInfoResp struct {
	IsLocked      bool   `json:"is_locked"`
	LockedBy      string `json:"locked_by,omitempty"`
	LockedByName  string `json:"locked_by_name,omitempty"`
	LockedAtMS    int64  `json:"locked_at_ms,omitempty"`
	IsOwnLock     bool   `json:"is_own_lock"`
	QueuePosition int    `json:"queue_position"`
}

func toResp(info lease.Info) leaseInfoResp {
	out := leaseInfoResp{
		IsLocked:      info.IsLocked,
		IsOwnLock:     info.IsOwnLock,
		QueuePosition: info.QueuePosition,
	}
	if info.IsLocked {
		out.LockedBy = info.LockedBy
		out.LockedByName = info.LockedByName
		out.LockedAtMS = info.LockedAt.UnixNano() / int64(time.Millisecond)
	}
	return out
}

func (s *Server) handleAcquire(w http.ResponseWriter, r *http.Request, docID, docType string) {
	info, err := s.mgr.Acquire(r.Context(), docID, docType)
	if err != nil {
		s.writeLeaseErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResp(info))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request, docID, docType string) {
	if err := s.mgr.Refresh(r.Context(), docID, docType); err != nil {
		s.writeLeaseErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"refreshed": true})
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request, docID, docType string) {
	if err := s.mgr.Release(r.Context(), docID, docType); err != nil {
		s.writeLeaseErr(w, r, err)
		return
	}
	// Idempotent: releasing an already-gone lease is still a 200.
	writeJSON(w, http.StatusOK, map[string]bool{"released": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, docID, docType string) {
	info, err := s.mgr.CheckLockStatus(r.Context(), docID, docType)
	if err != nil {
		s.writeLeaseErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResp(info))
}

func (s *Server) writeLeaseErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, lease.ErrUnauthenticated):
		writeErr(w, http.StatusUnauthorized, "caller identity required")
	case errors.Is(err, lease.ErrStoreUnavailable):
		// Transient: the UI shows a retry affordance instead of silently
		// granting edit access.
		writeErr(w, http.StatusServiceUnavailable, "lease store unavailable, retry")
	default:
		s.log.Error().
			Str("path", r.URL.Path).
			Err(err).
			Msg("lease operation failed")
		writeErr(w, http.StatusInternalServerError, err.Error())
	}
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
