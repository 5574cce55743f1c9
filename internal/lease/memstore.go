package lease

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store implementation. It backs tests and
// single-process embedded use where the SQLite adapter is overkill.
type MemoryStore struct {
	mu   sync.Mutex
	recs map[memKey]Record
}

type memKey struct {
	documentID   string
	documentType string
	holderID     string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[memKey]Record)}
}

func (s *MemoryStore) List(_ context.Context, documentID, documentType string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for k, r := range s.recs {
		if k.documentID == documentID && k.documentType == documentType {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].QueuePosition != out[j].QueuePosition {
			return out[i].QueuePosition < out[j].QueuePosition
		}
		if !out[i].AcquiredAt.Equal(out[j].AcquiredAt) {
			return out[i].AcquiredAt.Before(out[j].AcquiredAt)
		}
		return out[i].HolderID < out[j].HolderID
	})
	return out, nil
}

func (s *MemoryStore) Insert(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := memKey{rec.DocumentID, rec.DocumentType, rec.HolderID}
	if _, ok := s.recs[k]; ok {
		return ErrConflict
	}
	s.recs[k] = rec
	return nil
}

func (s *MemoryStore) UpdateFields(_ context.Context, documentID, documentType, holderID string, fields Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := memKey{documentID, documentType, holderID}
	rec, ok := s.recs[k]
	if !ok {
		return nil
	}
	if fields.LastHeartbeat != nil {
		rec.LastHeartbeat = *fields.LastHeartbeat
	}
	if fields.QueuePosition != nil {
		rec.QueuePosition = *fields.QueuePosition
	}
	s.recs[k] = rec
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, documentID, documentType, holderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.recs, memKey{documentID, documentType, holderID})
	return nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, documentID, documentType string, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, r := range s.recs {
		if k.documentID == documentID && k.documentType == documentType && r.LastHeartbeat.Before(cutoff) {
			delete(s.recs, k)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) DeleteExpiredAll(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, r := range s.recs {
		if r.LastHeartbeat.Before(cutoff) {
			delete(s.recs, k)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CountLive(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, r := range s.recs {
		if !r.LastHeartbeat.Before(cutoff) {
			n++
		}
	}
	return n, nil
}
