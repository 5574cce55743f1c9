package lease

import (
	"context"
	"time"
)

// Store is the contract the persistent lease table has to satisfy. Any
// key-value or relational store keyed by (documentID, documentType,
// holderID) works; no multi-row atomicity is assumed, the manager tolerates
// interleavings by reconciling after every mutation.
type Store interface {
	// List returns all lease records for the document ordered by
	// QueuePosition ascending.
	List(ctx context.Context, documentID, documentType string) ([]Record, error)

	// Insert stores a new record. It fails with ErrConflict when a record
	// for the same (documentID, documentType, holderID) already exists.
	Insert(ctx context.Context, rec Record) error

	// UpdateFields partially updates one record. It is a silent no-op when
	// the record no longer exists.
	UpdateFields(ctx context.Context, documentID, documentType, holderID string, fields Fields) error

	// Delete removes one record. It is a silent no-op when the record is
	// already gone.
	Delete(ctx context.Context, documentID, documentType, holderID string) error

	// DeleteExpired removes every record of the document whose
	// LastHeartbeat is older than cutoff and reports how many went away.
	DeleteExpired(ctx context.Context, documentID, documentType string, cutoff time.Time) (int64, error)

	// DeleteExpiredAll removes expired records across all documents. Used
	// by the background expiry monitor.
	DeleteExpiredAll(ctx context.Context, cutoff time.Time) (int64, error)

	// CountLive reports the number of records with LastHeartbeat at or
	// after cutoff, across all documents.
	CountLive(ctx context.Context, cutoff time.Time) (int64, error)
}
