package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/aebdigital/wens-app-sub000/internal/lease"
)

// LeaseStore implements lease.Store on the shared document_leases table.
type LeaseStore struct {
	db *DB
}

func NewLeaseStore(db *DB) *LeaseStore {
	return &LeaseStore{db: db}
}

func (s *LeaseStore) List(ctx context.Context, documentID, documentType string) ([]lease.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT document_id, document_type, holder_id, holder_name, acquired_at_ns, last_heartbeat_ns, queue_position
FROM document_leases
WHERE document_id = ? AND document_type = ?
ORDER BY queue_position ASC, acquired_at_ns ASC;
`, documentID, documentType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []lease.Record
	for rows.Next() {
		var rec lease.Record
		var acquiredNs, heartbeatNs int64
		if err := rows.Scan(
			&rec.DocumentID,
			&rec.DocumentType,
			&rec.HolderID,
			&rec.HolderName,
			&acquiredNs,
			&heartbeatNs,
			&rec.QueuePosition,
		); err != nil {
			return nil, err
		}
		rec.AcquiredAt = time.Unix(0, acquiredNs)
		rec.LastHeartbeat = time.Unix(0, heartbeatNs)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *LeaseStore) Insert(ctx context.Context, rec lease.Record) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO document_leases(document_id, document_type, holder_id, holder_name, acquired_at_ns, last_heartbeat_ns, queue_position)
VALUES(?, ?, ?, ?, ?, ?, ?);
`,
		rec.DocumentID,
		rec.DocumentType,
		rec.HolderID,
		rec.HolderName,
		rec.AcquiredAt.UnixNano(),
		rec.LastHeartbeat.UnixNano(),
		rec.QueuePosition,
	)
	if isConstraintErr(err) {
		return fmt.Errorf("%w: %s/%s holder %s", lease.ErrConflict, rec.DocumentType, rec.DocumentID, rec.HolderID)
	}
	return err
}

func (s *LeaseStore) UpdateFields(ctx context.Context, documentID, documentType, holderID string, fields lease.Fields) error {
	var sets []string
	var args []any

	if fields.LastHeartbeat != nil {
		sets = append(sets, "last_heartbeat_ns = ?")
		args = append(args, fields.LastHeartbeat.UnixNano())
	}
	if fields.QueuePosition != nil {
		sets = append(sets, "queue_position = ?")
		args = append(args, *fields.QueuePosition)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, documentID, documentType, holderID)

	// Zero rows affected means the record is gone; per contract a no-op.
	_, err := s.db.ExecContext(ctx, `
UPDATE document_leases SET `+strings.Join(sets, ", ")+`
WHERE document_id = ? AND document_type = ? AND holder_id = ?;
`, args...)
	return err
}

func (s *LeaseStore) Delete(ctx context.Context, documentID, documentType, holderID string) error {
	_, err := s.db.ExecContext(ctx, `
DELETE FROM document_leases
WHERE document_id = ? AND document_type = ? AND holder_id = ?;
`, documentID, documentType, holderID)
	return err
}

func (s *LeaseStore) DeleteExpired(ctx context.Context, documentID, documentType string, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
DELETE FROM document_leases
WHERE document_id = ? AND document_type = ? AND last_heartbeat_ns < ?;
`, documentID, documentType, cutoff.UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *LeaseStore) DeleteExpiredAll(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
DELETE FROM document_leases WHERE last_heartbeat_ns < ?;
`, cutoff.UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *LeaseStore) CountLive(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM document_leases WHERE last_heartbeat_ns >= ?;
`, cutoff.UnixNano()).Scan(&n)
	return n, err
}

var _ lease.Store = (*LeaseStore)(nil)

func isConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrConstraint
	}
	return false
}
