package lease

import "context"

// positionChange is one queue renumbering the reconciler wants applied.
type positionChange struct {
	holderID string
	position int
}

// planReconcile compresses the queue positions of the given records, which
// must already be sorted by current position, into a dense 1..N sequence.
// It never reorders relative priority; it only closes gaps left by deletes.
// Records already at their target position produce no change.
func planReconcile(records []Record) []positionChange {
	var changes []positionChange
	for i, rec := range records {
		want := i + 1
		if rec.QueuePosition == want {
			continue
		}
		changes = append(changes, positionChange{holderID: rec.HolderID, position: want})
	}
	return changes
}

// reconcile renumbers the surviving records of one document so positions are
// exactly {1..N}. Called after every insert and delete. Write failures are
// logged, not propagated: the next operation on the document reconciles
// again.
func (m *Manager) reconcile(ctx context.Context, documentID, documentType string, records []Record) {
	for _, ch := range planReconcile(records) {
		pos := ch.position
		cctx, cancel := m.storeCtx(ctx)
		err := m.store.UpdateFields(cctx, documentID, documentType, ch.holderID, Fields{QueuePosition: &pos})
		cancel()
		if err != nil {
			m.log.Warn().
				Str("op", "reconcile").
				Str("document", documentID).
				Str("type", documentType).
				Str("holder", ch.holderID).
				Int("position", pos).
				Err(err).
				Msg("queue renumber failed")
		}
	}
}
