package leaseclient

import "time"

// Holder identifies the user the client acts for. The server stamps the
// name into the lease record at acquisition time.
type Holder struct {
	ID   string
	Name string
}

// LeaseInfo is the wire view of a document's lease state.
type LeaseInfo struct {
	IsLocked      bool   `json:"is_locked"`
	LockedBy      string `json:"locked_by,omitempty"`
	LockedByName  string `json:"locked_by_name,omitempty"`
	LockedAtMS    int64  `json:"locked_at_ms,omitempty"`
	IsOwnLock     bool   `json:"is_own_lock"`
	QueuePosition int    `json:"queue_position"`
}

// HeartbeatOptions controls the background refresh loop.
type HeartbeatOptions struct {
	Interval time.Duration // default 30s (a quarter of the server expiry window)
}
