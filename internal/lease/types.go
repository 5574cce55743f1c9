package lease

import "time"

// Default timing parameters. ExpiryWindow is the maximum silence before a
// lease is considered abandoned; the heartbeat fires at a quarter of that,
// leaving margin for two missed beats.
const (
	DefaultExpiryWindow      = 2 * time.Minute
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultStoreTimeout      = 10 * time.Second
)

// Record is one row per (document, holder) pair currently contending for
// or holding the edit lease on a document.
type Record struct {
	DocumentID    string
	DocumentType  string
	HolderID      string
	HolderName    string // display-name snapshot taken at acquisition
	AcquiredAt    time.Time
	LastHeartbeat time.Time // sole signal used for expiry
	QueuePosition int       // 1 = current holder, 2 = next in line, ...
}

// Info is the derived, read-only view handed to callers. It is never
// persisted.
type Info struct {
	IsLocked      bool
	LockedBy      string
	LockedByName  string
	LockedAt      time.Time
	IsOwnLock     bool // caller is queue position 1
	QueuePosition int  // caller's own position, or N+1 if not registered
}

// Fields is a partial update of a lease record. Nil members are left
// untouched.
type Fields struct {
	LastHeartbeat *time.Time
	QueuePosition *int
}

// Config carries the manager's timing parameters. Zero values fall back to
// the package defaults.
type Config struct {
	ExpiryWindow      time.Duration
	HeartbeatInterval time.Duration
	StoreTimeout      time.Duration

	// DisableLocalHeartbeats turns off the manager-owned heartbeat timers.
	// Server deployments set this: a remote caller must prove its own
	// liveness by invoking Refresh, otherwise a server-side timer would
	// keep a lease alive after the caller's tab is gone.
	DisableLocalHeartbeats bool
}

func (c Config) withDefaults() Config {
	if c.ExpiryWindow <= 0 {
		c.ExpiryWindow = DefaultExpiryWindow
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = DefaultStoreTimeout
	}
	return c
}
