package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "./leases.db", cfg.DBPath)
	assert.Equal(t, 2*time.Minute, cfg.ExpiryWindow)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, 10*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 20, cfg.DBMaxOpenConns)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LEASE_ADDR", ":9999")
	t.Setenv("LEASE_EXPIRY_WINDOW", "45s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, 45*time.Second, cfg.ExpiryWindow)
}
