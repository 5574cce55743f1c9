package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the leaseserver runtime configuration. Every value has a
// default; overrides come from an optional leaseserver.yaml in the working
// directory or LEASE_-prefixed environment variables (LEASE_ADDR,
// LEASE_EXPIRY_WINDOW, ...).
type Config struct {
	Addr   string
	DBPath string

	ExpiryWindow      time.Duration
	HeartbeatInterval time.Duration
	SweepInterval     time.Duration
	StoreTimeout      time.Duration

	DBBusyTimeout  time.Duration
	DBMaxOpenConns int
	DBMaxIdleConns int
}

func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("addr", ":8080")
	v.SetDefault("db_path", "./leases.db")
	v.SetDefault("expiry_window", "2m")
	v.SetDefault("heartbeat_interval", "30s")
	v.SetDefault("sweep_interval", "30s")
	v.SetDefault("store_timeout", "10s")
	v.SetDefault("db_busy_timeout", "5s")
	v.SetDefault("db_max_open_conns", 20)
	v.SetDefault("db_max_idle_conns", 20)

	v.SetEnvPrefix("LEASE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("leaseserver")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, err
		}
	}

	return Config{
		Addr:              v.GetString("addr"),
		DBPath:            v.GetString("db_path"),
		ExpiryWindow:      v.GetDuration("expiry_window"),
		HeartbeatInterval: v.GetDuration("heartbeat_interval"),
		SweepInterval:     v.GetDuration("sweep_interval"),
		StoreTimeout:      v.GetDuration("store_timeout"),
		DBBusyTimeout:     v.GetDuration("db_busy_timeout"),
		DBMaxOpenConns:    v.GetInt("db_max_open_conns"),
		DBMaxIdleConns:    v.GetInt("db_max_idle_conns"),
	}, nil
}
