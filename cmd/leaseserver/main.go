package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aebdigital/wens-app-sub000/internal/api"
	"github.com/aebdigital/wens-app-sub000/internal/config"
	"github.com/aebdigital/wens-app-sub000/internal/identity"
	"github.com/aebdigital/wens-app-sub000/internal/lease"
	"github.com/aebdigital/wens-app-sub000/internal/obs"
	"github.com/aebdigital/wens-app-sub000/internal/storage"
)

func main() {
	// Cancel context on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := obs.NewLogger("leaseserver")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load")
	}

	db, err := storage.Open(ctx, storage.Config{
		Path:         cfg.DBPath,
		BusyTimeout:  cfg.DBBusyTimeout,
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("db open")
	}
	defer db.Close()

	metrics := obs.NewMetrics()
	store := storage.NewLeaseStore(db)

	// Remote callers prove liveness through POST refresh; a server-side
	// heartbeat would keep leases alive after the caller's tab is gone.
	mgr := lease.NewManager(store, identity.ContextProvider{}, logger, metrics, lease.Config{
		ExpiryWindow:           cfg.ExpiryWindow,
		HeartbeatInterval:      cfg.HeartbeatInterval,
		StoreTimeout:           cfg.StoreTimeout,
		DisableLocalHeartbeats: true,
	})
	defer mgr.Close()

	apiServer := api.NewServer(mgr, logger)

	// Hygiene sweep for documents nobody is polling.
	mon := lease.NewExpiryMonitor(store, logger, metrics, cfg.ExpiryWindow, cfg.SweepInterval)

	mux := http.NewServeMux()
	mux.Handle("/", apiServer.Handler())
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		mon.Run(ctx) // exits when ctx is cancelled
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info().Str("addr", cfg.Addr).Str("db", cfg.DBPath).Msg("leaseserver up")
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}

	wg.Wait()
	logger.Info().Msg("leaseserver stopped")
}
