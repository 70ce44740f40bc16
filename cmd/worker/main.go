package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/carepoint/portal-api/internal/config"
	"github.com/carepoint/portal-api/internal/docstore/postgres"
	"github.com/carepoint/portal-api/internal/worker"
	"github.com/carepoint/portal-api/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadWorkerConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load worker config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
	})
	log.Info("starting maintenance worker",
		"sweep_interval", cfg.SweepInterval.String(),
		"token_retention", cfg.TokenRetention.String())

	db, err := postgres.Connect(cfg.StoreConfig())
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// No broker: the worker only sweeps, it never serves the change feed.
	store := postgres.NewStore(db, nil, log)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal(err, "failed to ensure document schema")
	}

	cleanup := worker.NewTokenCleanupWorker(store, cfg.TokenRetention, cfg.SweepInterval, log)
	go cleanup.Start(ctx)

	health := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HealthPort),
		Handler: healthMux(db.PingContext),
	}
	go func() {
		log.Info("health endpoint listening", "port", cfg.HealthPort)
		if err := health.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "health endpoint failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := health.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "forced shutdown")
	}
	log.Info("worker stopped")
}

func healthMux(ping func(ctx context.Context) error) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"UP"}`)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"status":"DOWN"}`)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"UP"}`)
	})
	return mux
}
