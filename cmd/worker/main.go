// Package main is the entry point for the ledger reconciliation worker.
// It sweeps snapshots against the ledger on an interval and serves
// Prometheus metrics on METRICS_ADDR.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"storeledger/internal/app"
	appctx "storeledger/internal/core/context"
	"storeledger/internal/infrastructure/metrics"
	"storeledger/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := app.NewLogger(cfg)
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(appctx.ForProcess(context.Background(), "worker"))
	defer cancel()

	log.Info("starting ledger reconciliation worker")

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to start", "error", err)
	}
	defer a.Close()

	var server *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(a.Registry))
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			if err := a.Pool.Ping(r.Context()); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("ok"))
		})
		server = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Infow("metrics server starting", "addr", cfg.Metrics.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("metrics server failed", "error", err)
			}
		}()
	}

	reconciler := NewReconciler(a.Stock, a.Reports, a.Metrics, cfg.Worker.AutoRepair)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		reconciler.Run(ctx, cfg.Worker.Interval)
	}()
	go func() {
		defer wg.Done()
		logPoolStats(ctx, a)
	}()

	log.Infow("worker running",
		"interval", cfg.Worker.Interval,
		"auto_repair", cfg.Worker.AutoRepair,
		"lock_backend", cfg.Lock.Backend,
	)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()
	wg.Wait()

	if server != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warnw("metrics server shutdown", "error", err)
		}
	}

	log.Info("worker stopped")
}

func logPoolStats(ctx context.Context, a *app.App) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Pool.LogStats(ctx)
		}
	}
}
