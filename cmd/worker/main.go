package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/application/workers"
	"github.com/raziel-gershoni/calbrew-sub001/internal/app"
	"github.com/raziel-gershoni/calbrew-sub001/pkg/config"
	"github.com/raziel-gershoni/calbrew-sub001/pkg/observability"
)

func main() {
	logger := observability.LoggerFromEnv()

	logger.Info("starting calbrew worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	if cfg.OutboxProcessorEnabled {
		if err := container.OutboxProcessor.Start(ctx); err != nil {
			logger.Error("failed to start outbox processor", "error", err)
			os.Exit(1)
		}
		defer container.OutboxProcessor.Stop()
	}

	worker, err := workers.NewProgressionWorker(
		container.EventRepo,
		container.ProcessUserProgressionHandler,
		workers.ProgressionWorkerConfig{
			Schedule:    cfg.WorkerSyncSchedule,
			Concurrency: cfg.WorkerConcurrency,
			Provider:    cfg.CalendarProvider,
		},
		logger,
		container.Metrics,
	)
	if err != nil {
		logger.Error("failed to create progression worker", "error", err)
		os.Exit(1)
	}

	if cfg.WorkerHealthAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			stats := container.OutboxProcessor.GetStats()
			response := map[string]any{
				"status":            "ok",
				"worker_running":    worker.IsRunning(),
				"outbox_running":    stats.IsRunning,
				"published":         stats.PublishedCount,
				"failed":            stats.FailedCount,
				"dead":              stats.DeadCount,
				"last_processed_at": stats.LastProcessedAt,
				"last_error":        stats.LastError,
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(response)
		})
		mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
			checkCtx, checkCancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer checkCancel()

			health := container.Health.GetOverallHealth(checkCtx)
			w.Header().Set("Content-Type", "application/json")
			if health.Status == observability.HealthStatusUnhealthy {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
			_ = json.NewEncoder(w).Encode(health)
		})

		healthSrv := &http.Server{
			Addr:              cfg.WorkerHealthAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			logger.Info("health server starting", "addr", cfg.WorkerHealthAddr)
			if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server error", "error", err)
			}
		}()

		go func() {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := healthSrv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("health server shutdown error", "error", err)
			}
		}()
	}

	logger.Info("progression worker starting",
		"schedule", cfg.WorkerSyncSchedule,
		"concurrency", cfg.WorkerConcurrency,
	)
	if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("progression worker error", "error", err)
		os.Exit(1)
	}

	logger.Info("worker stopped")
}
