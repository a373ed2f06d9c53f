package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/application/workers"
	internalApp "github.com/raziel-gershoni/calbrew-sub001/internal/app"
	"github.com/raziel-gershoni/calbrew-sub001/pkg/config"
	"github.com/raziel-gershoni/calbrew-sub001/pkg/observability"
)

var workerSweepNow bool

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background sync worker",
	Long: `Run the progression worker that sweeps every account on a schedule
and materializes newly due Hebrew years, plus the outbox relay that
publishes domain events.

The schedule comes from WORKER_SYNC_SCHEDULE (standard cron syntax,
default "0 3 * * *"). Health endpoints listen on WORKER_HEALTH_ADDR.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := observability.LoggerFromEnv()

		container, err := internalApp.NewContainer(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer container.Close()

		if cfg.OutboxProcessorEnabled {
			if err := container.OutboxProcessor.Start(ctx); err != nil {
				return fmt.Errorf("start outbox processor: %w", err)
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
				RunOnStart:  workerSweepNow,
			},
			logger,
			container.Metrics,
		)
		if err != nil {
			return err
		}

		if cfg.WorkerHealthAddr != "" {
			startWorkerHealthServer(ctx, cfg.WorkerHealthAddr, container, worker, logger)
		}

		logger.Info("worker starting",
			"schedule", cfg.WorkerSyncSchedule,
			"concurrency", cfg.WorkerConcurrency,
		)
		if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

// startWorkerHealthServer serves /healthz and /readyz beside the worker so
// orchestrators can probe it. It shuts itself down with the context.
func startWorkerHealthServer(ctx context.Context, addr string, container *internalApp.Container, worker *workers.ProgressionWorker, logger *slog.Logger) {
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
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		health := container.Health.GetOverallHealth(checkCtx)
		w.Header().Set("Content-Type", "application/json")
		if health.Status == observability.HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(health)
	})

	healthSrv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("health server starting", "addr", addr)
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := healthSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("health server shutdown error", "error", err)
		}
	}()
}

func init() {
	workerCmd.Flags().BoolVar(&workerSweepNow, "sweep-now", false, "run one sweep immediately on startup")
	rootCmd.AddCommand(workerCmd)
}
