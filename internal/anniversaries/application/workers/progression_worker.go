// Package workers contains the background sweep that advances every user's
// occurrence window as the Hebrew year rolls over.
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/application/commands"
	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/domain"
	"github.com/raziel-gershoni/calbrew-sub001/pkg/observability"
)

// DefaultSweepSchedule runs the sweep nightly at 03:00.
const DefaultSweepSchedule = "0 3 * * *"

// DefaultSweepConcurrency bounds how many users are swept at once.
const DefaultSweepConcurrency = 4

// UserProgressionHandler runs the progression sweep for one user.
type UserProgressionHandler interface {
	Handle(ctx context.Context, cmd commands.ProcessUserProgressionCommand) (*commands.ProcessUserProgressionResult, error)
}

// ProgressionWorkerConfig configures the sweep worker.
type ProgressionWorkerConfig struct {
	Schedule    string
	Concurrency int
	Provider    string
	RunOnStart  bool
}

// DefaultProgressionWorkerConfig returns the default configuration.
func DefaultProgressionWorkerConfig() ProgressionWorkerConfig {
	return ProgressionWorkerConfig{
		Schedule:    DefaultSweepSchedule,
		Concurrency: DefaultSweepConcurrency,
	}
}

// ProgressionWorker periodically runs the user-wide progression sweep for
// every user with events. Per-event locking and audit records live in the
// command handler; the worker only schedules and fans out.
type ProgressionWorker struct {
	eventRepo domain.EventRepository
	syncUser  UserProgressionHandler
	schedule  cron.Schedule
	config    ProgressionWorkerConfig
	logger    *slog.Logger
	metrics   observability.Metrics
	now       func() time.Time
	running   atomic.Bool
	stopCh    chan struct{}
}

// NewProgressionWorker creates a new progression worker. The schedule uses
// the standard five-field cron syntax.
func NewProgressionWorker(
	eventRepo domain.EventRepository,
	syncUser UserProgressionHandler,
	config ProgressionWorkerConfig,
	logger *slog.Logger,
	metrics observability.Metrics,
) (*ProgressionWorker, error) {
	if config.Schedule == "" {
		config.Schedule = DefaultSweepSchedule
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultSweepConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}

	schedule, err := cron.ParseStandard(config.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", config.Schedule, err)
	}

	return &ProgressionWorker{
		eventRepo: eventRepo,
		syncUser:  syncUser,
		schedule:  schedule,
		config:    config,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}, nil
}

// Run starts the worker and blocks until the context is cancelled or Stop()
// is called.
func (w *ProgressionWorker) Run(ctx context.Context) error {
	w.running.Store(true)
	w.logger.Info("progression worker started",
		"schedule", w.config.Schedule,
		"concurrency", w.config.Concurrency,
	)

	if w.config.RunOnStart {
		w.runSweep(ctx)
	}

	for {
		next := w.schedule.Next(w.now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			w.running.Store(false)
			w.logger.Info("progression worker stopped (context cancelled)")
			return ctx.Err()
		case <-w.stopCh:
			timer.Stop()
			w.running.Store(false)
			w.logger.Info("progression worker stopped (stop signal)")
			return nil
		case <-timer.C:
			w.runSweep(ctx)
		}
	}
}

// Stop signals the worker to stop gracefully.
func (w *ProgressionWorker) Stop() {
	if w.running.Load() {
		close(w.stopCh)
	}
}

// IsRunning reports whether the worker loop is active.
func (w *ProgressionWorker) IsRunning() bool {
	return w.running.Load()
}

// runSweep processes every user once. A user's failure never blocks the
// others; the per-user audit trail is the sync_runs table.
func (w *ProgressionWorker) runSweep(ctx context.Context) {
	timer := observability.StartTimer("progression_sweep").
		WithLogger(w.logger).
		WithMetrics(w.metrics)

	userIDs, err := w.eventRepo.ListUserIDs(ctx)
	if err != nil {
		w.logger.Error("failed to list users for sweep", "error", err)
		timer.StopWithError(err)
		return
	}
	if len(userIDs) == 0 {
		w.logger.Debug("no users to sweep")
		timer.Stop()
		return
	}

	var updated, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.config.Concurrency)
	for _, userID := range userIDs {
		g.Go(func() error {
			u, f := w.sweepUser(gctx, userID)
			updated.Add(int64(u))
			failed.Add(int64(f))
			return nil
		})
	}
	_ = g.Wait()

	timer.Stop()
	w.logger.Info("progression sweep completed",
		"users", len(userIDs),
		"events_updated", updated.Load(),
		"events_failed", failed.Load(),
	)
}

func (w *ProgressionWorker) sweepUser(ctx context.Context, userID uuid.UUID) (updated, failed int) {
	result, err := w.syncUser.Handle(ctx, commands.ProcessUserProgressionCommand{
		UserID:   userID,
		Provider: w.config.Provider,
		Trigger:  string(domain.TriggerWorker),
	})
	if err != nil {
		w.logger.Error("user sweep failed", "user_id", userID, "error", err)
		return 0, 0
	}

	w.metrics.Counter(observability.MetricSyncRuns, 1)
	if result.Failed > 0 {
		w.metrics.Counter(observability.MetricSyncEventsFailed, int64(result.Failed))
	}
	if len(result.FailedYears) > 0 {
		w.metrics.Counter(observability.MetricSyncYearsFailed, int64(len(result.FailedYears)))
	}

	if result.NeedingUpdate > 0 {
		w.logger.Info("user swept",
			"user_id", userID,
			"processed", result.Processed,
			"needing_update", result.NeedingUpdate,
			"updated", result.Updated,
			"failed", result.Failed,
		)
	}
	return result.Updated, result.Failed
}
