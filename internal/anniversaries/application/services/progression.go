package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/domain"
	calendarApp "github.com/raziel-gershoni/calbrew-sub001/internal/calendar/application"
	calendarDomain "github.com/raziel-gershoni/calbrew-sub001/internal/calendar/domain"
	"github.com/raziel-gershoni/calbrew-sub001/internal/hebdate"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/apperror"
	sharedApplication "github.com/raziel-gershoni/calbrew-sub001/internal/shared/application"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/lock"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/outbox"
)

// syncLockTTL bounds how long a crashed holder can block an event's sync.
const syncLockTTL = 5 * time.Minute

// SyncOutcome reports one event's progression sync.
type SyncOutcome struct {
	EventID     uuid.UUID
	YearsSynced []int
	FailedYears []int
	Errors      []string
}

// ProgressionSyncer materializes the missing window years for one event.
// Create and explicit sync both run through it, so they derive identical
// windows and share the same locking discipline.
type ProgressionSyncer struct {
	events       domain.EventRepository
	occurrences  domain.OccurrenceRepository
	outboxRepo   outbox.Repository
	resolver     *calendarApp.BindingResolver
	registry     *calendarApp.ProviderRegistry
	materializer *OccurrenceMaterializer
	locks        lock.Locker
	uow          sharedApplication.UnitOfWork
	logger       *slog.Logger
	now          func() time.Time
}

// NewProgressionSyncer creates a progression syncer.
func NewProgressionSyncer(
	events domain.EventRepository,
	occurrences domain.OccurrenceRepository,
	outboxRepo outbox.Repository,
	resolver *calendarApp.BindingResolver,
	registry *calendarApp.ProviderRegistry,
	materializer *OccurrenceMaterializer,
	locks lock.Locker,
	uow sharedApplication.UnitOfWork,
	logger *slog.Logger,
) *ProgressionSyncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressionSyncer{
		events:       events,
		occurrences:  occurrences,
		outboxRepo:   outboxRepo,
		resolver:     resolver,
		registry:     registry,
		materializer: materializer,
		locks:        locks,
		uow:          uow,
		logger:       logger,
		now:          time.Now,
	}
}

// SyncEvent materializes every window year the event's occurrence rows do
// not cover yet. Rows are the authority: the high-water mark only decides
// whether the event is even inspected, never what is missing. Returns the
// years actually synced; when nothing is missing the outcome is an empty
// no-op.
func (s *ProgressionSyncer) SyncEvent(ctx context.Context, event *domain.Event, providerType calendarDomain.ProviderType) (*SyncOutcome, error) {
	release, err := s.locks.Acquire(ctx, lock.EventSyncKey(event.ID()), syncLockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, apperror.New(apperror.KindConflict, "a sync for this event is already running")
		}
		return nil, apperror.Wrap(apperror.KindSync, "failed to acquire sync lock", err)
	}
	defer release(ctx)

	currentYear := hebdate.CurrentYear(s.now())
	window := domain.ComputeSyncWindow(event.Anchor().Year, currentYear)

	existing, err := s.occurrences.YearsByEventID(ctx, event.ID())
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "failed to load occurrence years", err)
	}
	missing := missingYears(window, existing)

	outcome := &SyncOutcome{EventID: event.ID(), YearsSynced: []int{}}
	if len(missing) == 0 {
		return outcome, s.catchUpMark(ctx, event, window)
	}

	calendarID, err := s.resolver.Resolve(ctx, event.UserID(), providerType)
	if err != nil {
		return nil, err
	}
	provider, err := s.registry.Get(providerType)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindCalendar, "calendar provider not configured", err)
	}

	result := s.materializer.Materialize(ctx, provider, event, missing, calendarID)

	// Persist whatever was created, even when some years failed: partial
	// progress is never discarded.
	err = sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		for _, rec := range result.Created {
			occurrence, err := domain.NewOccurrence(event.ID(), rec.Year, rec.GregorianDate, rec.ExternalEventID)
			if err != nil {
				return err
			}
			if err := s.occurrences.Save(txCtx, occurrence); err != nil {
				if errors.Is(err, domain.ErrDuplicateOccurrence) {
					s.logger.Warn("occurrence already materialized",
						"event_id", event.ID(),
						"year", rec.Year,
					)
					continue
				}
				return err
			}
			outcome.YearsSynced = append(outcome.YearsSynced, rec.Year)
		}

		event.RecordMaterialization(calendarID, window.End, outcome.YearsSynced, result.FailedYears)
		if err := s.events.Save(txCtx, event); err != nil {
			return err
		}

		events := event.DomainEvents()
		sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(event.UserID()))
		msgs := make([]*outbox.Message, 0, len(events))
		for _, ev := range events {
			msg, err := outbox.NewMessage(ev)
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		return s.outboxRepo.SaveBatch(txCtx, msgs)
	})
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "failed to persist materialized occurrences", err)
	}
	event.ClearDomainEvents()

	outcome.FailedYears = result.FailedYears
	outcome.Errors = result.Errors

	s.logger.Info("progression sync finished",
		"event_id", event.ID(),
		"window_start", window.Start,
		"window_end", window.End,
		"synced", len(outcome.YearsSynced),
		"failed", len(outcome.FailedYears),
	)
	return outcome, nil
}

// catchUpMark advances a lagging high-water mark when the rows already cover
// the window, so the next progression check can short-circuit.
func (s *ProgressionSyncer) catchUpMark(ctx context.Context, event *domain.Event, window domain.SyncWindow) error {
	if event.LastSyncedYear() >= window.End {
		return nil
	}
	event.AdvanceLastSyncedYear(window.End)
	err := sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		return s.events.Save(txCtx, event)
	})
	if err != nil {
		return apperror.Wrap(apperror.KindInternal, "failed to advance sync mark", err)
	}
	return nil
}

// missingYears returns the window years with no occurrence row, ascending.
func missingYears(window domain.SyncWindow, existing []int) []int {
	present := make(map[int]struct{}, len(existing))
	for _, y := range existing {
		present[y] = struct{}{}
	}

	missing := make([]int, 0, window.Len())
	for _, y := range window.Years() {
		if _, ok := present[y]; !ok {
			missing = append(missing, y)
		}
	}
	return missing
}
