package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/raziel-gershoni/calbrew-sub001/internal/calendar/domain"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/apperror"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/outbox"
)

// BindingResolver resolves the single external calendar bound to a user,
// creating the remote calendar on first use and replacing the binding when
// the remote calendar was deleted externally.
type BindingResolver struct {
	bindings   domain.CalendarBindingRepository
	registry   *ProviderRegistry
	outboxRepo outbox.Repository
	group      singleflight.Group
	logger     *slog.Logger
}

// NewBindingResolver creates a binding resolver.
func NewBindingResolver(bindings domain.CalendarBindingRepository, registry *ProviderRegistry, outboxRepo outbox.Repository, logger *slog.Logger) *BindingResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &BindingResolver{
		bindings:   bindings,
		registry:   registry,
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// Resolve returns the calendar ID bound to the user, resolving and
// persisting a binding when none is cached. The cached ID is trusted;
// callers that discovered it is stale use ForceResolve instead.
func (r *BindingResolver) Resolve(ctx context.Context, userID uuid.UUID, providerType domain.ProviderType) (string, error) {
	binding, err := r.bindings.FindByUserAndProvider(ctx, userID, providerType)
	if err != nil {
		return "", apperror.Wrap(apperror.KindCalendar, "failed to load calendar binding", err)
	}
	if binding != nil {
		return binding.CalendarID(), nil
	}
	return r.resolveRemote(ctx, userID, providerType)
}

// ForceResolve discards any cached binding state and searches the provider
// account again, creating the calendar if it is gone. Used after a remote
// call answered not-found for the bound calendar.
func (r *BindingResolver) ForceResolve(ctx context.Context, userID uuid.UUID, providerType domain.ProviderType) (string, error) {
	return r.resolveRemote(ctx, userID, providerType)
}

// Lookup returns the persisted binding without resolving one. Deletion flows
// use it to avoid creating a calendar just to empty it.
func (r *BindingResolver) Lookup(ctx context.Context, userID uuid.UUID, providerType domain.ProviderType) (string, bool, error) {
	binding, err := r.bindings.FindByUserAndProvider(ctx, userID, providerType)
	if err != nil {
		return "", false, apperror.Wrap(apperror.KindCalendar, "failed to load calendar binding", err)
	}
	if binding == nil {
		return "", false, nil
	}
	return binding.CalendarID(), true, nil
}

// VerifyExists probes whether the bound calendar is still present. A failed
// probe (other than a clean not-found) reports true so callers err on the
// side of attempting remote cleanup.
func (r *BindingResolver) VerifyExists(ctx context.Context, userID uuid.UUID, providerType domain.ProviderType, calendarID string) bool {
	provider, err := r.registry.Get(providerType)
	if err != nil {
		return false
	}
	exists, err := provider.CalendarExists(ctx, userID, calendarID)
	if err != nil {
		r.logger.Warn("calendar existence probe failed",
			"user_id", userID,
			"calendar_id", calendarID,
			"error", err,
		)
		return true
	}
	return exists
}

// resolveRemote lists the account's calendars, finds or creates the
// well-known calendar, and persists the binding. Concurrent resolutions for
// the same user collapse into one remote round trip.
func (r *BindingResolver) resolveRemote(ctx context.Context, userID uuid.UUID, providerType domain.ProviderType) (string, error) {
	key := fmt.Sprintf("%s/%s", userID, providerType)
	id, err, _ := r.group.Do(key, func() (any, error) {
		provider, err := r.registry.Get(providerType)
		if err != nil {
			return "", apperror.Wrap(apperror.KindCalendar, "calendar provider not configured", err)
		}

		calendars, err := provider.ListCalendars(ctx, userID)
		if err != nil {
			return "", apperror.Wrap(apperror.KindCalendar, "failed to list calendars", err)
		}

		calendarID := ""
		for _, cal := range calendars {
			if cal.Name == WellKnownCalendarName {
				calendarID = cal.ID
				break
			}
		}

		if calendarID == "" {
			calendarID, err = provider.CreateCalendar(ctx, userID, WellKnownCalendarName)
			if err != nil {
				return "", apperror.Wrap(apperror.KindCalendar, "failed to create calendar", err)
			}
			r.logger.Info("created calendar",
				"user_id", userID,
				"provider", providerType,
				"calendar_id", calendarID,
			)
		}

		if err := r.persistBinding(ctx, userID, providerType, calendarID); err != nil {
			return "", err
		}
		return calendarID, nil
	})
	if err != nil {
		return "", err
	}
	return id.(string), nil
}

func (r *BindingResolver) persistBinding(ctx context.Context, userID uuid.UUID, providerType domain.ProviderType, calendarID string) error {
	binding, err := r.bindings.FindByUserAndProvider(ctx, userID, providerType)
	if err != nil {
		return apperror.Wrap(apperror.KindCalendar, "failed to load calendar binding", err)
	}

	if binding == nil {
		binding, err = domain.NewCalendarBinding(userID, providerType, calendarID)
		if err != nil {
			return apperror.Wrap(apperror.KindCalendar, "failed to create calendar binding", err)
		}
	} else if err := binding.Rebind(calendarID); err != nil {
		return apperror.Wrap(apperror.KindCalendar, "failed to rebind calendar", err)
	}

	if err := r.bindings.Save(ctx, binding); err != nil {
		return apperror.Wrap(apperror.KindCalendar, "failed to save calendar binding", err)
	}
	r.publishEvents(ctx, binding)
	return nil
}

// publishEvents hands binding events to the outbox. Resolution happens
// outside any caller transaction, so a publish failure only logs: the
// binding row itself is already durable.
func (r *BindingResolver) publishEvents(ctx context.Context, binding *domain.CalendarBinding) {
	if r.outboxRepo == nil {
		return
	}
	for _, event := range binding.DomainEvents() {
		msg, err := outbox.NewMessage(event)
		if err != nil {
			r.logger.Warn("failed to encode binding event", "error", err)
			continue
		}
		if err := r.outboxRepo.Save(ctx, msg); err != nil {
			r.logger.Warn("failed to enqueue binding event", "error", err)
		}
	}
	binding.ClearDomainEvents()
}
