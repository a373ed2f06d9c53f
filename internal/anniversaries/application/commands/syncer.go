package commands

import (
	"context"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/application/services"
	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/domain"
	calendarDomain "github.com/raziel-gershoni/calbrew-sub001/internal/calendar/domain"
)

// EventSyncer materializes the missing window years for one event.
// Satisfied by services.ProgressionSyncer.
type EventSyncer interface {
	SyncEvent(ctx context.Context, event *domain.Event, providerType calendarDomain.ProviderType) (*services.SyncOutcome, error)
}
