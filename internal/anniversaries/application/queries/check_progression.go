package queries

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/domain"
	"github.com/raziel-gershoni/calbrew-sub001/internal/hebdate"
)

// ProgressionStatusDTO reports whether an event's window has outgrown its
// high-water mark.
type ProgressionStatusDTO struct {
	EventID          uuid.UUID
	CurrentYear      int
	WindowStart      int
	WindowEnd        int
	LastSyncedYear   int
	NeedsUpdate      bool
	YearsNeedingSync []int
}

// CheckProgressionQuery contains the parameters for a progression check.
type CheckProgressionQuery struct {
	EventID uuid.UUID
	UserID  uuid.UUID
}

// CheckProgressionHandler handles the CheckProgressionQuery. The check is
// mark-based and cheap; the sync command re-derives missing years from
// occurrence rows.
type CheckProgressionHandler struct {
	eventRepo domain.EventRepository
	now       func() time.Time
}

// NewCheckProgressionHandler creates a new CheckProgressionHandler.
func NewCheckProgressionHandler(eventRepo domain.EventRepository) *CheckProgressionHandler {
	return &CheckProgressionHandler{eventRepo: eventRepo, now: time.Now}
}

// Handle executes the CheckProgressionQuery. An absent or foreign event
// yields a nil status without an error.
func (h *CheckProgressionHandler) Handle(ctx context.Context, query CheckProgressionQuery) (*ProgressionStatusDTO, error) {
	event, err := h.eventRepo.FindByID(ctx, query.EventID)
	if err != nil {
		return nil, err
	}
	if event == nil || !event.BelongsTo(query.UserID) {
		return nil, nil
	}

	currentYear := hebdate.CurrentYear(h.now())
	window := domain.ComputeSyncWindow(event.Anchor().Year, currentYear)
	mark := event.LastSyncedYear()

	status := &ProgressionStatusDTO{
		EventID:          event.ID(),
		CurrentYear:      currentYear,
		WindowStart:      window.Start,
		WindowEnd:        window.End,
		LastSyncedYear:   mark,
		YearsNeedingSync: []int{},
	}

	if mark >= window.End {
		return status, nil
	}
	status.NeedsUpdate = true

	from := window.Start
	if mark+1 > from {
		from = mark + 1
	}
	for y := from; y <= window.End; y++ {
		status.YearsNeedingSync = append(status.YearsNeedingSync, y)
	}
	return status, nil
}
