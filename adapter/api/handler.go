package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/application/commands"
	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/application/queries"
	calendarApp "github.com/raziel-gershoni/calbrew-sub001/internal/calendar/application"
	calendarDomain "github.com/raziel-gershoni/calbrew-sub001/internal/calendar/domain"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/apperror"
)

// dateLayout is the wire format for Gregorian dates. Occurrences are all-day
// entries, so the time of day is never exposed.
const dateLayout = "2006-01-02"

// maxBodyBytes caps request bodies; event payloads are small.
const maxBodyBytes = 1 << 20

// Handler handles anniversary API requests.
type Handler struct {
	createEvent      *commands.CreateEventHandler
	updateEvent      *commands.UpdateEventHandler
	deleteEvent      *commands.DeleteEventHandler
	syncEvent        *commands.SyncNewYearsHandler
	syncUser         *commands.ProcessUserProgressionHandler
	listEvents       *queries.ListEventsHandler
	getEvent         *queries.GetEventHandler
	checkProgression *queries.CheckProgressionHandler
	listSyncRuns     *queries.ListSyncRunsHandler
	registry         *calendarApp.ProviderRegistry
	logger           *slog.Logger
}

// HandlerConfig holds dependencies for the API handler.
type HandlerConfig struct {
	CreateEvent      *commands.CreateEventHandler
	UpdateEvent      *commands.UpdateEventHandler
	DeleteEvent      *commands.DeleteEventHandler
	SyncEvent        *commands.SyncNewYearsHandler
	SyncUser         *commands.ProcessUserProgressionHandler
	ListEvents       *queries.ListEventsHandler
	GetEvent         *queries.GetEventHandler
	CheckProgression *queries.CheckProgressionHandler
	ListSyncRuns     *queries.ListSyncRunsHandler
	Registry         *calendarApp.ProviderRegistry
	Logger           *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		createEvent:      cfg.CreateEvent,
		updateEvent:      cfg.UpdateEvent,
		deleteEvent:      cfg.DeleteEvent,
		syncEvent:        cfg.SyncEvent,
		syncUser:         cfg.SyncUser,
		listEvents:       cfg.ListEvents,
		getEvent:         cfg.GetEvent,
		checkProgression: cfg.CheckProgression,
		listSyncRuns:     cfg.ListSyncRuns,
		registry:         cfg.Registry,
		logger:           cfg.Logger,
	}
}

type createEventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	AnchorDay   int    `json:"anchor_day"`
	AnchorMonth int    `json:"anchor_month"`
	AnchorYear  int    `json:"anchor_year"`
	Provider    string `json:"provider"`
}

type updateEventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Provider    string `json:"provider"`
}

type createEventResponse struct {
	EventID     uuid.UUID `json:"event_id"`
	YearsSynced []int     `json:"years_synced"`
	FailedYears []int     `json:"failed_years,omitempty"`
}

type eventSummaryResponse struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	AnchorDay      int       `json:"anchor_day"`
	AnchorMonth    int       `json:"anchor_month"`
	AnchorYear     int       `json:"anchor_year"`
	HebrewDate     string    `json:"hebrew_date"`
	Recurrence     string    `json:"recurrence"`
	LastSyncedYear int       `json:"last_synced_year"`
	CreatedAt      time.Time `json:"created_at"`
}

type occurrenceResponse struct {
	HebrewYear      int    `json:"hebrew_year"`
	GregorianDate   string `json:"gregorian_date"`
	ExternalEventID string `json:"external_event_id,omitempty"`
}

type eventDetailResponse struct {
	eventSummaryResponse
	UpdatedAt   time.Time            `json:"updated_at"`
	Occurrences []occurrenceResponse `json:"occurrences"`
}

type updateEventResponse struct {
	EventID            uuid.UUID `json:"event_id"`
	OccurrencesUpdated int       `json:"occurrences_updated"`
	OccurrencesFailed  int       `json:"occurrences_failed"`
	Errors             []string  `json:"errors,omitempty"`
}

type deleteEventResponse struct {
	EventID            uuid.UUID `json:"event_id"`
	OccurrencesDeleted int       `json:"occurrences_deleted"`
	RemoteDeleted      int       `json:"remote_deleted"`
	RemoteFailed       int       `json:"remote_failed"`
}

type progressionResponse struct {
	EventID          uuid.UUID `json:"event_id"`
	CurrentYear      int       `json:"current_year"`
	WindowStart      int       `json:"window_start"`
	WindowEnd        int       `json:"window_end"`
	LastSyncedYear   int       `json:"last_synced_year"`
	NeedsUpdate      bool      `json:"needs_update"`
	YearsNeedingSync []int     `json:"years_needing_sync"`
}

type syncEventResponse struct {
	EventID     uuid.UUID `json:"event_id"`
	YearsSynced []int     `json:"years_synced"`
	FailedYears []int     `json:"failed_years,omitempty"`
	Errors      []string  `json:"errors,omitempty"`
}

type syncUserResponse struct {
	RunID         uuid.UUID `json:"run_id"`
	Processed     int       `json:"processed"`
	NeedingUpdate int       `json:"needing_update"`
	Updated       int       `json:"updated"`
	Failed        int       `json:"failed"`
	SyncedYears   []int     `json:"synced_years,omitempty"`
	FailedYears   []int     `json:"failed_years,omitempty"`
	Errors        []string  `json:"errors,omitempty"`
	DurationMS    int64     `json:"duration_ms"`
}

type syncRunResponse struct {
	ID            uuid.UUID `json:"id"`
	Trigger       string    `json:"trigger"`
	Processed     int       `json:"processed"`
	NeedingUpdate int       `json:"needing_update"`
	Updated       int       `json:"updated"`
	Failed        int       `json:"failed"`
	SyncedYears   []int     `json:"synced_years,omitempty"`
	FailedYears   []int     `json:"failed_years,omitempty"`
	Errors        []string  `json:"errors,omitempty"`
	DurationMS    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

type calendarResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Primary bool   `json:"primary"`
}

// CreateEvent handles POST /api/v1/events
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	var req createEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	result, err := h.createEvent.Handle(r.Context(), commands.CreateEventCommand{
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		AnchorDay:   req.AnchorDay,
		AnchorMonth: req.AnchorMonth,
		AnchorYear:  req.AnchorYear,
		Provider:    req.Provider,
	})
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	resp := createEventResponse{
		EventID:     result.EventID,
		YearsSynced: result.YearsSynced,
		FailedYears: result.FailedYears,
	}
	writeSuccessMessage(w, http.StatusCreated, resp, result.SyncWarning)
}

// ListEvents handles GET /api/v1/events
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	events, err := h.listEvents.Handle(r.Context(), queries.ListEventsQuery{UserID: userID})
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	resp := make([]eventSummaryResponse, len(events))
	for i, ev := range events {
		resp[i] = toEventSummaryResponse(ev)
	}
	writeSuccess(w, http.StatusOK, resp)
}

// GetEvent handles GET /api/v1/events/{id}
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	eventID, err := eventIDFromRequest(r)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	detail, err := h.getEvent.Handle(r.Context(), queries.GetEventQuery{EventID: eventID, UserID: userID})
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	resp := eventDetailResponse{
		eventSummaryResponse: toEventSummaryResponse(detail.EventSummaryDTO),
		UpdatedAt:            detail.UpdatedAt,
		Occurrences:          make([]occurrenceResponse, len(detail.Occurrences)),
	}
	for i, occ := range detail.Occurrences {
		resp.Occurrences[i] = occurrenceResponse{
			HebrewYear:      occ.HebrewYear,
			GregorianDate:   occ.GregorianDate.Format(dateLayout),
			ExternalEventID: occ.ExternalEventID,
		}
	}
	writeSuccess(w, http.StatusOK, resp)
}

// UpdateEvent handles PUT /api/v1/events/{id}
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	eventID, err := eventIDFromRequest(r)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	var req updateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	result, err := h.updateEvent.Handle(r.Context(), commands.UpdateEventCommand{
		UserID:      userID,
		EventID:     eventID,
		Title:       req.Title,
		Description: req.Description,
		Provider:    req.Provider,
	})
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	resp := updateEventResponse{
		EventID:            result.EventID,
		OccurrencesUpdated: result.OccurrencesUpdated,
		OccurrencesFailed:  result.OccurrencesFailed,
		Errors:             result.Errors,
	}
	writeSuccess(w, http.StatusOK, resp)
}

// DeleteEvent handles DELETE /api/v1/events/{id}
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	eventID, err := eventIDFromRequest(r)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	result, err := h.deleteEvent.Handle(r.Context(), commands.DeleteEventCommand{
		UserID:   userID,
		EventID:  eventID,
		Provider: r.URL.Query().Get("provider"),
	})
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	resp := deleteEventResponse{
		EventID:            result.EventID,
		OccurrencesDeleted: result.OccurrencesDeleted,
		RemoteDeleted:      result.RemoteDeleted,
		RemoteFailed:       result.RemoteFailed,
	}
	writeSuccessMessage(w, http.StatusOK, resp, result.Warning)
}

// GetProgression handles GET /api/v1/events/{id}/progression
func (h *Handler) GetProgression(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	eventID, err := eventIDFromRequest(r)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	status, err := h.checkProgression.Handle(r.Context(), queries.CheckProgressionQuery{EventID: eventID, UserID: userID})
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	if status == nil {
		writeFailure(w, h.logger, apperror.New(apperror.KindNotFound, "event not found"))
		return
	}

	resp := progressionResponse{
		EventID:          status.EventID,
		CurrentYear:      status.CurrentYear,
		WindowStart:      status.WindowStart,
		WindowEnd:        status.WindowEnd,
		LastSyncedYear:   status.LastSyncedYear,
		NeedsUpdate:      status.NeedsUpdate,
		YearsNeedingSync: status.YearsNeedingSync,
	}
	writeSuccess(w, http.StatusOK, resp)
}

// SyncEvent handles POST /api/v1/events/{id}/sync
func (h *Handler) SyncEvent(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	eventID, err := eventIDFromRequest(r)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	result, err := h.syncEvent.Handle(r.Context(), commands.SyncNewYearsCommand{
		UserID:   userID,
		EventID:  eventID,
		Provider: r.URL.Query().Get("provider"),
	})
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	resp := syncEventResponse{
		EventID:     result.EventID,
		YearsSynced: result.YearsSynced,
		FailedYears: result.FailedYears,
		Errors:      result.Errors,
	}
	writeSuccess(w, http.StatusOK, resp)
}

// SyncUser handles POST /api/v1/sync
func (h *Handler) SyncUser(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	result, err := h.syncUser.Handle(r.Context(), commands.ProcessUserProgressionCommand{
		UserID:   userID,
		Provider: r.URL.Query().Get("provider"),
		Trigger:  "api",
	})
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	resp := syncUserResponse{
		RunID:         result.RunID,
		Processed:     result.Processed,
		NeedingUpdate: result.NeedingUpdate,
		Updated:       result.Updated,
		Failed:        result.Failed,
		SyncedYears:   result.SyncedYears,
		FailedYears:   result.FailedYears,
		Errors:        result.Errors,
		DurationMS:    result.Duration.Milliseconds(),
	}
	writeSuccess(w, http.StatusOK, resp)
}

// ListSyncRuns handles GET /api/v1/sync/runs
func (h *Handler) ListSyncRuns(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	runs, err := h.listSyncRuns.Handle(r.Context(), queries.ListSyncRunsQuery{
		UserID: userID,
		Limit:  parseIntParam(r, "limit", 0),
	})
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	resp := make([]syncRunResponse, len(runs))
	for i, run := range runs {
		resp[i] = syncRunResponse{
			ID:            run.ID,
			Trigger:       run.Trigger,
			Processed:     run.Processed,
			NeedingUpdate: run.NeedingUpdate,
			Updated:       run.Updated,
			Failed:        run.Failed,
			SyncedYears:   run.SyncedYears,
			FailedYears:   run.FailedYears,
			Errors:        run.Errors,
			DurationMS:    run.Duration.Milliseconds(),
			CreatedAt:     run.CreatedAt,
		}
	}
	writeSuccess(w, http.StatusOK, resp)
}

// ListCalendars handles GET /api/v1/calendars
func (h *Handler) ListCalendars(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	providerType := calendarDomain.ProviderGoogle
	if param := r.URL.Query().Get("provider"); param != "" {
		providerType = calendarDomain.ProviderType(param)
		if !providerType.IsValid() {
			writeFailure(w, h.logger, apperror.Newf(apperror.KindValidation, "unsupported calendar provider %q", param))
			return
		}
	}

	provider, err := h.registry.Get(providerType)
	if err != nil {
		writeFailure(w, h.logger, apperror.Wrap(apperror.KindValidation, "calendar provider is not configured", err))
		return
	}

	calendars, err := provider.ListCalendars(r.Context(), userID)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	resp := make([]calendarResponse, len(calendars))
	for i, cal := range calendars {
		resp[i] = calendarResponse{ID: cal.ID, Name: cal.Name, Primary: cal.Primary}
	}
	writeSuccess(w, http.StatusOK, resp)
}

// userIDFromRequest resolves the caller. Identity arrives as an X-User-ID
// header set by the fronting proxy; requests without one are rejected.
func userIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return uuid.Nil, apperror.New(apperror.KindAuth, "missing X-User-ID header")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperror.New(apperror.KindAuth, "invalid X-User-ID header")
	}
	return userID, nil
}

func eventIDFromRequest(r *http.Request) (uuid.UUID, error) {
	eventID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, apperror.New(apperror.KindValidation, "invalid event ID")
	}
	return eventID, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperror.New(apperror.KindValidation, "request body too large")
		}
		return apperror.Wrap(apperror.KindValidation, "invalid JSON body", err)
	}
	return nil
}

func parseIntParam(r *http.Request, name string, defaultValue int) int {
	param := r.URL.Query().Get(name)
	if param == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(param)
	if err != nil {
		return defaultValue
	}
	return value
}

func toEventSummaryResponse(ev queries.EventSummaryDTO) eventSummaryResponse {
	return eventSummaryResponse{
		ID:             ev.ID,
		Title:          ev.Title,
		Description:    ev.Description,
		AnchorDay:      ev.AnchorDay,
		AnchorMonth:    ev.AnchorMonth,
		AnchorYear:     ev.AnchorYear,
		HebrewDate:     ev.HebrewDate,
		Recurrence:     ev.Recurrence,
		LastSyncedYear: ev.LastSyncedYear,
		CreatedAt:      ev.CreatedAt,
	}
}
