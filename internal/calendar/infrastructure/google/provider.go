// Package google implements the calendar provider port against the Google
// Calendar v3 REST API.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	calendarApp "github.com/raziel-gershoni/calbrew-sub001/internal/calendar/application"
)

const defaultBaseURL = "https://www.googleapis.com/calendar/v3"

// eventDateFormat is the all-day date format the API expects.
const eventDateFormat = "2006-01-02"

// Private extended property keys stamped on every entry this service owns.
const (
	provenanceKey   = "calbrew"
	provenanceValue = "1"
	sourceEventKey  = "calbrewEventId"
)

const maxErrorBody = 4096

type tokenSourceProvider interface {
	TokenSource(ctx context.Context, userID uuid.UUID) (oauth2.TokenSource, error)
}

// Provider talks to Google Calendar. It performs no retries itself; callers
// wrap it in the resilient decorator.
type Provider struct {
	oauthService tokenSourceProvider
	logger       *slog.Logger
	baseURL      string
}

// NewProvider creates a Google Calendar provider.
func NewProvider(oauthService tokenSourceProvider, logger *slog.Logger) *Provider {
	return NewProviderWithBaseURL(oauthService, logger, defaultBaseURL)
}

// NewProviderWithBaseURL creates a provider against a custom base URL.
func NewProviderWithBaseURL(oauthService tokenSourceProvider, logger *slog.Logger, baseURL string) *Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		oauthService: oauthService,
		logger:       logger,
		baseURL:      baseURL,
	}
}

func (p *Provider) httpClient(ctx context.Context, userID uuid.UUID) (*http.Client, error) {
	if p.oauthService == nil {
		return nil, fmt.Errorf("oauth service not configured")
	}
	tokenSource, err := p.oauthService.TokenSource(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Timeout: 15 * time.Second,
		Transport: &oauthTransport{
			base:   http.DefaultTransport,
			source: tokenSource,
		},
	}, nil
}

// ListCalendars returns the calendars on the user's account.
func (p *Provider) ListCalendars(ctx context.Context, userID uuid.UUID) ([]calendarApp.Calendar, error) {
	client, err := p.httpClient(ctx, userID)
	if err != nil {
		return nil, err
	}

	listURL := fmt.Sprintf("%s/users/me/calendarList", p.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, responseError(resp)
	}

	var payload struct {
		Items []struct {
			ID      string `json:"id"`
			Summary string `json:"summary"`
			Primary bool   `json:"primary"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	calendars := make([]calendarApp.Calendar, 0, len(payload.Items))
	for _, item := range payload.Items {
		calendars = append(calendars, calendarApp.Calendar{
			ID:      item.ID,
			Name:    item.Summary,
			Primary: item.Primary,
		})
	}
	return calendars, nil
}

// CreateCalendar creates a secondary calendar and returns its ID.
func (p *Provider) CreateCalendar(ctx context.Context, userID uuid.UUID, name string) (string, error) {
	client, err := p.httpClient(ctx, userID)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(map[string]string{"summary": name})
	if err != nil {
		return "", err
	}

	createURL := fmt.Sprintf("%s/calendars", p.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, createURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", responseError(resp)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", err
	}

	p.logger.Info("created google calendar", "user_id", userID, "calendar_id", created.ID)
	return created.ID, nil
}

// CalendarExists probes the calendar by ID. A 404 or 410 answers
// (false, nil); all other failures surface as errors.
func (p *Provider) CalendarExists(ctx context.Context, userID uuid.UUID, calendarID string) (bool, error) {
	client, err := p.httpClient(ctx, userID)
	if err != nil {
		return false, err
	}

	getURL := fmt.Sprintf("%s/calendars/%s", p.baseURL, url.PathEscape(calendarID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, getURL, nil)
	if err != nil {
		return false, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return false, nil
	default:
		return false, responseError(resp)
	}
}

// InsertEvent creates an all-day entry and returns its provider ID.
func (p *Provider) InsertEvent(ctx context.Context, userID uuid.UUID, calendarID string, payload calendarApp.EventPayload) (string, error) {
	client, err := p.httpClient(ctx, userID)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(toGoogleEvent(payload))
	if err != nil {
		return "", err
	}

	insertURL := fmt.Sprintf("%s/calendars/%s/events", p.baseURL, url.PathEscape(calendarID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, insertURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", responseError(resp)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// PatchEvent updates an existing entry in place.
func (p *Provider) PatchEvent(ctx context.Context, userID uuid.UUID, calendarID, eventID string, payload calendarApp.EventPayload) error {
	client, err := p.httpClient(ctx, userID)
	if err != nil {
		return err
	}

	body, err := json.Marshal(toGoogleEvent(payload))
	if err != nil {
		return err
	}

	patchURL := fmt.Sprintf("%s/calendars/%s/events/%s", p.baseURL, url.PathEscape(calendarID), url.PathEscape(eventID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, patchURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return responseError(resp)
	}
	return nil
}

// DeleteEvent removes an entry.
func (p *Provider) DeleteEvent(ctx context.Context, userID uuid.UUID, calendarID, eventID string) error {
	client, err := p.httpClient(ctx, userID)
	if err != nil {
		return err
	}

	deleteURL := fmt.Sprintf("%s/calendars/%s/events/%s", p.baseURL, url.PathEscape(calendarID), url.PathEscape(eventID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, deleteURL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return responseError(resp)
	}
	return nil
}

type googleEvent struct {
	Summary            string `json:"summary"`
	Description        string `json:"description,omitempty"`
	ExtendedProperties struct {
		Private map[string]string `json:"private,omitempty"`
	} `json:"extendedProperties,omitempty"`
	Start googleEventDate `json:"start"`
	End   googleEventDate `json:"end"`
}

type googleEventDate struct {
	Date string `json:"date"`
}

// toGoogleEvent maps a payload onto an all-day API event. The API treats the
// end date as exclusive, so a single-day entry ends the following day.
func toGoogleEvent(payload calendarApp.EventPayload) googleEvent {
	day := payload.Date.UTC()
	event := googleEvent{
		Summary:     payload.Title,
		Description: payload.Description,
		Start:       googleEventDate{Date: day.Format(eventDateFormat)},
		End:         googleEventDate{Date: day.AddDate(0, 0, 1).Format(eventDateFormat)},
	}
	event.ExtendedProperties.Private = map[string]string{
		provenanceKey:  provenanceValue,
		sourceEventKey: payload.SourceEventID,
	}
	return event
}

func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	statusErr := calendarApp.NewStatusError(resp.StatusCode, string(body))
	statusErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	return statusErr
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

type oauthTransport struct {
	base   http.RoundTripper
	source oauth2.TokenSource
}

func (t *oauthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.source.Token()
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	return t.base.RoundTrip(req)
}
