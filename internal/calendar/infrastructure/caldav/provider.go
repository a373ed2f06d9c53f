// Package caldav implements the calendar provider port against CalDAV
// servers (Apple iCloud, Fastmail, Nextcloud, Radicale, etc.).
//
// Collection discovery goes through github.com/emersion/go-webdav/caldav;
// object lifecycle (MKCALENDAR, PUT, DELETE) uses raw HTTP so response
// statuses map onto the shared error taxonomy. CalDAV deployments run with
// a single set of credentials, so the per-call user only scopes logging.
package caldav

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	calendarApp "github.com/raziel-gershoni/calbrew-sub001/internal/calendar/application"
)

// Common CalDAV server URLs.
const (
	AppleCalDAVURL    = "https://caldav.icloud.com"
	FastmailCalDAVURL = "https://caldav.fastmail.com"
)

// Custom properties marking events this service owns.
const (
	PropXCalbrew        = "X-CALBREW"
	PropXCalbrewEventID = "X-CALBREW-EVENT-ID"
)

const (
	productID    = "-//Calbrew//Anniversary Sync//EN"
	maxErrorBody = 4096
)

// Provider talks to a CalDAV server. Calendar IDs are collection paths and
// event IDs are calendar object paths, both relative to the server root.
// It performs no retries itself; callers wrap it in the resilient decorator.
type Provider struct {
	baseURL    string
	username   string
	password   string // App-specific password for Apple
	logger     *slog.Logger
	httpClient *http.Client
}

var _ calendarApp.Provider = (*Provider)(nil)

// NewProvider creates a CalDAV calendar provider.
func NewProvider(baseURL, username, password string, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		username: username,
		password: password,
		logger:   logger,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &basicAuthTransport{
				username: username,
				password: password,
				base:     http.DefaultTransport,
			},
		},
	}
}

// ListCalendars returns the calendars in the account's calendar home set.
func (p *Provider) ListCalendars(ctx context.Context, userID uuid.UUID) ([]calendarApp.Calendar, error) {
	client, err := p.davClient()
	if err != nil {
		return nil, err
	}

	homeSet, err := p.findHomeSet(ctx, client)
	if err != nil {
		return nil, err
	}

	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendars: %w", err)
	}

	calendars := make([]calendarApp.Calendar, 0, len(cals))
	for i, cal := range cals {
		calendars = append(calendars, calendarApp.Calendar{
			ID:      cal.Path,
			Name:    cal.Name,
			Primary: i == 0, // First calendar is usually the default
		})
	}
	return calendars, nil
}

// CreateCalendar makes a new calendar collection in the home set and
// returns its path.
func (p *Provider) CreateCalendar(ctx context.Context, userID uuid.UUID, name string) (string, error) {
	client, err := p.davClient()
	if err != nil {
		return "", err
	}

	homeSet, err := p.findHomeSet(ctx, client)
	if err != nil {
		return "", err
	}

	calPath := strings.TrimSuffix(homeSet, "/") + "/" + calendarSlug(name) + "/"
	if err := p.mkCalendar(ctx, calPath, name); err != nil {
		return "", err
	}

	p.logger.Info("created caldav calendar",
		slog.String("user_id", userID.String()),
		slog.String("path", calPath),
		slog.String("name", name),
	)
	return calPath, nil
}

// CalendarExists reports whether the collection is still present in the
// home set. A vanished collection is (false, nil), not an error.
func (p *Provider) CalendarExists(ctx context.Context, userID uuid.UUID, calendarID string) (bool, error) {
	client, err := p.davClient()
	if err != nil {
		return false, err
	}

	homeSet, err := p.findHomeSet(ctx, client)
	if err != nil {
		return false, err
	}

	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return false, fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range cals {
		if samePath(cal.Path, calendarID) {
			return true, nil
		}
	}
	return false, nil
}

// InsertEvent puts a new all-day calendar object and returns its path.
func (p *Provider) InsertEvent(ctx context.Context, userID uuid.UUID, calendarID string, payload calendarApp.EventPayload) (string, error) {
	uid := uuid.New().String()
	objPath := eventPath(calendarID, uid)

	body, err := encodeCalendar(toICalendar(uid, payload))
	if err != nil {
		return "", fmt.Errorf("failed to encode event: %w", err)
	}

	if err := p.putObject(ctx, objPath, body); err != nil {
		return "", err
	}
	return objPath, nil
}

// PatchEvent replaces the calendar object at eventID with the new payload.
// CalDAV has no partial update; a full PUT under the same UID is the
// equivalent operation.
func (p *Provider) PatchEvent(ctx context.Context, userID uuid.UUID, calendarID, eventID string, payload calendarApp.EventPayload) error {
	body, err := encodeCalendar(toICalendar(uidFromPath(eventID), payload))
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return p.putObject(ctx, eventID, body)
}

// DeleteEvent removes the calendar object at eventID.
func (p *Provider) DeleteEvent(ctx context.Context, userID uuid.UUID, calendarID, eventID string) error {
	return p.doObjectRequest(ctx, http.MethodDelete, eventID, "", nil)
}

func (p *Provider) davClient() (*caldav.Client, error) {
	client, err := caldav.NewClient(webdav.HTTPClientWithBasicAuth(p.httpClient, p.username, p.password), p.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	return client, nil
}

func (p *Provider) findHomeSet(ctx context.Context, client *caldav.Client) (string, error) {
	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal: %w", err)
	}

	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}
	return homeSet, nil
}

// mkCalendar issues a raw MKCALENDAR, which go-webdav does not expose.
func (p *Provider) mkCalendar(ctx context.Context, calPath, displayName string) error {
	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(displayName)); err != nil {
		return fmt.Errorf("failed to escape calendar name: %w", err)
	}

	body := fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<C:mkcalendar xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <D:set>
    <D:prop>
      <D:displayname>%s</D:displayname>
    </D:prop>
  </D:set>
</C:mkcalendar>`, escaped.String())

	return p.doObjectRequest(ctx, "MKCALENDAR", calPath, "text/xml; charset=utf-8", []byte(body))
}

func (p *Provider) putObject(ctx context.Context, objPath string, body []byte) error {
	return p.doObjectRequest(ctx, http.MethodPut, objPath, "text/calendar; charset=utf-8", body)
}

func (p *Provider) doObjectRequest(ctx context.Context, method, objPath, contentType string, body []byte) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+objPath, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("caldav request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return responseError(resp)
}

// responseError converts a non-2xx response into a StatusError carrying a
// truncated body and any Retry-After hint.
func responseError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		body = []byte("(failed to read response body)")
	}

	statusErr := calendarApp.NewStatusError(resp.StatusCode, string(body))
	statusErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	return statusErr
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// toICalendar builds a single-VEVENT calendar for an all-day occurrence.
func toICalendar(uid string, payload calendarApp.EventPayload) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, uid)
	event.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	event.Props.SetText(ical.PropSummary, payload.Title)
	if payload.Description != "" {
		event.Props.SetText(ical.PropDescription, payload.Description)
	}

	day := payload.Date.UTC()
	setAllDay(event, ical.PropDateTimeStart, day)
	// The DTEND date is exclusive for all-day events.
	setAllDay(event, ical.PropDateTimeEnd, day.AddDate(0, 0, 1))

	// Custom properties to identify events this service created.
	provenance := ical.NewProp(PropXCalbrew)
	provenance.Value = "1"
	event.Props[PropXCalbrew] = []ical.Prop{*provenance}

	if payload.SourceEventID != "" {
		source := ical.NewProp(PropXCalbrewEventID)
		source.Value = payload.SourceEventID
		event.Props[PropXCalbrewEventID] = []ical.Prop{*source}
	}

	cal.Children = append(cal.Children, event.Component)
	return cal
}

func setAllDay(event *ical.Event, propName string, day time.Time) {
	prop := ical.NewProp(propName)
	prop.Params.Set(ical.ParamValue, "DATE")
	prop.Value = day.Format("20060102")
	event.Props[propName] = []ical.Prop{*prop}
}

func encodeCalendar(cal *ical.Calendar) ([]byte, error) {
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func eventPath(calendarPath, uid string) string {
	return strings.TrimSuffix(calendarPath, "/") + "/" + uid + ".ics"
}

func uidFromPath(objPath string) string {
	return strings.TrimSuffix(path.Base(objPath), ".ics")
}

func samePath(a, b string) bool {
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}

// calendarSlug derives a collection name segment from a display name.
func calendarSlug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "calendar"
	}
	return b.String()
}

type basicAuthTransport struct {
	username string
	password string
	base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	return t.base.RoundTrip(req)
}
