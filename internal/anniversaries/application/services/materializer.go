// Package services orchestrates occurrence materialization and window
// progression for anniversary events.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/domain"
	calendarApp "github.com/raziel-gershoni/calbrew-sub001/internal/calendar/application"
	"github.com/raziel-gershoni/calbrew-sub001/internal/hebdate"
)

// OccurrenceRecord describes one remote entry created by a batch.
type OccurrenceRecord struct {
	Year            int
	GregorianDate   time.Time
	ExternalEventID string
}

// MaterializationResult accumulates a batch outcome.
type MaterializationResult struct {
	Created     []OccurrenceRecord
	FailedYears []int
	Errors      []string
}

// OccurrenceMaterializer creates the remote all-day entries for a set of
// Hebrew years. It only talks to the provider; persisting occurrence rows is
// the caller's job, and the caller passes only years that are actually
// missing.
type OccurrenceMaterializer struct {
	logger *slog.Logger
}

// NewOccurrenceMaterializer creates a materializer.
func NewOccurrenceMaterializer(logger *slog.Logger) *OccurrenceMaterializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &OccurrenceMaterializer{logger: logger}
}

// Materialize inserts one entry per year, sequentially. A single year's
// failure is recorded and the loop continues; the batch never aborts.
func (m *OccurrenceMaterializer) Materialize(ctx context.Context, provider calendarApp.Provider, event *domain.Event, years []int, calendarID string) MaterializationResult {
	var result MaterializationResult

	for _, year := range years {
		payload, err := m.PayloadForYear(event, year)
		if err != nil {
			result.FailedYears = append(result.FailedYears, year)
			result.Errors = append(result.Errors, fmt.Sprintf("year %d: %v", year, err))
			m.logger.Warn("cannot compute gregorian date",
				"event_id", event.ID(),
				"year", year,
				"error", err,
			)
			continue
		}

		externalID, err := provider.InsertEvent(ctx, event.UserID(), calendarID, payload)
		if err != nil {
			result.FailedYears = append(result.FailedYears, year)
			result.Errors = append(result.Errors, fmt.Sprintf("year %d: %v", year, err))
			m.logger.Warn("failed to insert occurrence",
				"event_id", event.ID(),
				"year", year,
				"calendar_id", calendarID,
				"error", err,
			)
			continue
		}

		result.Created = append(result.Created, OccurrenceRecord{
			Year:            year,
			GregorianDate:   payload.Date,
			ExternalEventID: externalID,
		})
	}
	return result
}

// PayloadForYear builds the provider payload for the event's occurrence in
// one Hebrew year: ordinal-prefixed title, the Hebrew date it falls on as
// description, and the converted Gregorian date. Update reconciliation uses
// it too, so remote entries always carry the same shape.
func (m *OccurrenceMaterializer) PayloadForYear(event *domain.Event, year int) (calendarApp.EventPayload, error) {
	anchor := event.Anchor()

	date, err := hebdate.ToGregorian(anchor.Day, anchor.Month, year)
	if err != nil {
		return calendarApp.EventPayload{}, err
	}

	description := hebdate.AnniversaryDate(anchor.Day, anchor.Month, year).String()
	if desc := event.Description(); desc != "" {
		description += "\n\n" + desc
	}

	return calendarApp.EventPayload{
		Title:         event.DisplayTitle(year),
		Description:   description,
		Date:          date,
		SourceEventID: event.ID().String(),
	}, nil
}
