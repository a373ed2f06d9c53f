package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/mcp-go"

	calendarApp "github.com/raziel-gershoni/calbrew-sub001/internal/calendar/application"
	calendarDomain "github.com/raziel-gershoni/calbrew-sub001/internal/calendar/domain"
)

type calendarsListInput struct {
	Provider string `json:"provider,omitempty"`
}

type calendarEntry struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Primary bool   `json:"primary"`
	Bound   bool   `json:"bound"`
}

func registerCalendarTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("calendars.list").
		Description("List calendars on the provider account; the bound " + calendarApp.WellKnownCalendarName + " calendar receives occurrences").
		Handler(func(ctx context.Context, input calendarsListInput) ([]calendarEntry, error) {
			if app == nil || app.ProviderRegistry == nil {
				return nil, errors.New("calendar listing requires database connection")
			}

			providerType := calendarDomain.ProviderGoogle
			if input.Provider != "" {
				providerType = calendarDomain.ProviderType(strings.ToLower(input.Provider))
				if !providerType.IsValid() {
					return nil, fmt.Errorf("unsupported calendar provider %q", input.Provider)
				}
			}

			provider, err := app.ProviderRegistry.Get(providerType)
			if err != nil {
				return nil, fmt.Errorf("%s is not configured: %w", providerType.DisplayName(), err)
			}

			calendars, err := provider.ListCalendars(ctx, app.CurrentUserID)
			if err != nil {
				return nil, err
			}

			var boundID string
			if app.BindingResolver != nil {
				if id, ok, err := app.BindingResolver.Lookup(ctx, app.CurrentUserID, providerType); err == nil && ok {
					boundID = id
				}
			}

			entries := make([]calendarEntry, len(calendars))
			for i, cal := range calendars {
				entries[i] = calendarEntry{
					ID:      cal.ID,
					Name:    cal.Name,
					Primary: cal.Primary,
					Bound:   cal.ID == boundID,
				}
			}
			return entries, nil
		})

	return nil
}
