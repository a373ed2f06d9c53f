package mcp

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/application/commands"
	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/application/queries"
)

type eventCreateInput struct {
	Title       string `json:"title" jsonschema:"required"`
	Description string `json:"description,omitempty"`
	AnchorDay   int    `json:"anchor_day" jsonschema:"required"`
	AnchorMonth int    `json:"anchor_month" jsonschema:"required"`
	AnchorYear  int    `json:"anchor_year" jsonschema:"required"`
	Provider    string `json:"provider,omitempty"`
}

type eventIDInput struct {
	EventID string `json:"event_id" jsonschema:"required"`
}

type eventUpdateInput struct {
	EventID     string  `json:"event_id" jsonschema:"required"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Provider    string  `json:"provider,omitempty"`
}

type eventDeleteInput struct {
	EventID  string `json:"event_id" jsonschema:"required"`
	Provider string `json:"provider,omitempty"`
}

func registerEventTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("events.create").
		Description("Create an anniversary event anchored to a Hebrew date (months numbered Nisan=1 through Adar=12, Adar II=13) and sync its occurrences").
		Handler(func(ctx context.Context, input eventCreateInput) (*commands.CreateEventResult, error) {
			if app == nil || app.CreateEventHandler == nil {
				return nil, errors.New("event creation requires database connection")
			}
			if input.Title == "" {
				return nil, errors.New("title is required")
			}

			return app.CreateEventHandler.Handle(ctx, commands.CreateEventCommand{
				UserID:      app.CurrentUserID,
				Title:       input.Title,
				Description: input.Description,
				AnchorDay:   input.AnchorDay,
				AnchorMonth: input.AnchorMonth,
				AnchorYear:  input.AnchorYear,
				Provider:    input.Provider,
			})
		})

	srv.Tool("events.list").
		Description("List the user's anniversary events").
		Handler(func(ctx context.Context, input struct{}) ([]queries.EventSummaryDTO, error) {
			if app == nil || app.ListEventsHandler == nil {
				return nil, errors.New("event listing requires database connection")
			}
			return app.ListEventsHandler.Handle(ctx, queries.ListEventsQuery{UserID: app.CurrentUserID})
		})

	srv.Tool("events.get").
		Description("Get one event with its materialized occurrences").
		Handler(func(ctx context.Context, input eventIDInput) (*queries.EventDetailDTO, error) {
			if app == nil || app.GetEventHandler == nil {
				return nil, errors.New("event lookup requires database connection")
			}
			eventID, err := parseUUID(input.EventID)
			if err != nil {
				return nil, err
			}

			return app.GetEventHandler.Handle(ctx, queries.GetEventQuery{
				EventID: eventID,
				UserID:  app.CurrentUserID,
			})
		})

	srv.Tool("events.update").
		Description("Update an event's title or description and patch the synced calendar entries").
		Handler(func(ctx context.Context, input eventUpdateInput) (*commands.UpdateEventResult, error) {
			if app == nil || app.UpdateEventHandler == nil {
				return nil, errors.New("event update requires database connection")
			}
			eventID, err := parseUUID(input.EventID)
			if err != nil {
				return nil, err
			}
			if input.Title == nil && input.Description == nil {
				return nil, errors.New("nothing to update: set title or description")
			}

			// The handler replaces both fields; fill the omitted one from
			// the current state.
			current, err := app.GetEventHandler.Handle(ctx, queries.GetEventQuery{
				EventID: eventID,
				UserID:  app.CurrentUserID,
			})
			if err != nil {
				return nil, err
			}

			cmd := commands.UpdateEventCommand{
				UserID:      app.CurrentUserID,
				EventID:     eventID,
				Title:       current.Title,
				Description: current.Description,
				Provider:    input.Provider,
			}
			if input.Title != nil {
				cmd.Title = *input.Title
			}
			if input.Description != nil {
				cmd.Description = *input.Description
			}

			return app.UpdateEventHandler.Handle(ctx, cmd)
		})

	srv.Tool("events.delete").
		Description("Delete an event, its occurrences, and best-effort the synced calendar entries").
		Handler(func(ctx context.Context, input eventDeleteInput) (*commands.DeleteEventResult, error) {
			if app == nil || app.DeleteEventHandler == nil {
				return nil, errors.New("event deletion requires database connection")
			}
			eventID, err := parseUUID(input.EventID)
			if err != nil {
				return nil, err
			}

			return app.DeleteEventHandler.Handle(ctx, commands.DeleteEventCommand{
				UserID:   app.CurrentUserID,
				EventID:  eventID,
				Provider: input.Provider,
			})
		})

	return nil
}
