package mcp

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/application/commands"
	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/application/queries"
	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/domain"
)

type syncEventInput struct {
	EventID  string `json:"event_id" jsonschema:"required"`
	Provider string `json:"provider,omitempty"`
}

type syncUserInput struct {
	Provider string `json:"provider,omitempty"`
}

type syncRunsInput struct {
	Limit int `json:"limit,omitempty"`
}

func registerSyncTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("sync.event").
		Description("Materialize an event's pending Hebrew years onto the calendar").
		Handler(func(ctx context.Context, input syncEventInput) (*commands.SyncNewYearsResult, error) {
			if app == nil || app.SyncNewYearsHandler == nil {
				return nil, errors.New("sync requires database connection")
			}
			eventID, err := parseUUID(input.EventID)
			if err != nil {
				return nil, err
			}

			return app.SyncNewYearsHandler.Handle(ctx, commands.SyncNewYearsCommand{
				UserID:   app.CurrentUserID,
				EventID:  eventID,
				Provider: input.Provider,
			})
		})

	srv.Tool("sync.user").
		Description("Check every event in the account and sync the ones whose window advanced").
		Handler(func(ctx context.Context, input syncUserInput) (*commands.ProcessUserProgressionResult, error) {
			if app == nil || app.ProcessUserProgressionHandler == nil {
				return nil, errors.New("sync requires database connection")
			}

			return app.ProcessUserProgressionHandler.Handle(ctx, commands.ProcessUserProgressionCommand{
				UserID:   app.CurrentUserID,
				Provider: input.Provider,
				Trigger:  string(domain.TriggerMCP),
			})
		})

	srv.Tool("sync.runs").
		Description("List recent sync runs, newest first").
		Handler(func(ctx context.Context, input syncRunsInput) ([]queries.SyncRunDTO, error) {
			if app == nil || app.ListSyncRunsHandler == nil {
				return nil, errors.New("sync history requires database connection")
			}

			return app.ListSyncRunsHandler.Handle(ctx, queries.ListSyncRunsQuery{
				UserID: app.CurrentUserID,
				Limit:  input.Limit,
			})
		})

	srv.Tool("progression.check").
		Description("Check whether an event's rolling window has outgrown its synced years").
		Handler(func(ctx context.Context, input eventIDInput) (*queries.ProgressionStatusDTO, error) {
			if app == nil || app.CheckProgressionHandler == nil {
				return nil, errors.New("progression check requires database connection")
			}
			eventID, err := parseUUID(input.EventID)
			if err != nil {
				return nil, err
			}

			status, err := app.CheckProgressionHandler.Handle(ctx, queries.CheckProgressionQuery{
				EventID: eventID,
				UserID:  app.CurrentUserID,
			})
			if err != nil {
				return nil, err
			}
			if status == nil {
				return nil, errors.New("event not found")
			}
			return status, nil
		})

	return nil
}
