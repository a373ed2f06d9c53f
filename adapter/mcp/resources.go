package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/application/queries"
)

// RegisterResources registers MCP resources that expose calbrew data.
func RegisterResources(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}
	app := deps.App

	srv.Resource("calbrew://events").
		Name("Events").
		Description("All anniversary events for the current user").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if app == nil || app.ListEventsHandler == nil {
				return nil, fmt.Errorf("event listing requires database connection")
			}

			events, err := app.ListEventsHandler.Handle(ctx, queries.ListEventsQuery{UserID: app.CurrentUserID})
			if err != nil {
				return nil, err
			}

			return jsonResource(uri, events)
		})

	srv.Resource("calbrew://sync/runs").
		Name("Sync runs").
		Description("Recent account-wide sync runs, newest first").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if app == nil || app.ListSyncRunsHandler == nil {
				return nil, fmt.Errorf("sync history requires database connection")
			}

			runs, err := app.ListSyncRunsHandler.Handle(ctx, queries.ListSyncRunsQuery{
				UserID: app.CurrentUserID,
				Limit:  20,
			})
			if err != nil {
				return nil, err
			}

			return jsonResource(uri, runs)
		})

	return nil
}

func jsonResource(uri string, payload any) (*mcp.ResourceContent, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.ResourceContent{
		URI:      uri,
		MimeType: "application/json",
		Text:     string(data),
	}, nil
}
