package mcp

import (
	"github.com/google/uuid"

	"github.com/raziel-gershoni/calbrew-sub001/adapter/cli"
	"github.com/raziel-gershoni/calbrew-sub001/internal/app"
)

// NewCLIApp creates a CLI application instance backed by the provided container.
func NewCLIApp(container *app.Container, currentUser uuid.UUID) *cli.App {
	cliApp := cli.NewApp(
		container.CreateEventHandler,
		container.UpdateEventHandler,
		container.DeleteEventHandler,
		container.SyncNewYearsHandler,
		container.ProcessUserProgressionHandler,
		container.ListEventsHandler,
		container.GetEventHandler,
		container.CheckProgressionHandler,
		container.ListSyncRunsHandler,
		container.ProviderRegistry,
		container.BindingResolver,
	)

	cliApp.SetCurrentUserID(currentUser)
	return cliApp
}
