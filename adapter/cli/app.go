package cli

import (
	"github.com/google/uuid"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/application/commands"
	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/application/queries"
	calendarApp "github.com/raziel-gershoni/calbrew-sub001/internal/calendar/application"
)

// App holds the CLI application dependencies.
type App struct {
	// Command handlers
	CreateEventHandler            *commands.CreateEventHandler
	UpdateEventHandler            *commands.UpdateEventHandler
	DeleteEventHandler            *commands.DeleteEventHandler
	SyncNewYearsHandler           *commands.SyncNewYearsHandler
	ProcessUserProgressionHandler *commands.ProcessUserProgressionHandler

	// Query handlers
	ListEventsHandler       *queries.ListEventsHandler
	GetEventHandler         *queries.GetEventHandler
	CheckProgressionHandler *queries.CheckProgressionHandler
	ListSyncRunsHandler     *queries.ListSyncRunsHandler

	// Calendar access
	ProviderRegistry *calendarApp.ProviderRegistry
	BindingResolver  *calendarApp.BindingResolver

	// Current user (configured per environment)
	CurrentUserID uuid.UUID
}

// NewApp creates the CLI application dependency set.
func NewApp(
	createEvent *commands.CreateEventHandler,
	updateEvent *commands.UpdateEventHandler,
	deleteEvent *commands.DeleteEventHandler,
	syncEvent *commands.SyncNewYearsHandler,
	syncUser *commands.ProcessUserProgressionHandler,
	listEvents *queries.ListEventsHandler,
	getEvent *queries.GetEventHandler,
	checkProgression *queries.CheckProgressionHandler,
	listSyncRuns *queries.ListSyncRunsHandler,
	registry *calendarApp.ProviderRegistry,
	resolver *calendarApp.BindingResolver,
) *App {
	return &App{
		CreateEventHandler:            createEvent,
		UpdateEventHandler:            updateEvent,
		DeleteEventHandler:            deleteEvent,
		SyncNewYearsHandler:           syncEvent,
		ProcessUserProgressionHandler: syncUser,
		ListEventsHandler:             listEvents,
		GetEventHandler:               getEvent,
		CheckProgressionHandler:       checkProgression,
		ListSyncRunsHandler:           listSyncRuns,
		ProviderRegistry:              registry,
		BindingResolver:               resolver,
	}
}

// SetCurrentUserID sets the user all commands act as.
func (a *App) SetCurrentUserID(userID uuid.UUID) {
	a.CurrentUserID = userID
}

var app *App

// SetApp sets the CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the CLI application instance.
func GetApp() *App {
	return app
}
