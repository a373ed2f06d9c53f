// Package serve holds the long-running server commands. Each subcommand
// builds its own container from the environment, so the servers run
// without the CLI's app wiring.
package serve

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/raziel-gershoni/calbrew-sub001/adapter/api"
	"github.com/raziel-gershoni/calbrew-sub001/internal/app"
	mcpinternal "github.com/raziel-gershoni/calbrew-sub001/internal/mcp"
	"github.com/raziel-gershoni/calbrew-sub001/pkg/config"
	"github.com/raziel-gershoni/calbrew-sub001/pkg/observability"
)

const shutdownTimeout = 10 * time.Second

// Cmd is the serve command group.
var Cmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a calbrew server",
}

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := observability.LoggerFromEnv()

		container, err := app.NewContainer(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer container.Close()

		if cfg.OutboxProcessorEnabled {
			if err := container.OutboxProcessor.Start(ctx); err != nil {
				return fmt.Errorf("start outbox processor: %w", err)
			}
			defer container.OutboxProcessor.Stop()
		}

		handler := api.NewHandler(api.HandlerConfig{
			CreateEvent:      container.CreateEventHandler,
			UpdateEvent:      container.UpdateEventHandler,
			DeleteEvent:      container.DeleteEventHandler,
			SyncEvent:        container.SyncNewYearsHandler,
			SyncUser:         container.ProcessUserProgressionHandler,
			ListEvents:       container.ListEventsHandler,
			GetEvent:         container.GetEventHandler,
			CheckProgression: container.CheckProgressionHandler,
			ListSyncRuns:     container.ListSyncRunsHandler,
			Registry:         container.ProviderRegistry,
			Logger:           logger,
		})

		serverCfg := api.DefaultServerConfig()
		serverCfg.Addr = cfg.APIAddr
		server := api.NewServer(serverCfg, handler, container.Health, logger)

		errCh := make(chan error, 1)
		go func() { errCh <- server.Start() }()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case err := <-errCh:
			return err
		}
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := observability.LoggerFromEnv()

		container, err := app.NewContainer(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer container.Close()

		userID, err := uuid.Parse(cfg.UserID)
		if err != nil {
			return fmt.Errorf("invalid CALBREW_USER_ID: %w", err)
		}

		cliApp := mcpinternal.NewCLIApp(container, userID)
		err = mcpinternal.Serve(ctx, cfg, cliApp, container.OAuthService, logger)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	Cmd.AddCommand(apiCmd)
	Cmd.AddCommand(mcpCmd)
}
