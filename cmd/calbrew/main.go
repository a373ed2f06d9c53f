package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/raziel-gershoni/calbrew-sub001/adapter/cli"
	cliAuth "github.com/raziel-gershoni/calbrew-sub001/adapter/cli/auth"
	cliServe "github.com/raziel-gershoni/calbrew-sub001/adapter/cli/serve"
	"github.com/raziel-gershoni/calbrew-sub001/internal/app"
	"github.com/raziel-gershoni/calbrew-sub001/pkg/config"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Warn("failed to load config, using development mode", "error", err)
		cfg = &config.Config{AppEnv: "development"}
	}

	if cfg.IsDevelopment() {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	cli.SetLogger(logger)

	// The local SQLite store needs no services, so a container failure only
	// blocks commands that touch it.
	var cliApp *cli.App
	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		if cfg.IsDevelopment() {
			logger.Warn("failed to initialize container, running in limited mode", "error", err)
			cliApp = nil
		} else {
			logger.Error("failed to initialize container", "error", err)
			os.Exit(1)
		}
	} else {
		defer container.Close()

		if cfg.OutboxProcessorEnabled {
			go container.OutboxProcessor.Start(ctx)
		}

		cliApp = cli.NewApp(
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

		userID, err := uuid.Parse(cfg.UserID)
		if err != nil {
			logger.Error("invalid CALBREW_USER_ID", "error", err)
			os.Exit(1)
		}
		cliApp.SetCurrentUserID(userID)

		if container.OAuthService != nil {
			cliAuth.SetService(container.OAuthService)
		}
	}

	cli.SetApp(cliApp)

	cli.AddCommand(cliAuth.Cmd)
	cli.AddCommand(cliServe.Cmd)

	cli.ExecuteContext(ctx)
}
