package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raziel-gershoni/calbrew-sub001/adapter/api"
	"github.com/raziel-gershoni/calbrew-sub001/internal/app"
	"github.com/raziel-gershoni/calbrew-sub001/pkg/config"
	"github.com/raziel-gershoni/calbrew-sub001/pkg/observability"
)

func main() {
	logger := observability.LoggerFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	if cfg.OutboxProcessorEnabled {
		if err := container.OutboxProcessor.Start(ctx); err != nil {
			logger.Error("failed to start outbox processor", "error", err)
			os.Exit(1)
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
	logger.Info("api server started", "addr", cfg.APIAddr)

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
			os.Exit(1)
		}
		logger.Info("api server stopped")
	case err := <-errCh:
		if err != nil {
			logger.Error("api server error", "error", err)
			os.Exit(1)
		}
	}
}
