package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/raziel-gershoni/calbrew-sub001/internal/app"
	mcpinternal "github.com/raziel-gershoni/calbrew-sub001/internal/mcp"
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
		<-sigCh
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

	userID, err := uuid.Parse(cfg.UserID)
	if err != nil {
		logger.Error("invalid CALBREW_USER_ID", "error", err)
		os.Exit(1)
	}

	cliApp := mcpinternal.NewCLIApp(container, userID)

	if err := mcpinternal.Serve(ctx, cfg, cliApp, container.OAuthService, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
