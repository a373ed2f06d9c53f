// Package mcp exposes anniversary management as MCP tools and resources.
// Tools mirror the CLI commands one to one so assistants and humans see
// the same behavior.
package mcp

import (
	"errors"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/raziel-gershoni/calbrew-sub001/adapter/cli"
	identityOAuth "github.com/raziel-gershoni/calbrew-sub001/internal/identity/application/oauth"
)

// ToolDependencies provides handlers and context for MCP tools.
type ToolDependencies struct {
	App         *cli.App
	AuthService *identityOAuth.Service
}

// RegisterCLITools registers MCP tools that mirror CLI functionality.
func RegisterCLITools(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return errors.New("server is required")
	}
	if deps.App == nil {
		return errors.New("app is required")
	}

	if err := registerCoreTools(srv, deps); err != nil {
		return err
	}
	if err := registerEventTools(srv, deps); err != nil {
		return err
	}
	if err := registerSyncTools(srv, deps); err != nil {
		return err
	}
	if err := registerCalendarTools(srv, deps); err != nil {
		return err
	}
	if err := registerAuthTools(srv, deps); err != nil {
		return err
	}

	return nil
}
