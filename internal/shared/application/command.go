package application

import "context"

// Command represents an intent to change system state.
type Command interface {
	CommandName() string
}

// CommandHandler executes a single command type.
type CommandHandler[C Command] interface {
	Handle(ctx context.Context, cmd C) error
}
