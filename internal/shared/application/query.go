package application

import "context"

// Query represents a read of system state.
type Query interface {
	QueryName() string
}

// QueryHandler answers a single query type.
type QueryHandler[Q Query, R any] interface {
	Handle(ctx context.Context, query Q) (R, error)
}
