package mcp

import (
	"context"

	"github.com/claude/spotter/internal/engine"
	"github.com/claude/spotter/internal/session"
)

// Controller drives the workout for MCP tools. Local wraps an in-process
// engine; HTTPClient reaches a remote one through the REST API.
type Controller interface {
	Do(ctx context.Context, cmd session.Command) (*engine.Snapshot, error)
	Status(ctx context.Context) (*engine.Snapshot, error)
}

// Local is a Controller for an engine in the same process.
type Local struct {
	Engine *engine.Engine
}

var _ Controller = Local{}

func (l Local) Do(_ context.Context, cmd session.Command) (*engine.Snapshot, error) {
	if err := l.Engine.Dispatch(cmd); err != nil {
		return nil, err
	}
	snap := l.Engine.Snapshot()
	return &snap, nil
}

func (l Local) Status(context.Context) (*engine.Snapshot, error) {
	snap := l.Engine.Snapshot()
	return &snap, nil
}
