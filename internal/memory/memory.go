package memory

import (
	"context"
	"time"
)

// Run is one query answered by an agent.
type Run struct {
	ID        string
	Channel   string
	ChatID    string
	Agent     string
	Query     string
	Answer    string
	Failed    bool
	Elapsed   time.Duration
	CreatedAt time.Time
}

// RunEvent is one event published while a run was in flight. Payload is JSON.
type RunEvent struct {
	RunID     string
	Topic     string
	Payload   string
	CreatedAt time.Time
}

// Journal is the persistent record of agent runs.
type Journal interface {
	SaveRun(ctx context.Context, run Run) error
	AppendEvent(ctx context.Context, ev RunEvent) error
	RecentRuns(ctx context.Context, limit int) ([]Run, error)
	Events(ctx context.Context, runID string) ([]RunEvent, error)
	Close() error
}
