package channel

import (
	"context"

	"github.com/google/uuid"
)

type RunRepo interface {
	Insert(ctx context.Context, r *Run) error
	Latest(ctx context.Context, limit int) ([]*Run, error)
}

type ResultRepo interface {
	InsertBatch(ctx context.Context, runID uuid.UUID, results []Result) error
	ListByRun(ctx context.Context, runID uuid.UUID) ([]Result, error)
}

type StateRepo interface {
	All(ctx context.Context) (map[string]State, error)
	Upsert(ctx context.Context, states []State) error
}
