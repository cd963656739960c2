package postgres

import (
	"context"
	"fmt"

	"github.com/NordCoder/streamcheck/internal/domain/channel"
)

var _ channel.RunRepo = (*RunRepoImpl)(nil)

type RunRepoImpl struct{ db *DB }

func NewRunRepo(db *DB) *RunRepoImpl { return &RunRepoImpl{db: db} }

const (
	qRunInsert = `
INSERT INTO runs (id, started_at, finished_at, total, working, dead)
VALUES ($1, $2, $3, $4, $5, $6);
`
	qRunsLatest = `
SELECT id, started_at, finished_at, total, working, dead
FROM runs
ORDER BY started_at DESC
LIMIT $1;
`
)

func (r *RunRepoImpl) Insert(ctx context.Context, run *channel.Run) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	if _, err := eq.Exec(ctx, qRunInsert,
		run.ID, run.StartedAt, run.FinishedAt, run.Total, run.Working, run.Dead,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (r *RunRepoImpl) Latest(ctx context.Context, limit int) ([]*channel.Run, error) {
	if limit <= 0 {
		limit = 10
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qRunsLatest, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	out := make([]*channel.Run, 0, limit)
	for rows.Next() {
		var rr channel.Run
		if err := rows.Scan(&rr.ID, &rr.StartedAt, &rr.FinishedAt, &rr.Total, &rr.Working, &rr.Dead); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, &rr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
