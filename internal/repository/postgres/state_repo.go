package postgres

import (
	"context"
	"fmt"

	"github.com/NordCoder/streamcheck/internal/domain/channel"
	"github.com/jackc/pgx/v5"
)

var _ channel.StateRepo = (*StateRepoImpl)(nil)

type StateRepoImpl struct{ db *DB }

func NewStateRepo(db *DB) *StateRepoImpl { return &StateRepoImpl{db: db} }

const (
	qStatesAll = `
SELECT name, url, status, code, updated_at
FROM channel_states;
`
	qStateUpsert = `
INSERT INTO channel_states (name, url, status, code, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (name) DO UPDATE
SET url = EXCLUDED.url,
    status = EXCLUDED.status,
    code = EXCLUDED.code,
    updated_at = EXCLUDED.updated_at;
`
)

func (r *StateRepoImpl) All(ctx context.Context) (map[string]channel.State, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qStatesAll)
	if err != nil {
		return nil, fmt.Errorf("query states: %w", err)
	}
	defer rows.Close()

	out := make(map[string]channel.State)
	for rows.Next() {
		var (
			st     channel.State
			status string
		)
		if err := rows.Scan(&st.Name, &st.URL, &status, &st.Code, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		st.Status = channel.Status(status)
		out[st.Name] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *StateRepoImpl) Upsert(ctx context.Context, states []channel.State) error {
	if len(states) == 0 {
		return nil
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	b := &pgx.Batch{}
	for _, st := range states {
		b.Queue(qStateUpsert, st.Name, st.URL, string(st.Status), st.Code, st.UpdatedAt)
	}
	br := r.db.execQueryer(ctx).SendBatch(ctx, b)
	for range states {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("upsert state: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}
	return nil
}
