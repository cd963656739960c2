package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/NordCoder/streamcheck/internal/domain/channel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var _ channel.ResultRepo = (*ResultRepoImpl)(nil)

type ResultRepoImpl struct{ db *DB }

func NewResultRepo(db *DB) *ResultRepoImpl { return &ResultRepoImpl{db: db} }

var resultColumns = []string{
	"run_id", "channel_name", "channel_url", "channel_group", "source",
	"status", "code", "reason", "attempts", "latency_ms", "checked_at",
}

const qResultsByRun = `
SELECT channel_name, channel_url, channel_group, source, status, code, reason, attempts, latency_ms, checked_at
FROM results
WHERE run_id = $1
ORDER BY channel_name;
`

func (r *ResultRepoImpl) InsertBatch(ctx context.Context, runID uuid.UUID, results []channel.Result) error {
	if len(results) == 0 {
		return nil
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows := make([][]any, 0, len(results))
	for _, res := range results {
		rows = append(rows, []any{
			runID,
			res.Channel.Name,
			res.Channel.URL,
			res.Channel.Group,
			res.Channel.Source,
			string(res.Status),
			res.Code,
			res.Reason,
			res.Attempts,
			res.Latency.Milliseconds(),
			res.CheckedAt,
		})
	}

	var err error
	if tx, txErr := extractTx(ctx); txErr == nil {
		_, err = tx.CopyFrom(ctx, pgx.Identifier{"results"}, resultColumns, pgx.CopyFromRows(rows))
	} else {
		_, err = r.db.Pool.CopyFrom(ctx, pgx.Identifier{"results"}, resultColumns, pgx.CopyFromRows(rows))
	}
	if err != nil {
		return fmt.Errorf("copy results: %w", err)
	}
	return nil
}

func (r *ResultRepoImpl) ListByRun(ctx context.Context, runID uuid.UUID) ([]channel.Result, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qResultsByRun, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []channel.Result
	for rows.Next() {
		var (
			res       channel.Result
			status    string
			latencyMs int64
		)
		if err := rows.Scan(
			&res.Channel.Name,
			&res.Channel.URL,
			&res.Channel.Group,
			&res.Channel.Source,
			&status,
			&res.Code,
			&res.Reason,
			&res.Attempts,
			&latencyMs,
			&res.CheckedAt,
		); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		res.Status = channel.Status(status)
		res.Latency = time.Duration(latencyMs) * time.Millisecond
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}
