package repo

import (
	"context"
	"fmt"

	"github.com/NordCoder/streamcheck/internal/domain/channel"
	"github.com/NordCoder/streamcheck/internal/domain/outbox"
	outboxsvc "github.com/NordCoder/streamcheck/internal/outbox"
	"github.com/NordCoder/streamcheck/internal/report"
	"github.com/NordCoder/streamcheck/internal/repository/postgres"
	"github.com/NordCoder/streamcheck/internal/source"
	"github.com/spf13/afero"
)

type Sources interface {
	LoadAll(ctx context.Context, sources []source.Source) ([]channel.Channel, error)
}

type Prober interface {
	ProbeAll(ctx context.Context, chs []channel.Channel) []channel.Result
}

type Publisher interface {
	Publish(ctx context.Context, r report.Report) error
}

type Recorder interface {
	Record(ctx context.Context, run *channel.Run, results []channel.Result) ([]channel.Change, error)
}

// Files writes the markdown report and, when JSONPath is set, its snapshot.
type Files struct {
	Fs       afero.Fs
	Path     string
	JSONPath string
}

func (f Files) Publish(_ context.Context, r report.Report) error {
	if err := report.WriteFile(f.Fs, f.Path, r); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if f.JSONPath == "" {
		return nil
	}
	if err := report.WriteJSON(f.Fs, f.JSONPath, r); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// History persists a run and turns status flips into outbox messages,
// all inside one transaction.
type History struct {
	Tx      postgres.Transactor
	Runs    channel.RunRepo
	Results channel.ResultRepo
	States  channel.StateRepo
	Outbox  outbox.Repository
}

func (h History) Record(ctx context.Context, run *channel.Run, results []channel.Result) ([]channel.Change, error) {
	var changes []channel.Change
	err := h.Tx.WithTx(ctx, func(ctx context.Context) error {
		if err := h.Runs.Insert(ctx, run); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		if err := h.Results.InsertBatch(ctx, run.ID, results); err != nil {
			return fmt.Errorf("insert results: %w", err)
		}
		prev, err := h.States.All(ctx)
		if err != nil {
			return fmt.Errorf("load states: %w", err)
		}

		changes = channel.Diff(run.ID, prev, results, run.FinishedAt)

		states := make([]channel.State, 0, len(results))
		for _, r := range results {
			states = append(states, channel.State{
				Name:      r.Channel.Name,
				URL:       r.Channel.URL,
				Status:    r.Status,
				Code:      r.Code,
				UpdatedAt: run.FinishedAt,
			})
		}
		if err := h.States.Upsert(ctx, states); err != nil {
			return fmt.Errorf("upsert states: %w", err)
		}

		for _, ch := range changes {
			data, err := outboxsvc.EncodeStatusChanged(ch)
			if err != nil {
				return err
			}
			if err := h.Outbox.Enqueue(ctx, outboxsvc.StatusChangedKey(ch), outbox.KindStatusChanged, data); err != nil {
				return fmt.Errorf("enqueue change %s: %w", ch.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}
