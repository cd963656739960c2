package main

import (
	"context"
	"fmt"
	"time"

	config "github.com/NordCoder/streamcheck/internal/config/streamcheck"
	"github.com/NordCoder/streamcheck/internal/domain/channel"
	domainkafka "github.com/NordCoder/streamcheck/internal/domain/kafka"
	"github.com/NordCoder/streamcheck/internal/obs/retry"
	"github.com/NordCoder/streamcheck/internal/outbox"
	"github.com/NordCoder/streamcheck/internal/report"
	kafkaRepo "github.com/NordCoder/streamcheck/internal/repository/kafka"
	pg "github.com/NordCoder/streamcheck/internal/repository/postgres"
	"github.com/NordCoder/streamcheck/internal/services/checker"
	"github.com/NordCoder/streamcheck/internal/services/checker/repo"
	"github.com/NordCoder/streamcheck/internal/services/prober"
	"github.com/NordCoder/streamcheck/internal/source"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// logEvents stands in for Kafka when it is disabled so the outbox still drains.
type logEvents struct{ log *zap.Logger }

var _ domainkafka.StatusEvents = logEvents{}

func (e logEvents) PublishStatusChanged(_ context.Context, ch channel.Change) error {
	old := "new"
	if ch.Old != nil {
		old = string(*ch.Old)
	}
	e.log.Info("status changed",
		zap.String("channel", ch.Name),
		zap.String("from", old),
		zap.String("to", string(ch.New)),
		zap.Int("code", ch.Code),
	)
	return nil
}

func reportOptions(cfg config.Report) (report.Options, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return report.Options{}, fmt.Errorf("report timezone %q: %w", cfg.Timezone, err)
	}
	return report.Options{Location: loc, Links: reportLinks(cfg), Disclaimer: cfg.Disclaimer}, nil
}

func reportLinks(cfg config.Report) []report.Link {
	out := make([]report.Link, 0, len(cfg.Links))
	for _, l := range cfg.Links {
		out = append(out, report.Link{Title: l.Title, URL: l.URL})
	}
	return out
}

func sources(cfg *config.Config) []source.Source {
	out := make([]source.Source, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		out = append(out, source.Source{Name: s.Name, Location: s.Location})
	}
	return out
}

func newLoader(log *zap.Logger, cfg *config.Config) *source.Loader {
	return source.NewLoader(log, prober.NewHTTPClient(cfg.Probe), afero.NewOsFs(), cfg.Probe.UserAgent)
}

func (a *app) newChecker() (*checker.Usecase, error) {
	opts, err := reportOptions(a.cfg.Report)
	if err != nil {
		return nil, err
	}
	client := prober.NewHTTPClient(a.cfg.Probe)

	var history repo.Recorder
	if a.db != nil {
		history = repo.History{
			Tx:      pg.NewTransactor(a.db, a.log),
			Runs:    pg.NewRunRepo(a.db),
			Results: pg.NewResultRepo(a.db),
			States:  pg.NewStateRepo(a.db),
			Outbox:  pg.NewOutboxRepo(a.db),
		}
	}

	return checker.NewUC(a.log,
		source.NewLoader(a.log, client, afero.NewOsFs(), a.cfg.Probe.UserAgent),
		prober.New(a.log, client, a.cfg.Probe),
		repo.Files{Fs: afero.NewOsFs(), Path: a.cfg.Report.Path, JSONPath: a.cfg.Report.JSONPath},
		history,
		checker.Settings{Sources: sources(a.cfg), Report: opts},
	), nil
}

// newOutbox returns nil when run history is disabled.
func (a *app) newOutbox() *outbox.Runner {
	if a.db == nil {
		return nil
	}
	var events domainkafka.StatusEvents = logEvents{log: a.log}
	if a.producer != nil {
		events = kafkaRepo.NewStatusEventsKafka(a.producer)
	}
	c := a.cfg.Outbox
	return outbox.NewOutboxRunner(a.log, pg.NewOutboxRepo(a.db),
		outbox.MakeGlobalOutboxHandler(events, retry.PublishPolicy(a.log)),
		outbox.Config{Workers: c.Workers, BatchSize: c.BatchSize, WaitTime: c.WaitTime, InProgressTTL: c.InProgressTTL},
	)
}
