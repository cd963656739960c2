package checker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/streamcheck/internal/domain/channel"
	"github.com/NordCoder/streamcheck/internal/obs"
	"github.com/NordCoder/streamcheck/internal/report"
	"github.com/NordCoder/streamcheck/internal/services/checker/repo"
	"github.com/NordCoder/streamcheck/internal/source"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var ErrNoSources = errors.New("no playlist sources configured")

type Settings struct {
	Sources []source.Source
	Report  report.Options
}

type Summary struct {
	RunID    uuid.UUID
	Total    int
	Working  int
	Dead     int
	Changes  []channel.Change
	Duration time.Duration
}

type Usecase struct {
	log       *zap.Logger
	sources   repo.Sources
	prober    repo.Prober
	publisher repo.Publisher
	history   repo.Recorder
	cfg       Settings

	now func() time.Time
}

// NewUC wires a run. history may be nil when run history is disabled.
func NewUC(log *zap.Logger, sources repo.Sources, prober repo.Prober, publisher repo.Publisher, history repo.Recorder, cfg Settings) *Usecase {
	return &Usecase{
		log:       obs.Component(log, "checker"),
		sources:   sources,
		prober:    prober,
		publisher: publisher,
		history:   history,
		cfg:       cfg,
		now:       time.Now,
	}
}

// RunOnce loads, probes and reports every channel. When recording history
// fails the report is already written and the summary is returned with the error.
func (u *Usecase) RunOnce(ctx context.Context) (*Summary, error) {
	if len(u.cfg.Sources) == 0 {
		return nil, ErrNoSources
	}

	tr := otel.Tracer("checker.uc")
	ctx, span := tr.Start(ctx, "checker.run")
	defer span.End()

	run := &channel.Run{ID: uuid.New(), StartedAt: u.now()}
	span.SetAttributes(attribute.String("run.id", run.ID.String()))
	log := obs.WithTrace(ctx, u.log).With(zap.String("run_id", run.ID.String()))

	chs, err := u.sources.LoadAll(ctx, u.cfg.Sources)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load sources: %w", err)
	}
	log.Info("channels loaded", zap.Int("channels", len(chs)))

	pctx, pspan := tr.Start(ctx, "checker.probe", trace.WithAttributes(attribute.Int("channels", len(chs))))
	results := u.prober.ProbeAll(pctx, chs)
	pspan.End()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("probe channels: %w", err)
	}

	run.FinishedAt = u.now()
	run.Tally(results)
	span.SetAttributes(
		attribute.Int("run.working", run.Working),
		attribute.Int("run.dead", run.Dead),
	)

	rep := report.Build(results, run.FinishedAt, u.cfg.Report)
	rctx, rspan := tr.Start(ctx, "checker.report")
	err = u.publisher.Publish(rctx, rep)
	rspan.End()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	sum := &Summary{
		RunID:    run.ID,
		Total:    run.Total,
		Working:  run.Working,
		Dead:     run.Dead,
		Duration: run.FinishedAt.Sub(run.StartedAt),
	}
	mChannels.WithLabelValues(string(channel.StatusWorking)).Set(float64(run.Working))
	mChannels.WithLabelValues(string(channel.StatusDead)).Set(float64(run.Dead))

	if u.history != nil {
		hctx, hspan := tr.Start(ctx, "checker.history")
		changes, err := u.history.Record(hctx, run, results)
		hspan.End()
		if err != nil {
			span.RecordError(err)
			return sum, fmt.Errorf("record history: %w", err)
		}
		sum.Changes = changes
		mChanges.Add(float64(len(changes)))
	}

	log.Info("run finished",
		zap.Int("total", sum.Total),
		zap.Int("working", sum.Working),
		zap.Int("dead", sum.Dead),
		zap.Int("changes", len(sum.Changes)),
		zap.Duration("took", sum.Duration),
	)
	return sum, nil
}
