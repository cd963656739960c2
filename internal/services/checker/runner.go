package checker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/NordCoder/streamcheck/internal/obs"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type RunnerConfig struct {
	Cron       string
	RunOnStart bool
	RunTimeout time.Duration
	Location   *time.Location
}

type runOncer interface {
	RunOnce(ctx context.Context) (*Summary, error)
}

// Runner triggers runs on a cron schedule. A trigger that fires while a run
// is in flight is skipped.
type Runner struct {
	log  *zap.Logger
	uc   runOncer
	cfg  RunnerConfig
	cron *cron.Cron

	busy atomic.Bool
}

func NewRunner(log *zap.Logger, uc runOncer, cfg RunnerConfig) (*Runner, error) {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(cfg.Cron); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", cfg.Cron, err)
	}
	return &Runner{
		log:  obs.Component(log, "runner"),
		uc:   uc,
		cfg:  cfg,
		cron: cron.New(cron.WithParser(parser), cron.WithLocation(cfg.Location)),
	}, nil
}

// Run blocks until ctx is done; a run in flight is waited for.
func (r *Runner) Run(ctx context.Context) error {
	if _, err := r.cron.AddFunc(r.cfg.Cron, func() { r.trigger(ctx) }); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	if r.cfg.RunOnStart {
		r.trigger(ctx)
	}

	r.cron.Start()
	if e := r.cron.Entries(); len(e) > 0 {
		r.log.Info("schedule started", zap.String("cron", r.cfg.Cron), zap.Time("next", e[0].Next))
	}

	<-ctx.Done()
	<-r.cron.Stop().Done()
	return ctx.Err()
}

func (r *Runner) trigger(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !r.busy.CompareAndSwap(false, true) {
		mSkipped.Inc()
		r.log.Warn("previous run still in progress, skipping")
		return
	}
	defer r.busy.Store(false)

	runCtx := ctx
	if r.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
		defer cancel()
	}

	start := time.Now()
	sum, err := r.uc.RunOnce(runCtx)
	mRunDur.Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
		mRuns.WithLabelValues("ok").Inc()
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		mRuns.WithLabelValues("canceled").Inc()
		r.log.Info("run canceled")
	default:
		mRuns.WithLabelValues("error").Inc()
		fields := []zap.Field{zap.Error(err)}
		if sum != nil {
			fields = append(fields, zap.Stringer("run_id", sum.RunID))
		}
		r.log.Error("run failed", fields...)
	}
}
