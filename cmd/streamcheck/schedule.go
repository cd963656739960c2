package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NordCoder/streamcheck/internal/obs"
	"github.com/NordCoder/streamcheck/internal/services/checker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (c *cli) scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run checks on the configured cron schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer a.close()

			ms := obs.BootstrapMetricsServer(c.cfg.Server.MetricsAddr, a.health, a.log)

			uc, err := a.newChecker()
			if err != nil {
				return err
			}
			opts, _ := reportOptions(c.cfg.Report)
			runner, err := checker.NewRunner(a.log, uc, checker.RunnerConfig{
				Cron:       c.cfg.Schedule.Cron,
				RunOnStart: c.cfg.Schedule.RunOnStart,
				RunTimeout: c.cfg.Schedule.RunTimeout,
				Location:   opts.Location,
			})
			if err != nil {
				return err
			}

			ob := a.newOutbox()
			if ob != nil {
				ob.Start(ctx)
			}

			err = runner.Run(ctx)
			if ob != nil {
				ob.Wait()
			}

			shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = ms.Shutdown(shCtx)

			if err != nil && !errors.Is(err, context.Canceled) {
				a.log.Error("runner error", zap.Error(err))
				return err
			}
			a.log.Info("bye")
			return nil
		},
	}
}
