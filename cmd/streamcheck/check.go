package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NordCoder/streamcheck/internal/services/checker"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (c *cli) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run one check and regenerate the report",
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

			uc, err := a.newChecker()
			if err != nil {
				return err
			}

			runCtx := ctx
			if t := c.cfg.Schedule.RunTimeout; t > 0 {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(ctx, t)
				defer cancel()
			}
			sum, runErr := uc.RunOnce(runCtx)
			if sum != nil {
				printSummary(cmd.OutOrStdout(), c.cfg.Report.Path, sum)
			}

			if ob := a.newOutbox(); ob != nil && sum != nil {
				n, err := ob.Flush(ctx)
				if err != nil {
					a.log.Warn("outbox flush", zap.Error(err))
				}
				a.log.Info("outbox flushed", zap.Int("messages", n))
			}
			return runErr
		},
	}
}

func printSummary(w io.Writer, path string, sum *checker.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Run", "Working", "Dead", "Total", "Changes", "Took"})
	t.AppendRow(table.Row{sum.RunID, sum.Working, sum.Dead, sum.Total, len(sum.Changes), sum.Duration.Round(time.Millisecond)})
	t.Render()

	for _, ch := range sum.Changes {
		from := "new"
		if ch.Old != nil {
			from = string(*ch.Old)
		}
		fmt.Fprintf(w, "  %s: %s -> %s\n", ch.Name, from, ch.New)
	}
	fmt.Fprintf(w, "report written to %s\n", path)
}
