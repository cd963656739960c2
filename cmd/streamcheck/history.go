package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NordCoder/streamcheck/internal/domain/channel"
	pg "github.com/NordCoder/streamcheck/internal/repository/postgres"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func (c *cli) historyCmd() *cobra.Command {
	var (
		limit int
		dead  bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs from the history database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !c.cfg.DB.Enable {
				return errors.New("db.enable is false; no history to show")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer a.close()

			return printHistory(ctx, cmd.OutOrStdout(), pg.NewRunRepo(a.db), pg.NewResultRepo(a.db), limit, dead)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to list")
	cmd.Flags().BoolVar(&dead, "dead", false, "also list the dead streams of the latest run")
	return cmd
}

func printHistory(ctx context.Context, w io.Writer, runs channel.RunRepo, results channel.ResultRepo, limit int, dead bool) error {
	latest, err := runs.Latest(ctx, limit)
	if err != nil {
		return fmt.Errorf("latest runs: %w", err)
	}
	if len(latest) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Run", "Started", "Took", "Working", "Dead", "Total"})
	for _, r := range latest {
		t.AppendRow(table.Row{
			r.ID,
			r.StartedAt.UTC().Format("2006-01-02 15:04:05"),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
			r.Working, r.Dead, r.Total,
		})
	}
	t.Render()

	if !dead {
		return nil
	}
	rs, err := results.ListByRun(ctx, latest[0].ID)
	if err != nil {
		return fmt.Errorf("results of run %s: %w", latest[0].ID, err)
	}
	d := table.NewWriter()
	d.SetOutputMirror(w)
	d.SetStyle(table.StyleLight)
	d.AppendHeader(table.Row{"Channel", "Error (Code)", "Link"})
	for _, r := range rs {
		if r.Working() {
			continue
		}
		d.AppendRow(table.Row{r.Channel.Name, r.ErrorLabel(), r.Channel.URL})
	}
	d.Render()
	return nil
}
