package main

import (
	"errors"
	"fmt"

	"github.com/NordCoder/streamcheck/internal/report"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var errInvalidReport = errors.New("report is invalid")

func (c *cli) validateCmd() *cobra.Command {
	var (
		path      string
		skipLinks bool
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a generated report for structural consistency",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				path = c.cfg.Report.Path
			}
			p, err := report.ParseFile(afero.NewOsFs(), path)
			if err != nil {
				return err
			}

			var links []report.Link
			if !skipLinks {
				links = reportLinks(c.cfg.Report)
			}
			out := cmd.OutOrStdout()
			errs := report.Validate(p, links)
			for _, e := range errs {
				fmt.Fprintf(out, "  - %v\n", e)
			}
			if len(errs) > 0 {
				return fmt.Errorf("%w: %d problem(s) in %s", errInvalidReport, len(errs), path)
			}
			fmt.Fprintf(out, "%s: ok (working %d, dead %d, total %d)\n", path, p.Working, p.Dead, p.Total)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "report to validate (default report.path)")
	cmd.Flags().BoolVar(&skipLinks, "skip-links", false, "do not compare shortlinks with the configuration")
	return cmd
}
