package main

import (
	"fmt"

	config "github.com/NordCoder/streamcheck/internal/config/streamcheck"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

type cli struct {
	cfgFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "streamcheck",
		Short:         "Check IPTV playlist streams and publish a status report",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()
			cfg, err := config.Load(c.cfgFile)
			if err != nil {
				return err
			}
			if cfg.App.Version == "dev" && version != "dev" {
				cfg.App.Version = version
			}
			c.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}
	root.PersistentFlags().StringVar(&c.cfgFile, "config", "streamcheck.yaml", "config file")

	root.AddCommand(
		c.checkCmd(),
		c.scheduleCmd(),
		c.validateCmd(),
		c.mergeCmd(),
		c.eventsCmd(),
		c.historyCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "streamcheck %s\n", version)
			},
		},
	)
	return root
}
