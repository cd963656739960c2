package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/NordCoder/streamcheck/internal/playlist"
	"github.com/NordCoder/streamcheck/internal/source"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (c *cli) mergeCmd() *cobra.Command {
	var base, events, epg, outCombined, outLive string
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Combine the base and live-event playlists",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if base == "" || events == "" {
				return errors.New("--base and --events are required")
			}
			log, err := initLogger(c.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if epg == "" {
				for _, l := range c.cfg.Report.Links {
					if strings.EqualFold(l.Title, "EPG") {
						epg = l.URL
					}
				}
			}

			loader := newLoader(log, c.cfg)
			ctx := cmd.Context()
			raw, err := loader.Fetch(ctx, source.Source{Name: "base", Location: base})
			if err != nil {
				return err
			}
			ep, err := loader.Load(ctx, source.Source{Name: "events", Location: events})
			if err != nil {
				return err
			}

			var combined bytes.Buffer
			live, err := playlist.Merge(raw, ep, epg, &combined)
			if err != nil {
				return err
			}
			fs := afero.NewOsFs()
			if err := afero.WriteFile(fs, outCombined, combined.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", outCombined, err)
			}
			if err := writePlaylist(fs, outLive, live); err != nil {
				return err
			}
			log.Info("playlists merged",
				zap.Int("base_bytes", len(raw)),
				zap.Int("events", len(ep.Entries)),
				zap.String("combined", outCombined),
				zap.String("live", outLive),
			)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&base, "base", "", "base playlist (file or URL)")
	f.StringVar(&events, "events", "", "live events playlist (file or URL)")
	f.StringVar(&epg, "epg", "", "EPG url for the live playlist header (default: EPG shortlink)")
	f.StringVar(&outCombined, "out-combined", "TV.m3u8", "combined playlist output")
	f.StringVar(&outLive, "out-live", "events.m3u8", "live playlist output")
	return cmd
}

func writePlaylist(fs afero.Fs, path string, p *playlist.Playlist) error {
	var buf bytes.Buffer
	if err := playlist.Encode(&buf, p); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := afero.WriteFile(fs, path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
