package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/NordCoder/streamcheck/internal/domain/channel"
	kafkaRepo "github.com/NordCoder/streamcheck/internal/repository/kafka"
	"github.com/spf13/cobra"
)

func (c *cli) eventsCmd() *cobra.Command {
	var (
		group         string
		fromBeginning bool
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow status-change events from Kafka",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(c.cfg.Kafka.Brokers) == 0 {
				return errors.New("kafka.brokers is empty")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log, err := initLogger(c.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			consumer := kafkaRepo.NewConsumer(&kafkaRepo.ConsumerConfig{
				Brokers:       c.cfg.Kafka.Brokers,
				GroupID:       group,
				Topic:         c.cfg.Kafka.Topic,
				FromBeginning: fromBeginning,
			}, log)
			defer func() { _ = consumer.Close() }()

			out := cmd.OutOrStdout()
			err = consumer.Consume(ctx, kafkaRepo.StatusChangeHandler(func(_ context.Context, ch channel.Change) error {
				from := "new"
				if ch.Old != nil {
					from = string(*ch.Old)
				}
				_, err := fmt.Fprintf(out, "%s\t%s\t%s -> %s\t%d\t%s\n",
					ch.At.Format("2006-01-02 15:04:05"), ch.Name, from, ch.New, ch.Code, ch.URL)
				return err
			}))
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&group, "group", "streamcheck-events", "consumer group id")
	cmd.Flags().BoolVar(&fromBeginning, "from-beginning", false, "read the topic from the first offset")
	return cmd
}
