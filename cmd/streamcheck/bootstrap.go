package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	config "github.com/NordCoder/streamcheck/internal/config/streamcheck"
	"github.com/NordCoder/streamcheck/internal/obs"
	kafkaRepo "github.com/NordCoder/streamcheck/internal/repository/kafka"
	pg "github.com/NordCoder/streamcheck/internal/repository/postgres"
	"go.uber.org/zap"
)

// app holds the process-wide dependencies shared by the subcommands.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	otel     *obs.OTel
	db       *pg.DB
	producer *kafkaRepo.Producer
}

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	return obs.NewLogger(cfg.LoggerConfig())
}

func initOTel(ctx context.Context, cfg *config.Config) (*obs.OTel, error) {
	return obs.SetupOTel(ctx, cfg.OTELConfig())
}

func initDB(ctx context.Context, cfg *config.Config, log *zap.Logger) (*pg.DB, error) {
	db, err := pg.New(ctx, cfg.DB.Config)
	if err != nil {
		return nil, err
	}
	res, err := pg.Migrate(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	for _, r := range res {
		log.Info("migration applied", zap.Int64("version", r.Source.Version), zap.Duration("took", r.Duration))
	}
	return db, nil
}

func initKafka(ctx context.Context, cfg *config.Config, log *zap.Logger) *kafkaRepo.Producer {
	tctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := kafkaRepo.EnsureTopic(tctx, cfg.Kafka.Brokers, kafkaRepo.StatusTopic(cfg.Kafka.Topic), log); err != nil {
		log.Warn("ensure topic failed, producer will retry on publish", zap.Error(err))
	}
	return kafkaRepo.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic).WithLogger(log)
}

func bootstrap(ctx context.Context, cfg *config.Config) (*app, error) {
	l, err := initLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &app{cfg: cfg, log: l}

	a.otel, err = initOTel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init otel: %w", err)
	}

	if cfg.DB.Enable {
		a.db, err = initDB(ctx, cfg, l)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("init db: %w", err)
		}
	}
	if cfg.Kafka.Enable {
		a.producer = initKafka(ctx, cfg, l)
	}

	l.Info("bootstrapped",
		zap.Bool("history", a.db != nil),
		zap.Bool("kafka", a.producer != nil),
		zap.Bool("otel", cfg.OTEL.Enable),
	)
	return a, nil
}

func (a *app) health(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	return a.db.Ping(ctx)
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if a.producer != nil {
		errs = append(errs, a.producer.Close())
	}
	if a.db != nil {
		a.db.Close()
	}
	errs = append(errs, a.otel.Shutdown(ctx))
	if err := errors.Join(errs...); err != nil {
		a.log.Warn("shutdown", zap.Error(err))
	}
	_ = a.log.Sync()
}
