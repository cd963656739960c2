package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	config "github.com/NordCoder/streamcheck/internal/config/streamcheck"
	"github.com/NordCoder/streamcheck/internal/obs"
	pg "github.com/NordCoder/streamcheck/internal/repository/postgres"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	cfgPath := flag.String("config", "streamcheck.yaml", "config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	l, err := obs.NewLogger(cfg.LoggerConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()

	db, err := pg.New(ctx, cfg.DB.Config)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	res, err := pg.Migrate(ctx, db)
	for _, r := range res {
		l.Info("migration", zap.Int64("version", r.Source.Version), zap.String("path", r.Source.Path), zap.Duration("took", r.Duration))
	}
	if err != nil {
		l.Fatal("migrate up", zap.Error(err))
	}
	l.Info("migrations: up OK", zap.Int("applied", len(res)))
}
