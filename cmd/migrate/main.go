package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/config"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/database"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/logger"
)

func main() {
	command := flag.String("command", "up", "migration command: up, down or status")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	provider, err := database.NewMigrator(db.DB)
	if err != nil {
		logr.Fatal("failed to init migrator", zap.Error(err))
	}

	switch *command {
	case "up":
		results, err := provider.Up(ctx)
		if err != nil {
			logr.Fatal("migration up failed", zap.Error(err))
		}
		for _, r := range results {
			logr.Info("migration applied", zap.String("source", r.Source.Path), zap.Duration("duration", r.Duration))
		}
		logr.Info("migrations complete", zap.Int("applied", len(results)))
	case "down":
		result, err := provider.Down(ctx)
		if err != nil {
			logr.Fatal("migration down failed", zap.Error(err))
		}
		logr.Info("migration rolled back", zap.String("source", result.Source.Path))
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			logr.Fatal("migration status failed", zap.Error(err))
		}
		for _, s := range statuses {
			logr.Info("migration", zap.Int64("version", s.Source.Version), zap.String("state", string(s.State)), zap.Time("applied_at", s.AppliedAt))
		}
	default:
		logr.Fatal("unknown migration command", zap.String("command", *command))
	}
}
