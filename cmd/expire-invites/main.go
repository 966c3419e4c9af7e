package main

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/repository"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/service"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/config"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/database"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/logger"
)

// Marks every pending invite past its expiry as EXPIRED. Intended to run from cron.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	userRepo := repository.NewUserRepository(db)
	authzSvc := service.NewAuthzService(userRepo)
	auditSvc := service.NewAuditService(repository.NewAuditRepository(db), authzSvc, logr)
	inviteSvc := service.NewInviteService(
		repository.NewInviteRepository(db),
		userRepo,
		authzSvc,
		auditSvc,
		database.NewTxManager(db),
		validator.New(),
		logr,
		service.WithInviteTTL(cfg.Invites.TTL),
	)

	count, err := inviteSvc.ExpireInvites(ctx)
	if err != nil {
		logr.Fatal("invite expiry failed", zap.Error(err))
	}
	logr.Info("invite expiry complete", zap.Int64("expired", count))
}
