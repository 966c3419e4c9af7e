package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/CICTstudcoDingle/ictirc-sub001/api/swagger"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/handler"
	internalmiddleware "github.com/CICTstudcoDingle/ictirc-sub001/internal/middleware"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/repository"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/service"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/cache"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/config"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/database"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/jobs"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/logger"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/mailer"
	corsmiddleware "github.com/CICTstudcoDingle/ictirc-sub001/pkg/middleware/cors"
	reqidmiddleware "github.com/CICTstudcoDingle/ictirc-sub001/pkg/middleware/requestid"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/middleware/requestmeta"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/storage"
)

// @title ICTIRC Journal API
// @version 1.0.0
// @description Submission, review, DOI and archive API for the ISUFST CICT research journal
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	hot, err := storage.NewLocalStorage(cfg.Storage.HotDir, cfg.Storage.PublicBaseURL)
	if err != nil {
		logr.Fatal("failed to init storage", zap.Error(err))
	}

	metricsSvc := service.NewMetricsService()
	app := buildApp(ctx, cfg, db, hot, metricsSvc, logr)
	defer app.queue.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(requestmeta.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(internalmiddleware.Metrics(metricsSvc, cfg.APIPrefix))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	r.Static("/files/archive", filepath.Join(cfg.Storage.HotDir, "archive"))

	registerRoutes(r.Group(cfg.APIPrefix), cfg.APIPrefix, app)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type application struct {
	auth    *service.AuthService
	users   *service.UserService
	papers  *handler.PaperHandler
	archive *handler.ArchiveHandler
	userH   *handler.UserHandler
	invites *handler.InviteHandler
	auditH  *handler.AuditHandler
	queue   *jobs.Queue
}

func buildApp(ctx context.Context, cfg *config.Config, db *sqlx.DB, hot *storage.LocalStorage, metricsSvc *service.MetricsService, logr *zap.Logger) *application {
	txManager := database.NewTxManager(db)
	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	paperRepo := repository.NewPaperRepository(db)
	doiRepo := repository.NewDOIRepository(db)
	archiveRepo := repository.NewArchiveRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	inviteRepo := repository.NewInviteRepository(db)

	var cacheRepo service.CacheRepository
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, archive cache disabled", zap.Error(err))
		} else {
			cacheRepo = repository.NewCacheRepository(client, logr)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Archive.CacheTTL, logr, cacheRepo != nil)

	authSvc := service.NewAuthService(service.AuthConfig{
		AccessTokenSecret: cfg.Auth.JWTSecret,
		Issuer:            cfg.Auth.Issuer,
		Audience:          cfg.Auth.Audience,
		Leeway:            cfg.Auth.Leeway,
	})
	authzSvc := service.NewAuthzService(userRepo)
	auditSvc := service.NewAuditService(auditRepo, authzSvc, logr)

	notificationSvc := service.NewNotificationService(mailer.New(cfg.Mail, logr), cfg.Mail.AdminAddress, metricsSvc, logr)
	queue := jobs.NewQueue("notifications", notificationSvc.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
		OnResult:   notificationSvc.OnResult,
	})
	notificationSvc.AttachQueue(queue)
	queue.Start(ctx)

	policy := service.UploadPolicy{MaxFileSize: cfg.Storage.MaxFileSizeBytes, AllowedMIMEs: cfg.Storage.AllowedMIMEs}

	doiSvc := service.NewDOIService(paperRepo, doiRepo, authzSvc, auditSvc, txManager, metricsSvc, logr, service.WithDOIPrefix(cfg.DOI.Prefix))
	publicationSvc := service.NewPublicationService(doiSvc, nil)
	statusSvc := service.NewPaperStatusService(paperRepo, authzSvc, auditSvc, txManager, publicationSvc, notificationSvc, metricsSvc, logr)
	paperSvc := service.NewPaperService(paperRepo, hot, authzSvc, auditSvc, txManager, validate, policy, logr)
	archiveSvc := service.NewArchiveService(archiveRepo, hot, authzSvc, auditSvc, txManager, cacheSvc, cfg.Archive.CacheTTL, validate, policy, logr)
	userSvc := service.NewUserService(userRepo, authzSvc, auditSvc, txManager, logr)
	inviteSvc := service.NewInviteService(inviteRepo, userRepo, authzSvc, auditSvc, txManager, validate, logr, service.WithInviteTTL(cfg.Invites.TTL))

	return &application{
		auth:    authSvc,
		users:   userSvc,
		papers:  handler.NewPaperHandler(paperSvc, statusSvc, doiSvc),
		archive: handler.NewArchiveHandler(archiveSvc),
		userH:   handler.NewUserHandler(userSvc),
		invites: handler.NewInviteHandler(inviteSvc),
		auditH:  handler.NewAuditHandler(auditSvc),
		queue:   queue,
	}
}

func registerRoutes(api *gin.RouterGroup, apiPrefix string, app *application) {
	public := api.Group("/archive", internalmiddleware.PublicArchive())
	public.GET("/conferences", app.archive.ListConferences)
	public.GET("/volumes", app.archive.ListVolumes)
	public.GET("/volumes/:id", app.archive.GetVolume)
	public.GET("/issues/:id", app.archive.GetIssue)
	public.GET("/issues/:id/papers", app.archive.ListIssuePapers)
	public.GET("/papers/:id", app.archive.GetArchivedPaper)

	// Accepting an invite must not pass the guard, which would provision an AUTHOR first.
	api.POST("/invites/accept", internalmiddleware.JWT(app.auth), app.invites.Accept)

	protected := api.Group("")
	protected.Use(internalmiddleware.JWT(app.auth), internalmiddleware.RouteGuard(app.users, apiPrefix))

	protected.GET("/me", app.userH.Me)

	papers := protected.Group("/papers")
	papers.POST("", app.papers.Create)
	papers.GET("", app.papers.List)
	papers.GET("/:id", app.papers.Get)
	papers.DELETE("/:id", app.papers.Delete)
	papers.PATCH("/:id/status", app.papers.UpdateStatus)
	papers.POST("/:id/doi", app.papers.AssignDOI)
	papers.DELETE("/:id/doi", app.papers.RevokeDOI)

	admin := protected.Group("/admin")
	admin.GET("/users", app.userH.List)
	admin.PATCH("/users/:id/role", app.userH.UpdateRole)
	admin.PATCH("/users/:id/toggle-active", app.userH.ToggleActive)
	admin.POST("/invites", app.invites.Create)
	admin.GET("/audit", app.auditH.List)
	admin.GET("/audit/export", app.auditH.Export)

	archive := admin.Group("/archive")
	archive.POST("/conferences", app.archive.CreateConference)
	archive.PUT("/conferences/:id", app.archive.UpdateConference)
	archive.DELETE("/conferences/:id", app.archive.DeleteConference)
	archive.POST("/volumes", app.archive.CreateVolume)
	archive.PUT("/volumes/:id", app.archive.UpdateVolume)
	archive.DELETE("/volumes/:id", app.archive.DeleteVolume)
	archive.POST("/issues", app.archive.CreateIssue)
	archive.PUT("/issues/:id", app.archive.UpdateIssue)
	archive.DELETE("/issues/:id", app.archive.DeleteIssue)
	archive.POST("/papers", app.archive.CreateArchivedPaper)
	archive.PUT("/papers/:id", app.archive.UpdateArchivedPaper)
	archive.DELETE("/papers/:id", app.archive.DeleteArchivedPaper)
}
