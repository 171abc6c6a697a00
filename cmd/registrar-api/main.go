package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/mnhs-portal/registrar-api/api/swagger"
	"github.com/mnhs-portal/registrar-api/internal/handler"
	"github.com/mnhs-portal/registrar-api/internal/middleware"
	"github.com/mnhs-portal/registrar-api/internal/models"
	"github.com/mnhs-portal/registrar-api/internal/repository"
	"github.com/mnhs-portal/registrar-api/internal/service"
	"github.com/mnhs-portal/registrar-api/pkg/cache"
	"github.com/mnhs-portal/registrar-api/pkg/config"
	"github.com/mnhs-portal/registrar-api/pkg/database"
	"github.com/mnhs-portal/registrar-api/pkg/logger"
	"github.com/mnhs-portal/registrar-api/pkg/mail"
	corsmiddleware "github.com/mnhs-portal/registrar-api/pkg/middleware/cors"
	reqidmiddleware "github.com/mnhs-portal/registrar-api/pkg/middleware/requestid"
	"github.com/mnhs-portal/registrar-api/pkg/storage"
)

// @title MNHS Registrar API
// @version 1.0.0
// @description Document requests, enrollment applications and inquiries for the registrar's office
// @BasePath /api/v1
// @schemes http

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, dashboard cache disabled", zap.Error(err))
		redisClient = nil
	}

	store, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare uploads directory", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewDocumentRequestRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	inquiryRepo := repository.NewInquiryRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Outbound notifications are best effort and never retried.
	var mailer mail.Mailer = mail.NopMailer{}
	if cfg.Mail.Enabled {
		mailer = mail.NewSMTPMailer(cfg.Mail)
	}
	notificationSvc := service.NewNotificationService(mailer, logr, cfg.Mail.Workers, cfg.Mail.BufferSize)
	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	metricsSvc := service.NewMetricsService(notificationSvc.Depth)

	// Services.
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "registrar-api",
	})
	requestSvc := service.NewDocumentRequestService(requestRepo, userRepo, validate, logr).WithMetrics(metricsSvc)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, userRepo, notificationSvc, validate, logr)
	inquirySvc := service.NewInquiryService(inquiryRepo, userRepo, notificationSvc, validate, logr).WithMetrics(metricsSvc)

	// The cache repository degrades to a no-op when Redis is unavailable,
	// so the dashboard always works; it just recomputes on every hit.
	dashboardSvc := service.NewDashboardService(requestRepo, enrollmentRepo, inquiryRepo, cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr)
	exportSvc := service.NewExportService(requestRepo, enrollmentRepo, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	requestHandler := handler.NewDocumentRequestHandler(requestSvc, dashboardSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, store, signer, dashboardSvc, handler.EnrollmentUploadLimits{
		MaxFiles:    cfg.Uploads.MaxFiles,
		MaxFileSize: cfg.Uploads.MaxFileSizeBytes,
	})
	inquiryHandler := handler.NewInquiryHandler(inquirySvc, dashboardSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	// Scheduled bulk archival of completed document requests.
	var scheduler *cron.Cron
	if cfg.Archival.AutoArchiveEnabled {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.Archival.AutoArchiveSchedule, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			count, err := requestSvc.BulkArchiveCompleted(jobCtx, cfg.Archival.AutoArchiveActor)
			if err != nil {
				logr.Error("scheduled bulk archive failed", zap.Error(err))
				return
			}
			if count > 0 && dashboardSvc != nil {
				dashboardSvc.Invalidate(jobCtx)
			}
		})
		if err != nil {
			logr.Fatal("invalid auto archive schedule", zap.String("schedule", cfg.Archival.AutoArchiveSchedule), zap.Error(err))
		}
		scheduler.Start()
		defer scheduler.Stop()
		logr.Info("auto archive scheduled", zap.String("schedule", cfg.Archival.AutoArchiveSchedule))
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Public routes.
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)
	api.POST("/enrollments", middleware.OptionalJWT(authSvc), enrollmentHandler.Create)
	api.GET("/enrollments/track/:enrollmentNo", enrollmentHandler.Track)

	// Authenticated routes.
	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	authed.POST("/auth/logout", authHandler.Logout)
	authed.PUT("/auth/password", authHandler.ChangePassword)
	authed.GET("/auth/me", authHandler.Me)

	authed.POST("/document-requests", requestHandler.Create)
	authed.GET("/document-requests/mine", requestHandler.ListMine)
	authed.GET("/document-requests/:id", requestHandler.Get)

	authed.GET("/enrollments/my", enrollmentHandler.ListMine)

	authed.POST("/inquiries", inquiryHandler.Create)
	authed.GET("/inquiries/mine", inquiryHandler.ListMine)
	authed.GET("/inquiries/:id", inquiryHandler.Get)

	// Admin routes.
	admin := authed.Group("/admin")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))

	admin.GET("/document-requests", requestHandler.List)
	admin.GET("/document-requests/archived", requestHandler.ListArchived)
	admin.PUT("/document-requests/:id/status", requestHandler.UpdateStatus)
	admin.POST("/document-requests/:id/archive", requestHandler.Archive)
	admin.POST("/document-requests/:id/restore", requestHandler.Restore)
	admin.POST("/document-requests/bulk-archive", requestHandler.BulkArchive)

	admin.GET("/enrollments", enrollmentHandler.List)
	admin.GET("/enrollments/:id", enrollmentHandler.Get)
	admin.PUT("/enrollments/:id/review", enrollmentHandler.Review)
	admin.GET("/enrollments/:id/documents", enrollmentHandler.Documents)
	admin.GET("/enrollments/:id/documents/download", enrollmentHandler.Download)

	admin.GET("/inquiries", inquiryHandler.List)
	admin.GET("/inquiries/archived", inquiryHandler.ListArchived)
	admin.GET("/inquiries/:id", inquiryHandler.Get)
	admin.PUT("/inquiries/:id/status", inquiryHandler.UpdateStatus)
	admin.POST("/inquiries/:id/replies", inquiryHandler.Reply)
	admin.POST("/inquiries/:id/archive", inquiryHandler.Archive)
	admin.POST("/inquiries/:id/restore", inquiryHandler.Restore)
	admin.DELETE("/inquiries/:id", inquiryHandler.Delete)

	if cfg.Dashboard.Enabled {
		admin.GET("/dashboard", dashboardHandler.Summary)
	}
	admin.GET("/exports/document-requests", exportHandler.DocumentRequests)
	admin.GET("/exports/enrollments", exportHandler.Enrollments)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := cacheRepo.Close(); err != nil {
		logr.Warn("closing redis failed", zap.Error(err))
	}
}
