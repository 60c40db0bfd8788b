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
	"go.uber.org/zap"

	"github.com/campus-cloud/storage-api/internal/access"
	"github.com/campus-cloud/storage-api/internal/handler"
	"github.com/campus-cloud/storage-api/internal/middleware"
	"github.com/campus-cloud/storage-api/internal/repository"
	"github.com/campus-cloud/storage-api/internal/service"
	"github.com/campus-cloud/storage-api/pkg/cache"
	"github.com/campus-cloud/storage-api/pkg/config"
	"github.com/campus-cloud/storage-api/pkg/database"
	"github.com/campus-cloud/storage-api/pkg/logger"
	corsmiddleware "github.com/campus-cloud/storage-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campus-cloud/storage-api/pkg/middleware/requestid"
	"github.com/campus-cloud/storage-api/pkg/storage"
)

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
		logr.Fatal("connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	// Redis is optional; without it statistics are computed per request.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, statistics cache disabled", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close() //nolint:errcheck
	}

	var store storage.ObjectStore
	var localStore *storage.LocalStore
	switch cfg.Storage.Backend {
	case "s3":
		store, err = storage.NewS3Store(ctx, storage.S3Config{
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
		})
		if err != nil {
			logr.Fatal("init s3 store", zap.Error(err))
		}
	default:
		localStore, err = storage.NewLocalStore(cfg.Storage.LocalDir, cfg.Storage.LocalBaseURL, cfg.Storage.LocalURLSecret)
		if err != nil {
			logr.Fatal("init local store", zap.Error(err))
		}
		store = localStore
	}

	var notifier service.Notifier = service.NopNotifier{}
	var asyncNotifier *service.AsyncNotifier
	if cfg.Notifications.Enabled {
		publisher, err := service.NewAMQPPublisher(cfg.Notifications.AMQPURL, cfg.Notifications.Exchange, logr)
		if err != nil {
			logr.Warn("rabbitmq unavailable, notifications disabled", zap.Error(err))
		} else {
			defer publisher.Close() //nolint:errcheck
			asyncNotifier = service.NewAsyncNotifier(publisher,
				cfg.Notifications.Workers, cfg.Notifications.BufferSize, logr)
			asyncNotifier.Start(ctx)
			defer asyncNotifier.Stop()
			notifier = asyncNotifier
		}
	}

	fileRepo := repository.NewFileRepository(db)
	shareRepo := repository.NewShareRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	userRepo := repository.NewUserRepository(db)
	statsCache := repository.NewStatsCacheRepository(redisClient, cfg.Statistics.CacheTTL, logr)

	evaluator := access.NewEvaluator()
	validate := validator.New()

	fileSvc := service.NewFileService(fileRepo, shareRepo, store, evaluator, cfg.Uploads, validate, logr)
	shareSvc := service.NewShareService(shareRepo, fileRepo, userRepo, evaluator, notifier, validate, logr)
	submissionSvc := service.NewSubmissionService(submissionRepo, assignmentRepo, fileRepo, statsCache, evaluator, notifier, validate, logr)
	metricsSvc := service.NewMetricsService()

	fileHandler := handler.NewFileHandler(fileSvc, metricsSvc)
	shareHandler := handler.NewShareHandler(shareSvc, metricsSvc)
	submissionHandler := handler.NewSubmissionHandler(submissionSvc, metricsSvc)
	healthHandler := handler.NewHealthHandler(db)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New())
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if localStore != nil {
		objectsHandler := handler.NewObjectsHandler(localStore, logr)
		r.PUT("/objects", objectsHandler.Put)
		r.GET("/objects", objectsHandler.Get)
	}

	authed := r.Group("", middleware.Auth(cfg.JWT.Secret))
	{
		authed.POST("/files/upload-url", fileHandler.UploadURL)
		authed.POST("/files/:fileId/complete", fileHandler.Complete)
		authed.POST("/files/:fileId/download-url", fileHandler.DownloadURL)
		authed.GET("/files", fileHandler.List)

		authed.POST("/files/:fileId/share", shareHandler.Create)
		authed.GET("/files/:fileId/shares", shareHandler.List)
		authed.DELETE("/files/:fileId/shares/:shareId", shareHandler.Revoke)
		authed.GET("/shared-with-me", shareHandler.SharedWithMe)

		authed.POST("/assignments/:assignmentId/submit", submissionHandler.Submit)
		authed.GET("/assignments/:assignmentId/submissions", submissionHandler.List)
		authed.GET("/assignments/:assignmentId/submissions/me", submissionHandler.ListMine)
		authed.GET("/assignments/:assignmentId/submissions/export", submissionHandler.Export)
		authed.PUT("/assignments/:assignmentId/submissions/:submissionId/grade", submissionHandler.Grade)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "storage", cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown", zap.Error(err))
	}
}
