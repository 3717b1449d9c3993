package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/classbook-api/api/swagger"
	"github.com/noah-isme/classbook-api/internal/handler"
	"github.com/noah-isme/classbook-api/internal/repository"
	"github.com/noah-isme/classbook-api/internal/service"
	"github.com/noah-isme/classbook-api/pkg/cache"
	"github.com/noah-isme/classbook-api/pkg/config"
	"github.com/noah-isme/classbook-api/pkg/database"
	"github.com/noah-isme/classbook-api/pkg/export"
	"github.com/noah-isme/classbook-api/pkg/jobs"
	"github.com/noah-isme/classbook-api/pkg/logger"
	"github.com/noah-isme/classbook-api/pkg/storage"
)

// @title Classbook API
// @version 1.0.0
// @description Attendance and grade summaries, weighted final scores and report cards per class.
// @BasePath /api/v1
// @schemes http
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Statistics.CacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, weight cache disabled", "error", err)
			redisClient = nil
		}
	}

	app, err := buildApp(ctx, cfg, db, redisClient, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to build application", "error", err)
	}
	defer app.close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
}

type application struct {
	router *gin.Engine
	queue  *jobs.Queue
	redis  *redis.Client
}

func (a *application) close() {
	if a.queue != nil {
		a.queue.Stop()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

func buildApp(ctx context.Context, cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) (*application, error) {
	validate := validator.New()
	metrics := service.NewMetricsService()

	journalRepo := repository.NewJournalRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	weightRepo := repository.NewWeightRepository(db)
	classRepo := repository.NewClassRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Statistics.WeightsTTL, logr, cfg.Statistics.CacheEnabled && redisClient != nil)
	weightSvc := service.NewWeightService(weightRepo, cacheSvc, metrics, validate, logr)
	statisticsSvc := service.NewStatisticsService(journalRepo, assignmentRepo, studentRepo, weightSvc, metrics, validate, logr, service.StatisticsConfig{
		ScorePolicy: cfg.Statistics.ScorePolicy,
		SortLocale:  cfg.Statistics.SortLocale,
	})
	accessSvc := service.NewAccessService(classRepo, logr)
	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	handlers := routeHandlers{
		statistics: handler.NewStatisticsHandler(statisticsSvc),
		weights:    handler.NewWeightHandler(weightSvc),
		metrics: handler.NewMetricsHandler(metrics,
			handler.ReadinessCheck{Name: "postgres", Probe: db.PingContext},
			handler.ReadinessCheck{Name: "redis", Probe: cacheRepo.Ping},
		),
	}

	app := &application{redis: redisClient}
	if cfg.Reports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			return nil, err
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exportSvc := service.NewExportService(statisticsSvc, store, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Reports.SignedURLTTL,
		}, logr, export.NewCSVExporter(), export.NewPDFExporter())

		worker := service.NewReportWorker(reportRepo, exportSvc, cfg.Reports.WorkerRetries, logr)
		app.queue = jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
			OnResult:   metrics.ObserveReportJob,
		})
		app.queue.Start(ctx)

		reportSvc := service.NewReportService(reportRepo, accessSvc, app.queue, exportSvc, validate, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
			MaxRetries:      cfg.Reports.WorkerRetries,
		})
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)
		handlers.reports = handler.NewReportHandler(reportSvc, logr)
	}

	app.router = newRouter(cfg, logr, metrics, authSvc, accessSvc, handlers)
	return app, nil
}
