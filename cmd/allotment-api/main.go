package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/cee-allot-api/api/swagger"
	"github.com/noah-isme/cee-allot-api/internal/handler"
	"github.com/noah-isme/cee-allot-api/internal/middleware"
	"github.com/noah-isme/cee-allot-api/internal/models"
	"github.com/noah-isme/cee-allot-api/internal/repository"
	"github.com/noah-isme/cee-allot-api/internal/service"
	"github.com/noah-isme/cee-allot-api/pkg/cache"
	"github.com/noah-isme/cee-allot-api/pkg/config"
	"github.com/noah-isme/cee-allot-api/pkg/database"
	"github.com/noah-isme/cee-allot-api/pkg/jobs"
	"github.com/noah-isme/cee-allot-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/cee-allot-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/cee-allot-api/pkg/middleware/requestid"
)

// @title CEE Allotment API
// @version 1.0.0
// @description Multi-round capacitated seat allotment engine for entrance examinations
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	runRepo := repository.NewRunRepository(db)
	recordRepo := repository.NewRecordRepository(db)
	datasetRepo := repository.NewDatasetRepository(db)
	userRepo := repository.NewUserRepository(db)

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Allotment.CacheTTL, logr, true)
	}

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
		Audience:          []string{cfg.JWT.Audience},
	})

	// The queue handler closes over the service pointer, which is
	// assigned right after; jobs only flow once Start is called.
	var allotmentSvc *service.AllotmentService
	queue := jobs.NewQueue("allotment", func(ctx context.Context, job jobs.Job) error {
		return allotmentSvc.HandleRun(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Allotment.WorkerConcurrency,
		BufferSize: cfg.Allotment.QueueBuffer,
		MaxRetries: cfg.Allotment.WorkerRetries,
		Logger:     logr,
	})
	allotmentSvc = service.NewAllotmentService(runRepo, recordRepo, datasetRepo, db, queue, cacheSvc, metricsSvc, validate, cfg.Allotment.RunTimeout, logr)

	exportSvc := service.NewExportService(runRepo, recordRepo, nil, nil, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	allotmentHandler := handler.NewAllotmentHandler(allotmentSvc, exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	authed.GET("/auth/me", authHandler.Me)
	authed.GET("/status", metricsHandler.Status)

	runs := authed.Group("/allotment/runs")
	runs.GET("", allotmentHandler.ListRuns)
	runs.GET("/:id", allotmentHandler.GetRun)
	runs.GET("/:id/records", allotmentHandler.ListRecords)
	runs.GET("/:id/export", allotmentHandler.Export)
	runs.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleOperator), allotmentHandler.StartRun)
	runs.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), allotmentHandler.DeleteRun)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue.Start(ctx)
	defer queue.Stop()

	allotmentSvc.RecoverPendingRuns(ctx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}
