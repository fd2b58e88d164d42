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
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/formador-scheduler/api/swagger"
	"github.com/noah-isme/formador-scheduler/internal/availability"
	"github.com/noah-isme/formador-scheduler/internal/handler"
	internalmiddleware "github.com/noah-isme/formador-scheduler/internal/middleware"
	"github.com/noah-isme/formador-scheduler/internal/models"
	"github.com/noah-isme/formador-scheduler/internal/repository"
	"github.com/noah-isme/formador-scheduler/internal/service"
	"github.com/noah-isme/formador-scheduler/pkg/cache"
	"github.com/noah-isme/formador-scheduler/pkg/config"
	"github.com/noah-isme/formador-scheduler/pkg/database"
	"github.com/noah-isme/formador-scheduler/pkg/logger"
	"github.com/noah-isme/formador-scheduler/pkg/messaging"
	corsmiddleware "github.com/noah-isme/formador-scheduler/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/formador-scheduler/pkg/middleware/requestid"
)

const (
	shutdownTimeout = 10 * time.Second
	warmTimeout     = 2 * time.Minute
)

// @title Formador Scheduler API
// @version 1.0.0
// @description Instructor availability checks, conflict resolution and alternative slot suggestions.
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

	engineCfg, err := cfg.Availability.EngineConfig()
	if err != nil {
		logr.Fatal("invalid availability configuration", zap.Error(err))
	}
	engine := availability.NewEngine(engineCfg)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startupCtx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
	defer cancel()

	db, err := database.NewPostgres(startupCtx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	var redisClient redis.UniversalClient
	if client, err := cache.NewRedis(startupCtx, cfg.Redis); err != nil {
		logr.Warn("redis unavailable, matrix cache and instructor locks disabled", zap.Error(err))
	} else {
		redisClient = client
		defer client.Close()
	}

	metrics := service.NewMetricsService()
	clock := service.NewSystemClock()

	instructorRepo := repository.NewInstructorRepository(db)
	locationRepo := repository.NewLocationRepository(db)
	blockRepo := repository.NewAvailabilityBlockRepository(db)
	eventRepo := repository.NewScheduledEventRepository(db)
	requestRepo := repository.NewEventRequestRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	lockRepo := repository.NewInstructorLockRepository(redisClient)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Calendar.MatrixCacheTTL, logr, cfg.Calendar.MatrixCacheEnabled && redisClient != nil)
	loader := service.NewSnapshotLoader(instructorRepo, locationRepo, blockRepo, eventRepo, engineCfg.Zone, metrics, logr)

	auditCfg := service.AuditConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
		MaxRetries: cfg.Audit.MaxRetries,
		RetryDelay: cfg.Audit.RetryDelay,
	}
	var auditSvc *service.AuditService
	if cfg.Audit.KafkaEnabled {
		writer, err := messaging.NewKafkaWriter(cfg.Audit.KafkaBrokers, cfg.Audit.KafkaTopic)
		if err != nil {
			logr.Fatal("invalid kafka configuration", zap.Error(err))
		}
		publisher := messaging.NewPublisher(cfg.Audit.KafkaTopic, writer, logr)
		defer publisher.Close() //nolint:errcheck
		auditSvc = service.NewAuditService(auditRepo, publisher, metrics, clock, logr, auditCfg)
	} else {
		auditSvc = service.NewAuditService(auditRepo, nil, metrics, clock, logr, auditCfg)
	}
	auditSvc.Start(context.Background())
	defer auditSvc.Stop()

	availabilitySvc := service.NewAvailabilityService(engine, loader, requestRepo, lockRepo, auditSvc, cacheSvc, metrics, clock, nil, logr, service.AvailabilityOptions{
		SuggestTimeout: cfg.Availability.SuggestTimeout,
		LockTTL:        cfg.Availability.LockTTL,
	})
	calendarSvc := service.NewCalendarService(engine, loader, cacheSvc, cfg.Calendar.MatrixCacheTTL, metrics, clock, nil, logr)
	authSvc := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	scheduler := cron.New(cron.WithLocation(engineCfg.Zone))
	if cacheSvc.Enabled() && cfg.Calendar.WarmCron != "" {
		_, err := scheduler.AddFunc(cfg.Calendar.WarmCron, func() {
			ctx, cancel := context.WithTimeout(rootCtx, warmTimeout)
			defer cancel()
			if err := calendarSvc.WarmNextMonth(ctx); err != nil {
				logr.Warn("matrix warm-up failed", zap.Error(err))
			}
		})
		if err != nil {
			logr.Fatal("invalid calendar warm cron", zap.String("schedule", cfg.Calendar.WarmCron), zap.Error(err))
		}
	}
	scheduler.Start()

	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc, calendarSvc)
	calendarHandler := handler.NewCalendarHandler(calendarSvc)
	metricsHandler := handler.NewMetricsHandler(metrics, map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
		"redis":    cacheRepo.Ping,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics, "/metrics", "/health", "/ready"))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(authSvc), internalmiddleware.Actor())

	planners := api.Group("", internalmiddleware.RequireRoles(models.RoleCoordinator, models.RoleAdmin, models.RoleAuthority))
	planners.POST("/availability/check", availabilityHandler.Check)
	planners.POST("/availability/suggestions", availabilityHandler.Suggest)
	planners.POST("/event-requests", availabilityHandler.CreateRequest)

	readers := api.Group("", internalmiddleware.RequireRoles(models.RoleCoordinator, models.RoleAdmin, models.RoleAuthority, models.RoleFormador))
	readers.GET("/availability/matrix", calendarHandler.Matrix)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
		}
	case <-rootCtx.Done():
		logr.Info("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logr.Error("server shutdown failed", zap.Error(err))
	}
	<-scheduler.Stop().Done()
	logr.Info("server stopped")
}
