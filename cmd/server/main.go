package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"membersync/internal/cache"
	"membersync/internal/config"
	"membersync/internal/db"
	membershiprepo "membersync/internal/membership/repository"
	membershipsvc "membersync/internal/membership/service"
	orgrepo "membersync/internal/organization/repository"
	orgdomainrepo "membersync/internal/orgdomain/repository"
	orgdomainsvc "membersync/internal/orgdomain/service"
	"membersync/internal/reconcile"
	"membersync/internal/server"
	"membersync/internal/telemetry"
	"membersync/internal/telemetry/otel"
	"membersync/internal/telemetry/producer"
	"membersync/internal/webhook"
	"membersync/internal/workos"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database open failed", zap.Error(err))
	}
	defer database.Close()

	ctx := context.Background()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "membersync", cfg.OTLPInsecure)
	if err != nil {
		logger.Fatal("telemetry setup failed", zap.Error(err))
	}
	providers.SetGlobal()
	defer providers.Shutdown(ctx)

	metrics, err := telemetry.NewMetrics(providers.MeterProvider.Meter("membersync"))
	if err != nil {
		logger.Fatal("metrics setup failed", zap.Error(err))
	}

	var emitter telemetry.EventEmitter
	kafkaProducer := producer.NewKafkaProducer(cfg.SyncEventsKafkaBrokersList(), cfg.SyncEventsKafkaTopic)
	if kafkaProducer != nil {
		emitter = kafkaProducer
		defer kafkaProducer.Close()
	}

	var invalidator cache.Invalidator
	var redisInv *cache.RedisInvalidator
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		redisInv = cache.NewRedisInvalidator(redisClient, logger)
		invalidator = redisInv
	} else {
		logger.Warn("REDIS_ADDR not set; cache invalidation is process-local only")
		invalidator = cache.NewMemoryInvalidator()
	}

	idp := workos.NewClient(cfg.WorkOSAPIKey, cfg.WorkOSBaseURL, cfg.IdPTimeout())

	organizations := orgrepo.NewPostgresRepository(database)
	membershipRepo := membershiprepo.NewPostgresRepository(database)
	orgdomainRepo := orgdomainrepo.NewPostgresRepository(database)
	memberships := membershipsvc.NewSyncService(membershipRepo, idp, logger)
	domains := orgdomainsvc.NewSyncService(orgdomainRepo, logger)

	verifier := webhook.NewVerifier(cfg.WorkOSWebhookSecret, cfg.WebhookToleranceDuration(), logger)
	dispatcher := webhook.NewDispatcher(memberships, domains, invalidator, logger)
	webhookHandler := webhook.NewHandler(verifier, dispatcher, webhook.NewMemorySeenStore(), metrics, emitter, logger)

	job := reconcile.NewJob(organizations, idp, memberships, invalidator, metrics, cfg.ReconcileBatchSize, logger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	var redisPinger server.Pinger
	if redisInv != nil {
		redisPinger = redisInv
	}
	router := server.NewRouter(server.Options{
		Webhook:       webhookHandler,
		Mirror:        server.NewMirrorHandler(organizations, orgdomainRepo, membershipRepo, logger),
		DB:            database,
		RedisPinger:   redisPinger,
		Reconciler:    job,
		OperatorToken: cfg.OperatorToken,
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("serve failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
	// Give in-flight async sync-event emits a chance to land before the
	// producer closes.
	time.Sleep(telemetry.ShutdownDrainDuration)
	logger.Info("stopped")
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
