// reconcile runs one reconciliation sweep against the IdP and prints the
// report as JSON. Intended for cron or manual operator runs; the server
// exposes the same sweep at POST /internal/reconcile.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"membersync/internal/cache"
	"membersync/internal/config"
	"membersync/internal/db"
	membershiprepo "membersync/internal/membership/repository"
	membershipsvc "membersync/internal/membership/service"
	orgrepo "membersync/internal/organization/repository"
	"membersync/internal/reconcile"
	"membersync/internal/workos"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database open failed", zap.Error(err))
	}
	defer database.Close()

	var invalidator cache.Invalidator = cache.NewMemoryInvalidator()
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		invalidator = cache.NewRedisInvalidator(redisClient, logger)
	}

	idp := workos.NewClient(cfg.WorkOSAPIKey, cfg.WorkOSBaseURL, cfg.IdPTimeout())
	memberships := membershipsvc.NewSyncService(membershiprepo.NewPostgresRepository(database), idp, logger)
	organizations := orgrepo.NewPostgresRepository(database)

	job := reconcile.NewJob(organizations, idp, memberships, invalidator, nil, cfg.ReconcileBatchSize, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := job.Run(ctx)
	if err != nil {
		logger.Fatal("reconciliation run failed", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Fatal("encode report", zap.Error(err))
	}
	if len(report.Errors) > 0 {
		os.Exit(2)
	}
}
