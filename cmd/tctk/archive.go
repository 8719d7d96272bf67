package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/tctk/internal/adapter/metrics"
	"github.com/V4T54L/tctk/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/tctk/internal/adapter/repository/redis"
	"github.com/V4T54L/tctk/internal/pkg/config"
	"github.com/V4T54L/tctk/internal/usecase"
)

const archiveIdle = time.Second

func runArchive(cfg *config.Config, log *slog.Logger, consumerName string) error {
	if cfg.RedisAddr == "" || cfg.PostgresURL == "" {
		return errors.New("archive needs REDIS_ADDR and POSTGRES_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Info("connected to redis")

	db, err := postgres.Open(ctx, cfg.PostgresURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return err
	}
	log.Info("connected to postgres")

	if consumerName == "" {
		consumerName, err = os.Hostname()
		if err != nil {
			log.Warn("could not get hostname for consumer name, using default", "error", err)
			consumerName = "archiver-default"
		}
	}

	m := metrics.NewBotMetrics()
	streams := redisrepo.NewEventStreamRepository(redisClient, log, m, cfg.RedisStream, cfg.RedisDLQStream, cfg.ArchiveGroup)
	go streams.StartHealthCheck(ctx, cfg.HealthCheckEvery)

	archive := usecase.NewProcessEventsUseCase(streams, postgres.NewEventArchiveRepository(db, log), log,
		cfg.ArchiveGroup, consumerName, cfg.ArchiveRetries, cfg.ArchiveBackoff).WithMetrics(m)

	log.Info("archiver started", "group", cfg.ArchiveGroup, "consumer", consumerName, "stream", streams.StreamKey())
	archive.Run(ctx, archiveIdle)
	log.Info("archiver shut down gracefully")
	return nil
}
