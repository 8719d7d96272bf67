package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/tctk/internal/adapter/api"
	"github.com/V4T54L/tctk/internal/adapter/api/handler"
	"github.com/V4T54L/tctk/internal/adapter/chat/twitch"
	"github.com/V4T54L/tctk/internal/adapter/metrics"
	"github.com/V4T54L/tctk/internal/adapter/pii"
	"github.com/V4T54L/tctk/internal/adapter/repository/activitylog"
	"github.com/V4T54L/tctk/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/tctk/internal/adapter/repository/redis"
	"github.com/V4T54L/tctk/internal/adapter/repository/sqlite"
	"github.com/V4T54L/tctk/internal/bot"
	"github.com/V4T54L/tctk/internal/domain"
	"github.com/V4T54L/tctk/internal/pkg/config"
	"github.com/V4T54L/tctk/internal/pkg/serialize"
	"github.com/V4T54L/tctk/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

func runBot(cfg *config.Config, log *slog.Logger, channel string, featureNames []string) error {
	if err := cfg.ValidateChat(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewBotMetrics()
	serializer := serialize.New(log)
	redactor := pii.NewRedactor(cfg.RedactFields, log)

	// Signals are owned by the activity log: a close-class signal is
	// persisted with OS_SIGNAL and then stops the bot.
	activity, err := activitylog.New(activitylog.Options{
		Dir:           cfg.ActivityDir,
		FlushEvery:    cfg.FlushEvery,
		MaxFileSize:   cfg.MaxFileSize,
		HandleSignals: true,
		OnClose: func(sig os.Signal) {
			log.Info("shutdown signal received, stopping bot", "signal", activitylog.SignalName(sig))
			cancel()
		},
		Logger:     log,
		Metrics:    m,
		Serializer: serializer,
	})
	if err != nil {
		return fmt.Errorf("failed to open activity log: %w", err)
	}
	defer activity.Close()

	go func() {
		if err := activity.Run(ctx); err != nil {
			log.Error("activity log failed, stopping bot", "error", err)
			cancel()
		}
	}()

	raffles, closeRaffles, err := openRaffleRepository(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRaffles()

	var streams *redisrepo.EventStreamRepository
	var admin *usecase.AdminStreamUseCase
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("redis is not reachable yet, events will be dropped until it recovers", "error", err)
		}
		streams = redisrepo.NewEventStreamRepository(redisClient, log, m, cfg.RedisStream, cfg.RedisDLQStream, "")
		go streams.StartHealthCheck(ctx, cfg.HealthCheckEvery)
		admin = usecase.NewAdminStreamUseCase(redisrepo.NewAdminRepository(redisClient, log), streams.StreamKey(), streams.DLQStreamKey())
	}

	client := twitch.NewClient(twitch.Options{
		URL:     cfg.ChatURL,
		Nick:    cfg.BotNick,
		Token:   cfg.AccessToken,
		Channel: channel,
		Logger:  log,
		Metrics: m,
	})
	sender := twitch.NewSender(client, client.Channel(), cfg.ChatRatePer30s, log, m)

	var raffleFeature *usecase.RaffleFeature
	registry := bot.NewRegistry()
	registry.Register(usecase.FeatureActivityLog, func() (domain.Feature, error) {
		return usecase.NewActivityLogFeature(activity, serializer, redactor, log), nil
	})
	registry.Register(usecase.FeatureRaffleTracker, func() (domain.Feature, error) {
		f, err := usecase.NewRaffleFeature(raffles, cfg.Raffle, log)
		raffleFeature = f
		return f, err
	})
	registry.Register(usecase.FeatureResponder, func() (domain.Feature, error) {
		r := cfg.Responder
		return usecase.NewResponderFeature(r.TriggerText, r.TriggerUsername, r.ResponseText, log)
	})
	registry.Register(usecase.FeatureStreamMirror, func() (domain.Feature, error) {
		if streams == nil {
			return nil, errors.New("REDIS_ADDR is not set")
		}
		return usecase.NewStreamMirrorFeature(streams, serializer, redactor, log, m), nil
	})

	features, err := registry.Build(featureNames)
	if err != nil {
		return err
	}

	broker := handler.NewSSEBroker(ctx, log)
	chatBot := bot.New(client.Channel(), client, sender, log, m)
	chatBot.Use(features...)
	chatBot.Use(usecase.NewEventRateFeature(broker))

	deps := api.Deps{
		Activity: activity,
		Raffles:  raffles,
		Streams:  admin,
		Broker:   broker,
	}
	if raffleFeature != nil {
		deps.ActiveRaffle = raffleFeature
	}
	server := &http.Server{
		Addr:              cfg.AdminAddr,
		Handler:           api.NewRouter(deps, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("admin server is listening", "address", cfg.AdminAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("admin server failed", "error", err)
		}
	}()

	go func() {
		if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("chat client stopped", "error", err)
		}
	}()

	log.Info("starting bot", "channel", client.Channel(), "features", featureNames)
	runErr := chatBot.Run(ctx)
	cancel()
	sender.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("admin server shutdown failed", "error", err)
	}

	log.Info("bot shut down gracefully")
	return runErr
}

// openRaffleRepository uses PostgreSQL when POSTGRES_URL is set and the
// local SQLite file otherwise.
func openRaffleRepository(ctx context.Context, cfg *config.Config, log *slog.Logger) (domain.RaffleRepository, func(), error) {
	if cfg.PostgresURL != "" {
		db, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info("storing raffles in postgres")
		return postgres.NewRaffleRepository(db), func() { db.Close() }, nil
	}

	db, err := sqlite.New(cfg.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Info("storing raffles in sqlite", "path", cfg.SQLitePath)
	return sqlite.NewRaffleRepository(db), func() { db.Close() }, nil
}
