package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smukkama/airquality-server/internal/aggregation"
	"github.com/smukkama/airquality-server/internal/alerting"
	"github.com/smukkama/airquality-server/internal/aqi"
	"github.com/smukkama/airquality-server/internal/database"
	"github.com/smukkama/airquality-server/internal/logging"
	"github.com/smukkama/airquality-server/internal/queue"
	"github.com/smukkama/airquality-server/internal/timer"
	"github.com/smukkama/airquality-server/pkg/config"
)

// store is what the aggregator needs from a backend
type store interface {
	aggregation.ReadingSource
	aggregation.AggregateStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log.Level)
	slog.SetDefault(logger)
	logger.Info("starting AQI aggregation service",
		"window", cfg.Aggregation.Window,
		"period", cfg.Aggregation.Period,
		"backend", cfg.Aggregation.StoreBackend)

	if err := aqi.DefaultTable.Validate(); err != nil {
		fatal(logger, "invalid breakpoint table", err)
	}
	for _, gap := range aqi.DefaultTable.Gaps() {
		logger.Warn("breakpoint table has an unmodeled gap; readings inside it are out of range", "gap", gap.String())
	}
	for _, p := range aqi.DefaultTable.Truncated() {
		logger.Warn("breakpoint table stops below the top of the scale", "pollutant", p)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var backend store
	switch cfg.Aggregation.StoreBackend {
	case config.StoreBackendMemory:
		logger.Warn("using in-memory store; readings and aggregates are lost on exit")
		memory := database.NewMemoryStore()
		backend = memory

		// nothing else can reach an in-process store, so ingest here too
		consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicReadings, "aggregator-memory-ingest")
		defer consumer.Close()
		ingest := queue.NewBatchWriter(consumer, memory, cfg.Ingest.BatchSize, cfg.Ingest.FlushInterval, logger)
		if err := ingest.Start(ctx); err != nil {
			fatal(logger, "failed to start reading ingest", err)
		}
		defer ingest.Stop()
	default:
		db, err := database.Connect(ctx, cfg.Database.ConnectionString())
		if err != nil {
			fatal(logger, "failed to connect to database", err)
		}
		defer db.Close()
		logger.Info("connected to database")

		if err := db.RunMigrations(ctx, "migrations", logger); err != nil {
			fatal(logger, "failed to run migrations", err)
		}
		backend = db
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	var thresholds alerting.ThresholdStore
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, using in-process alert threshold", "error", err)
		thresholds = alerting.NewMemoryThresholdStore(cfg.Alert.DefaultThreshold)
	} else {
		logger.Info("connected to redis")
		thresholds = alerting.NewRedisThresholdStore(redisClient, cfg.Alert.DefaultThreshold)
	}

	for _, topic := range []string{cfg.Kafka.TopicAggregates, cfg.Kafka.TopicAlerts} {
		if err := queue.CreateTopic(cfg.Kafka.Brokers, topic, 1, 1, logger); err != nil {
			logger.Info("topic creation skipped (may already exist)", "topic", topic, "error", err)
		}
	}

	aggregateProducer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAggregates)
	defer aggregateProducer.Close()
	alertProducer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts)
	defer alertProducer.Close()

	watcher := alerting.NewWatcher(thresholds, alertProducer, logger)

	aggregator := aggregation.NewWindowAggregator(backend, backend, cfg.Aggregation.Window,
		aggregation.WithLogger(logger),
		aggregation.WithHook(aggregation.PublishHook(aggregateProducer, logger)),
		aggregation.WithHook(watcher.Hook()),
	)

	timerManager := timer.NewTimerManager()
	timerManager.Start()
	defer timerManager.Stop()

	scheduler := aggregation.NewScheduler(aggregator, timerManager, aggregation.SchedulerConfig{
		Period:      cfg.Aggregation.Period,
		TickTimeout: cfg.Aggregation.TickTimeout,
	}, logger)
	if err := scheduler.Start(ctx); err != nil {
		fatal(logger, "failed to start scheduler", err)
	}
	defer scheduler.Stop()

	go func() {
		ticker := time.NewTicker(10 * cfg.Aggregation.Period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := scheduler.Stats()
				logger.Info("aggregation stats",
					"completed", stats.Completed,
					"empty", stats.EmptyWindows,
					"failed", stats.Failed,
					"skipped", stats.SkippedTicks,
					"next_run", stats.NextRun)
			}
		}
	}()

	logger.Info("aggregation service is running; press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down gracefully")
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
