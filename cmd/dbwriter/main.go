package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smukkama/airquality-server/internal/database"
	"github.com/smukkama/airquality-server/internal/logging"
	"github.com/smukkama/airquality-server/internal/queue"
	"github.com/smukkama/airquality-server/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log.Level)
	slog.SetDefault(logger)
	logger.Info("starting reading ingest service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Connect(ctx, cfg.Database.ConnectionString())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	if err := db.RunMigrations(ctx, "migrations", logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	if err := queue.CreateTopic(cfg.Kafka.Brokers, cfg.Kafka.TopicReadings, cfg.Kafka.NumPartitions, 1, logger); err != nil {
		logger.Info("topic creation skipped (may already exist)", "topic", cfg.Kafka.TopicReadings, "error", err)
	}

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicReadings, "dbwriter-group")
	defer consumer.Close()

	batchWriter := queue.NewBatchWriter(consumer, db, cfg.Ingest.BatchSize, cfg.Ingest.FlushInterval, logger)
	if err := batchWriter.Start(ctx); err != nil {
		logger.Error("failed to start batch writer", "error", err)
		os.Exit(1)
	}
	logger.Info("batch writer started",
		"topic", cfg.Kafka.TopicReadings,
		"batch_size", cfg.Ingest.BatchSize,
		"flush_interval", cfg.Ingest.FlushInterval)

	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				kafkaStats := consumer.Stats()
				ingestStats := batchWriter.Stats()
				logger.Info("ingest stats",
					"messages", kafkaStats.Messages,
					"bytes", kafkaStats.Bytes,
					"errors", kafkaStats.Errors,
					"stored", ingestStats.Stored,
					"rejected", ingestStats.Rejected,
					"failed", ingestStats.Failed)
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down gracefully")
	batchWriter.Stop()
	logger.Info("reading ingest service stopped")
}
