package main

import (
	"context"
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/smukkama/airquality-server/internal/logging"
	"github.com/smukkama/airquality-server/internal/protocol"
	"github.com/smukkama/airquality-server/internal/queue"
	"github.com/smukkama/airquality-server/pkg/config"
)

// Simulates a small set of air quality sensors publishing to the readings topic

type sensor struct {
	id   string
	zone string
}

func main() {
	interval := flag.Duration("interval", 30*time.Second, "time between readings per sensor")
	sensors := flag.Int("sensors", 3, "number of simulated sensors")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log.Level)

	zones := []string{"Downtown", "Harbor", "Airport", "Riverside"}
	fleet := make([]sensor, *sensors)
	for i := range fleet {
		fleet[i] = sensor{id: uuid.NewString(), zone: zones[i%len(zones)]}
	}

	producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicReadings)
	defer producer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("sensor simulator running", "sensors", len(fleet), "interval", *interval, "topic", cfg.Kafka.TopicReadings)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for {
		for _, s := range fleet {
			publishReading(ctx, producer, s, rng, logger)
		}
		select {
		case <-ctx.Done():
			logger.Info("simulator stopped")
			return
		case <-ticker.C:
		}
	}
}

func publishReading(ctx context.Context, producer *queue.Producer, s sensor, rng *rand.Rand, logger *slog.Logger) {
	msg := syntheticReading(s, rng, time.Now().UTC())
	data, err := protocol.EncodeReadingMessage(msg)
	if err != nil {
		logger.Error("failed to encode reading", "sensor_id", s.id, "error", err)
		return
	}
	if err := producer.Publish(ctx, s.zone, data); err != nil {
		logger.Error("failed to publish reading", "sensor_id", s.id, "error", err)
		return
	}
	logger.Debug("published reading", "sensor_id", s.id, "zone", s.zone, "pm2_5", *msg.PM25, "pm10", *msg.PM10)
}

func syntheticReading(s sensor, rng *rand.Rand, now time.Time) *protocol.ReadingMessage {
	between := func(lo, hi float64, precision float64) *float64 {
		v := lo + rng.Float64()*(hi-lo)
		v = float64(int(v*precision)) / precision
		return &v
	}

	msg := &protocol.ReadingMessage{
		SensorID:  s.id,
		Zone:      s.zone,
		Timestamp: now.Format(time.RFC3339),
		PM25:      between(2, 80, 10),
		PM10:      between(5, 160, 1),
	}
	// gaseous pollutants are reported by a subset of sensors
	if rng.Float64() < 0.7 {
		msg.O3 = between(0.01, 0.09, 1000)
		msg.CO = between(0.1, 8, 10)
		msg.SO2 = between(1, 60, 1)
		msg.NO2 = between(5, 120, 1)
	}
	return msg
}
