package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Aggregation.Window != 10*time.Minute {
		t.Errorf("Expected 10m window, got %s", cfg.Aggregation.Window)
	}
	if cfg.Aggregation.Period != time.Minute {
		t.Errorf("Expected 1m period, got %s", cfg.Aggregation.Period)
	}
	if cfg.Aggregation.StoreBackend != StoreBackendPostgres {
		t.Errorf("Expected postgres backend, got %s", cfg.Aggregation.StoreBackend)
	}
	if cfg.Kafka.TopicReadings != "air.readings.raw" {
		t.Errorf("Unexpected readings topic %s", cfg.Kafka.TopicReadings)
	}
	if cfg.Alert.DefaultThreshold != 150 {
		t.Errorf("Expected default threshold 150, got %d", cfg.Alert.DefaultThreshold)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AGGREGATION_WINDOW", "10m")
	t.Setenv("AGGREGATION_PERIOD", "10m")
	t.Setenv("STORE_BACKEND", "Memory")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("DB_PORT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Aggregation.Period != 10*time.Minute {
		t.Errorf("Expected 10m period, got %s", cfg.Aggregation.Period)
	}
	if cfg.Aggregation.StoreBackend != StoreBackendMemory {
		t.Errorf("Expected memory backend, got %s", cfg.Aggregation.StoreBackend)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("Expected 2 brokers, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Expected fallback port 5432, got %d", cfg.Database.Port)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"STORE_BACKEND":           "sqlite",
		"ALERT_DEFAULT_THRESHOLD": "900",
		"INGEST_BATCH_SIZE":       "-5",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Errorf("Expected error for %s=%s", key, value)
			}
		})
	}
}

func TestValidate_NonPositiveDurations(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg.Aggregation.Window = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for zero window")
	}

	cfg.Aggregation.Window = time.Minute
	cfg.Aggregation.Period = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for negative period")
	}
}
