package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Aggregation AggregationConfig
	Ingest      IngestConfig
	Alert       AlertConfig
	Log         LogConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers         []string
	TopicReadings   string
	TopicAggregates string
	TopicAlerts     string
	NumPartitions   int
}

// AggregationConfig controls the trailing-window AQI aggregator.
// Period is shorter than Window on purpose: consecutive windows overlap.
type AggregationConfig struct {
	Window       time.Duration
	Period       time.Duration
	TickTimeout  time.Duration
	StoreBackend string
}

type IngestConfig struct {
	BatchSize     int
	FlushInterval time.Duration
}

type AlertConfig struct {
	DefaultThreshold int
}

type LogConfig struct {
	Level string
}

const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"
)

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "airquality_user"),
			Password: getEnv("DB_PASSWORD", "airquality_pass"),
			DBName:   getEnv("DB_NAME", "airquality_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:         strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicReadings:   getEnv("KAFKA_TOPIC_READINGS", "air.readings.raw"),
			TopicAggregates: getEnv("KAFKA_TOPIC_AGGREGATES", "air.aqi.aggregates"),
			TopicAlerts:     getEnv("KAFKA_TOPIC_ALERTS", "air.aqi.alerts"),
			NumPartitions:   getEnvAsInt("KAFKA_NUM_PARTITIONS", 6),
		},
		Aggregation: AggregationConfig{
			Window:       getEnvAsDuration("AGGREGATION_WINDOW", 10*time.Minute),
			Period:       getEnvAsDuration("AGGREGATION_PERIOD", time.Minute),
			TickTimeout:  getEnvAsDuration("AGGREGATION_TICK_TIMEOUT", 30*time.Second),
			StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", StoreBackendPostgres)),
		},
		Ingest: IngestConfig{
			BatchSize:     getEnvAsInt("INGEST_BATCH_SIZE", 100),
			FlushInterval: getEnvAsDuration("INGEST_FLUSH_INTERVAL", 5*time.Second),
		},
		Alert: AlertConfig{
			DefaultThreshold: getEnvAsInt("ALERT_DEFAULT_THRESHOLD", 150),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects settings the aggregator cannot run with.
func (c *Config) Validate() error {
	if c.Aggregation.Window <= 0 {
		return fmt.Errorf("AGGREGATION_WINDOW must be positive, got %s", c.Aggregation.Window)
	}
	if c.Aggregation.Period <= 0 {
		return fmt.Errorf("AGGREGATION_PERIOD must be positive, got %s", c.Aggregation.Period)
	}
	if c.Aggregation.TickTimeout <= 0 {
		return fmt.Errorf("AGGREGATION_TICK_TIMEOUT must be positive, got %s", c.Aggregation.TickTimeout)
	}
	switch c.Aggregation.StoreBackend {
	case StoreBackendPostgres, StoreBackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Aggregation.StoreBackend)
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("INGEST_BATCH_SIZE must be positive, got %d", c.Ingest.BatchSize)
	}
	if c.Alert.DefaultThreshold < 0 || c.Alert.DefaultThreshold > 500 {
		return fmt.Errorf("ALERT_DEFAULT_THRESHOLD must be within 0-500, got %d", c.Alert.DefaultThreshold)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
