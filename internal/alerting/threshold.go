package alerting

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/smukkama/airquality-server/internal/aqi"
)

// ThresholdStore owns the AQI level above which an alert is raised.
type ThresholdStore interface {
	Threshold(ctx context.Context) (int, error)
	SetThreshold(ctx context.Context, value int) error
}

// ErrInvalidThreshold is returned for values outside the index scale
var ErrInvalidThreshold = errors.New("threshold must be within 0-500")

func validateThreshold(value int) error {
	if value < 0 || value > aqi.MaxIndex {
		return fmt.Errorf("%w: got %d", ErrInvalidThreshold, value)
	}
	return nil
}

// ThresholdKey is the Redis key holding the threshold
const ThresholdKey = "aqi:alert_threshold"

// RedisThresholdStore keeps the threshold in Redis so every process sees the
// same value and it survives restarts.
type RedisThresholdStore struct {
	redis    *redis.Client
	fallback int
}

// NewRedisThresholdStore creates a store that reports fallback until a
// threshold has been set
func NewRedisThresholdStore(redisClient *redis.Client, fallback int) *RedisThresholdStore {
	return &RedisThresholdStore{redis: redisClient, fallback: fallback}
}

// Threshold retrieves the current threshold
func (s *RedisThresholdStore) Threshold(ctx context.Context) (int, error) {
	data, err := s.redis.Get(ctx, ThresholdKey).Result()
	if err == redis.Nil {
		return s.fallback, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get threshold from Redis: %w", err)
	}

	value, err := strconv.Atoi(data)
	if err != nil {
		return 0, fmt.Errorf("failed to parse threshold %q: %w", data, err)
	}
	return value, nil
}

// SetThreshold saves a new threshold
func (s *RedisThresholdStore) SetThreshold(ctx context.Context, value int) error {
	if err := validateThreshold(value); err != nil {
		return err
	}
	if err := s.redis.Set(ctx, ThresholdKey, strconv.Itoa(value), 0).Err(); err != nil {
		return fmt.Errorf("failed to set threshold in Redis: %w", err)
	}
	return nil
}

// MemoryThresholdStore holds the threshold in process memory
type MemoryThresholdStore struct {
	mu    sync.RWMutex
	value int
}

// NewMemoryThresholdStore creates a store with an initial value
func NewMemoryThresholdStore(initial int) *MemoryThresholdStore {
	return &MemoryThresholdStore{value: initial}
}

func (s *MemoryThresholdStore) Threshold(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, nil
}

func (s *MemoryThresholdStore) SetThreshold(_ context.Context, value int) error {
	if err := validateThreshold(value); err != nil {
		return err
	}
	s.mu.Lock()
	s.value = value
	s.mu.Unlock()
	return nil
}
