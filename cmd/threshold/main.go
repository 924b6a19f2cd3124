package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smukkama/airquality-server/internal/alerting"
	"github.com/smukkama/airquality-server/internal/aqi"
	"github.com/smukkama/airquality-server/internal/logging"
	"github.com/smukkama/airquality-server/pkg/config"
)

const usage = `usage: threshold get
       threshold set <0-500>`

func main() {
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewWithWriter(os.Stderr, cfg.Log.Level)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to Redis", "addr", cfg.Redis.Addr, "error", err)
		os.Exit(1)
	}

	store := alerting.NewRedisThresholdStore(redisClient, cfg.Alert.DefaultThreshold)
	if err := run(ctx, store, flag.Args()); err != nil {
		logger.Error("threshold command failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, store alerting.ThresholdStore, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command\n%s", usage)
	}

	switch args[0] {
	case "get":
		value, err := store.Threshold(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%d (%s)\n", value, aqi.Category(value))
		return nil

	case "set":
		if len(args) != 2 {
			return fmt.Errorf("set takes exactly one value\n%s", usage)
		}
		value, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid threshold %q: %w", args[1], err)
		}
		if err := store.SetThreshold(ctx, value); err != nil {
			return err
		}
		fmt.Printf("threshold set to %d (%s)\n", value, aqi.Category(value))
		return nil

	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}
