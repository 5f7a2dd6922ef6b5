package redisstore

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"campus-rides/internal/general/config"
	"campus-rides/internal/general/logger"

	"github.com/redis/go-redis/v9"
)

// Connect builds a Redis client from cfg, verifies connectivity, and returns it.
func Connect(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*redis.Client, error) {
	start := time.Now()

	client := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Redis.Host, strconv.Itoa(cfg.Redis.Port)),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// verify connectivity with a bounded timeout
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info(ctx, "redis_connected", "Connected to Redis", map[string]any{
		"host":        cfg.Redis.Host,
		"port":        cfg.Redis.Port,
		"db":          cfg.Redis.DB,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return client, nil
}
