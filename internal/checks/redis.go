package checks

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"deployctl/internal/config"
)

// RedisCheck pings the cache endpoint.
type RedisCheck struct {
	cfg config.CacheConfig
}

func NewRedisCheck(cfg config.CacheConfig) *RedisCheck {
	return &RedisCheck{cfg: cfg}
}

func (c *RedisCheck) Name() string {
	return "cache/redis"
}

func (c *RedisCheck) Run(ctx context.Context) (string, error) {
	client := redis.NewClient(&redis.Options{Addr: c.cfg.Addr()})
	defer client.Close()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return "", fmt.Errorf("failed to ping redis at %s: %w", c.cfg.Addr(), err)
	}
	return "PONG from " + c.cfg.Addr(), nil
}
