package cache

import (
	"context"
	"fmt"
	"time"

	"stakeoption/internal/config"

	"github.com/redis/go-redis/v9"
)

// Pub/sub channels shared by publishers and the websocket relay.
const (
	PriceUpdatesChannel = "price:updates"
	UserEventsChannel   = "wallet:events"
)

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	PoolSize int
}

// LoadRedisConfig reads REDIS_* variables.
func LoadRedisConfig() *RedisConfig {
	return &RedisConfig{
		Host:     config.GetEnv("REDIS_HOST", "localhost"),
		Port:     config.GetEnv("REDIS_PORT", "6379"),
		Password: config.GetEnv("REDIS_PASSWORD", ""),
		DB:       config.GetIntEnv("REDIS_DB", 0),
		PoolSize: config.GetIntEnv("REDIS_POOL_SIZE", 20),
	}
}

func NewRedisClient(cfg *RedisConfig) *redis.Client {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 20
	}
	return redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     poolSize,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}

// Ping checks the connection during startup and health checks.
func Ping(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}
