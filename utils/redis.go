package utils

import (
	"context"
	"time"

	"github.com/evently-app/evently-backend/config"
	"github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

// InitRedis connects the shared Redis client used for short-lived tokens
// (OAuth state nonces)
func InitRedis(cfg *config.Config) error {
	redisClient = redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return redisClient.Ping(ctx).Err()
}

// SetToken stores a value under key with a TTL
func SetToken(key, value string, ttl time.Duration) error {
	return redisClient.Set(context.Background(), key, value, ttl).Err()
}

// GetToken fetches a previously stored value
func GetToken(key string) (string, error) {
	return redisClient.Get(context.Background(), key).Result()
}

// DeleteToken removes a key
func DeleteToken(key string) error {
	return redisClient.Del(context.Background(), key).Err()
}
