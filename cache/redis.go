package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aluiziolira/go-scrape-listings/models"
)

const redisKeyPrefix = "listings:page-images:"

// RedisOptions configures a Redis-backed PageCache.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Redis is a PageCache shared between runs and processes.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to Redis and verifies the connection with PING.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return &Redis{client: client, ttl: opts.TTL}, nil
}

func (c *Redis) Get(ctx context.Context, url string) ([]models.ImageAsset, bool, error) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+url).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var images []models.ImageAsset
	if err := json.Unmarshal(raw, &images); err != nil {
		return nil, false, fmt.Errorf("decode cached images: %w", err)
	}
	return cloneImages(images), true, nil
}

func (c *Redis) Set(ctx context.Context, url string, images []models.ImageAsset) error {
	raw, err := json.Marshal(cloneImages(images))
	if err != nil {
		return fmt.Errorf("encode cached images: %w", err)
	}
	if err := c.client.Set(ctx, redisKeyPrefix+url, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *Redis) Close() error {
	return c.client.Close()
}
