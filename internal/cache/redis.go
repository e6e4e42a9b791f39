// Package cache keeps extracted document text in Redis so re-uploads of the
// same bytes skip OCR.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/joseph-ayodele/household-docs/internal/entity"
)

const keyPrefix = "docpipe:text:"

// Store is the subset of a Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Observer counts hits and misses.
type Observer interface {
	CacheHit()
	CacheMiss()
}

type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// TextCache is a Redis-backed pipeline.TextCache.
type TextCache struct {
	store    Store
	ttl      time.Duration
	observer Observer
	logger   *slog.Logger
}

func New(store Store, ttl time.Duration, observer Observer, logger *slog.Logger) *TextCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextCache{store: store, ttl: ttl, observer: observer, logger: logger}
}

// Dial connects to Redis. A failed ping is returned so the caller can run
// without a cache.
func Dial(ctx context.Context, cfg Config, observer Observer, logger *slog.Logger) (*TextCache, *redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.Ping(pctx).Result(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return New(client, cfg.TTL, observer, logger), client, nil
}

func (c *TextCache) Get(ctx context.Context, key string) (entity.ExtractedText, bool, error) {
	raw, err := c.store.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		c.miss()
		return entity.ExtractedText{}, false, nil
	}
	if err != nil {
		return entity.ExtractedText{}, false, err
	}
	var text entity.ExtractedText
	if err := json.Unmarshal([]byte(raw), &text); err != nil {
		c.logger.Warn("cache.decode_failed", "key", key, "error", err)
		c.miss()
		return entity.ExtractedText{}, false, nil
	}
	c.hit()
	return text, true, nil
}

func (c *TextCache) Set(ctx context.Context, key string, text entity.ExtractedText) error {
	raw, err := json.Marshal(text)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, keyPrefix+key, raw, c.ttl).Err()
}

func (c *TextCache) hit() {
	if c.observer != nil {
		c.observer.CacheHit()
	}
}

func (c *TextCache) miss() {
	if c.observer != nil {
		c.observer.CacheMiss()
	}
}
