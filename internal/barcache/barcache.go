// Package barcache keeps a Redis-backed coverage cache and publishes
// bar-update notifications for downstream consumers (the API gateway's
// WebSocket fanout subscribes to these). The core works without Redis;
// a nil *Cache is a no-op on every method.
package barcache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"fxdata-system/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const defaultCoverageTTL = 5 * time.Minute

// BarUpdateChannel is the pub/sub channel prefix for bar updates.
// Full channel name: "pub:bars:<instrument>".
const BarUpdateChannel = "pub:bars:"

// Config configures the cache connection.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Cache wraps the Redis client.
type Cache struct {
	client *goredis.Client
	ttl    time.Duration
}

// Client returns the underlying Redis client for health checks and
// pub/sub subscriptions.
func (c *Cache) Client() *goredis.Client {
	if c == nil {
		return nil
	}
	return c.client
}

// New connects to Redis and pings the server.
func New(cfg Config) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[barcache] connected to %s", cfg.Addr)
	return &Cache{client: client, ttl: defaultCoverageTTL}, nil
}

func coverageKey(instrument string) string {
	return "coverage:" + instrument
}

// SetCoverage caches a coverage summary with TTL.
func (c *Cache) SetCoverage(ctx context.Context, info model.CoverageInfo) {
	if c == nil {
		return
	}
	data, err := json.Marshal(info)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, coverageKey(info.Instrument), data, c.ttl).Err(); err != nil {
		log.Printf("[barcache] coverage cache write failed: %v", err)
	}
}

// GetCoverage returns a cached coverage summary, ok=false on miss.
func (c *Cache) GetCoverage(ctx context.Context, instrument string) (model.CoverageInfo, bool) {
	if c == nil {
		return model.CoverageInfo{}, false
	}
	data, err := c.client.Get(ctx, coverageKey(instrument)).Bytes()
	if err != nil {
		return model.CoverageInfo{}, false
	}
	var info model.CoverageInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return model.CoverageInfo{}, false
	}
	return info, true
}

// InvalidateCoverage drops the cached summary after a rebuild.
func (c *Cache) InvalidateCoverage(ctx context.Context, instrument string) {
	if c == nil {
		return
	}
	c.client.Del(ctx, coverageKey(instrument))
}

// BarUpdate is the pub/sub payload announcing freshly written bars.
type BarUpdate struct {
	Instrument  string    `json:"instrument"`
	BarsWritten int64     `json:"bars_written"`
	LatestBar   time.Time `json:"latest_bar"`
}

// PublishBarUpdate announces a completed regeneration.
func (c *Cache) PublishBarUpdate(ctx context.Context, u BarUpdate) {
	if c == nil {
		return
	}
	data, err := json.Marshal(u)
	if err != nil {
		return
	}
	if err := c.client.Publish(ctx, BarUpdateChannel+u.Instrument, data).Err(); err != nil {
		log.Printf("[barcache] publish bar update failed: %v", err)
	}
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
