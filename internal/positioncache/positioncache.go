// Package positioncache is the optional Redis accelerator of the Position
// Manager: the merge-rule algorithm writes each successful DB read into it
// and reads it back only when a DB read fails. It is never authoritative — DB and in-memory state remain the source of truth —
// and degrades gracefully to "no cache" whenever Redis misbehaves, following
// the teacher's internal/cache/cache_service.go circuit-breaker shape.
package positioncache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"sentineld/internal/logging"
	"sentineld/internal/sentinel"
)

const keyPrefix = "sentinel:positions:%s"

// defaultTTL bounds how long a cached snapshot is kept; the merge-rule
// algorithm still re-checks the DB on every List call and reads the cache
// only when that DB read fails.
const defaultTTL = 10 * time.Second

// Config mirrors the teacher's RedisConfig shape.
type Config struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	PoolSize int
}

// Cache is the Redis-backed positions.Accelerator implementation.
type Cache struct {
	client *redis.Client
	ttl    time.Duration

	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	maxFailures     int
	checkInterval   time.Duration
}

// New connects to Redis and returns a Cache, in degraded (unhealthy) mode if
// the initial ping fails rather than erroring out the caller.
func New(cfg Config) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	c := &Cache{
		client:        client,
		ttl:           defaultTTL,
		maxFailures:   3,
		checkInterval: 30 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logging.Default().WithError(err).Warn("initial redis connection failed, starting in degraded mode")
		return c
	}
	c.healthy = true
	c.lastCheck = time.Now()
	return c
}

func (c *Cache) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthy
}

func (c *Cache) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureCount++
	if c.failureCount >= c.maxFailures {
		c.healthy = false
	}
}

func (c *Cache) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthy = true
	c.failureCount = 0
	c.lastCheck = time.Now()
}

func (c *Cache) checkHealth(ctx context.Context) {
	c.mu.RLock()
	due := !c.healthy && time.Since(c.lastCheck) >= c.checkInterval
	c.mu.RUnlock()
	if !due {
		return
	}
	go func() {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := c.client.Ping(pingCtx).Err(); err == nil {
			c.recordSuccess()
		}
	}()
}

// GetPositions returns the cached snapshot for mode, or (nil, false) on any
// miss or degraded state — never an error the caller must handle.
func (c *Cache) GetPositions(ctx context.Context, mode sentinel.TradingMode) ([]sentinel.Position, bool) {
	c.checkHealth(ctx)
	if !c.IsHealthy() {
		return nil, false
	}

	raw, err := c.client.Get(ctx, key(mode)).Result()
	if err != nil {
		if err != redis.Nil {
			c.recordFailure()
		}
		return nil, false
	}

	var positions []sentinel.Position
	if err := json.Unmarshal([]byte(raw), &positions); err != nil {
		logging.Default().WithError(err).Warn("corrupt positions cache entry, ignoring")
		return nil, false
	}
	c.recordSuccess()
	return positions, true
}

// SetPositions writes a fresh snapshot with the accelerator TTL. Failures are
// logged and swallowed: the cache is an optimization, not a dependency.
func (c *Cache) SetPositions(ctx context.Context, mode sentinel.TradingMode, positions []sentinel.Position) {
	c.checkHealth(ctx)
	if !c.IsHealthy() {
		return
	}

	data, err := json.Marshal(positions)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key(mode), data, c.ttl).Err(); err != nil {
		c.recordFailure()
		logging.Default().WithError(err).Warn("positions cache write failed")
		return
	}
	c.recordSuccess()
}

func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func key(mode sentinel.TradingMode) string {
	return fmt.Sprintf(keyPrefix, mode)
}
