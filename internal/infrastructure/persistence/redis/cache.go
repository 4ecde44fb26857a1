// Package redis implements the Redis-backed cache for computed hours
// summaries and the short-lived locks that keep scheduled jobs from running
// on two instances at once.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/nursetrack/clinical-hours/pkg/retry"
)

const (
	keyspace    = "clinical-hours:"
	PrefixHours = keyspace + "summary:"
	PrefixLock  = keyspace + "lock:"
)

const (
	// TTLHoursSummary bounds staleness if an invalidation is lost.
	TTLHoursSummary = 10 * time.Minute
	scanBatch       = 100
)

var (
	ErrCacheMiss     = errors.New("cache: miss")
	ErrCacheCodec    = errors.New("cache: codec")
	ErrCacheNilValue = errors.New("cache: nil value")
)

func HoursKey(studentID string) string { return PrefixHours + studentID }
func LockKey(name string) string       { return PrefixLock + name }

// Config selects the server either by URL or by the discrete fields. Zero
// timeouts keep the go-redis defaults.
type Config struct {
	URL          string
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Options builds go-redis options. A URL wins over Addr, Password and DB.
func (c Config) Options() (*redis.Options, error) {
	opts := &redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB}
	if c.URL != "" {
		parsed, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("cache: parse url: %w", err)
		}
		opts = parsed
	}
	if c.PoolSize > 0 {
		opts.PoolSize = c.PoolSize
	}
	if c.DialTimeout > 0 {
		opts.DialTimeout = c.DialTimeout
	}
	if c.ReadTimeout > 0 {
		opts.ReadTimeout = c.ReadTimeout
	}
	if c.WriteTimeout > 0 {
		opts.WriteTimeout = c.WriteTimeout
	}
	return opts, nil
}

// Cache stores sonic-encoded values and named locks.
type Cache struct {
	client *redis.Client
}

// NewCache dials Redis and retries the first ping with backoff.
func NewCache(ctx context.Context, cfg Config) (*Cache, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
	if err := retry.ConnectRetrier().Do(ctx, ping); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: connect %s: %w", opts.Addr, err)
	}
	return &Cache{client: client}, nil
}

func NewCacheFromClient(client *redis.Client) *Cache { return &Cache{client: client} }

// Client is shared with the Redis event bus.
func (c *Cache) Client() *redis.Client          { return c.client }
func (c *Cache) Close() error                   { return c.client.Close() }
func (c *Cache) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }

func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if value == nil {
		return ErrCacheNilValue
	}
	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrCacheCodec, key, err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// Get decodes the value at key into dest. A missing key is ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return ErrCacheMiss
	case err != nil:
		return err
	}
	if err := sonic.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrCacheCodec, key, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// DeleteByPattern walks the keyspace with SCAN and deletes each batch.
func (c *Cache) DeleteByPattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := c.Delete(ctx, batch...); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return c.Delete(ctx, batch...)
}

// ══════════════════════════════════════════════════════════════════════════════
// LOCKS
// ══════════════════════════════════════════════════════════════════════════════

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Acquire takes a named lock for ttl. acquired is false when another owner
// holds it. release only deletes the lock while it still carries token.
func (c *Cache) Acquire(ctx context.Context, name, token string, ttl time.Duration) (func(context.Context) error, bool, error) {
	ok, err := c.client.SetNX(ctx, LockKey(name), token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	release := func(ctx context.Context) error {
		return unlockScript.Run(ctx, c.client, []string{LockKey(name)}, token).Err()
	}
	return release, true, nil
}
