package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/bookings-backend/pkg/config"
	"github.com/angelmondragon/bookings-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// Keys are "bk:<kind>:<parts...>".
const (
	keyNamespace      = "bk"
	idempotencyPrefix = "idempotency"
	lockPrefix        = "lock"
)

var errNotInitialized = errors.New("redis client not initialized")

// compareAndDelete removes KEYS[1] only while it still holds ARGV[1].
const compareAndDelete = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// compareAndSet replaces KEYS[1] with ARGV[2] only while it still holds
// ARGV[1]. ARGV[3] is the new TTL in milliseconds; 0 keeps no expiry.
const compareAndSet = `if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
else
	redis.call("SET", KEYS[1], ARGV[2])
end
return 1`

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
	Eval(context.Context, string, []string, ...any) *redis.Cmd
}

// Client is the redis surface shared by the API, the cron worker and the
// voucher worker: health pings, idempotency keys and the cron lock.
type Client struct {
	store cmdable
	raw   *redis.Client
}

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(context.Context) error
}

// IdempotencyStore is what the event and HTTP idempotency guards need: claim
// a key, read it back, and settle or release it only while still owning it.
type IdempotencyStore interface {
	Get(context.Context, string) (string, error)
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	CompareAndSet(ctx context.Context, key, expected, value string, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
	IdempotencyKey(scope, id string) string
}

// New dials redis and fails unless the first ping succeeds.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"redis_addr": opts.Addr, "redis_db": opts.DB}), "redis connection established")
	}
	return &Client{store: raw, raw: raw}, nil
}

// optionsFromConfig prefers the URL. Pool and timeout settings only fill
// what the URL left unset.
func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	case cfg.Address != "":
		opts = &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	default:
		return nil, errors.New("redis url or address is required")
	}

	fillInt(&opts.DB, cfg.DB)
	fillInt(&opts.PoolSize, cfg.PoolSize)
	fillInt(&opts.MinIdleConns, cfg.MinIdleConns)
	fillDuration(&opts.DialTimeout, cfg.DialTimeout)
	fillDuration(&opts.ReadTimeout, cfg.ReadTimeout)
	fillDuration(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func fillInt(dst *int, v int) {
	if *dst == 0 {
		*dst = v
	}
}

func fillDuration(dst *time.Duration, v time.Duration) {
	if *dst == 0 {
		*dst = v
	}
}

func (c *Client) ready() error {
	if c == nil || c.store == nil {
		return errNotInitialized
	}
	return nil
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	return c.store.Get(ctx, key).Result()
}

// SetNX sets a value only if the key does not exist yet.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	return c.store.SetNX(ctx, key, value, ttl).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.store.Del(ctx, keys...).Err()
}

// CompareAndDelete deletes key in one round trip if its value is still
// expected. It reports whether the key was removed.
func (c *Client) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	n, err := c.store.Eval(ctx, compareAndDelete, []string{key}, expected).Int64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CompareAndSet overwrites key with value if it still holds expected.
func (c *Client) CompareAndSet(ctx context.Context, key, expected, value string, ttl time.Duration) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	n, err := c.store.Eval(ctx, compareAndSet, []string{key}, expected, value, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.store.Ping(ctx).Err()
}

func (c *Client) IdempotencyKey(scope, id string) string {
	return buildKey(idempotencyPrefix, scope, id)
}

func (c *Client) LockKey(name string) string {
	return buildKey(lockPrefix, name)
}

func (c *Client) Close() error {
	if c == nil || c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

func buildKey(parts ...string) string {
	clean := []string{keyNamespace}
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			clean = append(clean, part)
		}
	}
	return strings.Join(clean, ":")
}
