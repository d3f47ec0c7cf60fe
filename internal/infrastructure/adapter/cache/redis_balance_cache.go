package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	cacheport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/cache"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/config"
)

// fillScript caches a balance unless the account was invalidated within the fence window.
// KEYS[1] balance key, KEYS[2] fence key, ARGV[1] balance, ARGV[2] ttl in milliseconds.
const fillScript = `
if redis.call('EXISTS', KEYS[2]) == 1 then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return 1`

// RedisBalanceCache implements cacheport.BalanceCache on Redis strings.
// Values are balances in hundredths of a credit and expire after the configured TTL.
// Invalidate leaves a fence key behind for the fill fence duration, and Set does nothing
// while it exists, so a balance read before a commit cannot be cached after it.
type RedisBalanceCache struct {
	client           *redis.Client
	logger           coreport.Logger
	keyPrefix        string
	ttl              time.Duration
	fillFence        time.Duration
	operationTimeout time.Duration
}

var _ cacheport.BalanceCache = (*RedisBalanceCache)(nil)

// NewRedisClient builds a client from the redis section of the configuration
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
}

// NewRedisBalanceCache wraps client. A zero operation timeout leaves deadlines to the caller.
func NewRedisBalanceCache(client *redis.Client, logger coreport.Logger, cfg config.RedisConfig) *RedisBalanceCache {
	return &RedisBalanceCache{
		client:           client,
		logger:           logger,
		keyPrefix:        cfg.KeyPrefix,
		ttl:              cfg.BalanceTTL,
		fillFence:        cfg.FillFence,
		operationTimeout: cfg.OperationTimeout,
	}
}

// Ping checks that Redis is reachable
func (c *RedisBalanceCache) Ping(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Get returns the cached balance or cacheport.ErrCacheMiss
func (c *RedisBalanceCache) Get(ctx context.Context, accountID string) (int64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	raw, err := c.client.Get(ctx, c.key(accountID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, cacheport.ErrCacheMiss
	}
	if err != nil {
		return 0, fmt.Errorf("redis get: %w", err)
	}

	balance, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// a value we cannot read is as good as absent
		c.logger.Warn("Discarding unreadable cached balance", map[string]any{
			"account_id": accountID,
			"value":      raw,
		})
		if delErr := c.client.Del(ctx, c.key(accountID)).Err(); delErr != nil {
			return 0, fmt.Errorf("redis del: %w", delErr)
		}
		return 0, cacheport.ErrCacheMiss
	}
	return balance, nil
}

// Set caches a balance until the TTL runs out. It is a no-op while the account is fenced.
func (c *RedisBalanceCache) Set(ctx context.Context, accountID string, balance int64) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if c.fillFence <= 0 {
		if err := c.client.Set(ctx, c.key(accountID), balance, c.ttl).Err(); err != nil {
			return fmt.Errorf("redis set: %w", err)
		}
		return nil
	}

	stored, err := c.client.Eval(ctx, fillScript,
		[]string{c.key(accountID), c.fenceKey(accountID)},
		balance, c.ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("redis fill: %w", err)
	}
	if stored == 0 {
		c.logger.Debug("Skipped caching balance of a recently changed account", map[string]any{
			"account_id": accountID,
		})
	}
	return nil
}

// Invalidate fences the account against late fills and drops the cached balance
func (c *RedisBalanceCache) Invalidate(ctx context.Context, accountID string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if c.fillFence > 0 {
		if err := c.client.Set(ctx, c.fenceKey(accountID), 1, c.fillFence).Err(); err != nil {
			return fmt.Errorf("redis fence: %w", err)
		}
	}
	if err := c.client.Del(ctx, c.key(accountID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close closes the underlying client
func (c *RedisBalanceCache) Close() error {
	return c.client.Close()
}

func (c *RedisBalanceCache) key(accountID string) string {
	return c.keyPrefix + accountID
}

func (c *RedisBalanceCache) fenceKey(accountID string) string {
	return c.keyPrefix + accountID + ":fence"
}

func (c *RedisBalanceCache) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.operationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.operationTimeout)
}
