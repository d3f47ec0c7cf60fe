package cache

import (
	"context"
	"errors"
)

// ErrCacheMiss is returned by Get when no value is cached
var ErrCacheMiss = errors.New("cache miss")

// BalanceCache holds recently read balances for the read path
type BalanceCache interface {
	// Get returns the cached balance in hundredths of a credit or ErrCacheMiss
	Get(ctx context.Context, accountID string) (int64, error)
	// Set caches a balance
	Set(ctx context.Context, accountID string, balance int64) error
	// Invalidate drops the cached balance
	Invalidate(ctx context.Context, accountID string) error
}
