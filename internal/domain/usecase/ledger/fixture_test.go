package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	cacheport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/cache"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/logger"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/memory"
	timeadapter "github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/time"
)

var testStart = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	ctx   context.Context
	svc   *Service
	store *memory.Store
	clock *timeadapter.ManualTimeProvider
}

type fixtureOption func(cfg *Config, cache *cacheport.BalanceCache)

func withConfig(mutate func(cfg *Config)) fixtureOption {
	return func(cfg *Config, _ *cacheport.BalanceCache) { mutate(cfg) }
}

func withCache(c cacheport.BalanceCache) fixtureOption {
	return func(_ *Config, cache *cacheport.BalanceCache) { *cache = c }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	clock := timeadapter.NewManualTimeProvider(testStart)
	log := logger.NewNoopLogger()

	cfg := DefaultConfig()
	cfg.RetryBackoff = time.Millisecond
	var cache cacheport.BalanceCache
	for _, opt := range opts {
		opt(&cfg, &cache)
	}

	store := memory.NewStore(log, cfg.PlaceholderFingerprints)
	return &fixture{
		ctx:   context.Background(),
		svc:   NewService(store, cache, clock, log, cfg),
		store: store,
		clock: clock,
	}
}

// account creates an account funded with a purchase of the given hundredths
func (f *fixture) account(t *testing.T, id string, balance int64) {
	t.Helper()
	_, err := f.svc.CreateAccount(f.ctx, id)
	require.NoError(t, err)
	if balance > 0 {
		_, err = f.svc.Purchase(f.ctx, id, balance, "seed-"+id, "")
		require.NoError(t, err)
	}
}

func (f *fixture) balance(t *testing.T, id string) int64 {
	t.Helper()
	account, err := f.store.GetAccountRepository(f.ctx).GetByID(f.ctx, id)
	require.NoError(t, err)
	return account.Balance()
}

func (f *fixture) entry(t *testing.T, id uint64) *entity.LedgerEntry {
	t.Helper()
	e, err := f.svc.GetEntry(f.ctx, id)
	require.NoError(t, err)
	return e
}

func (f *fixture) entries(t *testing.T, accountID string) []*entity.LedgerEntry {
	t.Helper()
	page, err := f.svc.GetHistory(f.ctx, accountID, MaxHistoryLimit, 0)
	require.NoError(t, err)
	return page.Entries
}

// requireConsistent replays the log and checks it matches the stored balance
func (f *fixture) requireConsistent(t *testing.T, accountID string) {
	t.Helper()
	report, err := f.svc.VerifyAccount(f.ctx, accountID)
	require.NoError(t, err)
	require.True(t, report.Consistent, "balance %d, ledger sum %d", report.Balance, report.LedgerSum)
}

func refundsOf(entries []*entity.LedgerEntry, reservationID uint64) []*entity.LedgerEntry {
	var out []*entity.LedgerEntry
	for _, e := range entries {
		if e.Kind == entity.KindRefund && e.RelatedEntryID != nil && *e.RelatedEntryID == reservationID {
			out = append(out, e)
		}
	}
	return out
}
