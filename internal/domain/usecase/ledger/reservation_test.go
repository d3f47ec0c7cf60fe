package ledger

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/usecase"
)

func reserve(t *testing.T, f *fixture, accountID string, amount int64, ref string) uint64 {
	t.Helper()
	id, err := f.svc.Reserve(f.ctx, usecase.ReserveRequest{
		AccountID:   accountID,
		Amount:      amount,
		ServiceType: entity.ServiceWebExtraction,
		ReferenceID: ref,
	})
	require.NoError(t, err)
	return id
}

func TestReserve(t *testing.T) {
	f := newFixture(t)
	f.account(t, "a", entity.Credits(10))

	id := reserve(t, f, "a", entity.Credits(4), "job-1")

	entry := f.entry(t, id)
	assert.Equal(t, entity.KindUsage, entry.Kind)
	assert.Equal(t, entity.StatusReserved, entry.Status)
	assert.Equal(t, -entity.Credits(4), entry.Amount)
	assert.Equal(t, entity.Credits(6), entry.BalanceAfter)
	assert.Equal(t, entity.ServiceWebExtraction, entry.ServiceType)
	assert.Equal(t, entity.Credits(6), f.balance(t, "a"))

	_, err := f.svc.Reserve(f.ctx, usecase.ReserveRequest{AccountID: "a", Amount: 0})
	assert.ErrorIs(t, err, errs.ErrInvalidAmount)

	_, err = f.svc.Reserve(f.ctx, usecase.ReserveRequest{AccountID: "a", Amount: entity.Credits(7)})
	assert.ErrorIs(t, err, errs.ErrInsufficientCredits)
	assert.Equal(t, entity.Credits(6), f.balance(t, "a"))
	f.requireConsistent(t, "a")
}

func TestConfirm_PartialRefundsDifference(t *testing.T) {
	f := newFixture(t)
	f.account(t, "a", entity.Credits(10))
	id := reserve(t, f, "a", entity.Credits(4), "job-1")

	require.NoError(t, f.svc.Confirm(f.ctx, id, usecase.AtActual(entity.Credits(3))))

	assert.Equal(t, entity.Credits(7), f.balance(t, "a"))

	original := f.entry(t, id)
	assert.Equal(t, entity.StatusCompleted, original.Status)
	assert.Equal(t, -entity.Credits(3), original.Amount)

	refunds := refundsOf(f.entries(t, "a"), id)
	require.Len(t, refunds, 1)
	assert.Equal(t, entity.Credits(1), refunds[0].Amount)
	assert.Equal(t, entity.StatusCompleted, refunds[0].Status)
	assert.Equal(t, entity.Credits(7), refunds[0].BalanceAfter)
	assert.Equal(t, "job-1", refunds[0].ReferenceID)

	f.requireConsistent(t, "a")
}

func TestConfirm_FullAmount(t *testing.T) {
	testCases := []struct {
		name       string
		settlement usecase.Settlement
	}{
		{"as reserved", usecase.AsReserved()},
		{"actual equals reserved", usecase.AtActual(entity.Credits(4))},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.account(t, "a", entity.Credits(10))
			id := reserve(t, f, "a", entity.Credits(4), "job-1")

			require.NoError(t, f.svc.Confirm(f.ctx, id, tc.settlement))

			original := f.entry(t, id)
			assert.Equal(t, entity.StatusCompleted, original.Status)
			assert.Equal(t, -entity.Credits(4), original.Amount)
			assert.Empty(t, refundsOf(f.entries(t, "a"), id))
			assert.Equal(t, entity.Credits(6), f.balance(t, "a"))
			f.requireConsistent(t, "a")
		})
	}
}

func TestConfirm_ZeroActualRefundsEverything(t *testing.T) {
	f := newFixture(t)
	f.account(t, "a", entity.Credits(10))
	id := reserve(t, f, "a", entity.Credits(4), "job-1")

	require.NoError(t, f.svc.Confirm(f.ctx, id, usecase.AtActual(0)))

	assert.Equal(t, entity.Credits(10), f.balance(t, "a"))
	assert.Equal(t, entity.StatusCompleted, f.entry(t, id).Status)
	f.requireConsistent(t, "a")
}

func TestConfirm_Refusals(t *testing.T) {
	f := newFixture(t)
	f.account(t, "a", entity.Credits(10))
	id := reserve(t, f, "a", entity.Credits(4), "job-1")

	err := f.svc.Confirm(f.ctx, id, usecase.AtActual(entity.Credits(5)))
	assert.True(t, errs.IsInvalidReservationStateError(err))

	err = f.svc.Confirm(f.ctx, id, usecase.AtActual(-1))
	assert.ErrorIs(t, err, errs.ErrInvalidAmount)

	err = f.svc.Confirm(f.ctx, id, usecase.Settlement{})
	assert.ErrorIs(t, err, errs.ErrInvalidRequest)

	err = f.svc.Confirm(f.ctx, 9999, usecase.AsReserved())
	assert.True(t, errs.IsInvalidReservationStateError(err))

	purchase := f.entries(t, "a")[1]
	require.Equal(t, entity.KindPurchase, purchase.Kind)
	err = f.svc.Confirm(f.ctx, purchase.ID, usecase.AsReserved())
	assert.True(t, errs.IsInvalidReservationStateError(err))

	// nothing changed
	assert.Equal(t, entity.StatusReserved, f.entry(t, id).Status)
	assert.Equal(t, entity.Credits(6), f.balance(t, "a"))
	f.requireConsistent(t, "a")
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	f.account(t, "a", entity.Credits(10))
	id := reserve(t, f, "a", entity.Credits(4), "job-1")

	require.NoError(t, f.svc.Cancel(f.ctx, id))

	assert.Equal(t, entity.Credits(10), f.balance(t, "a"))

	original := f.entry(t, id)
	assert.Equal(t, entity.StatusRefunded, original.Status)
	assert.Equal(t, -entity.Credits(4), original.Amount)

	refunds := refundsOf(f.entries(t, "a"), id)
	require.Len(t, refunds, 1)
	assert.Equal(t, entity.Credits(4), refunds[0].Amount)
	f.requireConsistent(t, "a")
}

func TestSettlementIsFinal(t *testing.T) {
	testCases := []struct {
		name   string
		first  func(f *fixture, id uint64) error
		second func(f *fixture, id uint64) error
	}{
		{
			"confirm then cancel",
			func(f *fixture, id uint64) error { return f.svc.Confirm(f.ctx, id, usecase.AsReserved()) },
			func(f *fixture, id uint64) error { return f.svc.Cancel(f.ctx, id) },
		},
		{
			"cancel then confirm",
			func(f *fixture, id uint64) error { return f.svc.Cancel(f.ctx, id) },
			func(f *fixture, id uint64) error { return f.svc.Confirm(f.ctx, id, usecase.AsReserved()) },
		},
		{
			"cancel twice",
			func(f *fixture, id uint64) error { return f.svc.Cancel(f.ctx, id) },
			func(f *fixture, id uint64) error { return f.svc.Cancel(f.ctx, id) },
		},
		{
			"partial confirm twice",
			func(f *fixture, id uint64) error { return f.svc.Confirm(f.ctx, id, usecase.AtActual(100)) },
			func(f *fixture, id uint64) error { return f.svc.Confirm(f.ctx, id, usecase.AtActual(100)) },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.account(t, "a", entity.Credits(10))
			id := reserve(t, f, "a", entity.Credits(4), "job-1")

			require.NoError(t, tc.first(f, id))
			balance := f.balance(t, "a")
			entries := len(f.entries(t, "a"))

			err := tc.second(f, id)
			assert.True(t, errs.IsInvalidReservationStateError(err))
			assert.Equal(t, balance, f.balance(t, "a"))
			assert.Len(t, f.entries(t, "a"), entries)
			assert.LessOrEqual(t, len(refundsOf(f.entries(t, "a"), id)), 1)
			f.requireConsistent(t, "a")
		})
	}
}

func TestReserve_ConcurrentOverdraw(t *testing.T) {
	f := newFixture(t)
	f.account(t, "a", entity.Credits(10))

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		refused   atomic.Int32
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Reserve(f.ctx, usecase.ReserveRequest{AccountID: "a", Amount: entity.Credits(7)})
			switch {
			case err == nil:
				successes.Add(1)
			case errs.IsInsufficientCreditsError(err):
				refused.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(1), refused.Load())
	assert.Equal(t, entity.Credits(3), f.balance(t, "a"))
	f.requireConsistent(t, "a")
}

func TestSettle_ConcurrentConfirmAndCancel(t *testing.T) {
	for round := 0; round < 20; round++ {
		f := newFixture(t)
		f.account(t, "a", entity.Credits(10))
		id := reserve(t, f, "a", entity.Credits(4), "job-1")

		var (
			wg        sync.WaitGroup
			successes atomic.Int32
		)
		ops := []func() error{
			func() error { return f.svc.Confirm(f.ctx, id, usecase.AtActual(entity.Credits(1))) },
			func() error { return f.svc.Cancel(f.ctx, id) },
		}
		for _, op := range ops {
			wg.Add(1)
			go func(op func() error) {
				defer wg.Done()
				err := op()
				if err == nil {
					successes.Add(1)
					return
				}
				assert.True(t, errs.IsInvalidReservationStateError(err), "unexpected error: %v", err)
			}(op)
		}
		wg.Wait()

		require.Equal(t, int32(1), successes.Load())
		assert.Len(t, refundsOf(f.entries(t, "a"), id), 1)
		assert.True(t, f.entry(t, id).Status.IsTerminal())
		f.requireConsistent(t, "a")
	}
}

func TestLedger_RandomConcurrentWorkloadStaysConsistent(t *testing.T) {
	f := newFixture(t)
	f.account(t, "a", entity.Credits(50))

	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))

			for i := 0; i < 30; i++ {
				amount := int64(rng.Intn(900) + 1)
				id, err := f.svc.Reserve(f.ctx, usecase.ReserveRequest{AccountID: "a", Amount: amount})
				if err != nil {
					assert.True(t, errs.IsInsufficientCreditsError(err), "unexpected error: %v", err)
					continue
				}

				switch rng.Intn(3) {
				case 0:
					assert.NoError(t, f.svc.Cancel(f.ctx, id))
				case 1:
					assert.NoError(t, f.svc.Confirm(f.ctx, id, usecase.AsReserved()))
				default:
					assert.NoError(t, f.svc.Confirm(f.ctx, id, usecase.AtActual(rng.Int63n(amount+1))))
				}
			}
		}(int64(worker + 1))
	}
	wg.Wait()

	assert.GreaterOrEqual(t, f.balance(t, "a"), int64(0))
	f.requireConsistent(t, "a")

	page, err := f.svc.GetHistory(f.ctx, "a", MaxHistoryLimit, 0)
	require.NoError(t, err)
	for _, e := range page.Entries {
		assert.GreaterOrEqual(t, e.BalanceAfter, int64(0))
		assert.NotEqual(t, entity.StatusReserved, e.Status)
	}
}
