package scheduler

import (
	"context"
	"time"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/usecase"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/usecase/outbox"
)

// Task names
const (
	TrialSweepTaskName       = "trial_expiry_sweep"
	ReservationSweepTaskName = "reservation_sweep"
	OutboxRelayTaskName      = "outbox_relay"
)

// TrialSweepTask reclaims expired trial credit, one batch per tick
func TrialSweepTask(ledger usecase.LedgerUseCase, interval time.Duration, batchSize int) Task {
	return Task{
		Name:     TrialSweepTaskName,
		Interval: interval,
		Run: func(ctx context.Context) error {
			_, err := ledger.SweepExpiredTrials(ctx, batchSize)
			return err
		},
	}
}

// ReservationSweepTask cancels stale reservations, one batch per tick
func ReservationSweepTask(ledger usecase.LedgerUseCase, interval time.Duration, batchSize int) Task {
	return Task{
		Name:     ReservationSweepTaskName,
		Interval: interval,
		Run: func(ctx context.Context) error {
			_, err := ledger.SweepStaleReservations(ctx, batchSize)
			return err
		},
	}
}

// OutboxRelayTask publishes pending ledger events, one batch per tick
func OutboxRelayTask(relay *outbox.Relay, interval time.Duration) Task {
	return Task{
		Name:     OutboxRelayTaskName,
		Interval: interval,
		Run: func(ctx context.Context) error {
			_, err := relay.RelayOnce(ctx)
			return err
		},
	}
}
