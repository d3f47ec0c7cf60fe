package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	cacheport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/cache"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/persistence"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/usecase"
)

// Event types written to the outbox
const (
	EventEntryCreated = "ledger.entry.created"
	EventEntrySettled = "ledger.entry.settled"
)

// DefaultPlaceholderFingerprints are signup fingerprints that never block a trial
var DefaultPlaceholderFingerprints = []string{
	"", "127.0.0.1", "::1", "localhost", "0.0.0.0", "unknown", "::ffff:127.0.0.1",
}

// Config holds ledger behaviour settings
type Config struct {
	TrialAmount             int64         // hundredths of a credit
	TrialDuration           time.Duration // trial window length
	ReservationTTL          time.Duration // 0 disables the stale reservation sweep
	PublishEvents           bool          // write outbox rows for every ledger change
	EventTopic              string
	PlaceholderFingerprints []string
	MaxTxAttempts           int           // attempts for a transaction hitting lock contention
	RetryBackoff            time.Duration // first backoff, doubled per attempt
}

// DefaultConfig returns the settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		TrialAmount:             entity.Credits(10),
		TrialDuration:           7 * 24 * time.Hour,
		ReservationTTL:          24 * time.Hour,
		EventTopic:              "ledger.entries",
		PlaceholderFingerprints: DefaultPlaceholderFingerprints,
		MaxTxAttempts:           3,
		RetryBackoff:            50 * time.Millisecond,
	}
}

// Service implements the credit ledger. Every balance change goes through applyLocked
// inside a transaction that holds the account row lock.
type Service struct {
	uow          persistence.UnitOfWork
	cache        cacheport.BalanceCache
	timeProvider coreport.TimeProvider
	logger       coreport.Logger
	cfg          Config
	placeholders map[string]struct{}
}

var _ usecase.LedgerUseCase = (*Service)(nil)

// NewService creates a ledger service. cache may be nil.
func NewService(
	uow persistence.UnitOfWork,
	cache cacheport.BalanceCache,
	timeProvider coreport.TimeProvider,
	logger coreport.Logger,
	cfg Config,
) *Service {
	if cfg.MaxTxAttempts < 1 {
		cfg.MaxTxAttempts = 1
	}
	if cfg.EventTopic == "" {
		cfg.EventTopic = "ledger.entries"
	}
	if cfg.PlaceholderFingerprints == nil {
		cfg.PlaceholderFingerprints = DefaultPlaceholderFingerprints
	}

	placeholders := make(map[string]struct{}, len(cfg.PlaceholderFingerprints))
	for _, fp := range cfg.PlaceholderFingerprints {
		placeholders[normalizeFingerprint(fp)] = struct{}{}
	}

	return &Service{
		uow:          uow,
		cache:        cache,
		timeProvider: timeProvider,
		logger:       logger,
		cfg:          cfg,
		placeholders: placeholders,
	}
}

// withTransaction runs fn in one storage transaction and retries the whole
// transaction when it lost a lock race.
func (s *Service) withTransaction(ctx context.Context, operation string, fn func(txCtx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= s.cfg.MaxTxAttempts; attempt++ {
		err = s.runInTransaction(ctx, fn)
		if err == nil || !errs.IsAccountLockedError(err) || attempt == s.cfg.MaxTxAttempts {
			return err
		}

		backoff := s.cfg.RetryBackoff * time.Duration(1<<uint(attempt-1))
		s.logger.Warn("Lock contention, retrying transaction", map[string]any{
			"operation":    operation,
			"attempt":      attempt,
			"max_attempts": s.cfg.MaxTxAttempts,
			"retry_after":  backoff.String(),
			"error":        err.Error(),
		})

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (s *Service) runInTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	txCtx, err := s.uow.Begin(ctx)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := s.uow.Rollback(txCtx); rbErr != nil {
			s.logger.Error("Failed to rollback transaction", map[string]any{
				"error": rbErr.Error(),
			})
		}
	}()

	if err := fn(txCtx); err != nil {
		return err
	}

	committed = true
	return s.uow.Commit(txCtx)
}

// invalidateBalance drops the cached balance after a committed change
func (s *Service) invalidateBalance(ctx context.Context, accountID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, accountID); err != nil {
		s.logger.Warn("Failed to invalidate cached balance", map[string]any{
			"account_id": accountID,
			"error":      err.Error(),
		})
	}
}

// recordEvent writes an outbox row in the current transaction
func (s *Service) recordEvent(txCtx context.Context, eventType string, entry *entity.LedgerEntry) error {
	if !s.cfg.PublishEvents {
		return nil
	}

	now := s.timeProvider.Now()
	payload, err := json.Marshal(entity.NewLedgerEvent(eventType, entry, now))
	if err != nil {
		return fmt.Errorf("encode ledger event: %w", err)
	}

	return s.uow.GetOutboxRepository(txCtx).Create(txCtx, &entity.OutboxMessage{
		MessageKey: uuid.NewString(),
		Topic:      s.cfg.EventTopic,
		Key:        entry.AccountID,
		Payload:    payload,
		Status:     entity.OutboxPending,
		CreatedAt:  now,
	})
}

func normalizeFingerprint(fp string) string {
	return strings.ToLower(strings.TrimSpace(fp))
}

func (s *Service) isPlaceholderFingerprint(fp string) bool {
	_, ok := s.placeholders[normalizeFingerprint(fp)]
	return ok
}

func logFieldsOf(err error) map[string]any {
	type logFielder interface {
		LogFields() map[string]any
	}
	var lf logFielder
	if errors.As(err, &lf) {
		return lf.LogFields()
	}
	return map[string]any{"error": err.Error()}
}
