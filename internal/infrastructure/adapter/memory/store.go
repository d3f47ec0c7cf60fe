package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/persistence"
)

type contextKey string

const txKey contextKey = "memory_tx"

// Store keeps accounts, entries and outbox messages in process memory and implements
// persistence.UnitOfWork. Account locks are per account, so transactions on different
// accounts never wait for each other. Writes are buffered in the transaction and applied
// on commit; reads outside a lock see committed state only.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*entity.Account
	entries  map[uint64]*entity.LedgerEntry
	outbox   map[uint64]*entity.OutboxMessage

	nextEntryID  atomic.Uint64
	nextOutboxID atomic.Uint64

	locksMu sync.Mutex
	locks   map[string]chan struct{}

	// fingerprints that may be shared between granted accounts
	sharedFingerprints map[string]struct{}

	logger coreport.Logger
}

var _ persistence.UnitOfWork = (*Store)(nil)

// NewStore creates an empty store. sharedFingerprints lists placeholder fingerprints that
// are exempt from the one-trial-per-fingerprint constraint.
func NewStore(logger coreport.Logger, sharedFingerprints []string) *Store {
	shared := make(map[string]struct{}, len(sharedFingerprints))
	for _, fp := range sharedFingerprints {
		shared[strings.ToLower(strings.TrimSpace(fp))] = struct{}{}
	}

	return &Store{
		accounts:           make(map[string]*entity.Account),
		entries:            make(map[uint64]*entity.LedgerEntry),
		outbox:             make(map[uint64]*entity.OutboxMessage),
		locks:              make(map[string]chan struct{}),
		sharedFingerprints: shared,
		logger:             logger,
	}
}

// memTx buffers the writes of one transaction
type memTx struct {
	held     map[string]chan struct{}
	accounts map[string]*entity.Account
	created  map[string]struct{}
	entries  map[uint64]*entity.LedgerEntry
	outbox   map[uint64]*entity.OutboxMessage
	done     bool
}

// Begin starts a new transaction
func (s *Store) Begin(ctx context.Context) (context.Context, error) {
	if tx, ok := ctx.Value(txKey).(*memTx); ok && tx != nil && !tx.done {
		return ctx, fmt.Errorf("transaction already in progress")
	}

	tx := &memTx{
		held:     make(map[string]chan struct{}),
		accounts: make(map[string]*entity.Account),
		created:  make(map[string]struct{}),
		entries:  make(map[uint64]*entity.LedgerEntry),
		outbox:   make(map[uint64]*entity.OutboxMessage),
	}
	return context.WithValue(ctx, txKey, tx), nil
}

// Commit applies buffered writes and releases held account locks
func (s *Store) Commit(ctx context.Context) error {
	tx, err := txFromContext(ctx)
	if err != nil {
		return err
	}
	if tx.done {
		return fmt.Errorf("transaction already finished")
	}
	defer s.finish(tx)

	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range tx.created {
		if _, exists := s.accounts[id]; exists {
			return errs.ErrDuplicateAccount
		}
	}
	for _, account := range tx.accounts {
		if s.fingerprintTakenLocked(account, tx) {
			return errs.ErrTrialAlreadyUsed
		}
	}

	for id, account := range tx.accounts {
		s.accounts[id] = cloneAccount(account)
	}
	for id, entry := range tx.entries {
		s.entries[id] = cloneEntry(entry)
	}
	for id, msg := range tx.outbox {
		s.outbox[id] = cloneMessage(msg)
	}
	return nil
}

// Rollback discards buffered writes and releases held account locks
func (s *Store) Rollback(ctx context.Context) error {
	tx, err := txFromContext(ctx)
	if err != nil {
		return err
	}
	if tx.done {
		s.logger.Warn("Transaction has already been committed or rolled back", nil)
		return nil
	}
	s.finish(tx)
	return nil
}

// GetAccountRepository returns an account repository bound to the transaction in ctx, if any
func (s *Store) GetAccountRepository(ctx context.Context) persistence.AccountRepository {
	return &accountRepository{store: s, tx: activeTx(ctx)}
}

// GetLedgerRepository returns a ledger repository bound to the transaction in ctx, if any
func (s *Store) GetLedgerRepository(ctx context.Context) persistence.LedgerRepository {
	return &ledgerRepository{store: s, tx: activeTx(ctx)}
}

// GetOutboxRepository returns an outbox repository bound to the transaction in ctx, if any
func (s *Store) GetOutboxRepository(ctx context.Context) persistence.OutboxRepository {
	return &outboxRepository{store: s, tx: activeTx(ctx)}
}

func (s *Store) finish(tx *memTx) {
	tx.done = true
	for id, ch := range tx.held {
		<-ch
		delete(tx.held, id)
	}
}

// lockAccount blocks until the account lock is free or ctx is done
func (s *Store) lockAccount(ctx context.Context, tx *memTx, id string) error {
	if _, ok := tx.held[id]; ok {
		return nil
	}

	s.locksMu.Lock()
	ch, ok := s.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[id] = ch
	}
	s.locksMu.Unlock()

	select {
	case ch <- struct{}{}:
		tx.held[id] = ch
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", errs.ErrAccountLocked, ctx.Err())
	}
}

// fingerprintTakenLocked reports whether another granted account holds the same
// non-shared fingerprint. Caller holds s.mu.
func (s *Store) fingerprintTakenLocked(account *entity.Account, tx *memTx) bool {
	if !account.TrialGranted {
		return false
	}
	fp := strings.ToLower(strings.TrimSpace(account.SignupFingerprint))
	if _, shared := s.sharedFingerprints[fp]; shared {
		return false
	}

	matches := func(other *entity.Account) bool {
		return other.ID != account.ID && other.TrialGranted &&
			strings.ToLower(strings.TrimSpace(other.SignupFingerprint)) == fp
	}

	for id, other := range s.accounts {
		if tx != nil {
			if pending, ok := tx.accounts[id]; ok {
				other = pending
			}
		}
		if matches(other) {
			return true
		}
	}
	if tx != nil {
		for id, other := range tx.accounts {
			if _, committed := s.accounts[id]; !committed && matches(other) {
				return true
			}
		}
	}
	return false
}

func txFromContext(ctx context.Context) (*memTx, error) {
	tx, ok := ctx.Value(txKey).(*memTx)
	if !ok || tx == nil {
		return nil, errs.ErrNoTransaction
	}
	return tx, nil
}

func activeTx(ctx context.Context) *memTx {
	tx, ok := ctx.Value(txKey).(*memTx)
	if !ok || tx == nil || tx.done {
		return nil
	}
	return tx
}

func cloneAccount(a *entity.Account) *entity.Account {
	c := *a
	if a.TrialExpiresAt != nil {
		t := *a.TrialExpiresAt
		c.TrialExpiresAt = &t
	}
	return &c
}

func cloneEntry(e *entity.LedgerEntry) *entity.LedgerEntry {
	c := *e
	if e.RelatedEntryID != nil {
		id := *e.RelatedEntryID
		c.RelatedEntryID = &id
	}
	if e.Metadata != nil {
		c.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

func cloneMessage(m *entity.OutboxMessage) *entity.OutboxMessage {
	c := *m
	c.Payload = append([]byte(nil), m.Payload...)
	if m.SentAt != nil {
		t := *m.SentAt
		c.SentAt = &t
	}
	return &c
}
