package persistence

import (
	"context"
)

// UnitOfWork coordinates one storage transaction across the ledger repositories.
// Repositories obtained with a context returned by Begin are bound to that transaction;
// with any other context they read committed state.
type UnitOfWork interface {
	// Begin starts a new transaction and returns a transactional context
	Begin(ctx context.Context) (context.Context, error)

	// Commit commits the transaction in the given context
	Commit(ctx context.Context) error

	// Rollback rolls back the transaction in the given context
	Rollback(ctx context.Context) error

	// GetAccountRepository returns an account repository bound to the current transaction
	GetAccountRepository(ctx context.Context) AccountRepository

	// GetLedgerRepository returns a ledger repository bound to the current transaction
	GetLedgerRepository(ctx context.Context) LedgerRepository

	// GetOutboxRepository returns an outbox repository bound to the current transaction
	GetOutboxRepository(ctx context.Context) OutboxRepository
}
