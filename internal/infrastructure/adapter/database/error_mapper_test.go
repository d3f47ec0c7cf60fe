package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	domainErr "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/repository"
)

func TestErrorMapper_MapError(t *testing.T) {
	mapper := NewErrorMapper()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "lock timeout", err: &pgconn.PgError{Code: "55P03"}, want: domainErr.ErrAccountLocked},
		{name: "fingerprint taken", err: &pgconn.PgError{Code: "23505", ConstraintName: repository.FingerprintIndex}, want: domainErr.ErrTrialAlreadyUsed},
		{name: "duplicate account", err: &pgconn.PgError{Code: "23505", ConstraintName: "accounts_pkey"}, want: domainErr.ErrDuplicateAccount},
		{name: "check violation", err: &pgconn.PgError{Code: "23514"}, want: domainErr.ErrConstraintViolation},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), want: domainErr.ErrDatabaseConnection},
		{name: "timeout", err: context.DeadlineExceeded, want: domainErr.ErrDatabaseConnection},
		{name: "record not found", err: gorm.ErrRecordNotFound, want: domainErr.ErrAccountNotFound},
		{name: "anything else", err: errors.New("syntax error"), want: domainErr.ErrInternalServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapper.MapError(tt.err, "test"), tt.want)
		})
	}

	assert.NoError(t, mapper.MapError(nil, "test"))
}

func TestErrorMapper_MapEntityNotFoundError(t *testing.T) {
	mapper := NewErrorMapper()

	assert.ErrorIs(t, mapper.MapEntityNotFoundError(gorm.ErrRecordNotFound, EntityTypeAccount), domainErr.ErrAccountNotFound)
	assert.ErrorIs(t, mapper.MapEntityNotFoundError(gorm.ErrRecordNotFound, EntityTypeLedgerEntry), domainErr.ErrEntryNotFound)
	assert.ErrorIs(t, mapper.MapEntityNotFoundError(&pgconn.PgError{Code: "40001"}, EntityTypeLedgerEntry), domainErr.ErrAccountLocked)
	assert.NoError(t, mapper.MapEntityNotFoundError(nil, EntityTypeAccount))
}

func TestErrorMapper_IsRetryable(t *testing.T) {
	mapper := NewErrorMapper()

	assert.True(t, mapper.IsRetryable(&pgconn.PgError{Code: "40P01"}))
	assert.True(t, mapper.IsRetryable(fmt.Errorf("query: %w", &pgconn.PgError{Code: "57014"})))
	assert.True(t, mapper.IsRetryable(errors.New("read: connection reset by peer")))

	assert.False(t, mapper.IsRetryable(nil))
	assert.False(t, mapper.IsRetryable(context.Canceled))
	assert.False(t, mapper.IsRetryable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, mapper.IsRetryable(gorm.ErrRecordNotFound))
}
