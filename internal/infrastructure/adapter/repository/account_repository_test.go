package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/database"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/logger"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/repository"
)

var (
	ctx     = context.Background()
	created = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
)

var accountColumns = []string{
	"id", "balance", "trial_granted", "trial_expires_at", "trial_reclaimed",
	"signup_fingerprint", "created_at", "updated_at",
}

func TestAccountRepository_GetByID(t *testing.T) {
	db, mock := database.NewMockDB(t)
	repo := repository.NewAccountRepository(db, logger.NewNoopLogger())

	expires := created.Add(7 * 24 * time.Hour)
	mock.ExpectQuery(`SELECT \* FROM "accounts" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows(accountColumns).
			AddRow("acct-1", int64(1250), true, expires, false, "203.0.113.7", created, created))

	account, err := repo.GetByID(ctx, "acct-1")
	require.NoError(t, err)

	assert.Equal(t, "acct-1", account.ID)
	assert.Equal(t, int64(1250), account.Balance())
	assert.True(t, account.TrialGranted)
	require.NotNil(t, account.TrialExpiresAt)
	assert.True(t, expires.Equal(*account.TrialExpiresAt))
	assert.Equal(t, "203.0.113.7", account.SignupFingerprint)
}

func TestAccountRepository_GetByID_NotFound(t *testing.T) {
	db, mock := database.NewMockDB(t)
	repo := repository.NewAccountRepository(db, logger.NewNoopLogger())

	mock.ExpectQuery(`SELECT \* FROM "accounts"`).
		WillReturnRows(sqlmock.NewRows(accountColumns))

	_, err := repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, errs.ErrAccountNotFound)
}

func TestAccountRepository_LockByID(t *testing.T) {
	t.Run("requires a transaction", func(t *testing.T) {
		db, _ := database.NewMockDB(t)
		repo := repository.NewAccountRepository(db, logger.NewNoopLogger())

		_, err := repo.LockByID(ctx, "acct-1")
		assert.ErrorIs(t, err, errs.ErrNoTransaction)
	})

	t.Run("selects for update", func(t *testing.T) {
		db, mock := database.NewMockDB(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "accounts" WHERE id = \$1 .*FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows(accountColumns).
				AddRow("acct-1", int64(500), false, nil, false, "", created, created))
		mock.ExpectRollback()

		tx := db.Begin()
		require.NoError(t, tx.Error)
		repo := repository.NewAccountRepository(tx, logger.NewNoopLogger())

		account, err := repo.LockByID(ctx, "acct-1")
		require.NoError(t, err)
		assert.Equal(t, int64(500), account.Balance())
		assert.Nil(t, account.TrialExpiresAt)

		require.NoError(t, tx.Rollback().Error)
	})

	t.Run("lock timeout maps to account locked", func(t *testing.T) {
		db, mock := database.NewMockDB(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).
			WillReturnError(&pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"})
		mock.ExpectRollback()

		tx := db.Begin()
		require.NoError(t, tx.Error)
		repo := repository.NewAccountRepository(tx, logger.NewNoopLogger())

		_, err := repo.LockByID(ctx, "acct-1")
		assert.True(t, errs.IsAccountLockedError(err))

		require.NoError(t, tx.Rollback().Error)
	})
}

func TestAccountRepository_Create(t *testing.T) {
	t.Run("inserts the account", func(t *testing.T) {
		db, mock := database.NewMockDB(t)
		repo := repository.NewAccountRepository(db, logger.NewNoopLogger())

		mock.ExpectExec(`INSERT INTO "accounts"`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Create(ctx, entity.RestoreAccount("acct-1", 0, created, created))
		assert.NoError(t, err)
	})

	t.Run("primary key conflict", func(t *testing.T) {
		db, mock := database.NewMockDB(t)
		repo := repository.NewAccountRepository(db, logger.NewNoopLogger())

		mock.ExpectExec(`INSERT INTO "accounts"`).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_pkey"})

		err := repo.Create(ctx, entity.RestoreAccount("acct-1", 0, created, created))
		assert.ErrorIs(t, err, errs.ErrDuplicateAccount)
	})
}

func TestAccountRepository_Update(t *testing.T) {
	account := entity.RestoreAccount("acct-1", 900, created, created)
	account.TrialGranted = true
	account.SignupFingerprint = "203.0.113.7"

	t.Run("writes balance and trial state", func(t *testing.T) {
		db, mock := database.NewMockDB(t)
		repo := repository.NewAccountRepository(db, logger.NewNoopLogger())

		mock.ExpectExec(`UPDATE "accounts" SET .*"balance"=.* WHERE id = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Update(ctx, account))
	})

	t.Run("fingerprint already granted elsewhere", func(t *testing.T) {
		db, mock := database.NewMockDB(t)
		repo := repository.NewAccountRepository(db, logger.NewNoopLogger())

		mock.ExpectExec(`UPDATE "accounts"`).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: repository.FingerprintIndex})

		assert.ErrorIs(t, repo.Update(ctx, account), errs.ErrTrialAlreadyUsed)
	})

	t.Run("negative balance rejected by check constraint", func(t *testing.T) {
		db, mock := database.NewMockDB(t)
		repo := repository.NewAccountRepository(db, logger.NewNoopLogger())

		mock.ExpectExec(`UPDATE "accounts"`).
			WillReturnError(&pgconn.PgError{Code: "23514", ConstraintName: "chk_accounts_balance_non_negative"})

		assert.ErrorIs(t, repo.Update(ctx, account), errs.ErrConstraintViolation)
	})

	t.Run("missing row", func(t *testing.T) {
		db, mock := database.NewMockDB(t)
		repo := repository.NewAccountRepository(db, logger.NewNoopLogger())

		mock.ExpectExec(`UPDATE "accounts"`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Update(ctx, account), errs.ErrAccountNotFound)
	})
}

func TestAccountRepository_FingerprintInUse(t *testing.T) {
	db, mock := database.NewMockDB(t)
	repo := repository.NewAccountRepository(db, logger.NewNoopLogger())

	mock.ExpectQuery(`SELECT count\(\*\) FROM "accounts" WHERE trial_granted = \$1 AND lower\(signup_fingerprint\) = \$2 AND id <> \$3`).
		WithArgs(true, "device-abc", "acct-2").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	inUse, err := repo.FingerprintInUse(ctx, "  Device-ABC ", "acct-2")
	require.NoError(t, err)
	assert.True(t, inUse)
}

func TestAccountRepository_ListExpiredTrials(t *testing.T) {
	db, mock := database.NewMockDB(t)
	repo := repository.NewAccountRepository(db, logger.NewNoopLogger())

	now := created.Add(8 * 24 * time.Hour)
	mock.ExpectQuery(`SELECT "id" FROM "accounts" WHERE .*trial_expires_at < \$3 ORDER BY trial_expires_at, id LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("acct-1").AddRow("acct-7"))

	ids, err := repo.ListExpiredTrials(ctx, now, 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"acct-1", "acct-7"}, ids)
}
