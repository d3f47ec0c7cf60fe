package repository_test

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/persistence"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/database"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/logger"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/repository"
)

var entryColumns = []string{
	"id", "account_id", "amount", "balance_after", "kind", "service_type", "reference_id",
	"related_entry_id", "status", "description", "metadata", "created_at", "updated_at",
}

func newLedgerRepo(t *testing.T) (*repository.LedgerRepository, sqlmock.Sqlmock) {
	db, mock := database.NewMockDB(t)
	return repository.NewLedgerRepository(db, logger.NewNoopLogger()), mock
}

func TestLedgerRepository_Create(t *testing.T) {
	repo, mock := newLedgerRepo(t)

	mock.ExpectQuery(`INSERT INTO "ledger_entries" .* RETURNING "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	entry := &entity.LedgerEntry{
		AccountID:    "acct-1",
		Amount:       -400,
		BalanceAfter: 600,
		Kind:         entity.KindUsage,
		ServiceType:  entity.ServiceWebExtraction,
		ReferenceID:  "job-1",
		Status:       entity.StatusReserved,
		Metadata:     map[string]any{"pages": 20},
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	require.NoError(t, repo.Create(ctx, entry))
	assert.Equal(t, uint64(42), entry.ID)
}

func TestLedgerRepository_Create_CheckViolation(t *testing.T) {
	repo, mock := newLedgerRepo(t)

	mock.ExpectQuery(`INSERT INTO "ledger_entries"`).
		WillReturnError(&pgconn.PgError{Code: "23514", ConstraintName: "chk_ledger_entries_balance_after"})

	err := repo.Create(ctx, &entity.LedgerEntry{AccountID: "acct-1", Amount: -100, BalanceAfter: -1})
	assert.ErrorIs(t, err, errs.ErrConstraintViolation)
}

func TestLedgerRepository_GetByID(t *testing.T) {
	t.Run("decodes metadata and related entry", func(t *testing.T) {
		repo, mock := newLedgerRepo(t)

		mock.ExpectQuery(`SELECT \* FROM "ledger_entries" WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows(entryColumns).AddRow(
				7, "acct-1", int64(400), int64(1000), "refund", "web_extraction", "job-1",
				uint64(6), "completed", "reservation released",
				[]byte(`{"reason":"reservation_expired"}`), created, created,
			))

		entry, err := repo.GetByID(ctx, 7)
		require.NoError(t, err)

		assert.Equal(t, entity.KindRefund, entry.Kind)
		assert.Equal(t, entity.StatusCompleted, entry.Status)
		require.NotNil(t, entry.RelatedEntryID)
		assert.Equal(t, uint64(6), *entry.RelatedEntryID)
		assert.Equal(t, "reservation_expired", entry.Metadata["reason"])
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newLedgerRepo(t)

		mock.ExpectQuery(`SELECT \* FROM "ledger_entries"`).
			WillReturnRows(sqlmock.NewRows(entryColumns))

		_, err := repo.GetByID(ctx, 99)
		assert.ErrorIs(t, err, errs.ErrEntryNotFound)
	})
}

func TestLedgerRepository_UpdateSettlement(t *testing.T) {
	entry := &entity.LedgerEntry{ID: 6, Amount: -300, Status: entity.StatusCompleted, UpdatedAt: created}

	t.Run("only a reserved row is settled", func(t *testing.T) {
		repo, mock := newLedgerRepo(t)

		mock.ExpectExec(`UPDATE "ledger_entries" SET .* WHERE id = \$\d+ AND status = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.UpdateSettlement(ctx, entry))
	})

	t.Run("already settled", func(t *testing.T) {
		repo, mock := newLedgerRepo(t)

		mock.ExpectExec(`UPDATE "ledger_entries"`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateSettlement(ctx, entry)
		assert.True(t, errs.IsInvalidReservationStateError(err))
	})

	t.Run("serialization failure", func(t *testing.T) {
		repo, mock := newLedgerRepo(t)

		mock.ExpectExec(`UPDATE "ledger_entries"`).
			WillReturnError(&pgconn.PgError{Code: "40001", Message: "could not serialize access due to concurrent update"})

		err := repo.UpdateSettlement(ctx, entry)
		assert.True(t, errs.IsAccountLockedError(err))
	})
}

func TestLedgerRepository_ListByAccount(t *testing.T) {
	repo, mock := newLedgerRepo(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "ledger_entries" WHERE account_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`SELECT \* FROM "ledger_entries" WHERE account_id = \$1 ORDER BY created_at DESC, id DESC LIMIT`).
		WillReturnRows(sqlmock.NewRows(entryColumns).
			AddRow(3, "acct-1", int64(-200), int64(800), "usage", "export", "job-2", nil, "completed", "", nil, created.Add(time.Minute), created).
			AddRow(2, "acct-1", int64(1000), int64(1000), "purchase", "", "order-1", nil, "completed", "", nil, created, created))

	entries, total, err := repo.ListByAccount(ctx, "acct-1", 2, 0)
	require.NoError(t, err)

	assert.Equal(t, int64(3), total)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(3), entries[0].ID)
	assert.Nil(t, entries[0].Metadata)
	assert.Nil(t, entries[1].RelatedEntryID)
}

func TestLedgerRepository_FindByReference(t *testing.T) {
	repo, mock := newLedgerRepo(t)

	mock.ExpectQuery(`SELECT \* FROM "ledger_entries" WHERE reference_id = \$1 ORDER BY created_at, id`).
		WillReturnRows(sqlmock.NewRows(entryColumns).
			AddRow(4, "acct-1", int64(-400), int64(600), "usage", "web_extraction", "job-1", nil, "reserved", "", nil, created, created))

	entries, err := repo.FindByReference(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.StatusReserved, entries[0].Status)
}

func TestLedgerRepository_TrialUsage(t *testing.T) {
	repo, mock := newLedgerRepo(t)

	trialEnd := created.Add(7 * 24 * time.Hour)
	mock.ExpectQuery(`SELECT .* AS granted,.* AS used,.* AS expired,.* AS pending\s+FROM ledger_entries\s+WHERE account_id = \$9`).
		WithArgs("trial_grant", "usage", "refunded", trialEnd, "expiration", "usage", "reserved", trialEnd, "acct-1").
		WillReturnRows(sqlmock.NewRows([]string{"granted", "used", "expired", "pending"}).AddRow(1000, 300, 0, 100))

	usage, err := repo.TrialUsage(ctx, "acct-1", trialEnd)
	require.NoError(t, err)

	assert.Equal(t, persistence.TrialUsage{Granted: 1000, Used: 300, Pending: 100}, usage)
	assert.Equal(t, int64(700), usage.Remaining())
}

func TestLedgerRepository_ListStaleReservations(t *testing.T) {
	repo, mock := newLedgerRepo(t)

	mock.ExpectQuery(`SELECT "id" FROM "ledger_entries" WHERE status = \$1 AND created_at < \$2 ORDER BY created_at, id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4).AddRow(9))

	ids, err := repo.ListStaleReservations(ctx, created, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 9}, ids)
}

func TestLedgerRepository_SumByAccount(t *testing.T) {
	repo, mock := newLedgerRepo(t)

	mock.ExpectQuery(`LEFT JOIN ledger_entries r ON r.id = e.related_entry_id`).
		WithArgs("refund", "completed", "acct-1").
		WillReturnRows(sqlmock.NewRows([]string{"total", "entries"}).AddRow(700, 4))

	sum, count, err := repo.SumByAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(700), sum)
	assert.Equal(t, int64(4), count)
}
