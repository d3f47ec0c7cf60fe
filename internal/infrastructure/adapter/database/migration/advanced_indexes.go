package migration

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/repository"
)

// FingerprintIndexSQL builds the partial unique index that lets at most one granted account
// hold a signup fingerprint. Placeholder fingerprints are excluded from the index.
func FingerprintIndexSQL(placeholders []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE UNIQUE INDEX IF NOT EXISTS %s ON accounts (lower(signup_fingerprint)) WHERE trial_granted", repository.FingerprintIndex)

	seen := make(map[string]struct{}, len(placeholders))
	quoted := make([]string, 0, len(placeholders))
	for _, fp := range placeholders {
		fp = strings.ToLower(strings.TrimSpace(fp))
		if _, ok := seen[fp]; ok {
			continue
		}
		seen[fp] = struct{}{}
		quoted = append(quoted, "'"+strings.ReplaceAll(fp, "'", "''")+"'")
	}
	if len(quoted) > 0 {
		fmt.Fprintf(&b, " AND lower(signup_fingerprint) NOT IN (%s)", strings.Join(quoted, ", "))
	}
	return b.String()
}

// AdvancedIndexManager manages PostgreSQL-specific advanced indexes
type AdvancedIndexManager struct {
	db     *gorm.DB
	logger coreport.Logger
}

// NewAdvancedIndexManager creates a new advanced index manager
func NewAdvancedIndexManager(db *gorm.DB, logger coreport.Logger) *AdvancedIndexManager {
	return &AdvancedIndexManager{
		db:     db,
		logger: logger,
	}
}

type indexDefinition struct {
	name string
	sql  string
}

var advancedIndexes = []indexDefinition{
	{
		// relay scans pending rows in insertion order
		name: "idx_outbox_messages_pending",
		sql: `CREATE INDEX IF NOT EXISTS idx_outbox_messages_pending
			ON outbox_messages (id)
			WHERE status = 'pending'`,
	},
	{
		name: "idx_ledger_entries_created_at_brin",
		sql: `CREATE INDEX IF NOT EXISTS idx_ledger_entries_created_at_brin
			ON ledger_entries USING BRIN (created_at)
			WITH (pages_per_range = 32)`,
	},
	{
		name: "idx_ledger_entries_account_kind",
		sql: `CREATE INDEX IF NOT EXISTS idx_ledger_entries_account_kind
			ON ledger_entries (account_id, kind)`,
	},
}

// CreateAdvancedIndexes creates advanced PostgreSQL indexes for better performance
func (m *AdvancedIndexManager) CreateAdvancedIndexes(ctx context.Context) error {
	m.logger.Info("Creating advanced PostgreSQL indexes", nil)

	db := m.db.WithContext(ctx)
	for _, idx := range advancedIndexes {
		if err := db.Exec(idx.sql).Error; err != nil {
			m.logger.Error("Failed to create index", map[string]any{
				"index": idx.name,
				"error": err.Error(),
			})
			return err
		}
	}

	m.logger.Info("Advanced PostgreSQL indexes created successfully", map[string]any{
		"count": len(advancedIndexes),
	})
	return nil
}

// CreatePerformanceTweaks applies storage settings for the hot tables. Failures are logged only.
func (m *AdvancedIndexManager) CreatePerformanceTweaks(ctx context.Context) {
	m.logger.Info("Applying PostgreSQL performance tweaks", nil)

	tweaks := []string{
		// balance updates rewrite the row; leave room for HOT updates
		`ALTER TABLE accounts SET (fillfactor = 80)`,
		`ALTER TABLE ledger_entries ALTER COLUMN account_id SET STATISTICS 1000`,
	}

	db := m.db.WithContext(ctx)
	for _, stmt := range tweaks {
		if err := db.Exec(stmt).Error; err != nil {
			m.logger.Warn("Failed to apply performance tweak", map[string]any{
				"statement": stmt,
				"error":     err.Error(),
			})
		}
	}
}
