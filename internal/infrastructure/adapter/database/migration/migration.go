package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/model"
)

// step is one schema version. Steps run in order, each in its own transaction.
type step struct {
	version     string
	description string
	apply       func(tx *gorm.DB) error
}

// MigrationManager manages database migrations
type MigrationManager struct {
	db               *gorm.DB
	logger           coreport.Logger
	timeProvider     coreport.TimeProvider
	advancedIndexMgr *AdvancedIndexManager
	steps            []step
}

// NewMigrationManager creates a new migration manager. placeholderFingerprints are left out
// of the one-trial-per-fingerprint index.
func NewMigrationManager(db *gorm.DB, logger coreport.Logger, timeProvider coreport.TimeProvider, placeholderFingerprints []string) *MigrationManager {
	m := &MigrationManager{
		db:               db,
		logger:           logger,
		timeProvider:     timeProvider,
		advancedIndexMgr: NewAdvancedIndexManager(db, logger),
	}

	m.steps = []step{
		{
			version:     "1.0.0",
			description: "accounts, ledger entries and outbox",
			apply:       m.createLedgerSchema,
		},
		{
			version:     "1.1.0",
			description: "one trial per signup fingerprint",
			apply: func(tx *gorm.DB) error {
				return tx.Exec(FingerprintIndexSQL(placeholderFingerprints)).Error
			},
		},
	}
	return m
}

// CurrentSchemaVersion returns the version the latest step brings the schema to
func (m *MigrationManager) CurrentSchemaVersion() string {
	return m.steps[len(m.steps)-1].version
}

// MigrateAll applies every step newer than the recorded schema version
func (m *MigrationManager) MigrateAll(ctx context.Context) error {
	target := m.CurrentSchemaVersion()
	m.logger.Info("Starting database migrations", map[string]any{
		"target_version": target,
	})

	if err := m.db.WithContext(ctx).AutoMigrate(&model.MigrationVersion{}); err != nil {
		m.logger.Error("Failed to create migration version table", map[string]any{
			"error": err.Error(),
		})
		return err
	}

	currentVersion, err := m.GetCurrentVersion(ctx)
	if err != nil {
		m.logger.Error("Failed to check current schema version", map[string]any{
			"error": err.Error(),
		})
		return err
	}

	pending, err := m.pendingSteps(currentVersion)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		m.logger.Info("Database already at target version, skipping migration", map[string]any{
			"version": currentVersion,
		})
		return nil
	}

	for _, s := range pending {
		m.logger.Info("Applying schema migration", map[string]any{
			"from":        currentVersion,
			"to":          s.version,
			"description": s.description,
		})

		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.apply(tx); err != nil {
				return err
			}
			return m.setVersion(tx, s.version, s.description)
		})
		if err != nil {
			m.logger.Error("Schema migration failed", map[string]any{
				"version": s.version,
				"error":   err.Error(),
			})
			return fmt.Errorf("migration %s: %w", s.version, err)
		}
		currentVersion = s.version
	}

	if err := m.advancedIndexMgr.CreateAdvancedIndexes(ctx); err != nil {
		m.logger.Error("Failed to create advanced indexes", map[string]any{
			"error": err.Error(),
		})
		return err
	}
	m.advancedIndexMgr.CreatePerformanceTweaks(ctx)

	m.logger.Info("Database migrations completed successfully", map[string]any{
		"version": target,
	})
	return nil
}

// GetCurrentVersion gets the current migration version
func (m *MigrationManager) GetCurrentVersion(ctx context.Context) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	var version model.MigrationVersion
	result := m.db.WithContext(ctx).Order("applied_at desc, id desc").First(&version)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", result.Error
	}

	return version.Version, nil
}

// pendingSteps returns the steps after currentVersion
func (m *MigrationManager) pendingSteps(currentVersion string) ([]step, error) {
	if currentVersion == "" {
		return m.steps, nil
	}
	for i, s := range m.steps {
		if s.version == currentVersion {
			return m.steps[i+1:], nil
		}
	}
	return nil, fmt.Errorf("unknown schema version %q", currentVersion)
}

// setVersion records a new migration version
func (m *MigrationManager) setVersion(tx *gorm.DB, version string, details string) error {
	appliedAt := time.Now()
	if m.timeProvider != nil {
		appliedAt = m.timeProvider.Now()
	}

	return tx.Create(&model.MigrationVersion{
		Version:   version,
		AppliedAt: appliedAt,
		Details:   details,
	}).Error
}

// createLedgerSchema creates the tables and the indexes the ledger queries rely on
func (m *MigrationManager) createLedgerSchema(tx *gorm.DB) error {
	if err := tx.AutoMigrate(
		&model.Account{},
		&model.LedgerEntry{},
		&model.OutboxMessage{},
	); err != nil {
		return err
	}

	statements := []string{
		`ALTER TABLE ledger_entries
			ADD CONSTRAINT fk_ledger_entries_account
			FOREIGN KEY (account_id) REFERENCES accounts (id)`,
		`ALTER TABLE ledger_entries
			ADD CONSTRAINT fk_ledger_entries_related
			FOREIGN KEY (related_entry_id) REFERENCES ledger_entries (id)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_account_created
			ON ledger_entries (account_id, created_at DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_reference
			ON ledger_entries (reference_id)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_reserved
			ON ledger_entries (created_at, id)
			WHERE status = 'reserved'`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_trial_open
			ON accounts (trial_expires_at, id)
			WHERE trial_granted AND NOT trial_reclaimed`,
	}
	for _, stmt := range statements {
		if err := tx.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
