package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the schema version this build requires. Migrate
// fails if the database cannot be brought up to it.
const ExpectedSchemaVersion = 3

type migration struct {
	description string
	statements  []string
	version     int
}

var migrations = []migration{
	{
		version:     1,
		description: "applications and policies",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS applications (
				id TEXT PRIMARY KEY,
				domain TEXT NOT NULL,
				applicant_name TEXT,
				input_features TEXT NOT NULL,
				status TEXT NOT NULL,
				label TEXT NOT NULL DEFAULT 'Pending',
				confidence REAL NOT NULL DEFAULT 0,
				ai_result TEXT,
				explanation TEXT NOT NULL DEFAULT '',
				is_override INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX idx_applications_domain ON applications(domain)`,
			`CREATE INDEX idx_applications_status ON applications(status)`,
			`CREATE TABLE IF NOT EXISTS policies (
				id TEXT NOT NULL,
				domain TEXT NOT NULL,
				text TEXT NOT NULL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (domain, id)
			)`,
		},
	},
	{
		version:     2,
		description: "decision memory for prompt context",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS decision_memory (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				domain TEXT NOT NULL,
				label TEXT NOT NULL,
				reasoning TEXT NOT NULL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX idx_decision_memory_domain ON decision_memory(domain, created_at)`,
		},
	},
	{
		version:     3,
		description: "override explanations and classification errors",
		statements: []string{
			`ALTER TABLE applications ADD COLUMN override_explanation TEXT NOT NULL DEFAULT ''`,
			`ALTER TABLE applications ADD COLUMN last_error TEXT NOT NULL DEFAULT ''`,
		},
	},
}

// Migrate brings the schema up to ExpectedSchemaVersion. Each migration runs
// in its own transaction with the user_version bump, so a failure leaves the
// database at the last fully applied version.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	current, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return err
		}
		slog.Info("schema migrated", "version", m.version, "description", m.description)
	}

	final, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}
	if final != ExpectedSchemaVersion {
		return fmt.Errorf("schema version mismatch: want %d, have %d", ExpectedSchemaVersion, final)
	}
	return nil
}

func (s *SQLiteStorage) schemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

func (s *SQLiteStorage) applyMigration(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %d: %w", m.version, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range m.statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
		return fmt.Errorf("migration %d: recording version: %w", m.version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migration %d: commit: %w", m.version, err)
	}
	return nil
}
