package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/verdictlabs/verdict/internal/model"
)

// maxMemoryEntries caps the decision memory table; older rows are pruned
// on insert so prompt context stays bounded.
const maxMemoryEntries = 50

// AddMemory records a completed decision for future prompt context.
func (s *SQLiteStorage) AddMemory(ctx context.Context, entry *model.MemoryEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}
	if err := validateDomain(entry.Domain); err != nil {
		return err
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decision_memory (domain, label, reasoning, created_at)
		VALUES (?, ?, ?, ?)
	`, string(entry.Domain), entry.Label, entry.Reasoning, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add memory entry: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM decision_memory
		WHERE id NOT IN (
			SELECT id FROM decision_memory ORDER BY created_at DESC, id DESC LIMIT ?
		)
	`, maxMemoryEntries)
	if err != nil {
		return fmt.Errorf("failed to prune memory entries: %w", err)
	}

	return nil
}

// RecentMemory returns the newest remembered decisions for a domain.
func (s *SQLiteStorage) RecentMemory(ctx context.Context, domain model.Domain, limit int) ([]model.MemoryEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateDomain(domain); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT domain, label, reasoning, created_at
		FROM decision_memory
		WHERE domain = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, string(domain), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query memory entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.MemoryEntry
	for rows.Next() {
		var (
			entry  model.MemoryEntry
			scoped string
		)
		if err := rows.Scan(&scoped, &entry.Label, &entry.Reasoning, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan memory entry: %w", err)
		}
		entry.Domain = model.Domain(scoped)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memory entries: %w", err)
	}

	return entries, nil
}
