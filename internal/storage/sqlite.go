// Package storage provides the data persistence layer for the verdict service.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/verdictlabs/verdict/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage implements the service.Storage interface using SQLite.
type SQLiteStorage struct {
	policyExpiry time.Time
	db           *sql.DB
	policyCache  map[model.Domain][]model.Policy
	dbPath       string
	policyMutex  sync.RWMutex
}

// policyCacheTTL bounds how stale the classifier's view of policies can be.
const policyCacheTTL = 30 * time.Second

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	// Ensure directory exists for file-backed databases
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:          db,
		dbPath:      dbPath,
		policyCache: make(map[model.Domain][]model.Policy),
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) invalidatePolicyCache() {
	s.policyMutex.Lock()
	s.policyCache = make(map[model.Domain][]model.Policy)
	s.policyExpiry = time.Time{}
	s.policyMutex.Unlock()
}

func (s *SQLiteStorage) cachedPolicies(domain model.Domain) ([]model.Policy, bool) {
	s.policyMutex.RLock()
	defer s.policyMutex.RUnlock()

	if time.Now().After(s.policyExpiry) {
		return nil, false
	}
	policies, ok := s.policyCache[domain]
	return policies, ok
}

func (s *SQLiteStorage) storePolicies(domain model.Domain, policies []model.Policy) {
	s.policyMutex.Lock()
	defer s.policyMutex.Unlock()

	if time.Now().After(s.policyExpiry) {
		s.policyCache = make(map[model.Domain][]model.Policy)
		s.policyExpiry = time.Now().Add(policyCacheTTL)
	}
	s.policyCache[domain] = policies
}

// execContext is satisfied by both *sql.DB and *sql.Tx.
type execContext interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
