package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Veraticus/finwiz/internal/common"
	"github.com/Veraticus/finwiz/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// queryable is the subset of *sql.DB and *sql.Tx used by the query methods.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// queries implements service.Repository on top of either the database or an open transaction.
type queries struct {
	q queryable
}

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	queries
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection serializes writers; every ledger update is a short
	// read-modify-write transaction on it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		queries: queries{q: db},
		db:      db,
		dbPath:  dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %w", common.ErrPersistence, err)
	}

	return &sqliteTransaction{
		queries: queries{q: tx},
		tx:      tx,
	}, nil
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	queries
	tx *sql.Tx
}

func (t *sqliteTransaction) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", common.ErrPersistence, err)
	}
	return nil
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

var (
	_ service.Storage     = (*SQLiteStorage)(nil)
	_ service.Transaction = (*sqliteTransaction)(nil)
)
