package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// DuckDBStore stores entries in a DuckDB table.
type DuckDBStore struct {
	db *sql.DB
}

// NewDuckDBStore opens <dataDir>/duckdb/filmloc.duckdb, or an in-memory
// database when dataDir is empty.
func NewDuckDBStore(dataDir string) (*DuckDBStore, error) {
	dsn := ""
	if dataDir != "" {
		duckdbDir := filepath.Join(dataDir, "duckdb")
		if err := os.MkdirAll(duckdbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
		}
		dsn = filepath.Join(duckdbDir, "filmloc.duckdb")
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	// A single connection keeps in-memory databases coherent
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv_entries (
		kv_key VARCHAR PRIMARY KEY,
		kv_value BLOB
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}
	return &DuckDBStore{db: db}, nil
}

func (s *DuckDBStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT kv_value FROM kv_entries WHERE kv_key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *DuckDBStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, "INSERT OR REPLACE INTO kv_entries (kv_key, kv_value) VALUES (?, ?)", key, value)
	return err
}

func (s *DuckDBStore) Close() error {
	return s.db.Close()
}
