package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Entry is the row model for the SQL backends.
type Entry struct {
	Key   string `gorm:"column:kv_key;primaryKey;size:255"`
	Value []byte `gorm:"column:kv_value"`
}

// TableName pins the table name for Entry.
func (Entry) TableName() string { return "kv_entries" }

// SQLiteStore stores entries in an SQLite database through GORM.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens <dataDir>/filmloc.db. An empty dataDir opens a shared
// in-memory database.
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	dsn := "file::memory:?cache=shared"
	if dataDir != "" {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "filmloc.db")
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate kv table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var e Entry
	err := s.db.WithContext(ctx).First(&e, "kv_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e.Value, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte) error {
	// Save upserts on the primary key
	return s.db.WithContext(ctx).Save(&Entry{Key: key, Value: value}).Error
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
