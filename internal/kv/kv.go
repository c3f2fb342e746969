// Package kv provides the small key-value stores used for client-local
// persistence (favorites). Every backend stores opaque byte values.
package kv

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("kv: key not found")

// Store is the interface all backends satisfy.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend string      `mapstructure:"backend"` // memory, file, sqlite, duckdb, redis
	DataDir string      `mapstructure:"-"`
	Redis   RedisConfig `mapstructure:"redis"`
}

// Open creates a store based on configuration.
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileStore(cfg.DataDir)
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(cfg.DataDir)
	case "duckdb":
		return NewDuckDBStore(cfg.DataDir)
	case "redis":
		return NewRedisStore(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

// MemoryStore keeps values in a map. Used for tests and ephemeral runs.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// scoped prefixes every key of an underlying store.
type scoped struct {
	Store
	prefix string
}

// Scope returns a view of store whose keys live under prefix + ":".
// Closing the view does not close the underlying store.
func Scope(store Store, prefix string) Store {
	return &scoped{Store: store, prefix: prefix + ":"}
}

func (s *scoped) Get(ctx context.Context, key string) ([]byte, error) {
	return s.Store.Get(ctx, s.prefix+key)
}

func (s *scoped) Put(ctx context.Context, key string, value []byte) error {
	return s.Store.Put(ctx, s.prefix+key, value)
}

func (s *scoped) Close() error { return nil }
