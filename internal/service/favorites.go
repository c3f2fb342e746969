package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-filmloc/internal/kv"
)

// FavoritesKey is the storage key holding the JSON list of favorited slugs.
const FavoritesKey = "favorites"

// FavoritesStore tracks which locations a client has favorited.
// The in-memory set is authoritative; every mutation schedules a flush of
// the full ordered list to the backing store.
type FavoritesStore struct {
	store kv.Store
	log   zerolog.Logger

	mu    sync.RWMutex
	order []string
	set   map[string]struct{}

	dirty   chan struct{}
	done    chan struct{}
	flushed chan struct{}
	version uint64
	written uint64
	closing sync.Once
}

// NewFavoritesStore rehydrates favorites from store and starts the writer.
// A missing or unreadable value starts an empty set.
func NewFavoritesStore(ctx context.Context, store kv.Store, log zerolog.Logger) *FavoritesStore {
	f := &FavoritesStore{
		store:   store,
		log:     log,
		set:     make(map[string]struct{}),
		dirty:   make(chan struct{}, 1),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
	}
	f.rehydrate(ctx)
	go f.writer()
	return f
}

func (f *FavoritesStore) rehydrate(ctx context.Context) {
	data, err := f.store.Get(ctx, FavoritesKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			f.log.Debug().Err(err).Msg("favorites storage unavailable, starting empty")
		}
		return
	}

	var slugs []string
	if err := json.Unmarshal(data, &slugs); err != nil {
		f.log.Debug().Err(err).Msg("favorites storage corrupt, starting empty")
		return
	}
	for _, s := range slugs {
		if _, ok := f.set[s]; ok || s == "" {
			continue
		}
		f.set[s] = struct{}{}
		f.order = append(f.order, s)
	}
}

// IsFavorited reports whether slug is in the set.
func (f *FavoritesStore) IsFavorited(slug string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.set[slug]
	return ok
}

// Toggle flips the favorite state of slug and returns the new state.
func (f *FavoritesStore) Toggle(slug string) bool {
	f.mu.Lock()
	_, had := f.set[slug]
	if had {
		delete(f.set, slug)
		for i, s := range f.order {
			if s == slug {
				f.order = append(f.order[:i:i], f.order[i+1:]...)
				break
			}
		}
	} else {
		f.set[slug] = struct{}{}
		f.order = append(f.order, slug)
	}
	f.version++
	f.mu.Unlock()

	select {
	case f.dirty <- struct{}{}:
	default:
		// a flush is already pending and will pick up this change
	}
	return !had
}

// List returns the favorited slugs in the order they were added.
func (f *FavoritesStore) List() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string{}, f.order...)
}

// Flush blocks until every mutation so far has been written or ctx ends.
func (f *FavoritesStore) Flush(ctx context.Context) error {
	for {
		f.mu.RLock()
		pending := f.written < f.version
		wait := f.flushed
		f.mu.RUnlock()
		if !pending {
			return nil
		}
		select {
		case <-wait:
		case <-f.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close flushes pending writes and stops the writer.
func (f *FavoritesStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := f.Flush(ctx)
	f.closing.Do(func() { close(f.done) })
	return err
}

func (f *FavoritesStore) writer() {
	for {
		select {
		case <-f.done:
			return
		case <-f.dirty:
			f.persist()
		}
	}
}

func (f *FavoritesStore) persist() {
	f.mu.RLock()
	version := f.version
	data, err := json.Marshal(append([]string{}, f.order...))
	f.mu.RUnlock()
	if err != nil {
		f.log.Error().Err(err).Msg("failed to encode favorites")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.store.Put(ctx, FavoritesKey, data); err != nil {
		f.log.Warn().Err(err).Msg("failed to persist favorites")
	}

	// A failed write still counts as handled; the next toggle rewrites the full set.
	f.mu.Lock()
	if version > f.written {
		f.written = version
	}
	close(f.flushed)
	f.flushed = make(chan struct{})
	f.mu.Unlock()
}
