// Package session keeps the per-browser state of the map application:
// favorites, the notification, the loaded locations, the genre filter and
// the map controller.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-filmloc/internal/content"
	"github.com/joeblew999/plat-filmloc/internal/kv"
	"github.com/joeblew999/plat-filmloc/internal/mapview"
	"github.com/joeblew999/plat-filmloc/internal/service"
)

// CookieName carries the session ID.
const CookieName = "filmloc_session"

// LoadState is the state of the session's location list.
type LoadState int

const (
	Loading LoadState = iota
	Loaded
	Failed
)

func (s LoadState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Options configures sessions created by a Manager.
type Options struct {
	FullReplace  bool
	NotifyWindow time.Duration
	Fields       content.FieldSet
}

// Session is the state for one browser. Every accessor is safe for
// concurrent use; Do additionally orders whole request operations.
type Session struct {
	ID        string
	Favorites *service.FavoritesStore
	Notifier  *service.Notifier

	opts Options
	log  zerolog.Logger

	ops       sync.Mutex
	mu        sync.Mutex
	buf       *mapview.CommandBuffer
	ctrl      *mapview.Controller
	locations []service.Location
	genre     string
	load      LoadState
	loadErr   string
	lastSeen  time.Time
	streams   int
}

func newSession(id string, store kv.Store, bus *service.EventBus, opts Options, log zerolog.Logger) *Session {
	log = log.With().Str("session", id).Logger()
	s := &Session{
		ID:       id,
		opts:     opts,
		log:      log,
		buf:      mapview.NewCommandBuffer(),
		genre:    service.AllGenres,
		lastSeen: time.Now(),
	}
	s.ctrl = mapview.NewController(s.buf, opts.FullReplace, log)
	s.Favorites = service.NewFavoritesStore(context.Background(), kv.Scope(store, "session:"+id), log)
	s.Notifier = service.NewNotifier(opts.NotifyWindow, func(msg string, visible bool) {
		if bus != nil {
			bus.Publish(service.Event{Session: id, Kind: service.EventNotice, Message: msg, Visible: visible})
		}
	})
	return s
}

// Do runs fn exclusively against other Do calls on the session, so the
// commands a request produces are drained in the order requests arrive.
// fn must not call Do.
func (s *Session) Do(fn func()) {
	s.ops.Lock()
	defer s.ops.Unlock()
	s.touch()
	fn()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// Attach marks a long-lived stream on the session until release is
// called. Sweep never closes a session with an attached stream.
func (s *Session) Attach() (release func()) {
	s.mu.Lock()
	s.streams++
	s.lastSeen = time.Now()
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.streams--
			s.lastSeen = time.Now()
			s.mu.Unlock()
		})
	}
}

// idle reports whether the session has no attached stream and was last
// seen before cutoff.
func (s *Session) idle(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streams == 0 && s.lastSeen.Before(cutoff)
}

// Mount starts a fresh map for a page load: the previous controller is
// closed, the command buffer reset and the locations fetched again. A
// failed fetch leaves an empty list.
func (s *Session) Mount(ctx context.Context, f content.Fetcher) error {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.ctrl.Close()
	s.buf.Reset()
	ctrl := mapview.NewController(s.buf, s.opts.FullReplace, s.log)
	ctrl.Mount()
	s.ctrl = ctrl
	s.load = Loading
	s.loadErr = ""
	s.mu.Unlock()

	locs, err := f.FetchAll(ctx, s.opts.Fields)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl != ctrl || ctrl.State() == mapview.Closed {
		return nil
	}
	if err != nil {
		s.load = Failed
		s.loadErr = err.Error()
		s.locations = nil
		s.log.Warn().Err(err).Msg("failed to load locations")
		return err
	}
	s.load = Loaded
	s.locations = locs
	return ctrl.Sync(service.FilterByGenre(s.locations, s.genre))
}

// SetGenre changes the filter and reconciles the markers.
func (s *Session) SetGenre(genre string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
	s.genre = service.ParseGenre(genre)
	return s.ctrl.Sync(service.FilterByGenre(s.locations, s.genre))
}

// Genre returns the selected genre value.
func (s *Session) Genre() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.genre
}

// Filtered returns the loaded locations matching the selected genre.
func (s *Session) Filtered() []service.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return service.FilterByGenre(s.locations, s.genre)
}

// LoadState returns the load state and, when failed, the error message.
func (s *Session) LoadState() (LoadState, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load, s.loadErr
}

// Map returns the current controller and its command buffer.
func (s *Session) Map() (*mapview.Controller, *mapview.CommandBuffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl, s.buf
}

// ToggleFavorite flips slug and shows the matching notification. It
// returns the new state.
func (s *Session) ToggleFavorite(slug string) bool {
	s.touch()
	on := s.Favorites.Toggle(slug)
	if on {
		s.Notifier.Notify(service.MsgFavoriteAdded)
	} else {
		s.Notifier.Notify(service.MsgFavoriteRemoved)
	}
	return on
}

// Close tears down the map and stops background work.
func (s *Session) Close() error {
	s.mu.Lock()
	s.ctrl.Close()
	s.mu.Unlock()
	s.Notifier.Stop()
	return s.Favorites.Close()
}

// Manager owns every live session.
type Manager struct {
	store kv.Store
	bus   *service.EventBus
	opts  Options
	log   zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager persisting favorites to store.
func NewManager(store kv.Store, bus *service.EventBus, opts Options, log zerolog.Logger) *Manager {
	return &Manager{
		store:    store,
		bus:      bus,
		opts:     opts,
		log:      log.With().Str("component", "session").Logger(),
		sessions: make(map[string]*Session),
	}
}

// Get returns the live session for id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Ensure returns the session for id, creating it when absent. A malformed
// id is replaced by a new random one; created reports whether the caller
// must set the cookie.
func (m *Manager) Ensure(id string) (s *Session, created bool) {
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
		created = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.touch()
		return s, created
	}
	s = newSession(id, m.store, m.bus, m.opts, m.log)
	m.sessions[id] = s
	m.log.Debug().Str("session", id).Msg("session started")
	return s, created
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes sessions idle for longer than maxIdle. Sessions with an
// attached stream are kept. Favorites are flushed before the session is
// dropped.
func (m *Manager) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.idle(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		if err := s.Close(); err != nil {
			m.log.Warn().Err(err).Str("session", s.ID).Msg("session close failed")
		}
	}
	if len(idle) > 0 {
		m.log.Debug().Int("closed", len(idle)).Msg("swept idle sessions")
	}
	return len(idle)
}

// Close closes every session.
func (m *Manager) Close() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}
