package session

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrNotFound = errors.New("session not found")

const (
	defaultIdleTTL       = 24 * time.Hour
	defaultSweepInterval = 10 * time.Minute
	defaultMaxTurns      = 20
	defaultMaxSessions   = 1000
)

// Config controls the in-process session store.
type Config struct {
	IdleTTL       time.Duration `envconfig:"IDLE_TTL" split_words:"true" default:"24h"`
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" split_words:"true" default:"10m"`
	MaxTurns      int           `envconfig:"MAX_TURNS" split_words:"true" default:"20"`
	MaxSessions   int           `envconfig:"MAX_SESSIONS" split_words:"true" default:"1000"`
}

// StoreOption customizes Store.
type StoreOption func(*Store)

// WithClock overrides the store's time source.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// entry pairs a session with its own mutex so appends to one session never
// block requests against another. The per-session lock covers memory
// mutation only, never the dispatcher or reasoning work.
type entry struct {
	mu   sync.Mutex
	sess *Session
}

// Store is a concurrency-safe keyed store of conversation sessions with
// idle expiry. Sessions live in process memory only; a restart drops them.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	idleTTL       time.Duration
	sweepInterval time.Duration
	maxTurns      int
	maxSessions   int
	now           func() time.Time
}

func NewStore(cfg Config, opts ...StoreOption) *Store {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = defaultMaxTurns
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = defaultMaxSessions
	}

	s := &Store{
		sessions:      make(map[string]*entry, 64),
		idleTTL:       cfg.IdleTTL,
		sweepInterval: cfg.SweepInterval,
		maxTurns:      cfg.MaxTurns,
		maxSessions:   cfg.MaxSessions,
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// MaxTurns reports the configured memory window size.
func (s *Store) MaxTurns() int {
	return s.maxTurns
}

// Resolve returns the session for id, creating a fresh one when the id is
// empty, unknown, or expired. An expired session is treated exactly like a
// new one; the caller cannot tell the difference. The returned turns are a
// window copy taken under the session lock.
func (s *Store) Resolve(id string) (sessionID string, recent []Turn, created bool) {
	now := s.now()

	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}

	e, fresh := s.ensure(id, now)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess.Expired(now, s.idleTTL) {
		e.sess = NewSession(id, now)
		fresh = true
	}
	e.sess.Touch(now)
	return id, e.sess.Window(s.maxTurns), fresh
}

// Append records turns against id, creating the session when absent or
// expired, and trims the history to the configured window. It never fails:
// a swept session is simply recreated.
func (s *Store) Append(id string, turns ...Turn) {
	now := s.now()
	e, _ := s.ensure(id, now)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess.Expired(now, s.idleTTL) {
		e.sess = NewSession(id, now)
	}
	for _, t := range turns {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now.UTC()
		}
		e.sess.Turns = append(e.sess.Turns, t)
	}
	e.sess.trim(s.maxTurns)
	e.sess.Touch(now)
}

// Snapshot returns a read-only view of one live session.
func (s *Store) Snapshot(id string) (View, error) {
	now := s.now()

	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return View{}, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess.Expired(now, s.idleTTL) {
		return View{}, ErrNotFound
	}
	return View{
		SessionID:    e.sess.ID,
		CreatedAt:    e.sess.CreatedAt,
		LastActivity: e.sess.LastActivity,
		MessageCount: len(e.sess.Turns),
		Turns:        e.sess.Window(0),
	}, nil
}

// List returns summaries of all live sessions, most recently active first.
func (s *Store) List() []Summary {
	now := s.now()

	s.mu.RLock()
	entries := make([]*entry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]Summary, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.sess.Expired(now, s.idleTTL) {
			out = append(out, Summary{
				SessionID:    e.sess.ID,
				CreatedAt:    e.sess.CreatedAt,
				LastActivity: e.sess.LastActivity,
				MessageCount: len(e.sess.Turns),
			})
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out
}

// Delete discards a session outright.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Len reports the live session count, expired entries included until swept.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Run sweeps idle sessions until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sweep(s.now()); n > 0 {
				log.Debug().Int("expired", n).Msg("session sweep")
			}
		}
	}
}

// ensure returns the entry for id, creating it (and evicting the oldest
// idle session when the store is full) as needed.
func (s *Store) ensure(id string, now time.Time) (*entry, bool) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return e, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[id]; ok {
		return e, false
	}
	if len(s.sessions) >= s.maxSessions {
		s.evictOldestLocked()
	}
	e = &entry{sess: NewSession(id, now)}
	s.sessions[id] = e
	return e, true
}

// evictOldestLocked drops the least recently active session. Caller holds
// the store write lock.
func (s *Store) evictOldestLocked() {
	var (
		oldestID string
		oldestAt time.Time
	)
	for id, e := range s.sessions {
		e.mu.Lock()
		at := e.sess.LastActivity
		e.mu.Unlock()
		if oldestID == "" || at.Before(oldestAt) {
			oldestID = id
			oldestAt = at
		}
	}
	if oldestID != "" {
		delete(s.sessions, oldestID)
		log.Warn().Str("session_id", oldestID).Msg("session store full, evicted oldest")
	}
}

// sweep removes expired sessions, taking each session's own lock so a
// sweep never races a concurrent append. Returns the number removed.
func (s *Store) sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.sessions {
		e.mu.Lock()
		expired := e.sess.Expired(now, s.idleTTL)
		e.mu.Unlock()
		if expired {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
