// Package memstore provides an in-process history.Store. It backs local CLI
// runs and tests; entries for sessions idle longer than the configured TTL
// are dropped on the next store access.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apresai/sprintkit/internal/history"
)

// DefaultTTL matches the idle expiry used by the external store.
const DefaultTTL = 10 * time.Minute

// Store is an in-memory history.Store.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*log
	ttl      time.Duration
	now      func() time.Time
}

type log struct {
	entries []history.Entry
	touched time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides the idle expiry period.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*log),
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open implements history.Store.
func (s *Store) Open(_ context.Context, sessionID string) (history.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("memstore: empty session ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()
	if _, ok := s.sessions[sessionID]; !ok {
		s.sessions[sessionID] = &log{touched: s.now()}
	}
	return &session{store: s, id: sessionID}, nil
}

// Len reports how many live sessions the store holds.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	return len(s.sessions)
}

func (s *Store) sweepLocked() {
	cutoff := s.now().Add(-s.ttl)
	for id, l := range s.sessions {
		if l.touched.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}

type session struct {
	store  *Store
	id     string
	closed bool
}

func (se *session) ID() string { return se.id }

func (se *session) Append(_ context.Context, e history.Entry) error {
	if se.closed {
		return fmt.Errorf("memstore: session %s is closed", se.id)
	}
	if e.Role != history.RoleHuman && e.Role != history.RoleAI {
		return fmt.Errorf("memstore: invalid entry role %q", e.Role)
	}

	se.store.mu.Lock()
	defer se.store.mu.Unlock()

	l, ok := se.store.sessions[se.id]
	if !ok {
		// Expired mid-conversation; restart the log rather than fail the turn.
		l = &log{}
		se.store.sessions[se.id] = l
	}
	if e.At.IsZero() {
		e.At = se.store.now()
	}
	l.entries = append(l.entries, e)
	l.touched = se.store.now()
	return nil
}

func (se *session) Entries(_ context.Context) ([]history.Entry, error) {
	if se.closed {
		return nil, fmt.Errorf("memstore: session %s is closed", se.id)
	}

	se.store.mu.Lock()
	defer se.store.mu.Unlock()

	l, ok := se.store.sessions[se.id]
	if !ok {
		return nil, nil
	}
	l.touched = se.store.now()
	out := make([]history.Entry, len(l.entries))
	copy(out, l.entries)
	return out, nil
}

func (se *session) Close(context.Context) error {
	se.closed = true
	return nil
}
