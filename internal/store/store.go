// Package store provides session persistence backends for SurveyPipe.
//
// Session state is stored as a whole per session id. Backends include an
// in-memory store for tests and single-process use, SQLite, PostgreSQL, and
// Redis. All backends round-trip the models.SessionState shape and return
// (nil, nil) when a session is absent.
package store

import (
	"context"
	"strings"
	"sync"

	"github.com/BTreeMap/SurveyPipe/internal/models"
)

// SessionStore defines the persistence contract required by the survey engine.
// Absent sessions are reported as (nil, nil), not as errors.
type SessionStore interface {
	// LoadSession retrieves the session state for a session id, or nil if none exists.
	LoadSession(ctx context.Context, sessionID string) (*models.SessionState, error)

	// SaveSession stores or replaces the session state.
	SaveSession(ctx context.Context, state *models.SessionState) error

	// DeleteSession removes the session state for a session id.
	DeleteSession(ctx context.Context, sessionID string) error

	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for a store backend.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithRedisAddr sets the Redis address (host:port or redis:// URL).
func WithRedisAddr(addr string) Option {
	return func(o *Opts) { o.DSN = addr }
}

// DetectDSNType classifies a DSN as "postgres", "redis", or "sqlite".
// PostgreSQL DSNs use URL or key=value forms; Redis DSNs use the redis
// scheme; everything else is treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.Contains(dsn, "host="):
		return "postgres"
	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		return "redis"
	default:
		return "sqlite"
	}
}

// InMemoryStore keeps session state in a map, guarded for concurrent sessions.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]string
}

// NewInMemoryStore creates an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]string)}
}

// LoadSession retrieves the session state for a session id, or nil if none exists.
func (s *InMemoryStore) LoadSession(ctx context.Context, sessionID string) (*models.SessionState, error) {
	s.mu.RLock()
	encoded, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var state models.SessionState
	if err := state.FromJSON(encoded); err != nil {
		return nil, err
	}
	return &state, nil
}

// SaveSession stores or replaces the session state.
func (s *InMemoryStore) SaveSession(ctx context.Context, state *models.SessionState) error {
	encoded, err := state.ToJSON()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.sessions[state.SessionID] = encoded
	s.mu.Unlock()
	return nil
}

// DeleteSession removes the session state for a session id.
func (s *InMemoryStore) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
