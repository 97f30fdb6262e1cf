package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/SurveyPipe/internal/models"
	_ "github.com/lib/pq"
)

// Constants for PostgreSQL connection pool configuration
const (
	// MaxOpenConnections defines the maximum number of open database connections
	MaxOpenConnections = 25
	// MaxIdleConnections defines the maximum number of idle database connections
	MaxIdleConnections = 25
	// ConnectionMaxLifetime defines the maximum lifetime of a database connection
	ConnectionMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL session store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	slog.Debug("Opening PostgreSQL database connection")
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(MaxOpenConnections)
	db.SetMaxIdleConns(MaxIdleConnections)
	db.SetConnMaxLifetime(ConnectionMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running PostgreSQL migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// LoadSession retrieves the session state for a session id, or nil if none exists.
func (s *PostgresStore) LoadSession(ctx context.Context, sessionID string) (*models.SessionState, error) {
	var encoded string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM survey_sessions WHERE session_id = $1`, sessionID).Scan(&encoded)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore LoadSession not found", "sessionID", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore LoadSession failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	var state models.SessionState
	if err := state.FromJSON(encoded); err != nil {
		slog.Error("PostgresStore LoadSession decode failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	slog.Debug("PostgresStore LoadSession succeeded", "sessionID", sessionID, "surveyID", state.SurveyID)
	return &state, nil
}

// SaveSession stores or replaces the session state.
func (s *PostgresStore) SaveSession(ctx context.Context, state *models.SessionState) error {
	encoded, err := state.ToJSON()
	if err != nil {
		slog.Error("PostgresStore SaveSession encode failed", "error", err, "sessionID", state.SessionID)
		return err
	}

	query := `
		INSERT INTO survey_sessions (session_id, survey_id, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id) DO UPDATE SET
			survey_id = EXCLUDED.survey_id,
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at`
	_, err = s.db.ExecContext(ctx, query, state.SessionID, state.SurveyID, encoded, state.CreatedAt, time.Now())
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "sessionID", state.SessionID)
		return fmt.Errorf("failed to save session %s: %w", state.SessionID, err)
	}
	slog.Debug("PostgresStore SaveSession succeeded", "sessionID", state.SessionID, "surveyID", state.SurveyID)
	return nil
}

// DeleteSession removes the session state for a session id.
func (s *PostgresStore) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM survey_sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		slog.Error("PostgresStore DeleteSession failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	slog.Debug("PostgresStore DeleteSession succeeded", "sessionID", sessionID)
	return nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close PostgreSQL database", "error", err)
	}
	return err
}
