package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/SurveyPipe/internal/models"
	"github.com/redis/go-redis/v9"
)

// sessionKeyPrefix namespaces session state keys in Redis.
const sessionKeyPrefix = "session:"

type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis session store. The address may be a
// redis:// URL or a plain host:port pair.
func NewRedisStore(opts ...Option) (*RedisStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewRedisStore invoked", "addr_set", cfg.DSN != "")

	addr := cfg.DSN
	if addr == "" {
		slog.Error("RedisStore address not set")
		return nil, fmt.Errorf("redis address not set")
	}

	var client *redis.Client
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		redisOpts, err := redis.ParseURL(addr)
		if err != nil {
			slog.Error("Failed to parse Redis URL", "error", err)
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		client = redis.NewClient(redisOpts)
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr})
	}

	if err := client.Ping(context.Background()).Err(); err != nil {
		slog.Error("Redis ping failed", "error", err)
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	slog.Debug("Redis connection established")

	return &RedisStore{client: client}, nil
}

// LoadSession retrieves the session state for a session id, or nil if none exists.
func (s *RedisStore) LoadSession(ctx context.Context, sessionID string) (*models.SessionState, error) {
	encoded, err := s.client.Get(ctx, sessionKeyPrefix+sessionID).Result()
	if err == redis.Nil {
		slog.Debug("RedisStore LoadSession not found", "sessionID", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("RedisStore LoadSession failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	var state models.SessionState
	if err := state.FromJSON(encoded); err != nil {
		slog.Error("RedisStore LoadSession decode failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	slog.Debug("RedisStore LoadSession succeeded", "sessionID", sessionID, "surveyID", state.SurveyID)
	return &state, nil
}

// SaveSession stores or replaces the session state. Sessions do not expire;
// survey completion is tracked in the state itself.
func (s *RedisStore) SaveSession(ctx context.Context, state *models.SessionState) error {
	encoded, err := state.ToJSON()
	if err != nil {
		slog.Error("RedisStore SaveSession encode failed", "error", err, "sessionID", state.SessionID)
		return err
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+state.SessionID, encoded, 0).Err(); err != nil {
		slog.Error("RedisStore SaveSession failed", "error", err, "sessionID", state.SessionID)
		return fmt.Errorf("failed to save session %s: %w", state.SessionID, err)
	}
	slog.Debug("RedisStore SaveSession succeeded", "sessionID", state.SessionID, "surveyID", state.SurveyID)
	return nil
}

// DeleteSession removes the session state for a session id.
func (s *RedisStore) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+sessionID).Err(); err != nil {
		slog.Error("RedisStore DeleteSession failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	slog.Debug("RedisStore DeleteSession succeeded", "sessionID", sessionID)
	return nil
}

// Close closes the Redis client connection.
func (s *RedisStore) Close() error {
	slog.Debug("Closing Redis connection")
	err := s.client.Close()
	if err != nil {
		slog.Error("Failed to close Redis connection", "error", err)
	}
	return err
}
