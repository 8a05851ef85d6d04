package auth

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/secrets/internal/apperror"
)

// sessionKeyPrefix is the Redis key prefix for session data.
const sessionKeyPrefix = "session:"

// sessionTokenBytes is the number of random bytes in a session token.
// 32 bytes = 256 bits of entropy, hex-encoded to 64 characters.
const sessionTokenBytes = 32

// errSessionInvalid is the message for any session that does not resolve
// to a live user.
const errSessionInvalid = "session expired or invalid"

// SessionManager maps opaque tokens to users. Redis holds only the user
// reference; Resolve re-reads the user from the store on every call.
type SessionManager struct {
	redis *redis.Client
	users UserRepository
	ttl   time.Duration
}

// NewSessionManager creates a session manager.
func NewSessionManager(rdb *redis.Client, users UserRepository, ttl time.Duration) *SessionManager {
	return &SessionManager{redis: rdb, users: users, ttl: ttl}
}

// TTL returns how long a new session lives.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Create starts a session for userID and returns its token.
func (m *SessionManager) Create(ctx context.Context, userID string) (string, error) {
	raw, err := randomBytes(sessionTokenBytes)
	if err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	token := hex.EncodeToString(raw)

	data, err := json.Marshal(Session{UserID: userID, CreatedAt: time.Now().UTC()})
	if err != nil {
		return "", fmt.Errorf("marshaling session: %w", err)
	}

	if err := m.redis.Set(ctx, sessionKeyPrefix+token, data, m.ttl).Err(); err != nil {
		return "", apperror.NewUnavailable(fmt.Errorf("storing session in Redis: %w", err))
	}
	return token, nil
}

// Resolve returns the user behind token. An unknown token, or one whose
// user no longer exists, yields an unauthorized error; the latter is also
// deleted so it stops costing a store lookup.
func (m *SessionManager) Resolve(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, apperror.NewUnauthorized(errSessionInvalid)
	}

	data, err := m.redis.Get(ctx, sessionKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperror.NewUnauthorized(errSessionInvalid)
	}
	if err != nil {
		return nil, apperror.NewUnavailable(fmt.Errorf("reading session from Redis: %w", err))
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		slog.Warn("discarding unreadable session", slog.Any("error", err))
		_ = m.Destroy(ctx, token)
		return nil, apperror.NewUnauthorized(errSessionInvalid)
	}

	user, err := m.users.FindByID(ctx, session.UserID)
	if apperror.IsNotFound(err) {
		slog.Info("session points at a missing user",
			slog.String("user_id", session.UserID),
		)
		_ = m.Destroy(ctx, token)
		return nil, apperror.NewUnauthorized(errSessionInvalid)
	}
	if err != nil {
		return nil, apperror.NewUnavailable(fmt.Errorf("loading session user: %w", err))
	}

	return user, nil
}

// Destroy removes the session. Destroying an unknown token is not an error.
func (m *SessionManager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.redis.Del(ctx, sessionKeyPrefix+token).Err(); err != nil {
		return apperror.NewUnavailable(fmt.Errorf("deleting session from Redis: %w", err))
	}
	return nil
}
