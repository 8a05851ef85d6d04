package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/keyxmakerx/secrets/internal/apperror"
)

// ErrBadCredentials is the one message shown for every failed sign-in:
// unknown email, account without a password, wrong password and an
// undecryptable stored credential all look the same.
const ErrBadCredentials = "Wrong username or password."

// AuthService defines the business logic contract for authentication.
// Handlers call these methods -- they never touch the repository directly.
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*User, error)
	Login(ctx context.Context, input LoginInput) (token string, user *User, err error)
	StartSession(ctx context.Context, userID string) (string, error)
	ResolveSession(ctx context.Context, token string) (*User, error)
	DestroySession(ctx context.Context, token string) error
}

// authService implements AuthService with a pluggable credential strategy
// and Redis sessions.
type authService struct {
	repo     UserRepository
	strategy CredentialStrategy
	sessions *SessionManager

	// decoy is a stored credential for a password nobody knows. Failed
	// lookups verify against it so they cost the same as a wrong password.
	decoyOnce sync.Once
	decoy     string
}

// NewAuthService creates a new auth service with the given dependencies.
func NewAuthService(repo UserRepository, strategy CredentialStrategy, sessions *SessionManager) AuthService {
	return &authService{
		repo:     repo,
		strategy: strategy,
		sessions: sessions,
	}
}

// Register creates a new local account. The email uniqueness check is an
// early exit only; the store's unique index decides races.
func (s *authService) Register(ctx context.Context, input RegisterInput) (*User, error) {
	email := normalizeEmail(input.Email)

	// Check if email is already taken before doing expensive hashing.
	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, apperror.NewUnavailable(fmt.Errorf("checking email: %w", err))
	}
	if exists {
		return nil, apperror.NewConflict(errDuplicateIdentity)
	}

	hash, err := s.strategy.Encode(input.Password)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("encoding credential: %w", err))
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if apperror.IsConflict(err) {
			return nil, err
		}
		return nil, apperror.NewUnavailable(fmt.Errorf("creating user: %w", err))
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("strategy", s.strategy.Name()),
	)

	return user, nil
}

// Login authenticates a local account by email and password. On success it
// creates a new session and returns the session token for the cookie.
func (s *authService) Login(ctx context.Context, input LoginInput) (string, *User, error) {
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		if apperror.IsNotFound(err) {
			s.verifyDecoy(input.Password)
			return "", nil, apperror.NewUnauthorized(ErrBadCredentials)
		}
		return "", nil, apperror.NewUnavailable(fmt.Errorf("finding user: %w", err))
	}

	// Federated accounts have no password to check.
	if !user.HasLocalCredential() {
		s.verifyDecoy(input.Password)
		return "", nil, apperror.NewUnauthorized(ErrBadCredentials)
	}

	ok, err := s.strategy.Verify(user.PasswordHash, input.Password)
	if err != nil {
		slog.Warn("stored credential could not be verified",
			slog.String("user_id", user.ID),
			slog.String("strategy", s.strategy.Name()),
			slog.Any("error", err),
		)
	}
	if !ok {
		return "", nil, apperror.NewUnauthorized(ErrBadCredentials)
	}

	token, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return "", nil, err
	}

	// Update the user's last login timestamp (non-critical).
	if err := s.repo.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("failed to update last login",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))

	return token, user, nil
}

// StartSession creates a session for an already-authenticated user (after
// registration or a federated sign-in).
func (s *authService) StartSession(ctx context.Context, userID string) (string, error) {
	return s.sessions.Create(ctx, userID)
}

// ResolveSession returns the user behind a session token.
func (s *authService) ResolveSession(ctx context.Context, token string) (*User, error) {
	return s.sessions.Resolve(ctx, token)
}

// DestroySession ends a session, effectively logging the user out.
func (s *authService) DestroySession(ctx context.Context, token string) error {
	return s.sessions.Destroy(ctx, token)
}

// verifyDecoy spends the same work as a real verification.
func (s *authService) verifyDecoy(password string) {
	s.decoyOnce.Do(func() {
		decoy, err := s.strategy.Encode(uuid.NewString())
		if err != nil {
			slog.Warn("building decoy credential", slog.Any("error", err))
			return
		}
		s.decoy = decoy
	})
	if s.decoy != "" {
		_, _ = s.strategy.Verify(s.decoy, password)
	}
}

// normalizeEmail trims and lower-cases an address so lookups and the
// unique index agree.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
