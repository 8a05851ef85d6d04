package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/keyxmakerx/secrets/internal/apperror"
)

// --- Mock Repository ---

// mockUserRepo implements UserRepository for testing.
type mockUserRepo struct {
	createFn          func(ctx context.Context, user *User) error
	findByIDFn        func(ctx context.Context, id string) (*User, error)
	findByEmailFn     func(ctx context.Context, email string) (*User, error)
	findByGoogleIDFn  func(ctx context.Context, googleID string) (*User, error)
	emailExistsFn     func(ctx context.Context, email string) (bool, error)
	updateLastLoginFn func(ctx context.Context, id string) error
	updateSecretFn    func(ctx context.Context, id, secret string) error
	listWithSecretsFn func(ctx context.Context) ([]User, error)
}

func (m *mockUserRepo) Create(ctx context.Context, user *User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) FindByGoogleID(ctx context.Context, googleID string) (*User, error) {
	if m.findByGoogleIDFn != nil {
		return m.findByGoogleIDFn(ctx, googleID)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	if m.emailExistsFn != nil {
		return m.emailExistsFn(ctx, email)
	}
	return false, nil
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string) error {
	if m.updateLastLoginFn != nil {
		return m.updateLastLoginFn(ctx, id)
	}
	return nil
}

func (m *mockUserRepo) UpdateSecret(ctx context.Context, id, secret string) error {
	if m.updateSecretFn != nil {
		return m.updateSecretFn(ctx, id, secret)
	}
	return nil
}

func (m *mockUserRepo) ListWithSecrets(ctx context.Context) ([]User, error) {
	if m.listWithSecretsFn != nil {
		return m.listWithSecretsFn(ctx)
	}
	return nil, nil
}

// --- Test Helpers ---

// newTestSessions returns a SessionManager on a fresh miniredis instance.
func newTestSessions(t *testing.T, repo UserRepository) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewSessionManager(rdb, repo, time.Hour), mr
}

// newTestAuthService creates an authService with a mock repo, a cheap
// bcrypt strategy and miniredis-backed sessions.
func newTestAuthService(t *testing.T, repo *mockUserRepo) *authService {
	t.Helper()
	sessions, _ := newTestSessions(t, repo)
	return &authService{
		repo:     repo,
		strategy: bcryptStrategy{cost: bcrypt.MinCost},
		sessions: sessions,
	}
}

// storedUser returns a local user whose password is "hunter2" under svc's strategy.
func storedUser(t *testing.T, svc *authService) *User {
	t.Helper()
	hash, err := svc.strategy.Encode("hunter2")
	if err != nil {
		t.Fatalf("encoding password: %v", err)
	}
	return &User{ID: "user-1", Email: "alice@example.com", PasswordHash: hash, CreatedAt: time.Now().UTC()}
}

// assertAppError checks that err is an *apperror.AppError with the expected code.
func assertAppError(t *testing.T, err error, expectedCode int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %d, got nil", expectedCode)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.AppError, got %T: %v", err, err)
	}
	if appErr.Code != expectedCode {
		t.Errorf("expected status %d, got %d (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

// --- Register Tests ---

func TestRegister_Success(t *testing.T) {
	repo := &mockUserRepo{
		createFn: func(ctx context.Context, user *User) error {
			if user.Email != "alice@example.com" {
				t.Errorf("expected email alice@example.com, got %s", user.Email)
			}
			if user.PasswordHash == "" || user.PasswordHash == "hunter2" {
				t.Error("expected an encoded credential, not the plaintext")
			}
			if user.GoogleID != "" {
				t.Error("expected no google id on a local account")
			}
			return nil
		},
	}

	svc := newTestAuthService(t, repo)
	user, err := svc.Register(context.Background(), RegisterInput{
		Email:    "alice@example.com",
		Password: "hunter2",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID == "" {
		t.Error("expected user ID to be generated")
	}
}

func TestRegister_ThenLoginVerifies(t *testing.T) {
	var saved *User
	repo := &mockUserRepo{
		createFn: func(ctx context.Context, user *User) error {
			saved = user
			return nil
		},
		findByEmailFn: func(ctx context.Context, email string) (*User, error) {
			if saved != nil && saved.Email == email {
				return saved, nil
			}
			return nil, apperror.NewNotFound("user not found")
		},
	}

	svc := newTestAuthService(t, repo)
	if _, err := svc.Register(context.Background(), RegisterInput{Email: "alice@example.com", Password: "hunter2"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	token, user, err := svc.Login(context.Background(), LoginInput{Email: "alice@example.com", Password: "hunter2"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token == "" || user.ID != saved.ID {
		t.Errorf("expected a session for %s, got token=%q user=%v", saved.ID, token, user)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	repo := &mockUserRepo{
		emailExistsFn: func(ctx context.Context, email string) (bool, error) {
			return true, nil
		},
		createFn: func(ctx context.Context, user *User) error {
			t.Error("create must not be called for a taken email")
			return nil
		},
	}

	svc := newTestAuthService(t, repo)
	_, err := svc.Register(context.Background(), RegisterInput{Email: "taken@example.com", Password: "hunter2"})
	assertAppError(t, err, http.StatusConflict)
}

func TestRegister_LostRaceIsConflict(t *testing.T) {
	repo := &mockUserRepo{
		createFn: func(ctx context.Context, user *User) error {
			return apperror.NewConflict(errDuplicateIdentity)
		},
	}

	svc := newTestAuthService(t, repo)
	_, err := svc.Register(context.Background(), RegisterInput{Email: "race@example.com", Password: "hunter2"})
	assertAppError(t, err, http.StatusConflict)
}

func TestRegister_StoreUnavailable(t *testing.T) {
	tests := []struct {
		name string
		repo *mockUserRepo
	}{
		{"email check", &mockUserRepo{
			emailExistsFn: func(ctx context.Context, email string) (bool, error) {
				return false, errors.New("server selection timeout")
			},
		}},
		{"create", &mockUserRepo{
			createFn: func(ctx context.Context, user *User) error {
				return errors.New("connection reset")
			},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestAuthService(t, tt.repo)
			_, err := svc.Register(context.Background(), RegisterInput{Email: "a@example.com", Password: "hunter2"})
			assertAppError(t, err, http.StatusServiceUnavailable)
		})
	}
}

func TestRegister_EmailNormalization(t *testing.T) {
	var checked, captured string
	repo := &mockUserRepo{
		emailExistsFn: func(ctx context.Context, email string) (bool, error) {
			checked = email
			return false, nil
		},
		createFn: func(ctx context.Context, user *User) error {
			captured = user.Email
			return nil
		},
	}

	svc := newTestAuthService(t, repo)
	if _, err := svc.Register(context.Background(), RegisterInput{Email: "  Alice@EXAMPLE.com  ", Password: "hunter2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if checked != "alice@example.com" || captured != "alice@example.com" {
		t.Errorf("expected normalized email, got check=%q create=%q", checked, captured)
	}
}

// --- Login Tests ---

func TestLogin_Success(t *testing.T) {
	var lastLoginFor string
	repo := &mockUserRepo{
		updateLastLoginFn: func(ctx context.Context, id string) error {
			lastLoginFor = id
			return nil
		},
	}
	svc := newTestAuthService(t, repo)
	user := storedUser(t, svc)
	repo.findByEmailFn = func(ctx context.Context, email string) (*User, error) {
		return user, nil
	}
	repo.findByIDFn = func(ctx context.Context, id string) (*User, error) {
		return user, nil
	}

	token, got, err := svc.Login(context.Background(), LoginInput{Email: "Alice@Example.com", Password: "hunter2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("expected user %s, got %s", user.ID, got.ID)
	}
	if lastLoginFor != user.ID {
		t.Error("expected last login to be recorded")
	}

	resolved, err := svc.ResolveSession(context.Background(), token)
	if err != nil {
		t.Fatalf("resolving new session: %v", err)
	}
	if resolved.ID != user.ID {
		t.Errorf("session resolved to %s, want %s", resolved.ID, user.ID)
	}
}

func TestLogin_UniformFailureMessage(t *testing.T) {
	repo := &mockUserRepo{}
	svc := newTestAuthService(t, repo)
	alice := storedUser(t, svc)
	federated := &User{ID: "user-2", Email: "bob@example.com", GoogleID: "g-123"}

	repo.findByEmailFn = func(ctx context.Context, email string) (*User, error) {
		switch email {
		case alice.Email:
			return alice, nil
		case federated.Email:
			return federated, nil
		}
		return nil, apperror.NewNotFound("user not found")
	}

	cases := []LoginInput{
		{Email: "nobody@example.com", Password: "hunter2"},
		{Email: "alice@example.com", Password: "wrong"},
		{Email: "bob@example.com", Password: "anything"},
		{Email: "alice@example.com", Password: ""},
	}

	var messages []string
	for _, in := range cases {
		_, _, err := svc.Login(context.Background(), in)
		assertAppError(t, err, http.StatusUnauthorized)
		messages = append(messages, apperror.SafeMessage(err))
	}

	for i, msg := range messages {
		if msg != ErrBadCredentials {
			t.Errorf("case %d: expected %q, got %q", i, ErrBadCredentials, msg)
		}
	}
}

func TestLogin_MalformedStoredCredential(t *testing.T) {
	repo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*User, error) {
			return &User{ID: "user-1", Email: email, PasswordHash: "garbage"}, nil
		},
	}
	svc := newTestAuthService(t, repo)

	_, _, err := svc.Login(context.Background(), LoginInput{Email: "alice@example.com", Password: "hunter2"})
	assertAppError(t, err, http.StatusUnauthorized)
	if apperror.SafeMessage(err) != ErrBadCredentials {
		t.Errorf("expected uniform message, got %q", apperror.SafeMessage(err))
	}
}

func TestLogin_StoreUnavailable(t *testing.T) {
	repo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*User, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := newTestAuthService(t, repo)

	_, _, err := svc.Login(context.Background(), LoginInput{Email: "alice@example.com", Password: "hunter2"})
	assertAppError(t, err, http.StatusServiceUnavailable)
}

func TestLogin_LastLoginFailureIsNotFatal(t *testing.T) {
	repo := &mockUserRepo{
		updateLastLoginFn: func(ctx context.Context, id string) error {
			return errors.New("write conflict")
		},
	}
	svc := newTestAuthService(t, repo)
	user := storedUser(t, svc)
	repo.findByEmailFn = func(ctx context.Context, email string) (*User, error) {
		return user, nil
	}

	if _, _, err := svc.Login(context.Background(), LoginInput{Email: user.Email, Password: "hunter2"}); err != nil {
		t.Fatalf("expected login to succeed, got %v", err)
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct{ in, want string }{
		{"alice@example.com", "alice@example.com"},
		{"  Alice@Example.COM ", "alice@example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeEmail(tt.in); got != tt.want {
			t.Errorf("normalizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
