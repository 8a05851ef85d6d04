package app

import (
	"context"
	"errors"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/secrets/internal/apperror"
	"github.com/keyxmakerx/secrets/internal/config"
	"github.com/keyxmakerx/secrets/internal/plugins/auth"
)

// memUsers is an in-memory auth.UserRepository enforcing the same
// uniqueness rules as the real stores.
type memUsers struct {
	mu    sync.Mutex
	users []*auth.User
	down  bool
}

var errStoreDown = errors.New("connection refused")

func (m *memUsers) find(match func(*auth.User) bool) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, errStoreDown
	}
	for _, u := range m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *memUsers) Create(ctx context.Context, user *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if (user.Email != "" && u.Email == user.Email) || (user.GoogleID != "" && u.GoogleID == user.GoogleID) {
			return apperror.NewConflict("duplicate identity")
		}
	}
	cp := *user
	m.users = append(m.users, &cp)
	return nil
}

func (m *memUsers) FindByID(ctx context.Context, id string) (*auth.User, error) {
	return m.find(func(u *auth.User) bool { return u.ID == id })
}

func (m *memUsers) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return m.find(func(u *auth.User) bool { return u.Email == email })
}

func (m *memUsers) FindByGoogleID(ctx context.Context, googleID string) (*auth.User, error) {
	return m.find(func(u *auth.User) bool { return u.GoogleID == googleID })
}

func (m *memUsers) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	if apperror.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

func (m *memUsers) UpdateLastLogin(ctx context.Context, id string) error {
	return nil
}

func (m *memUsers) UpdateSecret(ctx context.Context, id, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			u.Secret = secret
			return nil
		}
	}
	return apperror.NewNotFound("user not found")
}

func (m *memUsers) ListWithSecrets(ctx context.Context) ([]auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, errStoreDown
	}
	var out []auth.User
	for _, u := range m.users {
		if u.Secret != "" {
			out = append(out, auth.User{ID: u.ID, Secret: u.Secret})
		}
	}
	return out, nil
}

const testCSRF = "test-csrf-token"

// browser is a minimal cookie-carrying client for the app under test.
type browser struct {
	t       *testing.T
	e       http.Handler
	session *http.Cookie
}

func newTestApp(t *testing.T, users *memUsers) *browser {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{
		Env:     "test",
		BaseURL: "http://localhost:3000",
		Auth: config.AuthConfig{
			SessionSecret: "test-session-secret",
			SessionTTL:    time.Hour,
			Strategy:      config.StrategyPlaintext,
		},
	}

	a := New(cfg, users, rdb)
	if err := a.RegisterRoutes(); err != nil {
		t.Fatalf("registering routes: %v", err)
	}
	return &browser{t: t, e: a.Echo}
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (b *browser) post(target string, form url.Values) *httptest.ResponseRecorder {
	form.Set("csrf_token", testCSRF)
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	req.AddCookie(&http.Cookie{Name: "secrets_csrf", Value: testCSRF})
	if b.session != nil {
		req.AddCookie(b.session)
	}
	rec := httptest.NewRecorder()
	b.e.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.Name != "secrets_session" {
			continue
		}
		if c.MaxAge < 0 || c.Value == "" {
			b.session = nil
		} else {
			b.session = c
		}
	}
	return rec
}

func expectRedirect(t *testing.T, rec *httptest.ResponseRecorder, location string) {
	t.Helper()
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 to %s, got %d", location, rec.Code)
	}
	if got := rec.Header().Get("Location"); got != location {
		t.Fatalf("expected redirect to %s, got %s", location, got)
	}
}

func TestApp_AliceScenario(t *testing.T) {
	b := newTestApp(t, &memUsers{})

	rec := b.get("/")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `href="/register"`) {
		t.Fatalf("expected anonymous landing page, got %d", rec.Code)
	}

	// Register signs alice in straight away.
	rec = b.post("/register", url.Values{"username": {"alice@example.com"}, "password": {"hunter2"}})
	expectRedirect(t, rec, "/secrets")
	if b.session == nil {
		t.Fatal("expected a session after registering")
	}

	rec = b.get("/submit")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected submit form, got %d", rec.Code)
	}

	rec = b.post("/submit", url.Values{"secret": {"I like pineapple on pizza"}})
	expectRedirect(t, rec, "/secrets")

	rec = b.get("/secrets")
	if !strings.Contains(rec.Body.String(), "I like pineapple on pizza") {
		t.Error("expected alice's secret on the board")
	}

	rec = b.get("/logout")
	expectRedirect(t, rec, "/")
	if b.session != nil {
		t.Fatal("expected the session cookie to be cleared")
	}

	rec = b.get("/submit")
	expectRedirect(t, rec, "/login")

	// The board stays public.
	rec = b.get("/secrets")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "I like pineapple on pizza") {
		t.Error("expected the board to be readable while signed out")
	}
	if strings.Contains(rec.Body.String(), "alice@example.com") {
		t.Error("the board must not reveal who posted")
	}

	rec = b.post("/login", url.Values{"username": {"alice@example.com"}, "password": {"wrong"}})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), auth.ErrBadCredentials) {
		t.Fatalf("expected login form with failure message, got %d", rec.Code)
	}

	rec = b.post("/login", url.Values{"username": {"Alice@Example.com "}, "password": {"hunter2"}})
	expectRedirect(t, rec, "/secrets")

	rec = b.get("/submit")
	if !strings.Contains(rec.Body.String(), "I like pineapple on pizza") {
		t.Error("expected the current secret to be pre-filled")
	}
}

func TestApp_Healthz(t *testing.T) {
	b := newTestApp(t, &memUsers{})

	rec := b.get("/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"status":"ok"}` {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestApp_NotFoundRendersErrorPage(t *testing.T) {
	b := newTestApp(t, &memUsers{})

	rec := b.get("/nope")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(html.UnescapeString(rec.Body.String()), "doesn't exist") {
		t.Error("expected friendly 404 message")
	}
}

func TestApp_StoreDownIsUnavailable(t *testing.T) {
	users := &memUsers{}
	b := newTestApp(t, users)
	users.down = true

	rec := b.get("/secrets")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), errStoreDown.Error()) {
		t.Error("internal cause must not reach the client")
	}
}

func TestApp_PostWithoutCSRFIsForbidden(t *testing.T) {
	b := newTestApp(t, &memUsers{})

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("username=a%40b.c&password=hunter2"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	b.e.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}
