package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// --- Rate limiting ---

func TestIPLimiter_BurstThenDeny(t *testing.T) {
	l := newIPLimiter(3, time.Minute)
	now := time.Now()

	for i := 0; i < 3; i++ {
		if !l.allow("10.0.0.1", now) {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.allow("10.0.0.1", now) {
		t.Error("fourth request inside the window should be denied")
	}
	if !l.allow("10.0.0.2", now) {
		t.Error("a different IP has its own bucket")
	}
}

func TestIPLimiter_RefillsOverWindow(t *testing.T) {
	l := newIPLimiter(2, time.Minute)
	now := time.Now()

	l.allow("10.0.0.1", now)
	l.allow("10.0.0.1", now)
	if l.allow("10.0.0.1", now) {
		t.Fatal("expected bucket to be empty")
	}
	if !l.allow("10.0.0.1", now.Add(31*time.Second)) {
		t.Error("expected one token back after half the window")
	}
}

func TestIPLimiter_EvictsIdleEntries(t *testing.T) {
	l := newIPLimiter(1, time.Minute)
	now := time.Now()

	l.allow("10.0.0.1", now)
	l.allow("10.0.0.2", now.Add(3*time.Minute))

	if _, ok := l.entries["10.0.0.1"]; ok {
		t.Error("expected idle entry to be evicted")
	}
}

func TestIPLimiter_SweepsAtMostOncePerHalfIdle(t *testing.T) {
	l := newIPLimiter(1, time.Minute) // idle = 2m
	now := time.Now()

	l.allow("10.0.0.1", now)
	l.allow("10.0.0.2", now.Add(30*time.Second))
	if !l.lastSweep.Equal(now) {
		t.Fatalf("expected no sweep within half the idle period, last sweep %v", l.lastSweep)
	}

	// Stale, but the previous sweep was too recent to scan again.
	l.lastSweep = now.Add(2*time.Minute + 30*time.Second)
	l.allow("10.0.0.3", now.Add(3*time.Minute))
	if _, ok := l.entries["10.0.0.1"]; !ok {
		t.Error("expected entry to survive until the next sweep")
	}

	l.allow("10.0.0.3", now.Add(4*time.Minute))
	if _, ok := l.entries["10.0.0.1"]; ok {
		t.Error("expected idle entry to be evicted on the next sweep")
	}
}

func TestRateLimit_Returns429(t *testing.T) {
	e := echo.New()
	h := RateLimit(1, time.Minute)(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	if err := h(e.NewContext(req, httptest.NewRecorder())); err != nil {
		t.Fatalf("first request: unexpected error %v", err)
	}

	err := h(e.NewContext(req, httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 HTTPError, got %v", err)
	}
}

// --- CSRF ---

func TestCSRF_GetIssuesCookie(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := CSRF()(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Header().Get("Set-Cookie"), csrfCookieName+"=") {
		t.Error("expected CSRF cookie to be set")
	}
	if GetCSRFToken(c) == "" {
		t.Error("expected token in context")
	}
}

func TestCSRF_PostValidation(t *testing.T) {
	tests := []struct {
		name      string
		cookie    string
		formToken string
		wantCode  int
	}{
		{"matching token", "abc123", "abc123", http.StatusOK},
		{"mismatched token", "abc123", "zzz", http.StatusForbidden},
		{"missing form token", "abc123", "", http.StatusForbidden},
		{"no cookie yet", "", "abc123", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			form := url.Values{}
			if tt.formToken != "" {
				form.Set(CSRFFormField, tt.formToken)
			}
			req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()

			err := CSRF()(okHandler)(e.NewContext(req, rec))

			code := rec.Code
			if he, ok := err.(*echo.HTTPError); ok {
				code = he.Code
			}
			if code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, code)
			}
		})
	}
}

// --- Proxies ---

func TestIPExtractor_TrustsOnlyKnownProxies(t *testing.T) {
	extract := buildIPExtractor([]string{"10.0.0.0/8", "not-a-cidr"})

	proxied := httptest.NewRequest(http.MethodGet, "/", nil)
	proxied.RemoteAddr = "10.1.2.3:5555"
	proxied.Header.Set("X-Forwarded-For", "203.0.113.9, 10.1.2.3")
	if got := extract(proxied); got != "203.0.113.9" {
		t.Errorf("expected forwarded client IP, got %q", got)
	}

	direct := httptest.NewRequest(http.MethodGet, "/", nil)
	direct.RemoteAddr = "198.51.100.7:5555"
	direct.Header.Set("X-Real-IP", "1.1.1.1")
	if got := extract(direct); got != "198.51.100.7" {
		t.Errorf("expected spoofed header to be ignored, got %q", got)
	}
}
