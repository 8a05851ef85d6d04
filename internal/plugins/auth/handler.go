package auth

import (
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/secrets/internal/apperror"
	"github.com/keyxmakerx/secrets/internal/middleware"
)

// sessionCookieName is the HTTP cookie used to store the session token.
const sessionCookieName = "secrets_session"

// oauthStateCookieName holds the nonce the OAuth state token is bound to.
const oauthStateCookieName = "secrets_oauth_state"

// Password length bounds. bcrypt ignores input past 72 bytes, so longer
// passwords are rejected instead of silently truncated.
const (
	minPasswordLen = 6
	maxPasswordLen = 72
)

// User-facing notifications selected by the ?error= query parameter.
const (
	msgOAuthFailed        = "Google sign-in failed. Please try again."
	msgRegistrationFailed = "Registration failed. Please try again."
)

// Handler handles HTTP requests for authentication (login, register,
// logout, Google sign-in). Handlers are thin: they bind the request, call
// the service, and render the response. No business logic lives here.
type Handler struct {
	service    AuthService
	oauth      *OAuthBridge
	sessionTTL time.Duration
}

// NewHandler creates a new auth handler. oauth may be nil when Google
// sign-in is not configured.
func NewHandler(service AuthService, oauth *OAuthBridge, sessionTTL time.Duration) *Handler {
	return &Handler{service: service, oauth: oauth, sessionTTL: sessionTTL}
}

// LoginForm renders the login page (GET /login).
func (h *Handler) LoginForm(c echo.Context) error {
	if GetUser(c) != nil {
		return c.Redirect(http.StatusSeeOther, "/secrets")
	}

	var notification string
	if c.QueryParam("error") == "oauth" {
		notification = msgOAuthFailed
	}

	return middleware.Render(c, http.StatusOK, LoginPage(notification, ""))
}

// Login processes the login form submission (POST /login).
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	token, _, err := h.service.Login(c.Request().Context(), LoginInput{
		Email:    req.Username,
		Password: req.Password,
	})
	if err != nil {
		if apperror.HasCode(err, http.StatusUnauthorized) {
			return middleware.Render(c, http.StatusOK, LoginPage(apperror.SafeMessage(err), req.Username))
		}
		return err
	}

	h.setSessionCookie(c, token)
	return c.Redirect(http.StatusSeeOther, "/secrets")
}

// RegisterForm renders the registration page (GET /register).
func (h *Handler) RegisterForm(c echo.Context) error {
	if GetUser(c) != nil {
		return c.Redirect(http.StatusSeeOther, "/secrets")
	}

	var notification string
	if c.QueryParam("error") == "registration" {
		notification = msgRegistrationFailed
	}

	return middleware.Render(c, http.StatusOK, RegisterPage(notification, ""))
}

// Register processes the registration form submission (POST /register).
func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	if msg := validateRegisterRequest(&req); msg != "" {
		return middleware.Render(c, http.StatusOK, RegisterPage(msg, req.Username))
	}

	user, err := h.service.Register(c.Request().Context(), RegisterInput{
		Email:    req.Username,
		Password: req.Password,
	})
	if err != nil {
		if apperror.IsConflict(err) {
			slog.Info("registration rejected: identity already taken")
			return c.Redirect(http.StatusSeeOther, "/register?error=registration")
		}
		return err
	}

	token, err := h.service.StartSession(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}

	h.setSessionCookie(c, token)
	return c.Redirect(http.StatusSeeOther, "/secrets")
}

// Logout destroys the session and clears the cookie (GET or POST /logout).
func (h *Handler) Logout(c echo.Context) error {
	if token := getSessionToken(c); token != "" {
		// The cookie is cleared regardless.
		if err := h.service.DestroySession(c.Request().Context(), token); err != nil {
			slog.Warn("destroying session on logout", slog.Any("error", err))
		}
	}

	clearSessionCookie(c)
	return c.Redirect(http.StatusSeeOther, "/")
}

// --- Google sign-in ---

// GoogleLogin starts the OAuth flow (GET /auth/google).
func (h *Handler) GoogleLogin(c echo.Context) error {
	redirectURL, nonce, err := h.oauth.Begin()
	if err != nil {
		slog.Error("starting oauth flow", slog.Any("error", err))
		return c.Redirect(http.StatusSeeOther, "/login?error=oauth")
	}

	req := c.Request()
	c.SetCookie(&http.Cookie{
		Name:     oauthStateCookieName,
		Value:    nonce,
		Path:     "/auth/google",
		HttpOnly: true,
		Secure:   isSecure(req),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(stateTTL / time.Second),
	})

	return c.Redirect(http.StatusSeeOther, redirectURL)
}

// GoogleCallback completes the OAuth flow (GET /auth/google/callback). Any
// failure lands on the login page with a generic notification.
func (h *Handler) GoogleCallback(c echo.Context) error {
	var nonce string
	if cookie, err := c.Cookie(oauthStateCookieName); err == nil {
		nonce = cookie.Value
	}
	c.SetCookie(&http.Cookie{
		Name:     oauthStateCookieName,
		Value:    "",
		Path:     "/auth/google",
		HttpOnly: true,
		MaxAge:   -1,
	})

	if providerErr := c.QueryParam("error"); providerErr != "" {
		slog.Info("oauth consent not granted", slog.String("error", providerErr))
		return c.Redirect(http.StatusSeeOther, "/login?error=oauth")
	}

	ctx := c.Request().Context()
	user, err := h.oauth.Complete(ctx, c.QueryParam("state"), nonce, c.QueryParam("code"))
	if err != nil {
		slog.Warn("oauth sign-in failed", slog.Any("error", err))
		return c.Redirect(http.StatusSeeOther, "/login?error=oauth")
	}

	token, err := h.service.StartSession(ctx, user.ID)
	if err != nil {
		slog.Warn("starting session after oauth", slog.Any("error", err))
		return c.Redirect(http.StatusSeeOther, "/login?error=oauth")
	}

	h.setSessionCookie(c, token)
	return c.Redirect(http.StatusSeeOther, "/secrets")
}

// --- Cookie helpers ---

// getSessionToken reads the session token from the cookie.
func getSessionToken(c echo.Context) string {
	cookie, err := c.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	return cookie.Value
}

// setSessionCookie sets the session cookie on the response, ending any
// session the browser already held. The cookie is HttpOnly (JS can't read
// it), Secure if behind TLS, and SameSite=Lax so the OAuth callback
// redirect still carries it.
func (h *Handler) setSessionCookie(c echo.Context, token string) {
	if prev := getSessionToken(c); prev != "" && prev != token {
		if err := h.service.DestroySession(c.Request().Context(), prev); err != nil {
			slog.Warn("destroying replaced session", slog.Any("error", err))
		}
	}

	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecure(c.Request()),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.sessionTTL / time.Second),
	})
}

// clearSessionCookie removes the session cookie by setting MaxAge to -1.
func clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func isSecure(req *http.Request) bool {
	return req.TLS != nil || req.Header.Get("X-Forwarded-Proto") == "https"
}

// --- Validation helpers ---

// validateRegisterRequest performs basic server-side validation on the
// registration form. Returns an error message or empty string.
func validateRegisterRequest(req *RegisterRequest) string {
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		return "email is required"
	}
	addr, err := mail.ParseAddress(req.Username)
	if err != nil || addr.Address != req.Username {
		return "email must be a valid address"
	}
	if req.Password == "" {
		return "password is required"
	}
	if len(req.Password) < minPasswordLen {
		return "password must be at least 6 characters"
	}
	if len(req.Password) > maxPasswordLen {
		return "password must be at most 72 bytes"
	}
	return ""
}
