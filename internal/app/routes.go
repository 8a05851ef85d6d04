package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/secrets/internal/middleware"
	"github.com/keyxmakerx/secrets/internal/plugins/auth"
	"github.com/keyxmakerx/secrets/internal/plugins/secrets"
	"github.com/keyxmakerx/secrets/internal/templates/layouts"
	"github.com/keyxmakerx/secrets/internal/templates/pages"
)

// RegisterRoutes builds the plugins and sets up all application routes.
// This is the single place where routes are aggregated.
func (a *App) RegisterRoutes() error {
	e := a.Echo

	// --- Auth Plugin ---
	strategy, err := auth.NewCredentialStrategy(a.Config.Auth)
	if err != nil {
		return fmt.Errorf("building credential strategy: %w", err)
	}
	sessions := auth.NewSessionManager(a.Redis, a.Users, a.Config.Auth.SessionTTL)
	authService := auth.NewAuthService(a.Users, strategy, sessions)

	var oauth *auth.OAuthBridge
	if a.Config.OAuth.Enabled() {
		provider := auth.NewGoogleProvider(a.Config.OAuth)
		oauth = auth.NewOAuthBridge(provider, a.Users, a.Config.Auth.SessionSecret)
	}

	// Resolve the session cookie on every request. Appended after CSRF so
	// it runs innermost of the global middleware.
	e.Use(auth.OptionalAuth(authService))

	// Copy auth state into the Go context templ components read.
	oauthEnabled := oauth != nil
	middleware.LayoutInjector = func(c echo.Context, ctx context.Context) context.Context {
		if user := auth.GetUser(c); user != nil {
			ctx = layouts.SetIsAuthenticated(ctx, true)
			ctx = layouts.SetUserID(ctx, user.ID)
			ctx = layouts.SetUserEmail(ctx, user.Email)
		}
		ctx = layouts.SetCSRFToken(ctx, middleware.GetCSRFToken(c))
		ctx = layouts.SetActivePath(ctx, c.Request().URL.Path)
		ctx = layouts.SetOAuthEnabled(ctx, oauthEnabled)
		return ctx
	}

	// --- Public Routes ---

	// Landing page.
	e.GET("/", func(c echo.Context) error {
		return middleware.Render(c, http.StatusOK, pages.Landing())
	})

	// Health check endpoint for container health monitoring.
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// --- Plugin Routes ---

	auth.RegisterRoutes(e, auth.NewHandler(authService, oauth, a.Config.Auth.SessionTTL))

	secretService := secrets.NewSecretService(secrets.NewUserStoreAdapter(a.Users))
	secrets.RegisterRoutes(e, secrets.NewHandler(secretService), authService)

	return nil
}
