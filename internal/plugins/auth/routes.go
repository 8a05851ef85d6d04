package auth

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/secrets/internal/middleware"
)

// RegisterRoutes sets up all auth-related routes on the given Echo instance.
// Auth routes are public (no session required) -- the middleware is exported
// separately for other plugins to use on their route groups.
//
// POST endpoints are rate-limited to slow down brute-force and credential
// stuffing: 10 attempts per IP per minute for login, 5 for register.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.GET("/login", h.LoginForm)
	e.POST("/login", h.Login, middleware.RateLimit(10, time.Minute))
	e.GET("/register", h.RegisterForm)
	e.POST("/register", h.Register, middleware.RateLimit(5, time.Minute))

	// A plain link logs out, as does a form post.
	e.GET("/logout", h.Logout)
	e.POST("/logout", h.Logout)

	// Google sign-in only exists when a client is configured.
	if h.oauth != nil {
		e.GET("/auth/google", h.GoogleLogin)
		e.GET("/auth/google/callback", h.GoogleCallback)
	}
}
