package secrets

import (
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/secrets/internal/plugins/auth"
)

// RegisterRoutes sets up the board routes. Reading is public; posting
// requires a session.
func RegisterRoutes(e *echo.Echo, h *Handler, authSvc auth.AuthService) {
	e.GET("/secrets", h.Board)

	e.GET("/submit", h.SubmitForm, auth.RequireAuth(authSvc))
	e.POST("/submit", h.Submit, auth.RequireAuth(authSvc))
}
