package auth

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/secrets/internal/apperror"
)

// Context keys for storing the signed-in user in Echo context. Other
// plugins use the exported getters below instead of the keys.
const (
	contextKeyUser   = "auth_user"
	contextKeyUserID = "auth_user_id"
)

// OptionalAuth resolves the session cookie when one is present so pages
// can tell whether someone is signed in. It never rejects a request: an
// invalid session is cleared and the request continues anonymously.
func OptionalAuth(service AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := getSessionToken(c)
			if token == "" {
				return next(c)
			}

			user, err := service.ResolveSession(c.Request().Context(), token)
			switch {
			case err == nil:
				setUser(c, user)
			case apperror.HasCode(err, http.StatusUnauthorized):
				clearSessionCookie(c)
			default:
				// Session backend trouble: serve the page anonymously.
				slog.Warn("resolving optional session", slog.Any("error", err))
			}

			return next(c)
		}
	}
}

// RequireAuth returns middleware that only lets signed-in users through.
// If OptionalAuth already resolved the user it is reused; otherwise the
// cookie is resolved here. Anonymous browsers are redirected to /login.
func RequireAuth(service AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if GetUser(c) != nil {
				return next(c)
			}

			token := getSessionToken(c)
			if token == "" {
				return c.Redirect(http.StatusSeeOther, "/login")
			}

			user, err := service.ResolveSession(c.Request().Context(), token)
			if err != nil {
				if apperror.HasCode(err, http.StatusUnauthorized) {
					// Invalid or expired session -- clear the stale cookie.
					clearSessionCookie(c)
					return c.Redirect(http.StatusSeeOther, "/login")
				}
				return err
			}

			setUser(c, user)
			return next(c)
		}
	}
}

func setUser(c echo.Context, user *User) {
	c.Set(contextKeyUser, user)
	c.Set(contextKeyUserID, user.ID)
}

// --- Exported getters for other plugins ---

// GetUser retrieves the signed-in user from the Echo context. Returns nil
// for anonymous requests.
func GetUser(c echo.Context) *User {
	user, ok := c.Get(contextKeyUser).(*User)
	if !ok {
		return nil
	}
	return user
}

// GetUserID retrieves the signed-in user's ID from the Echo context.
// Returns empty string for anonymous requests.
func GetUserID(c echo.Context) string {
	id, ok := c.Get(contextKeyUserID).(string)
	if !ok {
		return ""
	}
	return id
}
