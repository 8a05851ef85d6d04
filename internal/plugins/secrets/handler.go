package secrets

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/secrets/internal/apperror"
	"github.com/keyxmakerx/secrets/internal/middleware"
	"github.com/keyxmakerx/secrets/internal/plugins/auth"
)

// Handler handles HTTP requests for the secrets board.
type Handler struct {
	service SecretService
}

// NewHandler creates a new secrets handler.
func NewHandler(service SecretService) *Handler {
	return &Handler{service: service}
}

// Board lists every secret (GET /secrets). The board is public.
func (h *Handler) Board(c echo.Context) error {
	list, err := h.service.List(c.Request().Context())
	if err != nil {
		return err
	}
	return middleware.Render(c, http.StatusOK, BoardPage(list))
}

// SubmitForm renders the secret form (GET /submit), pre-filled with the
// user's current secret.
func (h *Handler) SubmitForm(c echo.Context) error {
	var current string
	if user := auth.GetUser(c); user != nil {
		current = user.Secret
	}
	return middleware.Render(c, http.StatusOK, SubmitPage("", current))
}

// Submit stores the posted secret (POST /submit).
func (h *Handler) Submit(c echo.Context) error {
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	if err := h.service.Submit(c.Request().Context(), auth.GetUserID(c), req.Secret); err != nil {
		if apperror.HasCode(err, http.StatusUnprocessableEntity) {
			return middleware.Render(c, http.StatusOK, SubmitPage(apperror.SafeMessage(err), req.Secret))
		}
		return err
	}

	return c.Redirect(http.StatusSeeOther, "/secrets")
}
