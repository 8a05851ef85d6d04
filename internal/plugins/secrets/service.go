package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/keyxmakerx/secrets/internal/apperror"
	"github.com/keyxmakerx/secrets/internal/sanitize"
)

// SecretService defines the business logic contract for the board.
type SecretService interface {
	Submit(ctx context.Context, userID, text string) error
	List(ctx context.Context) ([]Secret, error)
}

// secretService implements SecretService.
type secretService struct {
	store SecretStore
}

// NewSecretService creates a new secret service.
func NewSecretService(store SecretStore) SecretService {
	return &secretService{store: store}
}

// Submit sanitizes text and stores it as the user's secret, replacing any
// earlier one.
func (s *secretService) Submit(ctx context.Context, userID, text string) error {
	clean := sanitize.Text(text)
	if clean == "" {
		return apperror.NewValidation("secret must not be empty")
	}
	if utf8.RuneCountInString(clean) > MaxSecretLength {
		return apperror.NewValidation(fmt.Sprintf("secret must be %d characters or less", MaxSecretLength))
	}

	if err := s.store.SetSecret(ctx, userID, clean); err != nil {
		// The account vanished after its session was resolved.
		if apperror.IsNotFound(err) {
			return apperror.NewUnauthorized("session expired or invalid")
		}
		return apperror.NewUnavailable(fmt.Errorf("storing secret: %w", err))
	}

	slog.Info("secret submitted", slog.String("user_id", userID))
	return nil
}

// List returns every secret on the board.
func (s *secretService) List(ctx context.Context) ([]Secret, error) {
	list, err := s.store.ListSecrets(ctx)
	if err != nil {
		return nil, apperror.NewUnavailable(fmt.Errorf("listing secrets: %w", err))
	}
	return list, nil
}
