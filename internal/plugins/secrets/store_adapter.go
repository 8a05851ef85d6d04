package secrets

import (
	"context"

	"github.com/keyxmakerx/secrets/internal/plugins/auth"
)

// UserStoreAdapter wraps auth.UserRepository to satisfy SecretStore. Secrets
// live on the user record, so only this file references the auth package's
// repository.
type UserStoreAdapter struct {
	repo auth.UserRepository
}

// NewUserStoreAdapter creates a new adapter around the auth repository.
func NewUserStoreAdapter(repo auth.UserRepository) SecretStore {
	return &UserStoreAdapter{repo: repo}
}

// SetSecret replaces the user's secret.
func (a *UserStoreAdapter) SetSecret(ctx context.Context, userID, text string) error {
	return a.repo.UpdateSecret(ctx, userID, text)
}

// ListSecrets maps users with a secret to anonymous board entries.
func (a *UserStoreAdapter) ListSecrets(ctx context.Context) ([]Secret, error) {
	users, err := a.repo.ListWithSecrets(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Secret, 0, len(users))
	for _, u := range users {
		if u.Secret == "" {
			continue
		}
		out = append(out, Secret{Text: u.Secret})
	}
	return out, nil
}
