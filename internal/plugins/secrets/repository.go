package secrets

import (
	"context"
)

// SecretStore persists secrets. A user owns at most one secret; setting it
// again replaces the previous one.
type SecretStore interface {
	SetSecret(ctx context.Context, userID, text string) error
	ListSecrets(ctx context.Context) ([]Secret, error)
}
