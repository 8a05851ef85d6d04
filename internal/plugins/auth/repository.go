package auth

import (
	"context"
)

// UserRepository is the credential store contract. Implementations must
// enforce uniqueness of Email and GoogleID at the store level and report a
// violation from Create as an apperror conflict (409). Lookups that match
// nothing return an apperror not-found (404). Nothing is cached: every call
// is a round-trip to the store.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByGoogleID(ctx context.Context, googleID string) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UpdateLastLogin(ctx context.Context, id string) error

	// Secrets board.
	UpdateSecret(ctx context.Context, id, secret string) error
	ListWithSecrets(ctx context.Context) ([]User, error)
}

// errDuplicateIdentity is the user-facing message for a uniqueness violation.
const errDuplicateIdentity = "an account with this identity already exists"
