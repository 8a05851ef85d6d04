// Package auth handles registration, login, logout, Google sign-in and
// session validation for the secrets board. Credentials are encoded by the
// CredentialStrategy chosen at startup; sessions are opaque tokens stored
// in Redis that resolve to a user through the UserRepository.
//
// This is a CORE plugin -- always enabled, cannot be disabled.
package auth

import (
	"time"
)

// User is a registered identity. Local accounts carry Email and
// PasswordHash; federated accounts may carry only GoogleID.
type User struct {
	ID           string     `bson:"_id" json:"id"`
	Email        string     `bson:"email,omitempty" json:"email,omitempty"`
	PasswordHash string     `bson:"password,omitempty" json:"-"` // Opaque, strategy-encoded.
	GoogleID     string     `bson:"google_id,omitempty" json:"-"`
	Secret       string     `bson:"secret,omitempty" json:"secret,omitempty"`
	CreatedAt    time.Time  `bson:"created_at" json:"created_at"`
	LastLoginAt  *time.Time `bson:"last_login_at,omitempty" json:"last_login_at,omitempty"`
}

// HasLocalCredential reports whether the user can sign in with a password.
func (u *User) HasLocalCredential() bool {
	return u.PasswordHash != ""
}

// --- Request DTOs (bound from HTTP forms) ---

// RegisterRequest holds the data submitted by the registration form. The
// field is called "username" on the wire but always holds an email address.
type RegisterRequest struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

// LoginRequest holds the data submitted by the login form.
type LoginRequest struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

// --- Service Input DTOs (passed from handler to service) ---

// RegisterInput is the input for creating a local account.
type RegisterInput struct {
	Email    string
	Password string
}

// LoginInput is the input for authenticating a local account.
type LoginInput struct {
	Email    string
	Password string
}

// --- Session ---

// Session is the value stored in Redis under a session token. It holds only
// the user reference; the user itself is re-read from the store on every
// request so a deleted account can never stay signed in.
type Session struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// --- Federation ---

// ExternalProfile is what an identity provider asserts about a user after
// a successful handshake.
type ExternalProfile struct {
	// Provider names the identity provider (e.g., "google").
	Provider string

	// Subject is the provider's stable user identifier.
	Subject string

	// Email is informational only; it is never used to link accounts.
	Email string
}
