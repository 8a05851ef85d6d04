package auth

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/keyxmakerx/secrets/internal/apperror"
	"github.com/keyxmakerx/secrets/internal/config"
)

// ProviderGoogle identifies Google in ExternalProfile.Provider.
const ProviderGoogle = "google"

// googleUserInfoURL is the OpenID Connect userinfo endpoint. It returns the
// stable "sub" claim along with the email.
const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// stateTTL bounds how long a user may take on the provider's consent screen.
const stateTTL = 10 * time.Minute

// stateIssuer is the iss claim of OAuth state tokens.
const stateIssuer = "secrets/oauth-state"

// IdentityProvider is an external sign-in provider using the authorization
// code flow.
type IdentityProvider interface {
	// AuthCodeURL returns the provider URL to send the browser to.
	AuthCodeURL(state string) string

	// Identify exchanges an authorization code for the caller's profile.
	Identify(ctx context.Context, code string) (*ExternalProfile, error)
}

// --- Google ---

// GoogleProvider signs users in with Google.
type GoogleProvider struct {
	oauth       *oauth2.Config
	userInfoURL string
}

// NewGoogleProvider creates a Google identity provider from config.
func NewGoogleProvider(cfg config.OAuthConfig) *GoogleProvider {
	return newGoogleProvider(cfg, endpoints.Google, googleUserInfoURL)
}

// newGoogleProvider allows tests to point the provider at a fake server.
func newGoogleProvider(cfg config.OAuthConfig, endpoint oauth2.Endpoint, userInfoURL string) *GoogleProvider {
	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "email"},
		},
		userInfoURL: userInfoURL,
	}
}

// AuthCodeURL returns Google's consent URL carrying state.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// googleUserInfo is the subset of the userinfo response we read.
type googleUserInfo struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
}

// Identify exchanges code for a token and fetches the userinfo document.
func (p *GoogleProvider) Identify(ctx context.Context, code string) (*ExternalProfile, error) {
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building userinfo request: %w", err)
	}

	resp, err := p.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("userinfo returned %d: %s", resp.StatusCode, body)
	}

	var info googleUserInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return nil, fmt.Errorf("decoding userinfo: %w", err)
	}
	if info.Sub == "" {
		return nil, errors.New("userinfo response has no subject")
	}

	return &ExternalProfile{Provider: ProviderGoogle, Subject: info.Sub, Email: info.Email}, nil
}

// --- State tokens ---

// stateClaims binds a state token to the nonce kept in the browser cookie.
type stateClaims struct {
	jwt.RegisteredClaims
}

// stateSigner issues and checks HS256 state tokens.
type stateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func newStateSigner(secret string) *stateSigner {
	return &stateSigner{secret: []byte(secret), ttl: stateTTL, now: time.Now}
}

// issue returns a signed state and the nonce the caller must store in a
// cookie for verify.
func (s *stateSigner) issue() (state, nonce string, err error) {
	raw, err := randomBytes(16)
	if err != nil {
		return "", "", err
	}
	nonce = hex.EncodeToString(raw)

	now := s.now()
	claims := stateClaims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    stateIssuer,
		ID:        nonce,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}}

	state, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", "", fmt.Errorf("signing state: %w", err)
	}
	return state, nonce, nil
}

// verify checks the signature, expiry and issuer of state and that it
// carries nonce.
func (s *stateSigner) verify(state, nonce string) error {
	if state == "" || nonce == "" {
		return errors.New("missing state or nonce")
	}

	keyFunc := func(*jwt.Token) (any, error) { return s.secret, nil }

	var claims stateClaims
	_, err := jwt.ParseWithClaims(state, &claims, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("parsing state: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(claims.ID), []byte(nonce)) != 1 {
		return errors.New("state nonce mismatch")
	}
	return nil
}

// --- Bridge ---

// OAuthBridge links provider identities to local users.
type OAuthBridge struct {
	provider IdentityProvider
	users    UserRepository
	states   *stateSigner
}

// NewOAuthBridge creates a bridge for provider. stateSecret signs the
// short-lived state tokens.
func NewOAuthBridge(provider IdentityProvider, users UserRepository, stateSecret string) *OAuthBridge {
	return &OAuthBridge{provider: provider, users: users, states: newStateSigner(stateSecret)}
}

// Begin returns the provider URL to redirect to and the nonce to store in
// the state cookie.
func (b *OAuthBridge) Begin() (redirectURL, nonce string, err error) {
	state, nonce, err := b.states.issue()
	if err != nil {
		return "", "", err
	}
	return b.provider.AuthCodeURL(state), nonce, nil
}

// Complete finishes the handshake: it checks state against nonce, asks the
// provider who the caller is, and returns the linked local user.
func (b *OAuthBridge) Complete(ctx context.Context, state, nonce, code string) (*User, error) {
	if err := b.states.verify(state, nonce); err != nil {
		return nil, apperror.NewBadRequest("invalid oauth state").WithInternal(err)
	}
	if code == "" {
		return nil, apperror.NewBadRequest("missing authorization code")
	}

	profile, err := b.provider.Identify(ctx, code)
	if err != nil {
		return nil, apperror.NewUnauthorized("identity provider rejected the sign-in").WithInternal(err)
	}

	return b.FindOrCreate(ctx, profile)
}

// FindOrCreate returns the user linked to profile, creating one on first
// sign-in. Two concurrent first sign-ins race on the unique google_id
// index; the loser re-reads and returns the winner's record, so both end
// up with the same user.
func (b *OAuthBridge) FindOrCreate(ctx context.Context, profile *ExternalProfile) (*User, error) {
	user, err := b.users.FindByGoogleID(ctx, profile.Subject)
	if err == nil {
		return user, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, apperror.NewUnavailable(fmt.Errorf("finding federated user: %w", err))
	}

	user = &User{
		ID:        uuid.NewString(),
		GoogleID:  profile.Subject,
		CreatedAt: time.Now().UTC(),
	}

	err = b.users.Create(ctx, user)
	if apperror.IsConflict(err) {
		existing, findErr := b.users.FindByGoogleID(ctx, profile.Subject)
		if findErr != nil {
			return nil, apperror.NewUnavailable(fmt.Errorf("re-reading federated user after conflict: %w", findErr))
		}
		return existing, nil
	}
	if err != nil {
		return nil, apperror.NewUnavailable(fmt.Errorf("creating federated user: %w", err))
	}

	slog.Info("federated user created",
		slog.String("user_id", user.ID),
		slog.String("provider", profile.Provider),
	)
	return user, nil
}
