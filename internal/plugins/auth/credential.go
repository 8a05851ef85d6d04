package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"

	"github.com/keyxmakerx/secrets/internal/config"
)

// CredentialStrategy turns a plaintext password into the opaque string the
// store persists, and checks a presented password against it. One strategy
// is chosen at startup and used for every account.
//
// Verify returns (false, nil) for a wrong password. A non-nil error means
// the stored value could not be interpreted at all; callers treat it as a
// failed verification too.
type CredentialStrategy interface {
	Name() string
	Encode(plain string) (string, error)
	Verify(stored, presented string) (bool, error)
}

// NewCredentialStrategy builds the strategy named in cfg.Strategy.
func NewCredentialStrategy(cfg config.AuthConfig) (CredentialStrategy, error) {
	switch cfg.Strategy {
	case config.StrategyPlaintext:
		return plaintextStrategy{}, nil
	case config.StrategyDigest:
		return digestStrategy{}, nil
	case config.StrategyBcrypt:
		return bcryptStrategy{cost: cfg.BcryptCost}, nil
	case config.StrategyArgon2id:
		return argon2idStrategy{}, nil
	case config.StrategyPBKDF2:
		return pbkdf2Strategy{iterations: pbkdf2Iterations}, nil
	case config.StrategyEncrypted:
		return newEncryptedStrategy(cfg.EncryptionKey, cfg.SigningKey)
	default:
		return nil, fmt.Errorf("unknown credential strategy %q", cfg.Strategy)
	}
}

// errMalformedCredential is returned by Verify when the stored value does
// not have the shape the strategy writes.
var errMalformedCredential = errors.New("malformed stored credential")

// --- plaintext ---

// plaintextStrategy stores the password as-is. Development only; config
// refuses it in production.
type plaintextStrategy struct{}

func (plaintextStrategy) Name() string { return config.StrategyPlaintext }

func (plaintextStrategy) Encode(plain string) (string, error) {
	return plain, nil
}

func (plaintextStrategy) Verify(stored, presented string) (bool, error) {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1, nil
}

// --- digest ---

// digestStrategy stores an unsalted SHA-256 hex digest. Equal passwords
// produce equal stored values.
type digestStrategy struct{}

func (digestStrategy) Name() string { return config.StrategyDigest }

func (digestStrategy) Encode(plain string) (string, error) {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:]), nil
}

func (d digestStrategy) Verify(stored, presented string) (bool, error) {
	want, _ := d.Encode(presented)
	return subtle.ConstantTimeCompare([]byte(stored), []byte(want)) == 1, nil
}

// --- bcrypt ---

type bcryptStrategy struct {
	cost int
}

func (bcryptStrategy) Name() string { return config.StrategyBcrypt }

func (s bcryptStrategy) Encode(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), s.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(hash), nil
}

func (bcryptStrategy) Verify(stored, presented string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(presented))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", errMalformedCredential, err)
	}
}

// --- argon2id ---

// argon2id parameters tuned for a self-hosted application running on
// modest hardware (2-4 CPU cores, 2-4 GB RAM). These follow OWASP
// recommendations for argon2id: memory=64MB, iterations=3, parallelism=4.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // 64 MB in KiB
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

type argon2idStrategy struct{}

func (argon2idStrategy) Name() string { return config.StrategyArgon2id }

// Encode creates an argon2id hash in PHC format:
// $argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
func (argon2idStrategy) Encode(plain string) (string, error) {
	salt, err := randomBytes(argonSaltLen)
	if err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(plain), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

// Verify re-derives the hash with the parameters embedded in stored, so
// changing the constants above never locks out existing accounts.
func (argon2idStrategy) Verify(stored, presented string) (bool, error) {
	parts := strings.Split(stored, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, errMalformedCredential
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, errMalformedCredential
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false, errMalformedCredential
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, errMalformedCredential
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false, errMalformedCredential
	}
	// argon2.IDKey panics on zero cost parameters.
	if memory == 0 || iterations == 0 || parallelism == 0 {
		return false, errMalformedCredential
	}

	got := argon2.IDKey([]byte(presented), salt, iterations, memory, parallelism, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// --- pbkdf2 ---

// PBKDF2 parameters of the delegated local-account scheme.
const (
	pbkdf2Iterations = 25000
	pbkdf2KeyLen     = 512
	pbkdf2SaltLen    = 32
)

type pbkdf2Strategy struct {
	iterations int
}

func (pbkdf2Strategy) Name() string { return config.StrategyPBKDF2 }

// Encode derives a key in the form $pbkdf2-sha256$i=<n>$<salt>$<hash>.
func (s pbkdf2Strategy) Encode(plain string) (string, error) {
	salt, err := randomBytes(pbkdf2SaltLen)
	if err != nil {
		return "", err
	}

	key := pbkdf2.Key([]byte(plain), salt, s.iterations, pbkdf2KeyLen, sha256.New)

	return fmt.Sprintf("$pbkdf2-sha256$i=%d$%s$%s", s.iterations,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

func (pbkdf2Strategy) Verify(stored, presented string) (bool, error) {
	parts := strings.Split(stored, "$")
	if len(parts) != 5 || parts[1] != "pbkdf2-sha256" {
		return false, errMalformedCredential
	}

	var iterations int
	if _, err := fmt.Sscanf(parts[2], "i=%d", &iterations); err != nil || iterations < 1 {
		return false, errMalformedCredential
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return false, errMalformedCredential
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(want) == 0 {
		return false, errMalformedCredential
	}

	got := pbkdf2.Key([]byte(presented), salt, iterations, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// --- encrypted ---

// HKDF info strings separating the two derived keys.
const (
	encryptionKeyInfo = "secrets/credential/encryption"
	signingKeyInfo    = "secrets/credential/signing"
)

// encryptedStrategy stores base64(nonce || AES-256-GCM ciphertext || tag)
// where tag is HMAC-SHA256 over nonce || ciphertext under a separate
// signing key. The derived keys live in memguard enclaves and are only
// decrypted into locked memory for the duration of one operation.
type encryptedStrategy struct {
	encKey *memguard.Enclave
	sigKey *memguard.Enclave
}

// newEncryptedStrategy derives a 32-byte AES key and a 32-byte HMAC key
// from the configured key material.
func newEncryptedStrategy(encryptionKey, signingKey []byte) (*encryptedStrategy, error) {
	if len(encryptionKey) == 0 || len(signingKey) == 0 {
		return nil, errors.New("encrypted strategy requires both an encryption key and a signing key")
	}

	enc, err := deriveKey(encryptionKey, encryptionKeyInfo)
	if err != nil {
		return nil, err
	}
	sig, err := deriveKey(signingKey, signingKeyInfo)
	if err != nil {
		return nil, err
	}

	// NewEnclave wipes the plaintext buffers it is handed.
	return &encryptedStrategy{
		encKey: memguard.NewEnclave(enc),
		sigKey: memguard.NewEnclave(sig),
	}, nil
}

func deriveKey(secret []byte, info string) ([]byte, error) {
	h := hkdf.New(sha256.New, secret, nil, []byte(info))
	k := make([]byte, 32)
	if _, err := io.ReadFull(h, k); err != nil {
		return nil, fmt.Errorf("deriving %s key: %w", info, err)
	}
	return k, nil
}

func (*encryptedStrategy) Name() string { return config.StrategyEncrypted }

func (s *encryptedStrategy) Encode(plain string) (string, error) {
	gcm, release, err := s.aead()
	if err != nil {
		return "", err
	}
	defer release()

	nonce, err := randomBytes(gcm.NonceSize())
	if err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plain), nil)

	tag, err := s.mac(sealed)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(append(sealed, tag...)), nil
}

// Verify authenticates before decrypting. A bad tag, a failed decrypt and
// a wrong password are all the same outcome: (false, nil).
func (s *encryptedStrategy) Verify(stored, presented string) (bool, error) {
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return false, errMalformedCredential
	}

	gcm, release, err := s.aead()
	if err != nil {
		return false, err
	}
	defer release()

	if len(raw) < gcm.NonceSize()+gcm.Overhead()+sha256.Size {
		return false, nil
	}
	sealed, tag := raw[:len(raw)-sha256.Size], raw[len(raw)-sha256.Size:]

	want, err := s.mac(sealed)
	if err != nil {
		return false, err
	}
	if !hmac.Equal(tag, want) {
		return false, nil
	}

	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return false, nil
	}
	defer memguard.WipeBytes(plain)

	return subtle.ConstantTimeCompare(plain, []byte(presented)) == 1, nil
}

// aead opens the encryption key and builds an AES-GCM cipher. release must
// be called once the cipher is no longer needed.
func (s *encryptedStrategy) aead() (cipher.AEAD, func(), error) {
	buf, err := s.encKey.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("opening encryption key: %w", err)
	}

	block, err := aes.NewCipher(buf.Bytes())
	if err != nil {
		buf.Destroy()
		return nil, nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		buf.Destroy()
		return nil, nil, fmt.Errorf("creating GCM: %w", err)
	}
	return gcm, buf.Destroy, nil
}

func (s *encryptedStrategy) mac(data []byte) ([]byte, error) {
	buf, err := s.sigKey.Open()
	if err != nil {
		return nil, fmt.Errorf("opening signing key: %w", err)
	}
	defer buf.Destroy()

	m := hmac.New(sha256.New, buf.Bytes())
	m.Write(data)
	return m.Sum(nil), nil
}

// randomBytes reads n bytes from crypto/rand.
func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating random bytes: %w", err)
	}
	return b, nil
}
