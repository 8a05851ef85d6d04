// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. A .env file in the working directory is loaded first if one
// exists; real environment variables always win over it.
package config

import (
	"encoding/base64"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

// Store drivers accepted in STORE_DRIVER.
const (
	StoreMongo   = "mongo"
	StoreMariaDB = "mariadb"
)

// Credential strategies accepted in CREDENTIAL_STRATEGY.
const (
	StrategyPlaintext = "plaintext"
	StrategyDigest    = "digest"
	StrategyBcrypt    = "bcrypt"
	StrategyArgon2id  = "argon2id"
	StrategyPBKDF2    = "pbkdf2"
	StrategyEncrypted = "encrypted"
)

// minKeyBytes is the minimum decoded length of ENCRYPTION_KEY and SIGNING_KEY.
const minKeyBytes = 32

// Config holds all application configuration.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 3000).
	Port int

	// BaseURL is the public-facing URL used for links and redirects.
	BaseURL string

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	LogLevel string

	// Store selects and configures the user store.
	Store StoreConfig

	// Redis holds Redis connection settings (session storage).
	Redis RedisConfig

	// Auth holds session and credential settings.
	Auth AuthConfig

	// OAuth holds Google sign-in settings. Disabled when ClientID is empty.
	OAuth OAuthConfig
}

// StoreConfig chooses the backing store for users.
type StoreConfig struct {
	// Driver is "mongo" (default) or "mariadb".
	Driver string

	// Mongo holds MongoDB connection settings.
	Mongo MongoConfig

	// Database holds MariaDB connection settings.
	Database DatabaseConfig

	// MigrationsPath is the directory holding MariaDB migrations.
	MigrationsPath string
}

// MongoConfig holds MongoDB connection parameters.
type MongoConfig struct {
	// URI is the connection string (default: "mongodb://localhost:27017").
	URI string

	// Database is the database name (default: "secrets").
	Database string

	// ConnectTimeout bounds the initial connect + ping.
	ConnectTimeout time.Duration
}

// DatabaseConfig holds MariaDB connection parameters. If DATABASE_URL is set,
// it takes precedence over the individual fields.
type DatabaseConfig struct {
	// Host is the MariaDB address in host:port format (default: "localhost:3306").
	Host string

	// User is the MariaDB username (default: "secrets").
	User string

	// Password is the MariaDB password (default: "secrets").
	Password string

	// Name is the database name (default: "secrets").
	Name string

	// dsnOverride is set when DATABASE_URL is provided, bypassing individual fields.
	dsnOverride string

	// MaxOpenConns is the maximum number of open connections in the pool.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections in the pool.
	MaxIdleConns int

	// ConnMaxLifetime is how long a connection can be reused.
	ConnMaxLifetime time.Duration
}

// DSN returns the go-sql-driver/mysql connection string. If DATABASE_URL was
// set, it is returned as-is. Otherwise the DSN is built with the driver's
// Config.FormatDSN() so special characters in passwords are escaped.
func (d DatabaseConfig) DSN() string {
	if d.dsnOverride != "" {
		return d.dsnOverride
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	cfg.MultiStatements = true
	// Report matched rather than changed rows so re-saving an identical
	// secret is not mistaken for a missing user.
	cfg.ClientFoundRows = true
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// SessionSecret signs OAuth state tokens. Required in production.
	SessionSecret string

	// SessionTTL is how long sessions last before expiring.
	SessionTTL time.Duration

	// Strategy is the credential storage scheme, fixed for the process.
	Strategy string

	// BcryptCost is the bcrypt work factor (default: 10).
	BcryptCost int

	// EncryptionKey and SigningKey are the decoded key material for the
	// "encrypted" strategy. Both are nil for every other strategy.
	EncryptionKey []byte
	SigningKey    []byte
}

// OAuthConfig holds the Google OAuth client settings.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

// Enabled reports whether Google sign-in is configured.
func (o OAuthConfig) Enabled() bool {
	return o.ClientID != "" && o.ClientSecret != ""
}

// Load reads configuration from the environment (after .env) with sensible
// defaults. Returns an error if required variables are missing or invalid.
func Load() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 3000),
		BaseURL:  getEnv("BASE_URL", "http://localhost:3000"),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", StoreMongo)),
			Mongo: MongoConfig{
				URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
				Database:       getEnv("MONGODB_DATABASE", "secrets"),
				ConnectTimeout: getEnvDuration("MONGODB_CONNECT_TIMEOUT", 10*time.Second),
			},
			Database: DatabaseConfig{
				Host:            getEnv("DB_HOST", "localhost:3306"),
				User:            getEnv("DB_USER", "secrets"),
				Password:        getEnv("DB_PASSWORD", "secrets"),
				Name:            getEnv("DB_NAME", "secrets"),
				dsnOverride:     getEnv("DATABASE_URL", ""),
				MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
				MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
				ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			},
			MigrationsPath: getEnv("MIGRATIONS_PATH", "db/migrations"),
		},

		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},

		Auth: AuthConfig{
			SessionSecret: getEnv("SESSION_SECRET", ""),
			SessionTTL:    getEnvDuration("SESSION_TTL", 720*time.Hour),
			Strategy:      strings.ToLower(getEnv("CREDENTIAL_STRATEGY", StrategyBcrypt)),
			BcryptCost:    getEnvInt("BCRYPT_COST", 10),
		},

		OAuth: OAuthConfig{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			CallbackURL:  getEnv("GOOGLE_CALLBACK_URL", ""),
		},
	}

	if cfg.OAuth.CallbackURL == "" {
		cfg.OAuth.CallbackURL = strings.TrimRight(cfg.BaseURL, "/") + "/auth/google/callback"
	}

	switch cfg.Store.Driver {
	case StoreMongo, StoreMariaDB:
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreMongo, StoreMariaDB, cfg.Store.Driver)
	}

	if err := cfg.loadCredentialKeys(); err != nil {
		return nil, err
	}

	if cfg.IsProduction() {
		if cfg.Auth.SessionSecret == "" {
			return nil, fmt.Errorf("SESSION_SECRET is required in production")
		}
		if len(cfg.Auth.SessionSecret) < 32 {
			return nil, fmt.Errorf("SESSION_SECRET must be at least 32 characters in production")
		}
		if cfg.Auth.Strategy == StrategyPlaintext || cfg.Auth.Strategy == StrategyDigest {
			return nil, fmt.Errorf("CREDENTIAL_STRATEGY %q is not allowed in production", cfg.Auth.Strategy)
		}
	}

	// Dev-only default so local runs work without a .env file.
	if cfg.Auth.SessionSecret == "" {
		cfg.Auth.SessionSecret = "dev-session-secret-do-not-use-in-production"
	}

	return cfg, nil
}

// loadCredentialKeys validates the strategy name and, for the encrypted
// strategy, decodes both keys. Exactly two keys are needed; a missing one
// is a startup error rather than a silent fallback.
func (c *Config) loadCredentialKeys() error {
	switch c.Auth.Strategy {
	case StrategyPlaintext, StrategyDigest, StrategyArgon2id, StrategyPBKDF2:
		return nil
	case StrategyBcrypt:
		if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
			return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.Auth.BcryptCost)
		}
		return nil
	case StrategyEncrypted:
		enc, err := decodeKey("ENCRYPTION_KEY")
		if err != nil {
			return err
		}
		sig, err := decodeKey("SIGNING_KEY")
		if err != nil {
			return err
		}
		c.Auth.EncryptionKey = enc
		c.Auth.SigningKey = sig
		return nil
	default:
		return fmt.Errorf("unknown CREDENTIAL_STRATEGY %q", c.Auth.Strategy)
	}
}

// decodeKey reads a base64-encoded key from the environment.
func decodeKey(name string) ([]byte, error) {
	raw := getEnv(name, "")
	if raw == "" {
		return nil, fmt.Errorf("%s is required for the encrypted credential strategy", name)
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be base64: %w", name, err)
	}
	if len(key) < minKeyBytes {
		return nil, fmt.Errorf("%s must decode to at least %d bytes", name, minKeyBytes)
	}
	return key, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// IsProduction returns true for "production" and common variants.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Env)
	return env == "production" || env == "prod"
}

// --- Helper functions for reading environment variables ---

// getEnv reads a string env var or returns the default.
func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer env var or returns the default.
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "720h") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
