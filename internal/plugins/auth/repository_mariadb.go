package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/keyxmakerx/secrets/internal/apperror"
)

// mysqlErrDuplicateEntry is MariaDB's ER_DUP_ENTRY.
const mysqlErrDuplicateEntry = 1062

// userColumns is the column list every user query selects, in scan order.
const userColumns = `id, email, password_hash, google_id, secret, created_at, last_login_at`

// mariadbUserRepository implements UserRepository with hand-written MariaDB
// queries. Empty Go strings are stored as NULL so the UNIQUE keys on email
// and google_id ignore accounts that lack them.
type mariadbUserRepository struct {
	db *sql.DB
}

// NewMariaDBUserRepository creates a user repository backed by the given pool.
func NewMariaDBUserRepository(db *sql.DB) UserRepository {
	return &mariadbUserRepository{db: db}
}

// Create inserts a new user row.
func (r *mariadbUserRepository) Create(ctx context.Context, user *User) error {
	query := `INSERT INTO users (id, email, password_hash, google_id, secret, created_at)
	          VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		nullString(user.Email),
		nullString(user.PasswordHash),
		nullString(user.GoogleID),
		nullString(user.Secret),
		user.CreatedAt,
	)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlErrDuplicateEntry {
			return apperror.NewConflict(errDuplicateIdentity)
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	return nil
}

// FindByID retrieves a user by ID.
func (r *mariadbUserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id, "id")
}

// FindByEmail retrieves a user by (already normalized) email.
func (r *mariadbUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email, "email")
}

// FindByGoogleID retrieves a federated user by Google subject.
func (r *mariadbUserRepository) FindByGoogleID(ctx context.Context, googleID string) (*User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE google_id = ?`, googleID, "google id")
}

func (r *mariadbUserRepository) findOne(ctx context.Context, query, arg, by string) (*User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by %s: %w", by, err)
	}
	return user, nil
}

// EmailExists returns true if a user with the given email already exists.
func (r *mariadbUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking email existence: %w", err)
	}
	return exists, nil
}

// UpdateLastLogin sets last_login_at to now.
func (r *mariadbUserRepository) UpdateLastLogin(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = UTC_TIMESTAMP() WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("updating last login: %w", err)
	}
	return requireOneRow(result)
}

// UpdateSecret replaces the user's secret.
func (r *mariadbUserRepository) UpdateSecret(ctx context.Context, id, secret string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET secret = ? WHERE id = ?`, nullString(secret), id)
	if err != nil {
		return fmt.Errorf("updating secret: %w", err)
	}
	return requireOneRow(result)
}

// ListWithSecrets returns every user whose secret is set, oldest first.
// Credential columns are deliberately not selected.
func (r *mariadbUserRepository) ListWithSecrets(ctx context.Context) ([]User, error) {
	query := `SELECT id, secret, created_at FROM users
	          WHERE secret IS NOT NULL AND secret <> ''
	          ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing secrets: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Secret, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning secret row: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// --- Helpers ---

// scanUser reads one row selected with userColumns.
func scanUser(row *sql.Row) (*User, error) {
	var (
		u                                 User
		email, password, googleID, secret sql.NullString
		lastLogin                         sql.NullTime
	)
	if err := row.Scan(&u.ID, &email, &password, &googleID, &secret, &u.CreatedAt, &lastLogin); err != nil {
		return nil, err
	}
	u.Email = email.String
	u.PasswordHash = password.String
	u.GoogleID = googleID.String
	u.Secret = secret.String
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return &u, nil
}

// nullString maps "" to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// requireOneRow turns an UPDATE that matched nothing into a not-found error.
func requireOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NewNotFound("user not found")
	}
	return nil
}
