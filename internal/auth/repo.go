package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint hits.
const pgUniqueViolation = "23505"

// CreateUserParams carries the fields persisted at registration.
type CreateUserParams struct {
	Email                   string
	PasswordHash            string
	FirstName               string
	LastName                string
	Roles                   []Role
	EmailVerificationKey    string
	EmailVerificationExpiry time.Time
}

// Repository defines persistence operations for user accounts. Partial
// updates whitelist columns; a nil value writes NULL.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByVerificationKey(ctx context.Context, key string) (*User, error)
	FindByResetKey(ctx context.Context, key string) (*User, error)
	Create(ctx context.Context, params CreateUserParams) (*User, error)
	Update(ctx context.Context, id int64, updates map[string]any) (*User, error)
	Delete(ctx context.Context, id int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, email, password_hash, first_name, last_name, roles, is_verified,
	email_verification_key, email_verification_expiry, reset_password_key, reset_password_expiry,
	created_at, updated_at`

// FindByEmail fetches a user by exact (already normalized) email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findBy(ctx, "email", email)
}

// FindByID fetches a user by primary key.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	return r.findBy(ctx, "id", id)
}

// FindByVerificationKey fetches the user holding the given live email
// verification key.
func (r *PGRepository) FindByVerificationKey(ctx context.Context, key string) (*User, error) {
	return r.findBy(ctx, "email_verification_key", key)
}

// FindByResetKey fetches the user holding the given live password reset key.
func (r *PGRepository) FindByResetKey(ctx context.Context, key string) (*User, error) {
	return r.findBy(ctx, "reset_password_key", key)
}

func (r *PGRepository) findBy(ctx context.Context, column string, value any) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s = $1`, userColumns, column)
	row := r.pool.QueryRow(ctx, query, value)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: find user by %s: %s", ErrInternal, column, err)
	}
	return user, nil
}

// Create inserts a new unverified user. The unique index on email is the
// final arbiter for duplicate registrations; a unique violation surfaces as
// ErrEmailTaken so the insert race resolves cleanly.
func (r *PGRepository) Create(ctx context.Context, params CreateUserParams) (*User, error) {
	query := fmt.Sprintf(`INSERT INTO users
		(email, password_hash, first_name, last_name, roles, is_verified,
		 email_verification_key, email_verification_expiry, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7, now(), now())
		RETURNING %s`, userColumns)
	row := r.pool.QueryRow(ctx, query,
		params.Email, params.PasswordHash, params.FirstName, params.LastName,
		rolesToStrings(params.Roles), params.EmailVerificationKey, params.EmailVerificationExpiry)
	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("%w: create user: %s", ErrInternal, err)
	}
	return user, nil
}

// updatableColumns whitelists the columns Update may touch.
var updatableColumns = map[string]struct{}{
	"password_hash":             {},
	"is_verified":               {},
	"email_verification_key":    {},
	"email_verification_expiry": {},
	"reset_password_key":        {},
	"reset_password_expiry":     {},
	"first_name":                {},
	"last_name":                 {},
}

// Update applies a partial update and returns the fresh record. All fields of
// one call land in a single UPDATE, so key-and-flag transitions are atomic.
func (r *PGRepository) Update(ctx context.Context, id int64, updates map[string]any) (*User, error) {
	if len(updates) == 0 {
		return r.FindByID(ctx, id)
	}
	columns := make([]string, 0, len(updates))
	for column := range updates {
		if _, ok := updatableColumns[column]; !ok {
			return nil, fmt.Errorf("%w: update user: column %q not updatable", ErrInternal, column)
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)

	sets := make([]string, 0, len(columns)+1)
	args := make([]any, 0, len(columns)+1)
	for i, column := range columns {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, i+1))
		args = append(args, updates[column])
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)
	row := r.pool.QueryRow(ctx, query, args...)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: update user: %s", ErrInternal, err)
	}
	return user, nil
}

// Delete removes a user account.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete user: %s", ErrInternal, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*User, error) {
	var user User
	var roles []string
	if err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName,
		&roles, &user.IsVerified,
		&user.EmailVerificationKey, &user.EmailVerificationExpiry,
		&user.ResetPasswordKey, &user.ResetPasswordExpiry,
		&user.CreatedAt, &user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.Roles = make([]Role, len(roles))
	for i, role := range roles {
		user.Roles[i] = Role(role)
	}
	return &user, nil
}

func rolesToStrings(roles []Role) []string {
	out := make([]string, len(roles))
	for i, role := range roles {
		out[i] = string(role)
	}
	return out
}

var _ Repository = (*PGRepository)(nil)
