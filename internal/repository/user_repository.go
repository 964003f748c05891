package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/auth-service/internal/domain"
)

// UserRepository defines persistence access for accounts and the mutations
// the authentication flows need.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User, roleIDs []string) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	// RegisterFailedLogin applies the increment and the threshold check as
	// one atomically-updated row so concurrent failures cannot race into an
	// under-count. It returns the counter value after the increment and
	// whether the account is now locked. Already-locked rows are left
	// untouched.
	RegisterFailedLogin(ctx context.Context, id string, threshold int) (int, bool, error)
	Unlock(ctx context.Context, id string) error
}

type userRepository struct {
	db DB
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, username, email, password_hash, full_name, phone, active, locked, failed_logins, last_login_at, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.FullName,
		&user.Phone,
		&user.Active,
		&user.Locked,
		&user.FailedLogins,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *domain.User, roleIDs []string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        INSERT INTO users (username, email, password_hash, full_name, phone, active)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at, updated_at`
	if err := tx.QueryRow(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FullName,
		user.Phone,
		user.Active,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return err
	}

	for _, roleID := range roleIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`,
			user.ID, roleID,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return scanUser(r.db.QueryRow(ctx, query, email))
}

func (r *userRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `UPDATE users SET password_hash=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.db.Exec(ctx, query, passwordHash, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) RegisterFailedLogin(ctx context.Context, id string, threshold int) (int, bool, error) {
	// Single-statement update: the increment and the lock-threshold check
	// are applied under the row lock the UPDATE itself takes. Locked rows
	// are excluded so the counter stops moving once the lock is sticky.
	const query = `
        UPDATE users
        SET failed_logins = failed_logins + 1,
            locked = failed_logins + 1 >= $2,
            updated_at = NOW()
        WHERE id = $1 AND NOT locked
        RETURNING failed_logins, locked`

	var failures int
	var locked bool
	err := r.db.QueryRow(ctx, query, id, threshold).Scan(&failures, &locked)
	if errors.Is(err, pgx.ErrNoRows) {
		// Row missing or already locked; either way the attempt is spent.
		return threshold, true, nil
	}
	if err != nil {
		return 0, false, err
	}
	return failures, locked, nil
}

func (r *userRepository) Unlock(ctx context.Context, id string) error {
	const query = `UPDATE users SET locked=FALSE, failed_logins=0, updated_at=NOW() WHERE id=$1`
	cmd, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
