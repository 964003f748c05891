package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/auth-service/internal/domain"
)

// PasswordResetRepository manages password reset token persistence. At
// most one live token exists per user; creating a new one is always
// preceded by invalidating the outstanding ones.
type PasswordResetRepository interface {
	Create(ctx context.Context, token *domain.PasswordResetToken) error
	// GetLiveByToken returns the token only while it is unused and
	// unexpired; anything else surfaces as pgx.ErrNoRows.
	GetLiveByToken(ctx context.Context, token string, now time.Time) (*domain.PasswordResetToken, error)
	// InvalidateOutstanding stamps used_at on every unused token of the
	// user, superseding them.
	InvalidateOutstanding(ctx context.Context, userID string) (int64, error)
	// Consume rewrites the account's password hash, clears the failure
	// counter, lifts the lock, marks the token used and invalidates any
	// other outstanding token for the user, all in one transaction.
	Consume(ctx context.Context, token *domain.PasswordResetToken, newPasswordHash string) error
	DeleteLapsed(ctx context.Context, before time.Time) (int64, error)
}

type passwordResetRepository struct {
	db DB
}

// NewPasswordResetRepository constructs repository.
func NewPasswordResetRepository(db DB) PasswordResetRepository {
	return &passwordResetRepository{db: db}
}

func (r *passwordResetRepository) Create(ctx context.Context, token *domain.PasswordResetToken) error {
	const query = `
        INSERT INTO password_reset_tokens (user_id, token, expires_at)
        VALUES ($1, $2, $3)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		token.UserID,
		token.Token,
		token.ExpiresAt,
	).Scan(&token.ID, &token.CreatedAt)
}

func (r *passwordResetRepository) GetLiveByToken(ctx context.Context, tokenStr string, now time.Time) (*domain.PasswordResetToken, error) {
	const query = `
        SELECT id, user_id, token, expires_at, used_at, created_at
        FROM password_reset_tokens
        WHERE token=$1 AND used_at IS NULL AND expires_at > $2`
	var token domain.PasswordResetToken
	if err := r.db.QueryRow(ctx, query, tokenStr, now).Scan(
		&token.ID,
		&token.UserID,
		&token.Token,
		&token.ExpiresAt,
		&token.UsedAt,
		&token.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *passwordResetRepository) InvalidateOutstanding(ctx context.Context, userID string) (int64, error) {
	const query = `
        UPDATE password_reset_tokens SET used_at=NOW()
        WHERE user_id=$1 AND used_at IS NULL`
	cmd, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *passwordResetRepository) Consume(ctx context.Context, token *domain.PasswordResetToken, newPasswordHash string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// A successful reset proves ownership, so the lock and the failure
	// counter are cleared along with the hash.
	const passwordQuery = `
        UPDATE users SET password_hash=$1, failed_logins=0, locked=FALSE, updated_at=NOW()
        WHERE id=$2`
	cmd, err := tx.Exec(ctx, passwordQuery, newPasswordHash, token.UserID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	const consumeQuery = `
        UPDATE password_reset_tokens SET used_at=NOW()
        WHERE id=$1 AND used_at IS NULL`
	cmd, err = tx.Exec(ctx, consumeQuery, token.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		// Consumed concurrently; single use means this attempt loses.
		return pgx.ErrNoRows
	}

	const supersedeQuery = `
        UPDATE password_reset_tokens SET used_at=NOW()
        WHERE user_id=$1 AND used_at IS NULL`
	if _, err := tx.Exec(ctx, supersedeQuery, token.UserID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *passwordResetRepository) DeleteLapsed(ctx context.Context, before time.Time) (int64, error) {
	const query = `
        DELETE FROM password_reset_tokens
        WHERE used_at IS NOT NULL OR expires_at < $1`
	cmd, err := r.db.Exec(ctx, query, before)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
