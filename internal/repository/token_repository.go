package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/auth-service/internal/domain"
)

// TokenRepository is the ledger of issued bearer tokens. Every minted
// token gets a row here before it is handed to a caller, so it can always
// be revoked later.
type TokenRepository interface {
	// RecordLogin persists the access/refresh pair minted by a successful
	// login together with the failure-counter reset and last-login stamp.
	// Everything commits as one unit of work; the caller only returns the
	// token strings after this succeeds.
	RecordLogin(ctx context.Context, userID string, access, refresh *domain.IssuedToken, loginAt time.Time) error
	// RotateRefresh revokes the spent refresh token row and ledgers the
	// replacement pair in the same transaction.
	RotateRefresh(ctx context.Context, spentToken string, access, refresh *domain.IssuedToken) error
	GetByToken(ctx context.Context, token string) (*domain.IssuedToken, error)
	// Revoke flips revoked and expired to true. It reports whether a live
	// row was actually flipped; revoking an already-revoked or unknown
	// token is a no-op, not an error.
	Revoke(ctx context.Context, token string) (bool, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type tokenRepository struct {
	db DB
}

// NewTokenRepository returns a Postgres-backed implementation.
func NewTokenRepository(db DB) TokenRepository {
	return &tokenRepository{db: db}
}

const insertTokenQuery = `
        INSERT INTO issued_tokens (token, kind, user_id, expires_at)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`

func insertToken(ctx context.Context, tx pgx.Tx, t *domain.IssuedToken) error {
	return tx.QueryRow(ctx, insertTokenQuery,
		t.Token,
		t.Kind,
		t.UserID,
		t.ExpiresAt,
	).Scan(&t.ID, &t.CreatedAt)
}

func (r *tokenRepository) RecordLogin(ctx context.Context, userID string, access, refresh *domain.IssuedToken, loginAt time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const resetQuery = `
        UPDATE users SET failed_logins=0, last_login_at=$2, updated_at=NOW()
        WHERE id=$1`
	cmd, err := tx.Exec(ctx, resetQuery, userID, loginAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	if err := insertToken(ctx, tx, access); err != nil {
		return err
	}
	if err := insertToken(ctx, tx, refresh); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *tokenRepository) RotateRefresh(ctx context.Context, spentToken string, access, refresh *domain.IssuedToken) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const revokeQuery = `
        UPDATE issued_tokens SET revoked=TRUE, expired=TRUE
        WHERE token=$1 AND NOT revoked`
	cmd, err := tx.Exec(ctx, revokeQuery, spentToken)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		// Someone spent this token concurrently; do not mint a second pair.
		return pgx.ErrNoRows
	}

	if err := insertToken(ctx, tx, access); err != nil {
		return err
	}
	if err := insertToken(ctx, tx, refresh); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *tokenRepository) GetByToken(ctx context.Context, token string) (*domain.IssuedToken, error) {
	const query = `
        SELECT id, token, kind, user_id, revoked, expired, expires_at, created_at
        FROM issued_tokens WHERE token=$1`
	var t domain.IssuedToken
	if err := r.db.QueryRow(ctx, query, token).Scan(
		&t.ID,
		&t.Token,
		&t.Kind,
		&t.UserID,
		&t.Revoked,
		&t.Expired,
		&t.ExpiresAt,
		&t.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tokenRepository) Revoke(ctx context.Context, token string) (bool, error) {
	const query = `
        UPDATE issued_tokens SET revoked=TRUE, expired=TRUE
        WHERE token=$1 AND NOT revoked`
	cmd, err := r.db.Exec(ctx, query, token)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *tokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM issued_tokens WHERE expires_at < $1`
	cmd, err := r.db.Exec(ctx, query, before)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
