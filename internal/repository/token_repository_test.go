package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/auth-service/internal/domain"
)

func issuedPair(userID string) (*domain.IssuedToken, *domain.IssuedToken) {
	now := time.Now().UTC()
	access := &domain.IssuedToken{
		Token:     "access-jwt",
		Kind:      domain.TokenKindAccess,
		UserID:    userID,
		ExpiresAt: now.Add(15 * time.Minute),
	}
	refresh := &domain.IssuedToken{
		Token:     "refresh-jwt",
		Kind:      domain.TokenKindRefresh,
		UserID:    userID,
		ExpiresAt: now.Add(7 * 24 * time.Hour),
	}
	return access, refresh
}

func TestTokenRepositoryRecordLogin(t *testing.T) {
	mock := newMockPool(t)
	now := time.Now().UTC()
	access, refresh := issuedPair("user-1")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE users SET failed_logins=0`).
		WithArgs("user-1", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO issued_tokens`).
		WithArgs(access.Token, access.Kind, "user-1", access.ExpiresAt).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow("token-1", now))
	mock.ExpectQuery(`INSERT INTO issued_tokens`).
		WithArgs(refresh.Token, refresh.Kind, "user-1", refresh.ExpiresAt).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow("token-2", now))
	mock.ExpectCommit()

	repo := NewTokenRepository(mock)
	require.NoError(t, repo.RecordLogin(context.Background(), "user-1", access, refresh, now))
	assert.Equal(t, "token-1", access.ID)
	assert.Equal(t, "token-2", refresh.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepositoryRecordLoginUnknownUser(t *testing.T) {
	mock := newMockPool(t)
	now := time.Now().UTC()
	access, refresh := issuedPair("missing")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE users SET failed_logins=0`).
		WithArgs("missing", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	repo := NewTokenRepository(mock)
	err := repo.RecordLogin(context.Background(), "missing", access, refresh, now)
	assert.True(t, errors.Is(err, pgx.ErrNoRows))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepositoryRotateRefresh(t *testing.T) {
	mock := newMockPool(t)
	now := time.Now().UTC()
	access, refresh := issuedPair("user-1")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE issued_tokens SET revoked=TRUE`).
		WithArgs("spent-refresh").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO issued_tokens`).
		WithArgs(access.Token, access.Kind, "user-1", access.ExpiresAt).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow("token-3", now))
	mock.ExpectQuery(`INSERT INTO issued_tokens`).
		WithArgs(refresh.Token, refresh.Kind, "user-1", refresh.ExpiresAt).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow("token-4", now))
	mock.ExpectCommit()

	repo := NewTokenRepository(mock)
	require.NoError(t, repo.RotateRefresh(context.Background(), "spent-refresh", access, refresh))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepositoryRotateRefreshAlreadySpent(t *testing.T) {
	mock := newMockPool(t)
	access, refresh := issuedPair("user-1")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE issued_tokens SET revoked=TRUE`).
		WithArgs("spent-refresh").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	repo := NewTokenRepository(mock)
	err := repo.RotateRefresh(context.Background(), "spent-refresh", access, refresh)
	assert.True(t, errors.Is(err, pgx.ErrNoRows))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepositoryGetByToken(t *testing.T) {
	mock := newMockPool(t)
	now := time.Now().UTC()
	expires := now.Add(15 * time.Minute)

	mock.ExpectQuery(`SELECT .+ FROM issued_tokens WHERE token`).
		WithArgs("access-jwt").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "token", "kind", "user_id", "revoked", "expired", "expires_at", "created_at",
		}).AddRow("token-1", "access-jwt", domain.TokenKindAccess, "user-1", false, false, expires, now))

	repo := NewTokenRepository(mock)
	token, err := repo.GetByToken(context.Background(), "access-jwt")
	require.NoError(t, err)
	assert.Equal(t, domain.TokenKindAccess, token.Kind)
	assert.True(t, token.Usable(now))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepositoryRevoke(t *testing.T) {
	tests := []struct {
		name        string
		rows        int64
		wantFlipped bool
	}{
		{name: "live row flipped", rows: 1, wantFlipped: true},
		{name: "already revoked is a no-op", rows: 0, wantFlipped: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockPool(t)
			mock.ExpectExec(`UPDATE issued_tokens SET revoked=TRUE`).
				WithArgs("access-jwt").
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.rows))

			repo := NewTokenRepository(mock)
			flipped, err := repo.Revoke(context.Background(), "access-jwt")
			require.NoError(t, err)
			assert.Equal(t, tt.wantFlipped, flipped)

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTokenRepositoryDeleteExpired(t *testing.T) {
	mock := newMockPool(t)
	cutoff := time.Now().UTC()
	mock.ExpectExec(`DELETE FROM issued_tokens WHERE expires_at`).
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	repo := NewTokenRepository(mock)
	deleted, err := repo.DeleteExpired(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(7), deleted)

	assert.NoError(t, mock.ExpectationsWereMet())
}
