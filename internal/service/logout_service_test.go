package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

type logoutFixture struct {
	*authFixture
	logout *LogoutService
}

func newLogoutFixture(t *testing.T) *logoutFixture {
	t.Helper()
	fx := newAuthFixture(t)
	logout := NewLogoutService(fx.tokens, fx.users, fx.issuer, nil, nil, zap.NewNop())
	return &logoutFixture{authFixture: fx, logout: logout}
}

func TestLogoutRevokesPair(t *testing.T) {
	fx := newLogoutFixture(t)
	ctx := context.Background()

	result, err := fx.svc.Login(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)
	issued := fx.tokens.mustGet(result.AccessToken)
	require.True(t, issued.Usable(time.Now().UTC()))

	fx.logout.Logout(ctx, result.AccessToken, result.RefreshToken)

	now := time.Now().UTC()
	access := fx.tokens.mustGet(result.AccessToken)
	assert.True(t, access.Revoked)
	assert.False(t, access.Usable(now))
	refresh := fx.tokens.mustGet(result.RefreshToken)
	assert.True(t, refresh.Revoked)
	assert.False(t, refresh.Usable(now))

	// A revoked refresh token cannot be exchanged anymore.
	_, err = fx.svc.Refresh(ctx, result.RefreshToken)
	assert.True(t, apperrors.HasCode(err, "TOKEN_EXPIRED"))
}

func TestLogoutAccessOnly(t *testing.T) {
	fx := newLogoutFixture(t)
	ctx := context.Background()

	result, err := fx.svc.Login(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)

	fx.logout.Logout(ctx, result.AccessToken, "")

	assert.True(t, fx.tokens.mustGet(result.AccessToken).Revoked)
	assert.False(t, fx.tokens.mustGet(result.RefreshToken).Revoked)
}

func TestLogoutIdempotent(t *testing.T) {
	fx := newLogoutFixture(t)
	ctx := context.Background()

	result, err := fx.svc.Login(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)

	fx.logout.Logout(ctx, result.AccessToken, result.RefreshToken)
	fx.logout.Logout(ctx, result.AccessToken, result.RefreshToken)

	assert.True(t, fx.tokens.mustGet(result.AccessToken).Revoked)
	assert.True(t, fx.tokens.mustGet(result.RefreshToken).Revoked)
}

func TestLogoutUnknownTokensNoPanic(t *testing.T) {
	fx := newLogoutFixture(t)

	// Neither token exists anywhere; logout still returns quietly.
	fx.logout.Logout(context.Background(), "not-a-token", "also-not-a-token")
	assert.Zero(t, fx.tokens.count())
}

func TestLogoutRefreshFailureLeavesAccessRevoked(t *testing.T) {
	fx := newLogoutFixture(t)
	ctx := context.Background()

	result, err := fx.svc.Login(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)

	// A refresh token signed by someone else fails validation; the access
	// revocation must still land.
	forged, _, err := auth.NewTokenManager("other-secret", time.Minute, time.Hour).Mint(domain.TokenKindRefresh, fx.userID)
	require.NoError(t, err)

	fx.logout.Logout(ctx, result.AccessToken, forged)

	assert.True(t, fx.tokens.mustGet(result.AccessToken).Revoked)
	assert.False(t, fx.tokens.mustGet(result.RefreshToken).Revoked)
}

func TestLogoutBeforeNaturalExpiry(t *testing.T) {
	users := newFakeUserRepo()
	tokens := newFakeTokenRepo(users)
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	issuer := auth.NewTokenManager("unit-secret", time.Hour, 2*time.Hour)
	svc := NewAuthService(config.AuthConfig{MaxFailedLogins: 5}, AuthDependencies{
		UserRepo:  users,
		TokenRepo: tokens,
		Hasher:    hasher,
		Issuer:    issuer,
		Logger:    zap.NewNop(),
	})
	logout := NewLogoutService(tokens, users, issuer, nil, nil, zap.NewNop())

	hash, err := hasher.Hash("pw")
	require.NoError(t, err)
	user := &domain.User{Username: "eve", Email: "eve@example.com", PasswordHash: hash, Active: true}
	require.NoError(t, users.Create(context.Background(), user, nil))

	result, err := svc.Login(context.Background(), "eve@example.com", "pw")
	require.NoError(t, err)

	// Well inside the one hour lifetime the token is live, and dead right
	// after logout.
	now := time.Now().UTC()
	before := tokens.mustGet(result.AccessToken)
	require.True(t, before.Usable(now))

	logout.Logout(context.Background(), result.AccessToken, result.RefreshToken)
	after := tokens.mustGet(result.AccessToken)
	assert.False(t, after.Usable(now))
}
