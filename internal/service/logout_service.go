package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/observability"
	"github.com/spec-kit/auth-service/internal/repository"
)

// LogoutService revokes an access token and, best-effort, its paired
// refresh token. Logout always succeeds from the caller's perspective;
// every failure on either path is logged and swallowed. A partially
// revoked pair is an accepted tradeoff, not a defect.
type LogoutService struct {
	tokens  repository.TokenRepository
	users   repository.UserRepository
	issuer  *auth.TokenManager
	cache   *auth.RevocationCache
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewLogoutService builds the service.
func NewLogoutService(tokens repository.TokenRepository, users repository.UserRepository, issuer *auth.TokenManager, cache *auth.RevocationCache, metrics *observability.Metrics, logger *zap.Logger) *LogoutService {
	return &LogoutService{tokens: tokens, users: users, issuer: issuer, cache: cache, metrics: metrics, logger: logger}
}

// Logout revokes the access token's ledger record and attempts the same
// for the optional refresh token. Calling it again with an already-revoked
// token is a harmless no-op.
func (s *LogoutService) Logout(ctx context.Context, accessToken, refreshToken string) {
	s.revokeAccess(ctx, accessToken)
	if refreshToken != "" {
		s.revokeRefresh(ctx, refreshToken)
	}
}

func (s *LogoutService) revokeAccess(ctx context.Context, token string) {
	record, err := s.tokens.GetByToken(ctx, token)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("logout: access token lookup failed", zap.Error(err))
		}
		return
	}
	if record.Revoked {
		return
	}
	s.flip(ctx, record)
}

// revokeRefresh is the fire-and-forget secondary path: extract the
// subject, confirm the account still exists, validate the token
// cryptographically, and only then flip the ledger row. Any failure along
// the way leaves the primary logout untouched.
func (s *LogoutService) revokeRefresh(ctx context.Context, token string) {
	claims, err := s.issuer.Validate(token, domain.TokenKindRefresh, "")
	if err != nil {
		s.logger.Warn("logout: refresh token validation failed", zap.Error(err))
		return
	}
	if _, err := s.users.GetByID(ctx, claims.Subject); err != nil {
		s.logger.Warn("logout: refresh token account lookup failed", zap.Error(err))
		return
	}
	record, err := s.tokens.GetByToken(ctx, token)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("logout: refresh token ledger lookup failed", zap.Error(err))
		}
		return
	}
	if record.Revoked {
		return
	}
	s.flip(ctx, record)
}

func (s *LogoutService) flip(ctx context.Context, record *domain.IssuedToken) {
	flipped, err := s.tokens.Revoke(ctx, record.Token)
	if err != nil {
		s.logger.Warn("logout: revocation failed",
			zap.String("kind", string(record.Kind)),
			zap.Error(err))
		return
	}
	if !flipped {
		return
	}
	s.metrics.RecordRevocation(string(record.Kind))
	if ttl := time.Until(record.ExpiresAt); ttl > 0 {
		s.cache.MarkRevoked(ctx, record.Token, ttl)
	}
}
