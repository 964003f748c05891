package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/repository"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

// Middleware validates bearer access tokens against signature, revocation
// state and account status, then loads the principal.
type Middleware struct {
	tokens *TokenManager
	ledger repository.TokenRepository
	users  repository.UserRepository
	cache  *RevocationCache
}

// NewMiddleware constructs middleware.
func NewMiddleware(tokens *TokenManager, ledger repository.TokenRepository, users repository.UserRepository, cache *RevocationCache) *Middleware {
	return &Middleware{tokens: tokens, ledger: ledger, users: users, cache: cache}
}

// BearerFromHeader extracts the opaque token from an Authorization header.
func BearerFromHeader(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return strings.TrimSpace(parts[1]), parts[1] != ""
}

// Handle enforces authentication for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}
	tokenStr, ok := BearerFromHeader(authHeader)
	if !ok {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.Validate(tokenStr, domain.TokenKindAccess, "")
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return apperrors.NewTokenExpired()
		}
		return apperrors.NewTokenSignatureInvalid()
	}

	// Fast path first; Postgres stays authoritative either way.
	if m.cache.IsRevoked(c.Context(), tokenStr) {
		return apperrors.NewTokenExpired()
	}
	record, err := m.ledger.GetByToken(c.Context(), tokenStr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewTokenExpired()
		}
		return apperrors.MapError(err)
	}
	if record.Kind != domain.TokenKindAccess || !record.Usable(time.Now().UTC()) {
		return apperrors.NewTokenExpired()
	}

	user, err := m.users.GetByID(c.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("account not found")
		}
		return apperrors.MapError(err)
	}
	if !user.Active {
		return apperrors.NewAccountInactive()
	}
	if user.Locked {
		return apperrors.NewAccountLocked()
	}

	storePrincipal(c, NewPrincipal(user))
	return c.Next()
}
