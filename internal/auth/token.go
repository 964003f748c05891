package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/auth-service/internal/domain"
)

// Token validation failure kinds. Expiry and signature failures are
// reported separately so callers can surface the right taxonomy code;
// everything else about the token stays opaque.
var (
	ErrTokenExpired    = errors.New("token expired")
	ErrTokenSignature  = errors.New("token signature invalid")
	ErrTokenKind       = errors.New("unexpected token kind")
	ErrSubjectMismatch = errors.New("token subject mismatch")
)

// TokenManager mints and validates signed bearer tokens. Access and
// refresh tokens carry their own kind claim in the signed payload, so a
// refresh token can never pass where an access token is expected merely
// because a ledger lookup happened to match.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	if accessTTL == 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL == 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// Claims describes the signed payload. Only the stable account identity
// and the token kind are embedded; mutable account attributes never are.
type Claims struct {
	Kind domain.TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// Mint builds and signs a token of the given kind for the subject. The
// lifetime is fixed per kind.
func (tm *TokenManager) Mint(kind domain.TokenKind, subjectID string) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(tm.Lifetime(kind))
	claims := &Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Validate checks signature and expiry, enforces the kind claim, and, when
// expectedSubject is non-empty, the subject claim as well.
func (tm *TokenManager) Validate(tokenStr string, kind domain.TokenKind, expectedSubject string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, ErrTokenSignature
		}
		return tm.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenSignature
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenSignature
	}
	if claims.Kind != kind {
		return nil, ErrTokenKind
	}
	if claims.Subject == "" {
		return nil, ErrTokenSignature
	}
	if expectedSubject != "" && claims.Subject != expectedSubject {
		return nil, ErrSubjectMismatch
	}
	return claims, nil
}

// Lifetime returns the configured lifetime for the given kind.
func (tm *TokenManager) Lifetime(kind domain.TokenKind) time.Duration {
	if kind == domain.TokenKindRefresh {
		return tm.refreshTTL
	}
	return tm.accessTTL
}

// AccessLifetimeSeconds is exposed for client display of expires_in.
func (tm *TokenManager) AccessLifetimeSeconds() int64 {
	return int64(tm.accessTTL.Seconds())
}

// RefreshLifetimeSeconds is exposed for client display.
func (tm *TokenManager) RefreshLifetimeSeconds() int64 {
	return int64(tm.refreshTTL.Seconds())
}
