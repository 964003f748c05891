package domain

import "time"

// TokenKind differentiates access and refresh tokens.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "ACCESS"
	TokenKindRefresh TokenKind = "REFRESH"
)

// IssuedToken is the ledger record kept for every minted bearer token so
// it can be revoked before its natural expiry.
type IssuedToken struct {
	ID        string
	Token     string
	Kind      TokenKind
	UserID    string
	Revoked   bool
	Expired   bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Usable reports whether the token may still authenticate a caller. The
// Expired flag is only a cache; the clock comparison against ExpiresAt is
// authoritative. Both flags flip false->true exactly once and are never
// reversed.
func (t *IssuedToken) Usable(now time.Time) bool {
	return !t.Revoked && !t.Expired && now.Before(t.ExpiresAt)
}
