package domain

import "time"

// PasswordResetToken is a single-use credential-recovery token. A token is
// live while UsedAt is nil and the expiry has not passed; issuing a new
// token for a user supersedes every prior live one.
type PasswordResetToken struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Live reports whether the token can still be consumed.
func (t *PasswordResetToken) Live(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}
