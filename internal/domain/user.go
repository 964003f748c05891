package domain

import "time"

// User is the domain model for platform accounts.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	FullName     string
	Phone        string
	Active       bool
	Locked       bool
	FailedLogins int
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanAuthenticate reports whether the account may attempt a credential
// check at all. Inactive and locked accounts are rejected before any
// password verification happens.
func (u *User) CanAuthenticate() bool {
	return u.Active && !u.Locked
}
