package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered         EventType = "user_registered"
	EventAccountLocked          EventType = "account_locked"
	EventPasswordResetRequested EventType = "password_reset_requested"
	EventPasswordResetCompleted EventType = "password_reset_completed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// AccountLockedPayload payload.
type AccountLockedPayload struct {
	Email          string `json:"email"`
	FailedAttempts int    `json:"failed_attempts"`
}

// PasswordResetRequestedPayload carries the material the notification
// collaborator needs to deliver the reset link. Delivery itself is out of
// scope here.
type PasswordResetRequestedPayload struct {
	Email      string    `json:"email"`
	ResetToken string    `json:"reset_token"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// PasswordResetCompletedPayload payload.
type PasswordResetCompletedPayload struct {
	Email string `json:"email"`
}
