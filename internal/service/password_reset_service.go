package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/observability"
	"github.com/spec-kit/auth-service/internal/repository"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

// PasswordResetService issues, validates and consumes reset tokens.
type PasswordResetService struct {
	users      repository.UserRepository
	resets     repository.PasswordResetRepository
	hasher     auth.Hasher
	policy     auth.PasswordPolicy
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	resetTTL   time.Duration
}

// NewPasswordResetService builds the service.
func NewPasswordResetService(users repository.UserRepository, resets repository.PasswordResetRepository, hasher auth.Hasher, policy auth.PasswordPolicy, dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger, resetTTL time.Duration) *PasswordResetService {
	if policy == nil {
		policy = auth.NoopPolicy{}
	}
	if resetTTL <= 0 {
		resetTTL = 24 * time.Hour
	}
	return &PasswordResetService{
		users:      users,
		resets:     resets,
		hasher:     hasher,
		policy:     policy,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
		resetTTL:   resetTTL,
	}
}

// RequestReset issues a fresh reset token for an active account and hands
// it to the notification collaborator. Every prior outstanding token for
// the user is superseded, so at most one live token exists per account.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) (*domain.PasswordResetToken, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("account", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}
	if !user.Active {
		return nil, apperrors.NewNotFound("account", nil)
	}

	if _, err := s.resets.InvalidateOutstanding(ctx, user.ID); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	tokenStr, err := randomToken(32)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	token := &domain.PasswordResetToken{
		UserID:    user.ID,
		Token:     tokenStr,
		ExpiresAt: time.Now().UTC().Add(s.resetTTL),
	}
	if err := s.resets.Create(ctx, token); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.metrics.RecordPasswordReset("requested")
	s.publish(ctx, events.EventPasswordResetRequested, user.ID, events.PasswordResetRequestedPayload{
		Email:      user.Email,
		ResetToken: token.Token,
		ExpiresAt:  token.ExpiresAt,
	})
	return token, nil
}

// ResetPassword consumes a live reset token and rewrites the password
// hash. Not-found, expired and already-used tokens all surface as the
// same RESET_TOKEN_INVALID. A successful reset proves ownership, so it
// also clears the failure counter and lifts any lockout.
func (s *PasswordResetService) ResetPassword(ctx context.Context, tokenStr, newPassword, confirmPassword string) error {
	if newPassword == "" {
		return apperrors.NewValidationError("new password required", nil)
	}
	if newPassword != confirmPassword {
		return apperrors.NewPasswordMismatch()
	}
	if err := s.policy.Validate(newPassword); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	token, err := s.resets.GetLiveByToken(ctx, tokenStr, time.Now().UTC())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewResetTokenInvalid()
		}
		return apperrors.NewInternalError(err)
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewResetTokenInvalid()
		}
		return apperrors.NewInternalError(err)
	}
	if !user.Active {
		return apperrors.NewAccountInactive()
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := s.resets.Consume(ctx, token, hash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewResetTokenInvalid()
		}
		return apperrors.NewInternalError(err)
	}

	s.metrics.RecordPasswordReset("completed")
	s.publish(ctx, events.EventPasswordResetCompleted, user.ID, events.PasswordResetCompletedPayload{
		Email: user.Email,
	})
	return nil
}

// ValidateToken is a side-effect-free probe for pre-flight UI checks.
func (s *PasswordResetService) ValidateToken(ctx context.Context, tokenStr string) (bool, error) {
	_, err := s.resets.GetLiveByToken(ctx, tokenStr, time.Now().UTC())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, apperrors.NewInternalError(err)
	}
	return true, nil
}

func (s *PasswordResetService) publish(ctx context.Context, eventType events.EventType, userID string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
}

// randomToken draws size bytes from the secure random source and hex
// encodes them.
func randomToken(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
