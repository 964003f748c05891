package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/observability"
	"github.com/spec-kit/auth-service/internal/repository"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

// LoginResult carries everything a successful credential exchange returns.
type LoginResult struct {
	User         *domain.User
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
}

// AuthService coordinates registration, login and token refresh.
type AuthService struct {
	users      repository.UserRepository
	tokens     repository.TokenRepository
	hasher     auth.Hasher
	policy     auth.PasswordPolicy
	issuer     *auth.TokenManager
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger

	maxFailedLogins int
}

// AuthDependencies encapsulates collaborator requirements for the service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	TokenRepo  repository.TokenRepository
	Hasher     auth.Hasher
	Policy     auth.PasswordPolicy
	Issuer     *auth.TokenManager
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	policy := deps.Policy
	if policy == nil {
		policy = auth.NoopPolicy{}
	}
	maxFailed := cfg.MaxFailedLogins
	if maxFailed <= 0 {
		maxFailed = 5
	}
	return &AuthService{
		users:           deps.UserRepo,
		tokens:          deps.TokenRepo,
		hasher:          deps.Hasher,
		policy:          policy,
		issuer:          deps.Issuer,
		dispatcher:      deps.Dispatcher,
		metrics:         deps.Metrics,
		logger:          deps.Logger,
		maxFailedLogins: maxFailed,
	}
}

// TokenManager exposes the underlying issuer for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.issuer
}

// Register creates a new account with the given role linkage.
func (s *AuthService) Register(ctx context.Context, username, email, password, fullName string, roleIDs []string) (*domain.User, error) {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewInternalError(err)
	}

	if err := s.policy.Validate(password); err != nil {
		return nil, apperrors.NewValidationError(err.Error(), nil)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Active:       true,
	}
	if err := s.users.Create(ctx, user, roleIDs); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.publish(ctx, events.EventUserRegistered, user.ID, events.UserRegisteredPayload{
		Username: user.Username,
		Email:    user.Email,
		FullName: user.FullName,
	})
	return user, nil
}

// Login verifies credentials and issues an access/refresh token pair. The
// caller sees a single INVALID_CREDENTIALS for both an unknown identifier
// and a wrong password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.metrics.RecordLogin("invalid_credentials")
			return nil, apperrors.NewInvalidCredentials()
		}
		return nil, apperrors.NewInternalError(err)
	}

	// Status checks come before the hash comparison: no hashing work is
	// spent on an account that cannot log in regardless, and a locked
	// account is indistinguishable timing-wise from a wrong password.
	if !user.Active {
		s.metrics.RecordLogin("inactive")
		return nil, apperrors.NewAccountInactive()
	}
	if user.Locked {
		s.metrics.RecordLogin("locked")
		return nil, apperrors.NewAccountLocked()
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		failures, locked, regErr := s.users.RegisterFailedLogin(ctx, user.ID, s.maxFailedLogins)
		if regErr != nil {
			return nil, apperrors.NewInternalError(regErr)
		}
		if locked {
			s.metrics.RecordLockout()
			s.logger.Warn("account locked after repeated failures",
				zap.String("user_id", user.ID),
				zap.Int("failures", failures))
			s.publish(ctx, events.EventAccountLocked, user.ID, events.AccountLockedPayload{
				Email:          user.Email,
				FailedAttempts: failures,
			})
		}
		s.metrics.RecordLogin("invalid_credentials")
		return nil, apperrors.NewInvalidCredentials()
	}

	result, err := s.issuePair(ctx, user, "")
	if err != nil {
		return nil, err
	}
	s.metrics.RecordLogin("success")
	return result, nil
}

// Refresh exchanges a live refresh token for a fresh access/refresh pair.
// The spent refresh token is revoked in the same transaction that ledgers
// the replacements.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := s.issuer.Validate(refreshToken, domain.TokenKindRefresh, "")
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, apperrors.NewTokenExpired()
		}
		return nil, apperrors.NewTokenSignatureInvalid()
	}

	record, err := s.tokens.GetByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewTokenExpired()
		}
		return nil, apperrors.NewInternalError(err)
	}
	if record.Kind != domain.TokenKindRefresh || !record.Usable(time.Now().UTC()) {
		return nil, apperrors.NewTokenExpired()
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewTokenExpired()
		}
		return nil, apperrors.NewInternalError(err)
	}
	if !user.Active {
		return nil, apperrors.NewAccountInactive()
	}
	if user.Locked {
		return nil, apperrors.NewAccountLocked()
	}

	return s.issuePair(ctx, user, refreshToken)
}

// issuePair mints both tokens and persists their ledger rows before any
// string is returned. A token without a revocable ledger record must never
// reach a caller; a persistence failure aborts the whole exchange. When
// rotatedFrom is non-empty the spent refresh row is revoked in the same
// transaction.
func (s *AuthService) issuePair(ctx context.Context, user *domain.User, rotatedFrom string) (*LoginResult, error) {
	accessStr, accessExp, err := s.issuer.Mint(domain.TokenKindAccess, user.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	refreshStr, refreshExp, err := s.issuer.Mint(domain.TokenKindRefresh, user.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	access := &domain.IssuedToken{Token: accessStr, Kind: domain.TokenKindAccess, UserID: user.ID, ExpiresAt: accessExp}
	refresh := &domain.IssuedToken{Token: refreshStr, Kind: domain.TokenKindRefresh, UserID: user.ID, ExpiresAt: refreshExp}

	if rotatedFrom == "" {
		err = s.tokens.RecordLogin(ctx, user.ID, access, refresh, time.Now().UTC())
	} else {
		err = s.tokens.RotateRefresh(ctx, rotatedFrom, access, refresh)
	}
	if err != nil {
		if rotatedFrom != "" && errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewTokenExpired()
		}
		return nil, apperrors.NewInternalError(err)
	}

	s.metrics.RecordTokenIssued(string(domain.TokenKindAccess))
	s.metrics.RecordTokenIssued(string(domain.TokenKindRefresh))

	return &LoginResult{
		User:         user,
		AccessToken:  accessStr,
		RefreshToken: refreshStr,
		TokenType:    "Bearer",
		ExpiresIn:    s.issuer.AccessLifetimeSeconds(),
	}, nil
}

// Unlock lifts a sticky lockout. Lockouts never expire on their own; this
// administrative action is the only way back in short of a password reset.
func (s *AuthService) Unlock(ctx context.Context, userID string) error {
	if err := s.users.Unlock(ctx, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("account", nil)
		}
		return apperrors.NewInternalError(err)
	}
	s.logger.Info("account unlocked", zap.String("user_id", userID))
	return nil
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, userID string, payload interface{}) {
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
