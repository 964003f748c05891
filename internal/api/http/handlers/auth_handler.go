package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/api/dto"
	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/service"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

// AuthHandler exposes the authentication and session-lifecycle endpoints.
type AuthHandler struct {
	authService   *service.AuthService
	logoutService *service.LogoutService
	resetService  *service.PasswordResetService
	logger        *zap.Logger
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, logoutService *service.LogoutService, resetService *service.PasswordResetService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		logoutService: logoutService,
		resetService:  resetService,
		logger:        logger,
	}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("username, email, password required", nil)
	}

	user, err := h.authService.Register(c.Context(), req.Username, req.Email, req.Password, req.FullName, req.RoleIDs)
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{"user": dto.NewUserSummary(user)},
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	result, err := h.authService.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user": dto.NewUserSummary(result.User),
			"auth": dto.TokenResponse{
				AccessToken:  result.AccessToken,
				RefreshToken: result.RefreshToken,
				TokenType:    result.TokenType,
				ExpiresIn:    result.ExpiresIn,
			},
		},
	})
}

// Refresh handles POST /auth/token/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.RefreshToken == "" {
		return apperrors.NewValidationError("refresh token required", nil)
	}

	result, err := h.authService.Refresh(c.Context(), req.RefreshToken)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"auth": dto.TokenResponse{
				AccessToken:  result.AccessToken,
				RefreshToken: result.RefreshToken,
				TokenType:    result.TokenType,
				ExpiresIn:    result.ExpiresIn,
			},
		},
	})
}

// Logout handles POST /auth/logout. The access token comes from the
// Authorization header, the optional refresh token from the body. Logout
// acks regardless of what state the tokens were in.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	accessToken, ok := auth.BearerFromHeader(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return apperrors.NewUnauthorized("missing bearer token")
	}

	var req dto.LogoutRequest
	_ = c.BodyParser(&req)

	h.logoutService.Logout(c.Context(), accessToken, req.RefreshToken)
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "logged_out"}})
}

// RequestPasswordReset handles POST /auth/password/reset/request. The
// response is uniform whether or not the email maps to an account, so the
// endpoint cannot be used to enumerate registered addresses.
func (h *AuthHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" {
		return apperrors.NewValidationError("email required", nil)
	}

	if _, err := h.resetService.RequestReset(c.Context(), req.Email); err != nil {
		if apperrors.HasCode(err, "NOT_FOUND") {
			h.logger.Info("password reset requested for unknown or inactive account")
		} else {
			return err
		}
	}

	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"data": fiber.Map{"status": "accepted"},
	})
}

// ConfirmPasswordReset handles POST /auth/password/reset/confirm.
func (h *AuthHandler) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Token == "" {
		return apperrors.NewValidationError("token required", nil)
	}

	if err := h.resetService.ResetPassword(c.Context(), req.Token, req.NewPassword, req.ConfirmPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "password_reset"}})
}

// ValidateResetToken handles POST /auth/password/reset/validate.
func (h *AuthHandler) ValidateResetToken(c *fiber.Ctx) error {
	var req dto.ValidateResetTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Token == "" {
		return apperrors.NewValidationError("token required", nil)
	}

	valid, err := h.resetService.ValidateToken(c.Context(), req.Token)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"valid": valid}})
}

// UnlockAccount handles POST /auth/accounts/:id/unlock.
func (h *AuthHandler) UnlockAccount(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return apperrors.NewValidationError("account id required", nil)
	}
	if err := h.authService.Unlock(c.Context(), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "unlocked"}})
}
