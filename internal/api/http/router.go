package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/api/http/handlers"
	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	AuthMiddleware *auth.Middleware
	Metrics        *observability.Metrics
	LoginLimiter   fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Handler())

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.LoginLimiter, cfg.Auth.Login)
	authGroup.Post("/token/refresh", cfg.Auth.Refresh)

	// Logout parses the bearer header itself: it must ack even for tokens
	// that are already revoked, which the auth middleware would reject.
	authGroup.Post("/logout", cfg.Auth.Logout)

	authGroup.Post("/password/reset/request", cfg.LoginLimiter, cfg.Auth.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", cfg.Auth.ConfirmPasswordReset)
	authGroup.Post("/password/reset/validate", cfg.Auth.ValidateResetToken)

	protected := authGroup.Group("", cfg.AuthMiddleware.Handle)
	protected.Post("/accounts/:id/unlock", cfg.Auth.UnlockAccount)
}
