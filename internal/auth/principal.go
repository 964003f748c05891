package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/domain"
)

const principalKey = "auth_principal"

// Credential is the narrow account view handed to access-control layers.
// It deliberately exposes nothing but what an authorization decision
// needs, keeping framework concerns out of the domain entity.
type Credential struct {
	ID               string
	Enabled          bool
	NonLocked        bool
	CredentialDigest string
}

// Principal represents the authenticated caller.
type Principal struct {
	User       *domain.User
	Credential Credential
}

// NewPrincipal builds a principal and its credential view for a user.
func NewPrincipal(user *domain.User) *Principal {
	return &Principal{
		User: user,
		Credential: Credential{
			ID:               user.ID,
			Enabled:          user.Active,
			NonLocked:        !user.Locked,
			CredentialDigest: user.PasswordHash,
		},
	}
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

func storePrincipal(c *fiber.Ctx, p *Principal) {
	c.Locals(principalKey, p)
}
