package auth

import "golang.org/x/crypto/bcrypt"

// Hasher is the adaptive one-way hash capability used for passwords.
type Hasher interface {
	Hash(plain string) (string, error)
	Compare(hashed, plain string) error
}

// PasswordPolicy validates candidate passwords before they are hashed.
// Strength rules themselves are delegated to whichever implementation the
// host wires in.
type PasswordPolicy interface {
	Validate(password string) error
}

// BcryptHasher hashes with bcrypt at a configured cost.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher builds a hasher, clamping the cost into bcrypt's range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash hashes a plaintext password with the configured cost.
func (h *BcryptHasher) Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Compare verifies a password against its hashed value.
func (h *BcryptHasher) Compare(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// NoopPolicy accepts any password. Used until a product-specific policy is
// plugged in.
type NoopPolicy struct{}

func (NoopPolicy) Validate(string) error { return nil }
