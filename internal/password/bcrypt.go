package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/dtroode/rbac-server/internal/model"
)

// DefaultCost is the bcrypt work factor used when none is configured.
const DefaultCost = 10

var _ model.PasswordHasher = (*Bcrypt)(nil)

// Bcrypt hashes passwords with a fixed bcrypt cost.
type Bcrypt struct {
	cost int
}

// NewBcrypt creates a hasher. A cost outside the bcrypt range falls back to DefaultCost.
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Bcrypt{cost: cost}
}

// Hash returns a salted bcrypt hash of plaintext.
func (b *Bcrypt) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), b.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches hash. An empty hash never matches.
func (b *Bcrypt) Verify(plaintext, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
