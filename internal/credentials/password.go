package credentials

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-mfa/internal/shared"
)

// ErrPasswordUnusable indicates the password cannot be hashed (e.g. longer than bcrypt allows).
var ErrPasswordUnusable = shared.NewError(shared.ErrValidation, "password_unusable")

// Hasher turns passwords into opaque digests and checks them.
type Hasher interface {
	Hash(password string) ([]byte, error)
	Verify(password string, digest []byte) bool
}

// BcryptHasher implements Hasher with bcrypt.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a hasher using cost, or bcrypt.DefaultCost when cost is out of range.
func NewBcryptHasher(cost int) BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return BcryptHasher{Cost: cost}
}

// Hash returns the bcrypt digest of password.
func (h BcryptHasher) Hash(password string) ([]byte, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, ErrPasswordUnusable
		}
		return nil, fmt.Errorf("credentials: hash password: %w", err)
	}
	return digest, nil
}

// Verify reports whether password matches digest.
func (h BcryptHasher) Verify(password string, digest []byte) bool {
	if len(digest) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(digest, []byte(password)) == nil
}
