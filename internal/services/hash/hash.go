// Package hash wraps bcrypt for secrets that must never be stored in the clear,
// such as issued OTP codes.
package hash

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var ErrFailedToHash = errors.New("failed to hash secret")

type HashService struct {
	cost int
}

func NewHashService() *HashService {
	return &HashService{
		cost: bcrypt.DefaultCost,
	}
}

// NewHashServiceWithCost is used by tests to keep bcrypt cheap.
func NewHashServiceWithCost(cost int) *HashService {
	return &HashService{cost: cost}
}

func (hs *HashService) Hash(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), hs.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFailedToHash, err)
	}
	return string(hash), nil
}

func (hs *HashService) Check(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
