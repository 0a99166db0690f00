package service

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost matches the cost the public service has always used.
const DefaultBcryptCost = 10

const maxBcryptBytes = 72

// PasswordHasher turns link passwords into digests and checks them.
type PasswordHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) bool
}

// BcryptHasher is the bcrypt-backed PasswordHasher.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher with the given cost; zero means DefaultBcryptCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", errors.New("password: empty secret")
	}
	digest, err := bcrypt.GenerateFromPassword(bcryptInput(secret), h.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

func (h *BcryptHasher) Verify(secret, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), bcryptInput(secret)) == nil
}

// bcryptInput keeps secrets within bcrypt's 72-byte limit. Longer secrets are
// reduced to their hex SHA-256 so every byte still counts.
func bcryptInput(secret string) []byte {
	if len(secret) <= maxBcryptBytes {
		return []byte(secret)
	}
	sum := sha256.Sum256([]byte(secret))
	return []byte(hex.EncodeToString(sum[:]))
}
