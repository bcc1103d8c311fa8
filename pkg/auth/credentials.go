// Package auth gates admin operations behind a shared secret and signed sessions.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// CredentialChecker decides whether a presented admin secret is valid.
type CredentialChecker interface {
	Verify(secret string) bool
}

// BcryptChecker compares secrets against a bcrypt hash. The plain secret is never held.
type BcryptChecker struct {
	hash []byte
}

// NewBcryptChecker validates that hash is a well-formed bcrypt hash.
func NewBcryptChecker(hash string) (*BcryptChecker, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("invalid admin secret hash: %w", err)
	}
	return &BcryptChecker{hash: []byte(hash)}, nil
}

func (c *BcryptChecker) Verify(secret string) bool {
	if secret == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword(c.hash, []byte(secret))
	return err == nil
}

// HashSecret produces a hash suitable for AuthConfig.SecretHash.
func HashSecret(secret string) (string, error) {
	if secret == "" {
		return "", errors.New("secret cannot be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hash), nil
}
