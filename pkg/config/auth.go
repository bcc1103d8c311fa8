package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthConfig configures the admin gate.
// SecretHash is a bcrypt hash of the shared admin secret.
type AuthConfig struct {
	SecretHash string        `koanf:"secrethash"`
	SigningKey string        `koanf:"signingkey"`
	Issuer     string        `koanf:"issuer"`
	SessionTTL time.Duration `koanf:"sessionttl"`
}

// String returns a string representation of the auth configuration.
func (c *AuthConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Admin Auth ---\n")
	b.WriteString(fmt.Sprintf("  secrethash: %s\n", mask(c.SecretHash)))
	b.WriteString(fmt.Sprintf("  signingkey: %s\n", mask(c.SigningKey)))
	b.WriteString(fmt.Sprintf("  issuer: %s\n", c.Issuer))
	b.WriteString(fmt.Sprintf("  sessionttl: %s\n", c.SessionTTL))
	return b.String()
}

func (c *AuthConfig) Validate() error {
	if c.SecretHash == "" {
		return fmt.Errorf("admin secret hash cannot be empty")
	}
	if !strings.HasPrefix(c.SecretHash, "$2") {
		return fmt.Errorf("admin secret hash must be a bcrypt hash")
	}
	if len(c.SigningKey) < 32 {
		return fmt.Errorf("session signing key must be at least 32 bytes")
	}
	if c.Issuer == "" {
		c.Issuer = "poster-admin"
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be greater than zero")
	}
	return nil
}
