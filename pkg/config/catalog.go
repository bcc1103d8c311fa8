package config

import (
	"fmt"
	"net/url"
	"strings"
)

const defaultBucket = "images"
const defaultCurrency = "₹"

// CatalogConfig points at the remote catalog backend (REST + object storage).
type CatalogConfig struct {
	BaseURL    string `koanf:"baseurl"`
	AnonKey    string `koanf:"anonkey"`
	ServiceKey string `koanf:"servicekey"`
	Table      string `koanf:"table"`
	Bucket     string `koanf:"bucket"`
	Currency   string `koanf:"currency"`
}

// String returns a string representation of the catalog configuration.
// Keys are never printed.
func (c *CatalogConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Catalog Backend ---\n")
	b.WriteString(fmt.Sprintf("  baseurl: %s\n", c.BaseURL))
	b.WriteString(fmt.Sprintf("  anonkey: %s\n", mask(c.AnonKey)))
	b.WriteString(fmt.Sprintf("  servicekey: %s\n", mask(c.ServiceKey)))
	b.WriteString(fmt.Sprintf("  table: %s\n", c.Table))
	b.WriteString(fmt.Sprintf("  bucket: %s\n", c.Bucket))
	b.WriteString(fmt.Sprintf("  currency: %s\n", c.Currency))
	return b.String()
}

func (c *CatalogConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("catalog base URL is not configured")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("catalog base URL must be absolute: %s", c.BaseURL)
	}
	if c.AnonKey == "" {
		return fmt.Errorf("catalog anon key is not configured")
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Table == "" {
		c.Table = "posters"
	}
	if c.Bucket == "" {
		c.Bucket = defaultBucket
	}
	if c.Currency == "" {
		c.Currency = defaultCurrency
	}
	return nil
}

// WriteKey returns the key used for mutating calls.
func (c *CatalogConfig) WriteKey() string {
	if c.ServiceKey != "" {
		return c.ServiceKey
	}
	return c.AnonKey
}

func mask(secret string) string {
	if secret == "" {
		return "<not configured>"
	}
	return "****"
}
