// Package config holds the configuration of the posterd server and the
// posterctl admin CLI.
package config

import (
	"fmt"
	"strings"

	"github.com/Ad1th/Poster-Website/pkg/config"
	"github.com/Ad1th/Poster-Website/pkg/config/configloader"
)

var (
	_ configloader.Validator = (*Config)(nil)
	_ configloader.Validator = (*CLIConfig)(nil)
)

// Config configures posterd, the HTTP view server.
type Config struct {
	HTTPServer     config.HTTPConfig           `koanf:"server"`
	Log            config.LogConfig            `koanf:"log"`
	PProf          config.PProfConfig          `koanf:"pprof"`
	Shutdown       config.ShutdownConfig       `koanf:"shutdown"`
	Telemetry      config.TelemetryConfig      `koanf:"telemetry"`
	Catalog        config.CatalogConfig        `koanf:"catalog"`
	Image          config.ImageConfig          `koanf:"image"`
	Auth           config.AuthConfig           `koanf:"auth"`
	Nats           config.NATSConfig           `koanf:"nats"`
	CircuitBreaker config.CircuitBreakerConfig `koanf:"circuitbreaker"`
	Mirror         config.MirrorConfig         `koanf:"mirror"`
}

func (c *Config) String() string {
	var b strings.Builder
	b.WriteString(c.HTTPServer.String())
	b.WriteString(c.Catalog.String())
	b.WriteString(c.Image.String())
	b.WriteString(c.Auth.String())
	b.WriteString(c.Nats.String())
	b.WriteString(c.CircuitBreaker.String())
	b.WriteString(c.Mirror.String())
	b.WriteString(c.Telemetry.String())
	b.WriteString(c.Log.String())
	b.WriteString(c.PProf.String())
	b.WriteString(c.Shutdown.String())
	return b.String()
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	validators := []configloader.Validator{
		&c.HTTPServer, &c.Log, &c.PProf, &c.Shutdown, &c.Telemetry,
		&c.Catalog, &c.Image, &c.Auth, &c.Nats, &c.CircuitBreaker, &c.Mirror,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CLIConfig configures posterctl. It shares the catalog, auth and notification
// settings with the server but has no HTTP listener.
type CLIConfig struct {
	Log            config.LogConfig            `koanf:"log"`
	Catalog        config.CatalogConfig        `koanf:"catalog"`
	Image          config.ImageConfig          `koanf:"image"`
	Auth           config.AuthConfig           `koanf:"auth"`
	Nats           config.NATSConfig           `koanf:"nats"`
	CircuitBreaker config.CircuitBreakerConfig `koanf:"circuitbreaker"`
	Mirror         config.MirrorConfig         `koanf:"mirror"`
}

func (c *CLIConfig) String() string {
	var b strings.Builder
	b.WriteString(c.Catalog.String())
	b.WriteString(c.Image.String())
	b.WriteString(c.Auth.String())
	b.WriteString(c.Nats.String())
	b.WriteString(c.Mirror.String())
	b.WriteString(c.Log.String())
	return b.String()
}

func (c *CLIConfig) Validate() error {
	validators := []configloader.Validator{
		&c.Log, &c.Catalog, &c.Image, &c.Auth, &c.Nats, &c.CircuitBreaker, &c.Mirror,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if c.Mirror.Path == "" {
		return fmt.Errorf("mirror.path is required: posterctl keeps its admin session there")
	}
	return nil
}
