package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultMaxUploadBytes = 5 << 20
	defaultMaxDimension   = 2000
	defaultLoadTimeout    = 10 * time.Second
)

// ImageConfig bounds uploaded images and image loading.
type ImageConfig struct {
	MaxUploadBytes int64         `koanf:"maxuploadbytes"`
	MaxDimension   int           `koanf:"maxdimension"`
	LoadTimeout    time.Duration `koanf:"loadtimeout"`
}

// String returns a string representation of the image configuration.
func (c *ImageConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Images ---\n")
	b.WriteString(fmt.Sprintf("  maxuploadbytes: %d\n", c.MaxUploadBytes))
	b.WriteString(fmt.Sprintf("  maxdimension: %d\n", c.MaxDimension))
	b.WriteString(fmt.Sprintf("  loadtimeout: %s\n", c.LoadTimeout))
	return b.String()
}

func (c *ImageConfig) Validate() error {
	if c.MaxUploadBytes < 0 || c.MaxDimension < 0 || c.LoadTimeout < 0 {
		return fmt.Errorf("image limits must not be negative")
	}
	if c.MaxUploadBytes == 0 {
		c.MaxUploadBytes = defaultMaxUploadBytes
	}
	if c.MaxDimension == 0 {
		c.MaxDimension = defaultMaxDimension
	}
	if c.LoadTimeout == 0 {
		c.LoadTimeout = defaultLoadTimeout
	}
	return nil
}
