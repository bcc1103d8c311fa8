package config

import "fmt"

// MirrorConfig locates the local snapshot database. An empty path disables it.
type MirrorConfig struct {
	Path string `koanf:"path"`
}

// String returns a string representation of the mirror configuration.
func (c *MirrorConfig) String() string {
	return fmt.Sprintf("\n--- Snapshot Mirror ---\n  path: %s\n", c.Path)
}

func (c *MirrorConfig) Validate() error {
	return nil
}
