package local

import "github.com/kbukum/glowbook/errors"

// DefaultBasePath is the default root directory for local storage.
const DefaultBasePath = "./data/storage"

// Config holds local filesystem storage configuration.
type Config struct {
	// BasePath is the root directory; each bucket is a subdirectory.
	BasePath string `mapstructure:"base_path" json:"base_path"`

	// PublicBaseURL prefixes object URLs, e.g. the server's /files route.
	// Empty means file:// URLs.
	PublicBaseURL string `mapstructure:"public_base_url" json:"public_base_url"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.BasePath == "" {
		c.BasePath = DefaultBasePath
	}
}

// Validate checks that the local configuration is valid.
func (c *Config) Validate() error {
	if c.BasePath == "" {
		return errors.MissingField("base_path")
	}
	return nil
}
