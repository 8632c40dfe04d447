package config

import (
	"fmt"
	"strings"
)

// Validate checks that the fields every command relies on are present.
// Command-specific requirements (e.g. the worker needing a gateway API key)
// are checked where they are used.
func (c *Config) Validate() error {
	var missing []string
	if c.Database.Primary.DSN == "" {
		missing = append(missing, "database.primary.dsn")
	}
	if c.Redis.Address == "" {
		missing = append(missing, "redis.address")
	}
	if c.Generation.BaseURL == "" {
		missing = append(missing, "generation.base_url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	if c.Generation.StatusTimeout <= 0 {
		return fmt.Errorf("generation.status_timeout must be positive")
	}
	if c.Generation.DownloadTimeout <= 0 {
		return fmt.Errorf("generation.download_timeout must be positive")
	}
	return nil
}
