package config

import "fmt"

// Validate checks the configuration for inconsistencies that would only
// surface at request time.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Upstream.Host == "" {
		return fmt.Errorf("upstream.host is required")
	}

	if len(c.Models.Table) == 0 && c.Models.DefaultBot == "" {
		return fmt.Errorf("models: either a table entry or default_bot is required")
	}

	switch c.Auth.Type {
	case "none":
	case "apikey":
		if len(c.Auth.APIKeys) == 0 {
			return fmt.Errorf("auth.type apikey requires at least one api_keys entry")
		}
		for i, k := range c.Auth.APIKeys {
			if k.Key == "" {
				return fmt.Errorf("auth.api_keys[%d]: key is empty", i)
			}
		}
	case "jwt":
		if c.Auth.JWT.Secret == "" {
			return fmt.Errorf("auth.type jwt requires jwt.secret or jwt.secret_file")
		}
	default:
		return fmt.Errorf("auth.type must be one of none, apikey, jwt; got %q", c.Auth.Type)
	}

	if c.Uploads.Enabled && c.Uploads.PublicBaseURL == "" {
		return fmt.Errorf("uploads.public_base_url is required when uploads are enabled")
	}

	return nil
}
