// Package config provides unified configuration for the gateway.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (BRUECKE_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the gateway.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Upstream      UpstreamConfig      `yaml:"upstream"`
	Models        ModelsConfig        `yaml:"models"`
	Uploads       UploadsConfig       `yaml:"uploads"`
	Auth          AuthConfig          `yaml:"auth"`
	CORS          CORSConfig          `yaml:"cors"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// LoggingConfig holds log level and debug category settings. The
// BRUECKE_LOG_LEVEL and BRUECKE_DEBUG environment variables override
// these values.
type LoggingConfig struct {
	Level string `yaml:"level"` // default: "info"
	// Debug enables category-scoped debug output, e.g. "upstream,streaming"
	// or "all".
	Debug string `yaml:"debug"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 10 MiB
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
}

// UpstreamConfig holds the bot-platform backend settings.
type UpstreamConfig struct {
	Host           string        `yaml:"host"` // required
	ChatPath       string        `yaml:"chat_path"`
	VisionChatPath string        `yaml:"vision_chat_path"`
	UploadPath     string        `yaml:"upload_path"`
	Timeout        time.Duration `yaml:"timeout"` // non-streaming bound, default: 30s
}

// ModelsConfig holds the model routing table.
type ModelsConfig struct {
	// Table maps inbound model names to upstream bot IDs.
	Table map[string]string `yaml:"table"`
	// DefaultBot is used for models without a table entry. Optional; when
	// empty, unmatched models are rejected.
	DefaultBot string `yaml:"default_bot"`
	// DefaultCaller is the upstream user identifier applied when the
	// request carries none. Default: "apiuser".
	DefaultCaller string `yaml:"default_caller"`
}

// UploadsConfig holds the temporary upload store settings.
type UploadsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Dir     string `yaml:"dir"`     // default: "uploads"
	// PublicBaseURL is the externally reachable prefix for served files,
	// e.g. "http://gateway.example.com:8080/files".
	PublicBaseURL string `yaml:"public_base_url"`
}

// AuthConfig holds authentication settings. Type "none" keeps the gateway
// open: the bearer token is only checked for presence and forwarded.
type AuthConfig struct {
	Type string `yaml:"type"` // "none", "apikey", "jwt"; default: "none"

	APIKeys []APIKeyConfig `yaml:"api_keys"` // for type=apikey
	JWT     JWTConfig      `yaml:"jwt"`      // for type=jwt
}

// APIKeyConfig describes a single accepted API key.
type APIKeyConfig struct {
	Key     string `yaml:"key"`
	KeyFile string `yaml:"key_file"` // _file variant for key
	Subject string `yaml:"subject"`
}

// JWTConfig holds HMAC JWT validation settings.
type JWTConfig struct {
	Secret     string `yaml:"secret"`
	SecretFile string `yaml:"secret_file"` // _file variant for secret
	Issuer     string `yaml:"issuer"`
	Audience   string `yaml:"audience"`
}

// CORSConfig holds cross-origin settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"` // default: ["*"]
}

// ObservabilityConfig holds monitoring settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			MaxBodySize:     10 << 20,
			ShutdownTimeout: 30 * time.Second,
		},
		Upstream: UpstreamConfig{
			Timeout: 30 * time.Second,
		},
		Models: ModelsConfig{
			DefaultCaller: "apiuser",
		},
		Uploads: UploadsConfig{
			Enabled: true,
			Dir:     "uploads",
		},
		Auth: AuthConfig{
			Type: "none",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
