package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, BRUECKE_CONFIG env, ./config.yaml,
//     /etc/bruecke/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// explicit argument, BRUECKE_CONFIG env var, ./config.yaml,
// /etc/bruecke/config.yaml. Returns empty string if none is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("BRUECKE_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/bruecke/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BRUECKE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("BRUECKE_UPSTREAM_HOST"); v != "" {
		cfg.Upstream.Host = v
	}
	if v := os.Getenv("BRUECKE_UPSTREAM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Upstream.Timeout = d
		}
	}
	if v := os.Getenv("BRUECKE_DEFAULT_BOT"); v != "" {
		cfg.Models.DefaultBot = v
	}
	if v := os.Getenv("BRUECKE_MODEL_TABLE"); v != "" {
		if table := parseModelTable(v); len(table) > 0 {
			cfg.Models.Table = table
		}
	}
	if v := os.Getenv("BRUECKE_UPLOAD_DIR"); v != "" {
		cfg.Uploads.Dir = v
	}
	if v := os.Getenv("BRUECKE_PUBLIC_BASE_URL"); v != "" {
		cfg.Uploads.PublicBaseURL = v
	}
	if v := os.Getenv("BRUECKE_AUTH_TYPE"); v != "" {
		cfg.Auth.Type = v
	}
	if v := os.Getenv("BRUECKE_ALLOWED_ORIGINS"); v != "" {
		cfg.CORS.AllowedOrigins = splitAndTrim(v)
	}
}

// parseModelTable parses "model=bot,model2=bot2" pairs.
func parseModelTable(v string) map[string]string {
	table := make(map[string]string)
	for _, pair := range strings.Split(v, ",") {
		name, bot, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" || bot == "" {
			continue
		}
		table[name] = bot
	}
	return table
}

func splitAndTrim(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// resolveFileReferences loads the _file variants of secret-bearing fields.
// An explicit inline value wins over its _file variant.
func resolveFileReferences(cfg *Config) error {
	for i := range cfg.Auth.APIKeys {
		entry := &cfg.Auth.APIKeys[i]
		if entry.Key == "" && entry.KeyFile != "" {
			v, err := readSecretFile(entry.KeyFile)
			if err != nil {
				return err
			}
			entry.Key = v
		}
	}

	if cfg.Auth.JWT.Secret == "" && cfg.Auth.JWT.SecretFile != "" {
		v, err := readSecretFile(cfg.Auth.JWT.SecretFile)
		if err != nil {
			return err
		}
		cfg.Auth.JWT.Secret = v
	}

	return nil
}

func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
