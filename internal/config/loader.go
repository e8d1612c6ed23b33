package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from YAML with environment variable
// expansion, then applies defaults for anything left unset.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = cfg.LogLevel
	}

	r := &cfg.Reputation
	if r.LookupTimeout <= 0 {
		r.LookupTimeout = 3 * time.Second
	}
	if r.CacheSize <= 0 {
		r.CacheSize = 10000
	}
	if r.CacheTTL <= 0 {
		r.CacheTTL = time.Hour
	}
	if r.CleanupInterval <= 0 {
		r.CleanupInterval = 10 * time.Minute
	}
	if r.BatchSize <= 0 {
		r.BatchSize = 10
	}
	if r.BatchDelay <= 0 {
		r.BatchDelay = 100 * time.Millisecond
	}

	if cfg.Engine.Deadline <= 0 {
		cfg.Engine.Deadline = 5 * time.Second
	}
}

// ResolveSecrets replaces secret-valued settings with values fetched from
// the configured provider. Missing refs are skipped; fetch failures are
// returned so startup can fail fast rather than run with empty credentials.
func ResolveSecrets(cfg *Config) error {
	switch cfg.Secrets.Provider {
	case "":
		return nil
	case "ssm":
		loader, err := NewSSMLoader()
		if err != nil {
			return err
		}
		if ref := cfg.Secrets.LookupTokenRef; ref != "" {
			v, err := loader.GetParameter(ref, cfg.Secrets.DecryptParameters)
			if err != nil {
				return err
			}
			cfg.Reputation.LookupToken = v
		}
		if ref := cfg.Secrets.AdminJWTKeyRef; ref != "" {
			v, err := loader.GetParameter(ref, cfg.Secrets.DecryptParameters)
			if err != nil {
				return err
			}
			cfg.AdminJWTKey = v
		}
	case "secretsmanager":
		loader, err := NewAWSSecretsLoader()
		if err != nil {
			return err
		}
		if ref := cfg.Secrets.LookupTokenRef; ref != "" {
			v, err := loader.GetSecret(ref)
			if err != nil {
				return err
			}
			cfg.Reputation.LookupToken = v
		}
		if ref := cfg.Secrets.AdminJWTKeyRef; ref != "" {
			v, err := loader.GetSecret(ref)
			if err != nil {
				return err
			}
			cfg.AdminJWTKey = v
		}
	default:
		return fmt.Errorf("unknown secrets provider %q", cfg.Secrets.Provider)
	}
	return nil
}
