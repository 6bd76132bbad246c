// Package config loads the server configuration and carries build metadata.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Build metadata, injected via -ldflags at release time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Config is the full server configuration. Values come from an optional YAML
// file overridden by environment variables, so containers can run with env
// alone.
type Config struct {
	Port        string `yaml:"port"`
	Env         string `yaml:"env"` // "dev" enables permissive CORS and gin debug mode
	JWTSecret   string `yaml:"jwt_secret_key"`
	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`

	// Origins allowed for browser WebSocket upgrades and HTTP CORS.
	// A single "*" allows any origin.
	CORSOrigins []string `yaml:"cors_origins"`

	// Write-behind queue capacity; overflow drops tasks.
	WriterQueueSize int `yaml:"writer_queue_size"`
}

// DefaultConfigFile is looked up in the working directory when no path is
// given.
const DefaultConfigFile = "collab-server.yaml"

// Load reads the YAML file at path (skipped silently when absent) and then
// applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		path = DefaultConfigFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY is required")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("JWT_SECRET_KEY"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	// SOCKETIO_CORS_ORIGINS is the name browser deployments already use;
	// CORS_ORIGINS is accepted as the shorter alias.
	if v := os.Getenv("SOCKETIO_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitOrigins(v)
	} else if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitOrigins(v)
	}
	if v := os.Getenv("WRITER_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WriterQueueSize = n
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Port == "" {
		cfg.Port = "7788"
	}
	if cfg.Env == "" {
		cfg.Env = "production"
	}
	if cfg.RedisURL == "" {
		cfg.RedisURL = "redis://localhost:6379/0"
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	if cfg.WriterQueueSize <= 0 {
		cfg.WriterQueueSize = 1000
	}
}

// IsDev reports whether the server runs in development mode.
func (c *Config) IsDev() bool { return c.Env == "dev" }

func splitOrigins(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if o := strings.TrimSpace(part); o != "" {
			out = append(out, o)
		}
	}
	return out
}
