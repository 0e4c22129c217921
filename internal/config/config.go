package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all mory configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Memory   MemoryConfig   `toml:"memory"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// MemoryConfig tunes the retention and workspace policies.
type MemoryConfig struct {
	Capacity          int     `toml:"capacity"`
	MinRetentionScore float64 `toml:"min_retention_score"`
	HalfLifeDays      float64 `toml:"half_life_days"`
	WorkspaceTTLHours float64 `toml:"workspace_ttl_hours"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37707,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Memory: MemoryConfig{
			Capacity:          500,
			MinRetentionScore: 0.25,
			HalfLifeDays:      21,
			WorkspaceTTLHours: 24,
		},
	}
}

// FromEnv overlays MORY_* environment variables onto the defaults.
func FromEnv() Config {
	cfg := Default()
	if v := os.Getenv("MORY_BIND"); v != "" {
		cfg.Server.Bind = v
	}
	if v := os.Getenv("MORY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MORY_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("MORY_CAPACITY"); v != "" {
		if capacity, err := strconv.Atoi(v); err == nil && capacity > 0 {
			cfg.Memory.Capacity = capacity
		}
	}
	return cfg
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
