package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Retention RetentionConfig `koanf:"retention"`
}

type ServerConfig struct {
	Port int    `koanf:"port"`
	Host string `koanf:"host"`
	Mode string `koanf:"mode"` // debug | release
}

// DatabaseConfig describes the optional reporting database. An empty URL
// means reporting persistence is disabled for the lifetime of the process;
// nothing else in the system treats that as an error.
type DatabaseConfig struct {
	URL            string        `koanf:"url"`
	User           string        `koanf:"user"`
	Password       string        `koanf:"password"`
	PoolSize       int           `koanf:"pool_size"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	ProbeQuery     string        `koanf:"probe_query"`
	AutoMigrate    bool          `koanf:"auto_migrate"`
}

type RetentionConfig struct {
	Enabled       bool          `koanf:"enabled"`
	PurgeInterval time.Duration `koanf:"purge_interval"`
	SaveInterval  time.Duration `koanf:"save_interval"`
}

// Configured reports whether a database was configured at all.
func (c DatabaseConfig) Configured() bool {
	return strings.TrimSpace(c.URL) != ""
}

// DSN merges the separately-configured credentials into the connection URL.
// An unparseable URL is returned as-is and left for the driver to reject.
func (c DatabaseConfig) DSN() string {
	if c.User == "" {
		return c.URL
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return c.URL
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}
	return u.String()
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if c.Database.Configured() {
		if c.Database.PoolSize <= 0 {
			return fmt.Errorf("database.pool_size must be > 0")
		}
		if c.Database.ConnectTimeout <= 0 {
			return fmt.Errorf("database.connect_timeout must be > 0")
		}
		if strings.TrimSpace(c.Database.ProbeQuery) == "" {
			return fmt.Errorf("database.probe_query is required")
		}
	}

	if c.Retention.Enabled {
		if c.Retention.PurgeInterval <= 0 {
			return fmt.Errorf("retention.purge_interval must be > 0")
		}
		if c.Retention.SaveInterval <= 0 {
			return fmt.Errorf("retention.save_interval must be > 0")
		}
	}

	return nil
}

// Load parses config from defaults, an optional yaml file and DASHPIN_*
// environment variables, then validates the result. A missing config file is
// not an error: the defaults carry no database URL, so persistence simply
// comes up disabled.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":              8085,
		"server.host":              "0.0.0.0",
		"server.mode":              "release",
		"database.url":             "",
		"database.user":            "",
		"database.password":        "",
		"database.pool_size":       3,
		"database.connect_timeout": "15s",
		"database.probe_query":     "SELECT 1",
		"database.auto_migrate":    true,
		"retention.enabled":        true,
		"retention.purge_interval": "1h",
		"retention.save_interval":  "1m",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			slog.Warn("[Config] No config file found. Running on defaults.", "path", configPath)
		} else if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("DASHPIN_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "DASHPIN_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
