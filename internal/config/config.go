package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Backend   BackendConfig   `yaml:"backend"`
	Identity  IdentityConfig  `yaml:"identity"`
	Server    ServerConfig    `yaml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	State     StateConfig     `yaml:"state"`
	Database  DatabaseConfig  `yaml:"database"`
	Push      PushConfig      `yaml:"push"`
	Log       LogConfig       `yaml:"log"`
}

type BackendConfig struct {
	URL string `yaml:"url"`
	// Timeout bounds each HTTP call. Zero leaves calls pending until cancelled.
	Timeout time.Duration `yaml:"timeout"`
}

type IdentityConfig struct {
	TokenURL     string   `yaml:"token_url"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Scopes       []string `yaml:"scopes"`
	// FakeUser skips the identity provider and the session exchange.
	FakeUser  bool `yaml:"fake_user"`
	FakeAdmin bool `yaml:"fake_admin"`
}

type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
	// SessionRateLimit is the number of session requests allowed per minute per client.
	SessionRateLimit int `yaml:"session_rate_limit"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type StateConfig struct {
	Dir string `yaml:"dir"`
}

// DatabaseConfig is the Postgres document store. Leaving Host empty selects the
// in-memory store.
type DatabaseConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Name       string `yaml:"name"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	SSLMode    string `yaml:"sslmode"`
	Migrations string `yaml:"migrations"`
}

type PushConfig struct {
	URL      string `yaml:"url"`
	Platform string `yaml:"platform"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Enabled reports whether a Postgres document store is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// SlogLevel maps the configured level name onto slog. Unknown names mean info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns the configuration used before the file and environment are applied.
func Default() *Config {
	stateDir := ".fitconsole"
	if dir, err := os.UserConfigDir(); err == nil {
		stateDir = filepath.Join(dir, "fitconsole")
	}
	return &Config{
		Identity: IdentityConfig{Scopes: []string{"openid", "email", "profile", "offline_access"}},
		Server: ServerConfig{
			Host:             "127.0.0.1",
			Port:             8080,
			SessionRateLimit: 10,
		},
		Tailscale: TailscaleConfig{Hostname: "fitconsole"},
		State:     StateConfig{Dir: stateDir},
		Database:  DatabaseConfig{Port: 5432, Migrations: "migrations"},
		Push:      PushConfig{Platform: "cli"},
		Log:       LogConfig{Level: "info"},
	}
}

// Load reads config from a YAML file, then applies environment variable overrides.
// An empty path skips the file. Env vars use the prefix FITCONSOLE_ and
// underscore-separated paths:
//
//	FITCONSOLE_BACKEND_URL, FITCONSOLE_BACKEND_TIMEOUT,
//	FITCONSOLE_IDENTITY_TOKEN_URL, FITCONSOLE_IDENTITY_CLIENT_ID,
//	FITCONSOLE_IDENTITY_CLIENT_SECRET, FITCONSOLE_FAKE_USER,
//	FITCONSOLE_SERVER_HOST, FITCONSOLE_SERVER_PORT,
//	FITCONSOLE_TAILSCALE_ENABLED, FITCONSOLE_STATE_DIR,
//	FITCONSOLE_DB_HOST, FITCONSOLE_DB_PORT, FITCONSOLE_DB_NAME,
//	FITCONSOLE_DB_USER, FITCONSOLE_DB_PASSWORD, FITCONSOLE_DB_SSLMODE,
//	FITCONSOLE_PUSH_URL, FITCONSOLE_LOG_LEVEL
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString := func(env string, dst *string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	setInt := func(env string, dst *int) {
		if v := os.Getenv(env); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(env string, dst *bool) {
		if v := os.Getenv(env); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	setString("FITCONSOLE_BACKEND_URL", &cfg.Backend.URL)
	if v := os.Getenv("FITCONSOLE_BACKEND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Backend.Timeout = d
		}
	}
	setString("FITCONSOLE_IDENTITY_TOKEN_URL", &cfg.Identity.TokenURL)
	setString("FITCONSOLE_IDENTITY_CLIENT_ID", &cfg.Identity.ClientID)
	setString("FITCONSOLE_IDENTITY_CLIENT_SECRET", &cfg.Identity.ClientSecret)
	setBool("FITCONSOLE_FAKE_USER", &cfg.Identity.FakeUser)
	setString("FITCONSOLE_SERVER_HOST", &cfg.Server.Host)
	setInt("FITCONSOLE_SERVER_PORT", &cfg.Server.Port)
	setBool("FITCONSOLE_TAILSCALE_ENABLED", &cfg.Tailscale.Enabled)
	setString("FITCONSOLE_STATE_DIR", &cfg.State.Dir)
	setString("FITCONSOLE_DB_HOST", &cfg.Database.Host)
	setInt("FITCONSOLE_DB_PORT", &cfg.Database.Port)
	setString("FITCONSOLE_DB_NAME", &cfg.Database.Name)
	setString("FITCONSOLE_DB_USER", &cfg.Database.User)
	setString("FITCONSOLE_DB_PASSWORD", &cfg.Database.Password)
	setString("FITCONSOLE_DB_SSLMODE", &cfg.Database.SSLMode)
	setString("FITCONSOLE_PUSH_URL", &cfg.Push.URL)
	setString("FITCONSOLE_LOG_LEVEL", &cfg.Log.Level)
}

func (c *Config) validate() error {
	if !c.Identity.FakeUser {
		if c.Backend.URL == "" {
			return fmt.Errorf("backend.url is required")
		}
		if c.Identity.TokenURL == "" {
			return fmt.Errorf("identity.token_url is required")
		}
		if c.Identity.ClientID == "" {
			return fmt.Errorf("identity.client_id is required")
		}
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend.timeout must not be negative")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.State.Dir == "" {
		return fmt.Errorf("state.dir is required")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	if c.Database.Enabled() {
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	}
	return nil
}
