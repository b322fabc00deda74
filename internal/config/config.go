// Package config handles loading and managing mailmatch configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the mailmatch configuration.
type Config struct {
	Data     DataConfig     `toml:"data"`
	OAuth    OAuthConfig    `toml:"oauth"`
	Identity IdentityConfig `toml:"identity"`
	Resolve  ResolveConfig  `toml:"resolve"`
	Server   ServerConfig   `toml:"server"`

	// Computed paths (not from config file)
	HomeDir string `toml:"-"`
}

// DataConfig holds data storage configuration.
type DataConfig struct {
	DataDir string `toml:"data_dir"`
}

// OAuthConfig holds OAuth configuration.
type OAuthConfig struct {
	ClientSecrets string `toml:"client_secrets"`
}

// IdentityConfig lists the mailbox owner's addresses. The primary address
// is discovered from the Gmail profile; aliases must be configured here.
type IdentityConfig struct {
	Aliases []string `toml:"aliases"`
}

// ResolveConfig holds resolution tuning.
type ResolveConfig struct {
	RateLimitQPS        int      `toml:"rate_limit_qps"`
	HeaderWindowYears   int      `toml:"header_window_years"`
	CalendarWindowYears int      `toml:"calendar_window_years"`
	SearchLimit         int      `toml:"search_limit"`
	NoiseDomains        []string `toml:"noise_domains"`
	JunkDomains         []string `toml:"junk_domains"`
}

// ServerConfig holds HTTP API server configuration.
type ServerConfig struct {
	APIPort int    `toml:"api_port"` // HTTP server port (default: 8080)
	APIKey  string `toml:"api_key"`  // API authentication key
}

// DefaultHome returns the default mailmatch home directory.
// Respects MAILMATCH_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("MAILMATCH_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mailmatch"
	}
	return filepath.Join(home, ".mailmatch")
}

// Load reads the configuration from the specified file.
// If path is empty, uses config.toml under home; if home is empty,
// uses DefaultHome(). A missing config file is not an error.
func Load(path, home string) (*Config, error) {
	if home == "" {
		home = DefaultHome()
	}
	if path == "" {
		path = filepath.Join(home, "config.toml")
	}

	cfg := &Config{
		HomeDir: home,
		// Defaults
		Data: DataConfig{
			DataDir: home,
		},
		Resolve: ResolveConfig{
			RateLimitQPS:        5,
			HeaderWindowYears:   3,
			CalendarWindowYears: 5,
			SearchLimit:         40,
		},
		Server: ServerConfig{
			APIPort: 8080,
		},
	}

	// Config file is optional - use defaults if not present
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// Expand ~ in paths
	cfg.Data.DataDir = expandPath(cfg.Data.DataDir)
	cfg.OAuth.ClientSecrets = expandPath(cfg.OAuth.ClientSecrets)

	return cfg, nil
}

// EnsureHomeDir creates the home directory tree if it does not exist.
func (c *Config) EnsureHomeDir() error {
	for _, dir := range []string{c.HomeDir, c.Data.DataDir, c.TokensDir()} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the path to the SQLite database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Data.DataDir, "mailmatch.db")
}

// TokensDir returns the path to the OAuth tokens directory.
func (c *Config) TokensDir() string {
	return filepath.Join(c.Data.DataDir, "tokens")
}

// ConfigFilePath returns the path to the config file under home.
func (c *Config) ConfigFilePath() string {
	return filepath.Join(c.HomeDir, "config.toml")
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
