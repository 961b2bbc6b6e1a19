// Package config provides TOML configuration file loading and parsing for
// diffcore. The configuration file lives at ~/.diffcore/config.toml by
// default, but can be overridden with the --config flag. CLI flags always
// take precedence over file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/pseudocoder/diffcore/internal/diff"
	apperrors "github.com/pseudocoder/diffcore/internal/errors"
)

// Config represents the configuration file structure.
// Field names use Go camelCase internally but map to snake_case in TOML files
// via struct tags.
type Config struct {
	// Addr is the host:port for the HTTP/WebSocket server.
	// Default: 127.0.0.1:7171
	Addr string `toml:"addr"`

	// Store is the path to the SQLite database holding parsed diffs.
	// Default: ~/.diffcore/diffcore.db
	Store string `toml:"store"`

	// LogLevel controls logging verbosity: debug, info, warn, error.
	// Default: info
	LogLevel string `toml:"log_level"`

	// DetectBinary treats hunks that are not valid UTF-8 as binary content.
	DetectBinary bool `toml:"detect_binary"`

	// TryEncoding is an encoding label (e.g. "latin1") used to convert
	// non-UTF-8 hunks before falling back to binary. Requires DetectBinary.
	TryEncoding string `toml:"try_encoding"`

	// IgnoreWhitespace drops hunks that only change trailing whitespace.
	// Subversion diffs are always filtered this way.
	IgnoreWhitespace bool `toml:"ignore_whitespace"`

	// WriteDiffOnFailure keeps a copy of any diff that fails to parse in the
	// system temp directory.
	WriteDiffOnFailure bool `toml:"write_diff_on_failure"`

	// MaxDiffBytes rejects larger inputs. Default: 16MB. Zero means default.
	MaxDiffBytes int `toml:"max_diff_bytes"`

	// RateLimit is the number of parse requests per second the server
	// accepts from one client. Default: 20
	RateLimit float64 `toml:"rate_limit"`

	// RateBurst is the burst size for RateLimit. Default: 10
	RateBurst int `toml:"rate_burst"`

	// WatchFile is the diff file polled by "diffcore watch" and by
	// "diffcore serve". Empty disables watching in serve.
	WatchFile string `toml:"watch_file"`

	// WatchPollMs is the watch polling interval in milliseconds.
	// Default: 1000
	WatchPollMs int `toml:"watch_poll_ms"`
}

// DefaultConfigPath returns the default config file location: ~/.diffcore/config.toml.
// Returns an error only if the user's home directory cannot be determined.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".diffcore", "config.toml"), nil
}

// DefaultStorePath returns ~/.diffcore/diffcore.db.
func DefaultStorePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".diffcore", "diffcore.db"), nil
}

// WriteDefault creates a config file with documented defaults at the given path.
//
// Behavior:
//   - If the file already exists, returns without error (does not overwrite).
//   - Creates the parent directory if it doesn't exist.
//   - Returns an error if the file cannot be written.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(`# diffcore configuration

# Listen address for "diffcore serve"
addr = %q

# Treat non-UTF-8 hunks as binary, optionally trying an encoding first
detect_binary = false
# try_encoding = "latin1"

# Drop hunks that only change trailing whitespace
ignore_whitespace = false

# Reject diffs larger than this many bytes
max_diff_bytes = %d

# Per-client parse requests per second
rate_limit = %g
rate_burst = %d
`, DefaultAddr, DefaultMaxDiffBytes, DefaultRateLimit, DefaultRateBurst)

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Load reads a TOML config file from the given path and returns a Config.
//
// Behavior:
//   - If path is empty, attempts to load from the default location (~/.diffcore/config.toml).
//     Returns an empty Config without error if the default file doesn't exist.
//   - If path is specified, returns an error if the file doesn't exist.
//   - Returns an error if the file exists but cannot be parsed.
//   - Unknown keys are rejected so typos do not silently fall back to defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
		if _, err := os.Stat(defaultPath); os.IsNotExist(err) {
			return cfg, nil
		}
		path = defaultPath
	} else {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, apperrors.InvalidConfig(strings.Join(keys, ", "), "unknown key")
	}

	return cfg, nil
}

// ApplyDefaults fills every unset field with its default value.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.MaxDiffBytes == 0 {
		c.MaxDiffBytes = DefaultMaxDiffBytes
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.RateBurst == 0 {
		c.RateBurst = DefaultRateBurst
	}
	if c.WatchPollMs == 0 {
		c.WatchPollMs = DefaultWatchPollMs
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks value ranges. It expects ApplyDefaults to have run.
func (c *Config) Validate() error {
	if !validLogLevels[c.LogLevel] {
		return apperrors.InvalidConfig("log_level", fmt.Sprintf("%q is not one of debug, info, warn, error", c.LogLevel))
	}
	if c.MaxDiffBytes < 0 {
		return apperrors.InvalidConfig("max_diff_bytes", "must not be negative")
	}
	if c.RateLimit < 0 {
		return apperrors.InvalidConfig("rate_limit", "must not be negative")
	}
	if c.RateBurst < 1 {
		return apperrors.InvalidConfig("rate_burst", "must be at least 1")
	}
	if c.WatchPollMs < 0 {
		return apperrors.InvalidConfig("watch_poll_ms", "must not be negative")
	}
	if c.TryEncoding != "" {
		if !c.DetectBinary {
			return apperrors.InvalidConfig("try_encoding", "requires detect_binary = true")
		}
		if !diff.ValidEncoding(c.TryEncoding) {
			return apperrors.InvalidConfig("try_encoding", fmt.Sprintf("unknown encoding %q", c.TryEncoding))
		}
	}
	return nil
}

// ParserOptions converts the parser-related settings into diff.Option values.
func (c *Config) ParserOptions() []diff.Option {
	opts := []diff.Option{
		diff.WithDetectBinary(c.DetectBinary),
		diff.WithIgnoreWhitespace(c.IgnoreWhitespace),
		diff.WithMaxBytes(c.MaxDiffBytes),
	}
	if c.TryEncoding != "" {
		opts = append(opts, diff.WithTryEncoding(c.TryEncoding))
	}
	if c.WriteDiffOnFailure {
		opts = append(opts, diff.WithWriteDiffOnFailure(""))
	}
	return opts
}
