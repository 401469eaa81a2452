// Package config loads the labctl settings file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the settings command line flags fall back to.
type Config struct {
	IndexPath   string   `toml:"index"`        // device index file
	DriverRoots []string `toml:"driver_roots"` // search path for drivers, empty = all
	Timeout     Duration `toml:"timeout"`      // default transport timeout
	LogLevel    string   `toml:"log_level"`    // debug, info, warn, error
	TracePath   string   `toml:"trace"`        // CBOR transport trace, empty = off
	Format      string   `toml:"format"`       // text, json, yaml

	Discover DiscoverConfig `toml:"discover"`
}

// DiscoverConfig controls `labctl discover`.
type DiscoverConfig struct {
	USB        bool     `toml:"usb"`
	MDNS       bool     `toml:"mdns"`
	Serial     bool     `toml:"serial"`
	MDNSWindow Duration `toml:"mdns_window"`
}

// Duration wraps time.Duration for TOML parsing.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText formats the duration as a string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Dir is the labctl directory under the user configuration directory.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "labctl")
}

// DefaultPath is where the settings file is looked for.
func DefaultPath() string {
	if d := Dir(); d != "" {
		return filepath.Join(d, "config.toml")
	}
	return ""
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	c := &Config{
		Timeout:  Duration{5 * time.Second},
		LogLevel: "warn",
		Format:   "text",
		Discover: DiscoverConfig{
			USB:        true,
			MDNS:       true,
			Serial:     true,
			MDNSWindow: Duration{2 * time.Second},
		},
	}
	if d := Dir(); d != "" {
		c.IndexPath = filepath.Join(d, "devices.ini")
	}
	return c
}

// Load reads the file at path over the defaults. Unknown keys are an error.
func Load(path string) (*Config, error) {
	c := DefaultConfig()
	md, err := toml.DecodeFile(os.ExpandEnv(path), c)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// LoadDefault reads DefaultPath when it exists and returns the defaults
// otherwise.
func LoadDefault() (*Config, error) {
	path := DefaultPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	c, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return c, err
}

// Validate checks the settings and normalises case.
func (c *Config) Validate() error {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}

	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	switch c.Format {
	case "":
		c.Format = "text"
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("format %q: want text, json or yaml", c.Format)
	}

	if c.Timeout.Duration < 0 {
		return fmt.Errorf("timeout %s is negative", c.Timeout)
	}
	if c.Discover.MDNSWindow.Duration <= 0 {
		c.Discover.MDNSWindow.Duration = 2 * time.Second
	}
	c.IndexPath = os.ExpandEnv(c.IndexPath)
	c.TracePath = os.ExpandEnv(c.TracePath)
	return nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log_level %q: want debug, info, warn or error", s)
	}
	return l, nil
}

// Level is the configured slog level.
func (c *Config) Level() slog.Level {
	l, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelWarn
	}
	return l
}
