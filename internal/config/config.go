// Package config provides configuration management for agentpulse.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultServerHost is the loopback address of the ingestion server.
	DefaultServerHost = "127.0.0.1"

	// DefaultServerPort is the default HTTP port of the ingestion server.
	DefaultServerPort = 4000

	// DefaultRequestTimeout bounds a single event delivery.
	DefaultRequestTimeout = 5 * time.Second

	// DefaultBuildTimeout bounds the bundle build before it is considered hung.
	DefaultBuildTimeout = 60 * time.Second

	// DefaultArtifact is the bundle output path, relative to the build directory.
	DefaultArtifact = "dist/index.js"

	// EventsPath is the ingestion endpoint path.
	EventsPath = "/api/events"
)

// Environment variables read by Load.
const (
	EnvServerPort = "AGENTPULSE_SERVER_PORT"
	EnvLogLevel   = "AGENTPULSE_LOG_LEVEL"
	EnvHome       = "AGENTPULSE_HOME"
)

// DefaultBuildCommand is the build invoked by the verifier when none is configured.
var DefaultBuildCommand = []string{"npm", "run", "build"}

// Config holds the application configuration.
type Config struct {
	Server   ServerConfig `yaml:"server"`
	Bundle   BundleConfig `yaml:"bundle"`
	LogLevel string       `yaml:"log_level"`
}

// ServerConfig locates the ingestion server.
type ServerConfig struct {
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
}

// BundleConfig describes how the verifier builds and finds the artifact.
type BundleConfig struct {
	Command  []string      `yaml:"command"`
	Dir      string        `yaml:"dir"`
	Artifact string        `yaml:"artifact"`
	Timeout  time.Duration `yaml:"timeout"`
	Watch    []string      `yaml:"watch"` // source dirs watched by `verify-bundle watch`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// EventsURL returns the full ingestion endpoint URL.
func (s ServerConfig) EventsURL() string {
	return fmt.Sprintf("http://%s%s", s.Addr(), EventsPath)
}

// ArtifactPath returns the artifact path resolved against the build dir.
func (b BundleConfig) ArtifactPath() string {
	if filepath.IsAbs(b.Artifact) || b.Dir == "" {
		return b.Artifact
	}
	return filepath.Join(b.Dir, b.Artifact)
}

// DataDir returns the data directory path (~/.agentpulse unless overridden).
func DataDir() string {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".agentpulse")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.yaml")
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    DefaultServerHost,
			Port:    DefaultServerPort,
			Timeout: DefaultRequestTimeout,
		},
		Bundle: BundleConfig{
			Command:  append([]string(nil), DefaultBuildCommand...),
			Dir:      ".",
			Artifact: DefaultArtifact,
			Timeout:  DefaultBuildTimeout,
		},
	}
}

// Load loads configuration from the settings file, merging with defaults,
// then applies environment overrides.
// A missing or unparsable settings file yields the defaults.
func Load() *Config {
	cfg, err := LoadFile(SettingsPath())
	if err != nil {
		cfg = Default()
	}
	cfg.applyEnv(os.Getenv)
	return cfg
}

// LoadFile reads a YAML settings file over the defaults.
// A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path) // #nosec G304 -- path is the user's own settings file
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

// normalize restores defaults for values a settings file zeroed or broke.
func (c *Config) normalize() {
	def := Default()
	if strings.TrimSpace(c.Server.Host) == "" {
		c.Server.Host = def.Server.Host
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.Timeout <= 0 {
		c.Server.Timeout = def.Server.Timeout
	}
	if len(c.Bundle.Command) == 0 {
		c.Bundle.Command = def.Bundle.Command
	}
	if c.Bundle.Artifact == "" {
		c.Bundle.Artifact = def.Bundle.Artifact
	}
	if c.Bundle.Timeout <= 0 {
		c.Bundle.Timeout = def.Bundle.Timeout
	}
}

func (c *Config) applyEnv(getenv func(string) string) {
	c.Server.Port = ResolvePort(getenv(EnvServerPort), c.Server.Port)
	if lvl := getenv(EnvLogLevel); lvl != "" {
		c.LogLevel = lvl
	}
}

// ResolvePort parses a port override, returning fallback when the value is
// empty, non-numeric or out of range.
func ResolvePort(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	p, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || p <= 0 || p > 65535 {
		return fallback
	}
	return p
}
