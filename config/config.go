// Package config handles waysome.toml daemon configuration. Every setting
// can be overridden from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// FileName is the name of the configuration file.
const FileName = "waysome.toml"

// Config represents a waysome.toml configuration.
type Config struct {
	Server    Server    `toml:"server"`
	Action    Action    `toml:"action"`
	Store     Store     `toml:"store"`
	Log       Log       `toml:"log"`
	Telemetry Telemetry `toml:"telemetry"`

	// Path is the file the configuration was read from, empty for
	// defaults (set at load time).
	Path string `toml:"-" env:"-"`
}

// Server configures the transports.
type Server struct {
	// Addr is the Connect listen address; empty disables HTTP.
	Addr string `toml:"addr" env:"WAYSOME_ADDR"`
	// Socket is the unix socket path; empty disables the socket.
	Socket  string `toml:"socket" env:"WAYSOME_SOCKET"`
	Workers int    `toml:"workers" env:"WAYSOME_WORKERS"`
	Queue   int    `toml:"queue" env:"WAYSOME_QUEUE"`
}

// Action configures transaction runs.
type Action struct {
	MaxDepth  int           `toml:"max-depth" env:"WAYSOME_MAX_DEPTH"`
	StepLimit int           `toml:"step-limit" env:"WAYSOME_STEP_LIMIT"`
	Timeout   time.Duration `toml:"timeout" env:"WAYSOME_TIMEOUT"`
}

// Store selects the transaction store.
type Store struct {
	// Driver is "memory" or "sqlite".
	Driver string `toml:"driver" env:"WAYSOME_STORE"`
	Path   string `toml:"path" env:"WAYSOME_STORE_PATH"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity" env:"WAYSOME_LOG_VERBOSITY"`
	Path      string `toml:"path" env:"WAYSOME_LOG_PATH"`
}

// Telemetry configures OpenTelemetry tracing. Tracing is off unless
// enabled with an endpoint.
type Telemetry struct {
	Enabled  bool   `toml:"enabled" env:"WAYSOME_OTEL_ENABLED"`
	Endpoint string `toml:"endpoint" env:"WAYSOME_OTEL_ENDPOINT"`
	Service  string `toml:"service" env:"WAYSOME_OTEL_SERVICE"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: Server{
			Socket:  DefaultSocketPath(),
			Workers: 4,
			Queue:   64,
		},
		Action: Action{
			MaxDepth: 4096,
			Timeout:  5 * time.Second,
		},
		Store: Store{Driver: "memory"},
		Log:   Log{Verbosity: 1},
		Telemetry: Telemetry{
			Service: "waysomed",
		},
	}
}

// DefaultSocketPath returns waysome.sock in $XDG_RUNTIME_DIR, or in the
// temporary directory when that is unset.
func DefaultSocketPath() string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "waysome.sock")
}

// Load reads the file at path over the defaults, then applies environment
// overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse error in %s: %w", path, err)
		}
		c.Path, err = filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
		}
	}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a waysome.toml file and
// loads it. Without a file the defaults (with environment overrides) are
// returned.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Load("")
		}
		dir = parent
	}
}

// Validate checks settings that have no usable fallback.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("config: sqlite store needs a path")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Server.Workers <= 0 {
		return fmt.Errorf("config: workers must be positive, have %d", c.Server.Workers)
	}
	if c.Server.Queue < 0 {
		return fmt.Errorf("config: queue must not be negative, have %d", c.Server.Queue)
	}
	if c.Action.MaxDepth < 0 || c.Action.StepLimit < 0 {
		return fmt.Errorf("config: action limits must not be negative")
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("config: telemetry enabled without endpoint")
	}
	return nil
}
