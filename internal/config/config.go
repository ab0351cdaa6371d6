// Package config loads flint.yaml, the optional per-project settings file.
// Command-line flags override anything set here.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/flint/internal/engine"
	"github.com/roach88/flint/internal/gateway"
)

// FileName is the config file looked up in the working directory.
const FileName = "flint.yaml"

// DefaultListen is the sim server's default address.
const DefaultListen = "127.0.0.1:25585"

// Config holds every setting a run can take from file.
type Config struct {
	// Server is the websocket URL of the world gateway. Empty means the
	// in-process simulated world.
	Server string `yaml:"server"`

	OpTimeout time.Duration `yaml:"op_timeout"`
	Recursive bool          `yaml:"recursive"`
	Tags      []string      `yaml:"tags"`

	// Journal and TraceDB are output paths; empty disables the sink.
	Journal string `yaml:"journal"`
	TraceDB string `yaml:"trace_db"`

	LogLevel string `yaml:"log_level"`

	Sim Sim `yaml:"sim"`
}

// Sim configures the simulated world, in process or behind `flint sim`.
type Sim struct {
	Listen       string        `yaml:"listen"`
	Rules        []string      `yaml:"rules"`
	TickInterval time.Duration `yaml:"tick_interval"`
	FillLimit    int           `yaml:"fill_limit"`
}

// Default returns the settings used when no file is present.
func Default() Config {
	return Config{
		OpTimeout: engine.DefaultOpTimeout,
		LogLevel:  "warn",
		Sim: Sim{
			Listen:    DefaultListen,
			FillLimit: gateway.DefaultFillLimit,
		},
	}
}

// Load reads path over the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	// Strict decoding catches typos like "trace-db:" for "trace_db:"
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Resolve loads the explicit path when given, else FileName in dir when it
// exists, else the defaults.
func Resolve(explicit, dir string) (Config, error) {
	if explicit != "" {
		return Load(explicit)
	}
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Default(), fmt.Errorf("failed to stat config file: %w", err)
	}
	return Load(path)
}

// Validate checks values the YAML types cannot.
func (c Config) Validate() error {
	var errs []error
	if c.OpTimeout < 0 {
		errs = append(errs, fmt.Errorf("op_timeout must not be negative, got %s", c.OpTimeout))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Server != "" && !strings.HasPrefix(c.Server, "ws://") && !strings.HasPrefix(c.Server, "wss://") {
		errs = append(errs, fmt.Errorf("server must be a ws:// or wss:// URL, got %q", c.Server))
	}
	if c.Sim.TickInterval < 0 {
		errs = append(errs, fmt.Errorf("sim.tick_interval must not be negative, got %s", c.Sim.TickInterval))
	}
	if c.Sim.FillLimit < 0 {
		errs = append(errs, fmt.Errorf("sim.fill_limit must not be negative, got %d", c.Sim.FillLimit))
	}
	if _, err := c.Sim.WorldRules(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// WorldRules resolves rule names against gateway.NamedRules.
func (s Sim) WorldRules() ([]gateway.Rule, error) {
	rules := make([]gateway.Rule, 0, len(s.Rules))
	for _, name := range s.Rules {
		r, ok := gateway.NamedRules[name]
		if !ok {
			return nil, fmt.Errorf("unknown sim rule %q (known: %s)", name, strings.Join(RuleNames(), ", "))
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// WorldOptions builds the options for an in-memory world.
func (s Sim) WorldOptions() ([]gateway.WorldOption, error) {
	rules, err := s.WorldRules()
	if err != nil {
		return nil, err
	}
	opts := []gateway.WorldOption{gateway.WithRules(rules...)}
	if s.FillLimit > 0 {
		opts = append(opts, gateway.WithFillLimit(s.FillLimit))
	}
	return opts, nil
}

// RuleNames lists the selectable sim rules, sorted.
func RuleNames() []string {
	names := make([]string, 0, len(gateway.NamedRules))
	for name := range gateway.NamedRules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseLevel maps a log_level value to a slog level. Empty means warn.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, fmt.Errorf("unknown log_level %q (use debug, info, warn or error)", s)
	}
}
