package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when no --conf flag is given.
const DefaultPath = "~/.config/shellpanel.yaml"

var (
	ErrZeroPollInterval = errors.New("timeout_s must be at least 1 second")
	ErrEmptyCommand     = errors.New("cmd must not be empty")
	ErrEmptyFile        = errors.New("config file is empty")
	ErrOutOfRange       = errors.New("value out of range")
)

// Upper bounds keep both durations within a 32-bit millisecond timer.
const (
	MaxHideDelayMs = math.MaxUint32
	MaxTimeoutS    = math.MaxUint32 / 1000
)

// Config is immutable once loaded.
type Config struct {
	Cmd         string `yaml:"cmd" toml:"cmd"`
	HideDelayMs uint64 `yaml:"hide_delay_ms" toml:"hide_delay_ms"`
	TimeoutS    uint32 `yaml:"timeout_s" toml:"timeout_s"`
}

// fileConfig mirrors Config with pointers so a missing field can be told
// apart from a zero value.
type fileConfig struct {
	Cmd         *string `yaml:"cmd" toml:"cmd"`
	HideDelayMs *uint64 `yaml:"hide_delay_ms" toml:"hide_delay_ms"`
	TimeoutS    *uint32 `yaml:"timeout_s" toml:"timeout_s"`
}

// Default returns the configuration written on first run.
func Default() Config {
	return Config{
		Cmd:         "date",
		HideDelayMs: 500,
		TimeoutS:    1,
	}
}

// HideDelay returns the delay between pointer-leave and hiding.
func (c Config) HideDelay() time.Duration {
	return time.Duration(c.HideDelayMs) * time.Millisecond
}

// PollInterval returns the period between command runs.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.TimeoutS) * time.Second
}

// ExpandedCommand returns Cmd with a leading ~ replaced by the home directory.
func (c Config) ExpandedCommand() (string, error) {
	return ExpandPath(c.Cmd)
}

// Validate rejects configurations the panel cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Cmd) == "" {
		return ErrEmptyCommand
	}
	if c.TimeoutS == 0 {
		return ErrZeroPollInterval
	}
	if c.TimeoutS > MaxTimeoutS {
		return fmt.Errorf("%w: timeout_s must be at most %d", ErrOutOfRange, MaxTimeoutS)
	}
	if c.HideDelayMs > MaxHideDelayMs {
		return fmt.Errorf("%w: hide_delay_ms must be at most %d", ErrOutOfRange, uint64(MaxHideDelayMs))
	}
	return nil
}

// ExpandPath expands a leading "~" or "~/" to the current user's home.
func ExpandPath(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("failed to expand %q: %w", path, err)
	}
	return expanded, nil
}

// Load reads and validates an existing config file. The file must set every
// field; partial files are rejected rather than filled from defaults.
func Load(path string) (*Config, error) {
	expandedPath, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(expandedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(data, formatFor(expandedPath))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", expandedPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", expandedPath, err)
	}
	return cfg, nil
}

// LoadOrCreate loads path, or writes Default() there first if it does not
// exist. created reports whether the file was written.
func LoadOrCreate(path string) (cfg *Config, created bool, err error) {
	expandedPath, err := ExpandPath(path)
	if err != nil {
		return nil, false, err
	}

	if _, err := os.Stat(expandedPath); errors.Is(err, os.ErrNotExist) {
		def := Default()
		if err := Save(&def, expandedPath); err != nil {
			return nil, false, fmt.Errorf("failed to write default config: %w", err)
		}
		return &def, true, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("failed to stat config: %w", err)
	}

	cfg, err = Load(expandedPath)
	return cfg, false, err
}

// Save writes cfg to path, creating parent directories as needed.
func Save(cfg *Config, path string) error {
	expandedPath, err := ExpandPath(path)
	if err != nil {
		return err
	}

	dir := filepath.Dir(expandedPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := Marshal(cfg, formatFor(expandedPath))
	if err != nil {
		return err
	}

	return os.WriteFile(expandedPath, data, 0644)
}

// Format is the on-disk encoding of a config file.
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

func formatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Marshal encodes cfg in the given format.
func Marshal(cfg *Config, format Format) ([]byte, error) {
	if format == FormatTOML {
		return toml.Marshal(cfg)
	}
	return yaml.Marshal(cfg)
}

// Parse decodes data strictly: missing fields and values of the wrong type
// are errors. Unknown keys are ignored.
func Parse(data []byte, format Format) (*Config, error) {
	var raw fileConfig

	switch format {
	case FormatTOML:
		if err := toml.NewDecoder(bytes.NewReader(data)).Decode(&raw); err != nil {
			return nil, err
		}
	default:
		if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrEmptyFile
			}
			return nil, err
		}
	}

	var missing []string
	if raw.Cmd == nil {
		missing = append(missing, "cmd")
	}
	if raw.HideDelayMs == nil {
		missing = append(missing, "hide_delay_ms")
	}
	if raw.TimeoutS == nil {
		missing = append(missing, "timeout_s")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing field(s): %s", strings.Join(missing, ", "))
	}

	return &Config{
		Cmd:         *raw.Cmd,
		HideDelayMs: *raw.HideDelayMs,
		TimeoutS:    *raw.TimeoutS,
	}, nil
}

// ValidateConfig loads path and reports whether it is usable.
func ValidateConfig(path string) error {
	if _, err := Load(path); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
