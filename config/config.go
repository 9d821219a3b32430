// Package config discovers and loads spellbook.yaml and applies environment
// overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/petal-labs/spellbook/bundle"
	"github.com/petal-labs/spellbook/store"
)

const (
	projectConfigName = "spellbook.yaml"
	homeConfigName    = "config.yaml"
	homeConfigDir     = ".spellbook"
)

// Environment variables that override file values.
const (
	EnvStoreDriver  = "SPELLBOOK_STORE_DRIVER"
	EnvStorePath    = "SPELLBOOK_STORE_PATH"
	EnvOutputDir    = "SPELLBOOK_OUTPUT_DIR"
	EnvOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

// Config is the resolved spellbook configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Output    OutputConfig    `yaml:"output"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Path is the file the configuration was read from, empty when none.
	Path string `yaml:"-"`
}

// StoreConfig selects the spell store.
type StoreConfig struct {
	Driver string `yaml:"driver,omitempty"`
	Path   string `yaml:"path,omitempty"`
}

// OutputConfig controls where bundles are written.
type OutputConfig struct {
	Dir string `yaml:"dir,omitempty"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`
	ServiceName  string `yaml:"service_name,omitempty"`
}

// Default returns the configuration used when nothing is configured.
func Default() Config {
	return Config{
		Store:  StoreConfig{Driver: store.DriverFile},
		Output: OutputConfig{Dir: bundle.DefaultRoot},
	}
}

// Load discovers the config file, reads it and applies environment overrides.
func Load(explicitPath string) (Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("resolve working directory: %w", err)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = ""
	}
	return LoadFrom(explicitPath, cwd, homeDir, os.LookupEnv)
}

// LoadFrom is a testable variant of Load.
func LoadFrom(explicitPath, cwd, homeDir string, lookupEnv func(string) (string, bool)) (Config, error) {
	path, found, err := DiscoverPathFrom(explicitPath, cwd, homeDir)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{}
	if found {
		cfg, err = ReadFile(path)
		if err != nil {
			return Config{}, err
		}
	}
	if lookupEnv != nil {
		applyEnv(&cfg, lookupEnv)
	}
	if err := cfg.Normalize(); err != nil {
		if found {
			return Config{}, fmt.Errorf("config %q: %w", path, err)
		}
		return Config{}, err
	}
	return cfg, nil
}

// DiscoverPathFrom resolves the config location with first-match semantics:
// the explicit path, else spellbook.yaml in cwd, else ~/.spellbook/config.yaml.
func DiscoverPathFrom(explicitPath, cwd, homeDir string) (string, bool, error) {
	explicit := strings.TrimSpace(explicitPath)
	candidates := make([]string, 0, 2)
	if explicit != "" {
		candidates = append(candidates, filepath.Clean(explicit))
	} else {
		candidates = append(candidates, filepath.Join(cwd, projectConfigName))
		if homeDir != "" {
			candidates = append(candidates, filepath.Join(homeDir, homeConfigDir, homeConfigName))
		}
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			if explicit != "" {
				return "", false, fmt.Errorf("config file %q not found", candidate)
			}
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("checking config path %q: %w", candidate, err)
		}
		if explicit != "" {
			return "", false, fmt.Errorf("config path %q is a directory", candidate)
		}
	}
	return "", false, nil
}

// ReadFile parses one config file. Unknown keys are rejected.
func ReadFile(path string) (Config, error) {
	// #nosec G304 -- path resolved from explicit local config discovery.
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %q: %w", path, err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parsing config %q: %w", path, err)
	}
	cfg.Path = path

	// Relative paths in a config file are relative to the file.
	base := filepath.Dir(path)
	cfg.Store.Path = resolveRelative(base, cfg.Store.Path)
	cfg.Output.Dir = resolveRelative(base, cfg.Output.Dir)
	return cfg, nil
}

// StorePath returns the configured store path, or the driver's default when
// none is set.
func (c Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	if c.Store.Driver == store.DriverSQLite {
		return store.DefaultSQLitePath()
	}
	return store.DefaultFilePath()
}

// Normalize canonicalizes the store driver and fills the output directory
// default. Call it again after overriding fields.
func (c *Config) Normalize() error {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case "":
		c.Store.Driver = store.DriverFile
	case store.DriverFile, store.DriverSQLite:
	default:
		return fmt.Errorf("unknown store driver %q (want %s or %s)", c.Store.Driver, store.DriverFile, store.DriverSQLite)
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		c.Output.Dir = bundle.DefaultRoot
	}
	return nil
}

func applyEnv(cfg *Config, lookupEnv func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&cfg.Store.Driver, EnvStoreDriver)
	set(&cfg.Store.Path, EnvStorePath)
	set(&cfg.Output.Dir, EnvOutputDir)
	set(&cfg.Telemetry.OTLPEndpoint, EnvOTLPEndpoint)
}

func resolveRelative(base, path string) string {
	path = os.ExpandEnv(strings.TrimSpace(path))
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
