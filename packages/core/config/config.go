package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the shtest configuration. Pointer booleans
// distinguish "unset" from "explicitly false" so CLI flags can override
// only what they actually set.
type Config struct {
	Verbose *int   `yaml:"verbose,omitempty"` // 0=off, 1=-v, 2=debug
	Filter  string `yaml:"filter,omitempty"`  // regex over suite/name ids
	Pattern string `yaml:"pattern,omitempty"` // suite-file glob for discovery
	DataDir string `yaml:"dataDir,omitempty"` // defaults to .testdata
	NoTime  *bool  `yaml:"noTime,omitempty"`
	NoColor *bool  `yaml:"noColor,omitempty"`
	History *bool  `yaml:"history,omitempty"`
	Watch   *bool  `yaml:"watch,omitempty"`
}

// getBool returns the value of a bool pointer, or the default if nil.
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetVerbose returns the verbosity level, defaulting to 0.
func (c *Config) GetVerbose() int {
	if c.Verbose == nil {
		return 0
	}
	return *c.Verbose
}

// GetNoTime returns the timing-disabled setting, defaulting to false.
func (c *Config) GetNoTime() bool {
	return getBool(c.NoTime, false)
}

// GetNoColor returns the no-color setting, defaulting to false.
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// GetHistory returns the history setting, defaulting to false.
func (c *Config) GetHistory() bool {
	return getBool(c.History, false)
}

// GetWatch returns the watch setting, defaulting to false.
func (c *Config) GetWatch() bool {
	return getBool(c.Watch, false)
}

// ConfigFilenames contains the possible config file names, in search
// order.
var ConfigFilenames = []string{
	".shtest.yaml",
	".shtest.yml",
	"shtest.yaml",
}

// LoadConfig loads configuration from the specified path, or searches the
// current directory when path is empty. A .env file next to the config is
// loaded into the process environment first, so config values and suite
// subprocesses see it.
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		loadDotEnv(filepath.Dir(path))
		return loadConfigFromFile(path)
	}
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory and
// returns defaults when none is found.
func FindAndLoadConfig(dir string) (*Config, error) {
	loadDotEnv(dir)
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}
	return &Config{}, nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return config, nil
}

// loadDotEnv loads dir/.env if present. Absence is not an error;
// anything else is surfaced on stderr but never fatal.
func loadDotEnv(dir string) {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		fmt.Fprintf(os.Stderr, "warning: loading %s: %v\n", path, err)
	}
}
