package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-prime-paths/internal/log"
	"github.com/l3aro/go-prime-paths/internal/scanner"
	"github.com/l3aro/go-prime-paths/pkg/primepath"
)

// Config holds all configuration for gpp
type Config struct {
	// OutputDir is the artifact root, a local path or an afs URL (file://, mem://)
	OutputDir string `yaml:"output_dir" env:"GPP_OUTPUT_DIR"`

	// Path extraction
	MaxVisits int `yaml:"max_visits" env:"GPP_MAX_VISITS"`
	Workers   int `yaml:"workers" env:"GPP_WORKERS"`

	// Contract also writes contracted graphs next to the raw CFGs
	Contract bool `yaml:"contract" env:"GPP_CONTRACT"`

	// CFG cache
	CacheFile string `yaml:"cache_file" env:"GPP_CACHE_FILE"`
	CacheSize int    `yaml:"cache_size" env:"GPP_CACHE_SIZE"`

	// Logging
	LogLevel string `yaml:"log_level" env:"GPP_LOG_LEVEL"`
	LogJSON  bool   `yaml:"log_json" env:"GPP_LOG_JSON"`

	// Languages restricts which source files are scanned
	Languages []string `yaml:"languages" env:"GPP_LANGUAGES"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		OutputDir: "gpp-out",
		MaxVisits: primepath.MaxVisits,
		Workers:   0, // 0 means one worker per CPU
		Contract:  false,
		CacheFile: filepath.Join(".gpp", "cache.msgpack"),
		CacheSize: 1000,
		LogLevel:  "info",
		LogJSON:   false,
		Languages: scanner.SupportedLanguages(),
	}
}

// GlobalConfigFilePath returns the global config file path (~/.gpp/config.yaml)
func GlobalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".gpp", "config.yaml")
	}
	return filepath.Join(home, ".gpp", "config.yaml")
}

// ProjectConfigFilePath returns the project-level config file path (./.gpp/config.yaml)
func ProjectConfigFilePath() string {
	return filepath.Join(".gpp", "config.yaml")
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables
// 2. Project-level config (./.gpp/config.yaml)
// 3. Global config (~/.gpp/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range []string{GlobalConfigFilePath(), ProjectConfigFilePath()} {
		if err := mergeFile(cfg, path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := mergeFile(cfg, path); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// mergeFile unmarshals path over cfg. A missing file is reported as is so callers
// can tell it apart from a parse failure.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return err
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("GPP_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("GPP_MAX_VISITS"); v != "" {
		i, err := parseInt(v)
		if err != nil {
			return fmt.Errorf("GPP_MAX_VISITS: %w", err)
		}
		cfg.MaxVisits = i
	}
	if v := os.Getenv("GPP_WORKERS"); v != "" {
		i, err := parseInt(v)
		if err != nil {
			return fmt.Errorf("GPP_WORKERS: %w", err)
		}
		cfg.Workers = i
	}
	if v := os.Getenv("GPP_CONTRACT"); v != "" {
		cfg.Contract = parseBool(v)
	}
	if v := os.Getenv("GPP_CACHE_FILE"); v != "" {
		cfg.CacheFile = v
	}
	if v := os.Getenv("GPP_CACHE_SIZE"); v != "" {
		i, err := parseInt(v)
		if err != nil {
			return fmt.Errorf("GPP_CACHE_SIZE: %w", err)
		}
		cfg.CacheSize = i
	}
	if v := os.Getenv("GPP_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("GPP_LOG_JSON"); v != "" {
		cfg.LogJSON = parseBool(v)
	}
	if v := os.Getenv("GPP_LANGUAGES"); v != "" {
		var langs []string
		for _, l := range strings.Split(v, ",") {
			if l = strings.TrimSpace(l); l != "" {
				langs = append(langs, l)
			}
		}
		cfg.Languages = langs
	}
	return nil
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir is required")
	}
	if c.MaxVisits < 1 {
		return fmt.Errorf("max_visits must be at least 1")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must be non-negative")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	supported := make(map[string]bool)
	for _, l := range scanner.SupportedLanguages() {
		supported[l] = true
	}
	for _, l := range c.Languages {
		if !supported[l] {
			return fmt.Errorf("invalid language: %s (must be one of %s)", l, strings.Join(scanner.SupportedLanguages(), ", "))
		}
	}

	return nil
}

// Level returns the parsed log level. It assumes Validate has passed.
func (c *Config) Level() log.Level {
	level, _ := log.ParseLevel(c.LogLevel)
	return level
}

// parseInt attempts to parse a string as int
func parseInt(s string) (int, error) {
	var i int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &i); err != nil {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return i, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true
	}
	return false
}
