// internal/config/config.go
package config

import (
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"gopkg.in/yaml.v3"
)

const FileName = "config.yaml"

type Config struct {
	LogLevel string `yaml:"log_level"` // debug, info, warn, error
	Color    string `yaml:"color"`     // auto, always, never

	Diff struct {
		ContextLines int `yaml:"context_lines"`
		// Inputs whose line-count product exceeds this use the Myers fallback.
		MaxLCSCells int `yaml:"max_lcs_cells"`
	} `yaml:"diff"`

	Store struct {
		CacheSize        int `yaml:"cache_size"`
		CompressMinSize  int `yaml:"compress_min_size"`
		CompressionLevel int `yaml:"compression_level"` // 1=fastest, 4=best
	} `yaml:"store"`
}

func Default() *Config {
	cfg := &Config{
		LogLevel: "warn",
		Color:    "auto",
	}
	cfg.Diff.ContextLines = 3
	cfg.Diff.MaxLCSCells = 4_000_000
	cfg.Store.CacheSize = 256
	cfg.Store.CompressMinSize = 1024
	cfg.Store.CompressionLevel = 2
	return cfg
}

// Load reads name from fs over the defaults. A missing file is not an error.
func Load(fs billy.Filesystem, name string) (*Config, error) {
	data, err := util.ReadFile(fs, name)
	if os.IsNotExist(err) {
		return applyEnv(Default()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return applyEnv(cfg), nil
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("invalid color mode %q", c.Color)
	}
	if c.Diff.ContextLines < 0 {
		return fmt.Errorf("diff.context_lines must not be negative")
	}
	if c.Store.CacheSize <= 0 {
		return fmt.Errorf("store.cache_size must be positive")
	}
	if c.Store.CompressionLevel < 1 || c.Store.CompressionLevel > 4 {
		return fmt.Errorf("store.compression_level must be between 1 and 4")
	}
	return nil
}

func Marshal(c *Config) ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

func applyEnv(c *Config) *Config {
	if v := os.Getenv("MINIVCS_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("MINIVCS_COLOR"); v != "" {
		c.Color = v
	}
	return c
}
