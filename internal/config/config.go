// Package config reads the optional tendril.yaml of a wiki directory.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is looked up in the wiki directory.
const FileName = "tendril.yaml"

// Store kinds.
const (
	StoreLoam   = "loam"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// Config is the structure of tendril.yaml.
type Config struct {
	LogLevel     string  `yaml:"log_level"`
	DefaultTitle string  `yaml:"default_title"`
	Format       string  `yaml:"format"`
	Store        Store   `yaml:"store"`
	Grammar      Grammar `yaml:"grammar"`
}

// Store selects the durable backend.
type Store struct {
	Kind       string `yaml:"kind"`
	RedisAddr  string `yaml:"redis_addr"`
	RedisDB    int    `yaml:"redis_db"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Grammar adjusts the default grammar.
type Grammar struct {
	DisabledRules []string `yaml:"disabled_rules"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		LogLevel:     "info",
		DefaultTitle: "Home",
		Format:       "text/html",
		Store: Store{
			Kind:       StoreLoam,
			RedisAddr:  "localhost:6379",
			SQLitePath: "tendril.db",
		},
	}
}

// Load reads dir/tendril.yaml over the defaults. A missing file is not an error.
// A relative sqlite_path is resolved against dir.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			cfg.resolve(dir)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.resolve(dir)
	return cfg, nil
}

// Parse decodes YAML over the defaults, rejecting unknown keys.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the store kind.
func (c *Config) Validate() error {
	switch c.Store.Kind {
	case StoreLoam, StoreRedis, StoreSQLite:
		return nil
	default:
		return fmt.Errorf("unknown store kind %q (want %s, %s or %s)", c.Store.Kind, StoreLoam, StoreRedis, StoreSQLite)
	}
}

func (c *Config) resolve(dir string) {
	if c.Store.SQLitePath != "" && !filepath.IsAbs(c.Store.SQLitePath) {
		c.Store.SQLitePath = filepath.Join(dir, c.Store.SQLitePath)
	}
}
