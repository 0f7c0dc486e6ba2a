// Package config loads clego's configuration: the sibling-tool install
// root, library search directories, the default Extractor choice, the
// subprocess deadline, and the override-policy script path. Precedence
// is CLI flags over the config file over these built-in defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file clego looks for when --config isn't
// given.
const DefaultPath = "clego.yaml"

// Config is the on-disk shape of clego.yaml.
type Config struct {
	EnvRoot              string   `yaml:"env_root"`
	SearchDirs           []string `yaml:"search_dirs"`
	Extractor            string   `yaml:"extractor"` // "native" or "subprocess"
	ContextDeadlineMs    int      `yaml:"context_deadline_ms"`
	OverridePolicyScript string   `yaml:"override_policy_script"`
	NoColor              bool     `yaml:"no_color"`
}

// Defaults returns the built-in configuration used when no file is
// present and no flag overrides a field. EnvRoot falls back to
// $VIRTUAL_ENV, the sibling-tool install root the original source
// itself reads it from.
func Defaults() *Config {
	return &Config{
		EnvRoot:           os.Getenv("VIRTUAL_ENV"),
		Extractor:         "native",
		ContextDeadlineMs: 30_000,
	}
}

// Load reads path as YAML over top of Defaults(). A missing file at
// the default path is not an error -- Load returns the defaults
// unchanged; a missing file at an explicitly requested path is.
func Load(path string, explicit bool) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Deadline returns ContextDeadlineMs as a time.Duration.
func (c *Config) Deadline() time.Duration {
	return time.Duration(c.ContextDeadlineMs) * time.Millisecond
}

// SearchPath joins SearchDirs into the colon-separated form the
// resolver's fallback search expects.
func (c *Config) SearchPath() string {
	out := ""
	for i, d := range c.SearchDirs {
		if i > 0 {
			out += ":"
		}
		out += d
	}
	return out
}
