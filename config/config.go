/*
Package config manages the TOML configuration of the translator.

A configuration lists the feature functions as Moses-style feature lines,
their weights keyed by feature name, and the search parameters:

	features = [
	  "PhraseMemory name=TM0 path=pm.db table-limit=20",
	  "InterpolatedLM name=LM0 path=lm.arpa order=3",
	  "WordPenalty",
	]

	[weights]
	TM0 = [0.2, 0.2, 0.2, 0.2]
	LM0 = [0.5]

	[decoder]
	beam_width = 10.0
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

// Config holds the entire config structure.
type Config struct {
	Decoder  DecoderConfig        `toml:"decoder"`
	Log      LogConfig            `toml:"log"`
	Features []string             `toml:"features"`
	Weights  map[string][]float64 `toml:"weights"`

	// Dir is the directory relative feature paths are resolved against.
	Dir string `toml:"-"`
}

// DecoderConfig holds search options.
type DecoderConfig struct {
	BeamWidth    float64 `toml:"beam_width"`
	MaxStackSize int     `toml:"max_stack_size"`
	Workers      int     `toml:"workers"`
}

// LogConfig holds logging options.
type LogConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"` // text, json or logfmt
	Timestamps bool   `toml:"timestamps"`
}

// Formatter maps Format to a charm log formatter.
func (c LogConfig) Formatter() (log.Formatter, error) {
	switch c.Format {
	case "", "text":
		return log.TextFormatter, nil
	case "json":
		return log.JSONFormatter, nil
	case "logfmt":
		return log.LogfmtFormatter, nil
	}
	return log.TextFormatter, fmt.Errorf("unknown log format %q", c.Format)
}

// DefaultConfig returns the builtin defaults. It has no features.
func DefaultConfig() *Config {
	return &Config{
		Decoder: DecoderConfig{
			BeamWidth:    10.0,
			MaxStackSize: 100,
			Workers:      4,
		},
		Log:     LogConfig{Level: "info", Format: "text"},
		Weights: make(map[string][]float64),
		Dir:     ".",
	}
}

// Load reads the TOML file at path on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Dir = filepath.Dir(path)
	log.Debug("loaded config", "path", path, "features", len(cfg.Features))
	return cfg, nil
}

// Parse decodes TOML text on top of the defaults. Unknown keys are errors.
func Parse(data string) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.Decode(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Decoder.BeamWidth <= 0 {
		return fmt.Errorf("decoder.beam_width must be positive, got %v", c.Decoder.BeamWidth)
	}
	if c.Decoder.MaxStackSize < 1 {
		return fmt.Errorf("decoder.max_stack_size must be at least 1, got %d", c.Decoder.MaxStackSize)
	}
	if c.Decoder.Workers < 1 {
		return fmt.Errorf("decoder.workers must be at least 1, got %d", c.Decoder.Workers)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if _, err := c.Log.Formatter(); err != nil {
		return fmt.Errorf("log.format: %w", err)
	}
	for i, line := range c.Features {
		if strings.TrimSpace(line) == "" {
			return fmt.Errorf("features[%d] is empty", i)
		}
	}
	return nil
}

// Resolve returns path relative to the config directory unless it is
// absolute.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir, path)
}

// Save writes the configuration as TOML.
func (c *Config) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		f.Close()
		return fmt.Errorf("encode config: %w", err)
	}
	return f.Close()
}
