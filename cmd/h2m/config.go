package main

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/rgonek/html-md-bridge/adapter"
	"github.com/rgonek/html-md-bridge/mdast"
)

const (
	envPrefix     = "H2M_"
	defaultJobs   = 4
	defaultFormat = string(mdast.FormatMarkdown)
)

// Config is the resolved CLI configuration.
type Config struct {
	Preset    string   `koanf:"preset" yaml:"preset"`
	Document  *bool    `koanf:"document" yaml:"document,omitempty"`
	Newlines  *bool    `koanf:"newlines" yaml:"newlines,omitempty"`
	Checked   string   `koanf:"checked" yaml:"checked,omitempty"`
	Unchecked string   `koanf:"unchecked" yaml:"unchecked,omitempty"`
	Quotes    []string `koanf:"quotes" yaml:"quotes,omitempty"`
	Fragment  bool     `koanf:"fragment" yaml:"fragment"`
	Jobs      int      `koanf:"jobs" yaml:"jobs"`
	OutDir    string   `koanf:"out_dir" yaml:"out_dir,omitempty"`
	Format    string   `koanf:"format" yaml:"format"`
	Verbose   bool     `koanf:"verbose" yaml:"verbose"`
}

// loadConfig loads configuration from defaults, an optional YAML file,
// H2M_* environment variables and explicitly set flags, in increasing
// order of precedence.
func loadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"preset":  presetBalanced,
		"jobs":    defaultJobs,
		"format":  defaultFormat,
		"verbose": false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// H2M_OUT_DIR -> out_dir, H2M_QUOTES="“”,‘’" -> quotes
	if err := k.Load(env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
		if key == "quotes" {
			return key, strings.Split(value, ",")
		}
		return key, value
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the CLI itself owns. Conversion options are
// validated by the converter.
func (c *Config) Validate() error {
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", c.Jobs)
	}
	if _, err := mdast.Compiler(mdast.Format(c.Format)); err != nil {
		return err
	}
	if _, err := presetOptions(c.Preset); err != nil {
		return err
	}
	return nil
}

// Options returns the conversion options: the preset, overlaid with every
// option set explicitly. Document stays nil unless set so the adapter can
// apply its default.
func (c *Config) Options() (adapter.Options, error) {
	opts, err := presetOptions(c.Preset)
	if err != nil {
		return adapter.Options{}, err
	}
	if c.Document != nil {
		document := *c.Document
		opts.Document = &document
	}
	if c.Newlines != nil {
		opts.Newlines = *c.Newlines
	}
	if c.Checked != "" {
		opts.Checked = c.Checked
	}
	if c.Unchecked != "" {
		opts.Unchecked = c.Unchecked
	}
	if len(c.Quotes) > 0 {
		opts.Quotes = append([]string(nil), c.Quotes...)
	}
	return opts, nil
}

// Extension returns the output file extension for the configured format.
func (c *Config) Extension() string {
	if mdast.Format(c.Format) == mdast.FormatHTML {
		return ".html"
	}
	return ".md"
}
