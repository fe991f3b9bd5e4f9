// loader.go — Configuration loading with priority cascade.
// Priority: defaults < global config < project config < env vars < flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid_config")

// Config holds all resolved configuration values.
type Config struct {
	Browser            BrowserConfig `yaml:"browser"`
	Window             time.Duration `yaml:"window"`
	Timeout            time.Duration `yaml:"timeout"`
	ScriptFetchTimeout time.Duration `yaml:"script_fetch_timeout"`
	MaxScripts         int           `yaml:"max_scripts"`
	PatternsFile       string        `yaml:"patterns_file"`
	Output             OutputConfig  `yaml:"output"`
	Log                LogConfig     `yaml:"log"`
}

// BrowserConfig selects how Chrome is reached.
type BrowserConfig struct {
	Bin        string `yaml:"bin"`
	Headless   bool   `yaml:"headless"`
	ControlURL string `yaml:"control_url"`
}

// OutputConfig selects where reports go. Empty paths disable that sink.
type OutputConfig struct {
	Format     string `yaml:"format"`
	JSONPath   string `yaml:"json_path"`
	HARPath    string `yaml:"har_path"`
	SQLitePath string `yaml:"sqlite_path"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// FlagOverrides holds values explicitly set via command-line flags.
// Nil pointer means the flag was not set (so lower-priority values are kept).
type FlagOverrides struct {
	Bin                *string
	Headless           *bool
	ControlURL         *string
	Window             *time.Duration
	Timeout            *time.Duration
	ScriptFetchTimeout *time.Duration
	MaxScripts         *int
	PatternsFile       *string
	Format             *string
	JSONPath           *string
	HARPath            *string
	SQLitePath         *string
	LogLevel           *string
	LogFormat          *string
}

// Defaults returns the base configuration.
func Defaults() Config {
	return Config{
		Browser:            BrowserConfig{Headless: true},
		Window:             3 * time.Second,
		Timeout:            30 * time.Second,
		ScriptFetchTimeout: 10 * time.Second,
		MaxScripts:         25,
		Output:             OutputConfig{Format: "human"},
		Log:                LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the final configuration by applying the priority cascade:
// defaults < global (~/.pagediag/config.yaml) < project (.pagediag.yaml) < env vars < flags.
// When configFile is set it replaces the project file and must exist.
func Load(projectDir, configFile string, flags *FlagOverrides) (Config, error) {
	cfg := Defaults()

	home, err := os.UserHomeDir()
	if err == nil {
		if err := loadGlobalConfig(&cfg, filepath.Join(home, ".pagediag")); err != nil {
			return cfg, fmt.Errorf("global config: %w", err)
		}
	}

	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return cfg, fmt.Errorf("config file: %w", err)
		}
		if err := loadYAMLFile(&cfg, configFile); err != nil {
			return cfg, fmt.Errorf("config file: %w", err)
		}
	} else if err := loadProjectConfig(&cfg, projectDir); err != nil {
		return cfg, fmt.Errorf("project config: %w", err)
	}

	loadEnvVars(&cfg, os.Getenv)

	if flags != nil {
		applyFlags(&cfg, flags)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func loadGlobalConfig(cfg *Config, dir string) error {
	return loadYAMLFile(cfg, filepath.Join(dir, "config.yaml"))
}

func loadProjectConfig(cfg *Config, dir string) error {
	return loadYAMLFile(cfg, filepath.Join(dir, ".pagediag.yaml"))
}

// fileConfig uses pointers to distinguish "not set" from zero values.
// Durations are Go duration strings ("3s", "1m30s").
type fileConfig struct {
	Browser *struct {
		Bin        *string `yaml:"bin"`
		Headless   *bool   `yaml:"headless"`
		ControlURL *string `yaml:"control_url"`
	} `yaml:"browser"`
	Window             *string `yaml:"window"`
	Timeout            *string `yaml:"timeout"`
	ScriptFetchTimeout *string `yaml:"script_fetch_timeout"`
	MaxScripts         *int    `yaml:"max_scripts"`
	PatternsFile       *string `yaml:"patterns_file"`
	Output             *struct {
		Format     *string `yaml:"format"`
		JSONPath   *string `yaml:"json_path"`
		HARPath    *string `yaml:"har_path"`
		SQLitePath *string `yaml:"sqlite_path"`
	} `yaml:"output"`
	Log *struct {
		Level  *string `yaml:"level"`
		Format *string `yaml:"format"`
	} `yaml:"log"`
}

// loadYAMLFile reads a YAML config file and merges the fields it sets into cfg.
// A missing file is not an error.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if b := fc.Browser; b != nil {
		setString(&cfg.Browser.Bin, b.Bin)
		setString(&cfg.Browser.ControlURL, b.ControlURL)
		if b.Headless != nil {
			cfg.Browser.Headless = *b.Headless
		}
	}
	for _, d := range []struct {
		name string
		src  *string
		dst  *time.Duration
	}{
		{"window", fc.Window, &cfg.Window},
		{"timeout", fc.Timeout, &cfg.Timeout},
		{"script_fetch_timeout", fc.ScriptFetchTimeout, &cfg.ScriptFetchTimeout},
	} {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("parse %s: %s: %w", path, d.name, err)
		}
		*d.dst = v
	}
	if fc.MaxScripts != nil {
		cfg.MaxScripts = *fc.MaxScripts
	}
	setString(&cfg.PatternsFile, fc.PatternsFile)
	if o := fc.Output; o != nil {
		setString(&cfg.Output.Format, o.Format)
		setString(&cfg.Output.JSONPath, o.JSONPath)
		setString(&cfg.Output.HARPath, o.HARPath)
		setString(&cfg.Output.SQLitePath, o.SQLitePath)
	}
	if l := fc.Log; l != nil {
		setString(&cfg.Log.Level, l.Level)
		setString(&cfg.Log.Format, l.Format)
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// loadEnvVars applies PAGEDIAG_* environment overrides. Unparseable values
// are ignored.
func loadEnvVars(cfg *Config, getenv func(string) string) {
	if v := getenv("PAGEDIAG_BROWSER_BIN"); v != "" {
		cfg.Browser.Bin = v
	}
	if v := getenv("PAGEDIAG_CONTROL_URL"); v != "" {
		cfg.Browser.ControlURL = v
	}
	if v := getenv("PAGEDIAG_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Browser.Headless = b
		}
	}
	if v := getenv("PAGEDIAG_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Window = d
		}
	}
	if v := getenv("PAGEDIAG_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = d
		}
	}
	if v := getenv("PAGEDIAG_MAX_SCRIPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxScripts = n
		}
	}
	if v := getenv("PAGEDIAG_PATTERNS"); v != "" {
		cfg.PatternsFile = v
	}
	if v := getenv("PAGEDIAG_FORMAT"); v != "" {
		cfg.Output.Format = v
	}
	if v := getenv("PAGEDIAG_SQLITE"); v != "" {
		cfg.Output.SQLitePath = v
	}
	if v := getenv("PAGEDIAG_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// applyFlags applies command-line flag overrides (highest priority).
func applyFlags(cfg *Config, flags *FlagOverrides) {
	setString(&cfg.Browser.Bin, flags.Bin)
	setString(&cfg.Browser.ControlURL, flags.ControlURL)
	if flags.Headless != nil {
		cfg.Browser.Headless = *flags.Headless
	}
	if flags.Window != nil {
		cfg.Window = *flags.Window
	}
	if flags.Timeout != nil {
		cfg.Timeout = *flags.Timeout
	}
	if flags.ScriptFetchTimeout != nil {
		cfg.ScriptFetchTimeout = *flags.ScriptFetchTimeout
	}
	if flags.MaxScripts != nil {
		cfg.MaxScripts = *flags.MaxScripts
	}
	setString(&cfg.PatternsFile, flags.PatternsFile)
	setString(&cfg.Output.Format, flags.Format)
	setString(&cfg.Output.JSONPath, flags.JSONPath)
	setString(&cfg.Output.HARPath, flags.HARPath)
	setString(&cfg.Output.SQLitePath, flags.SQLitePath)
	setString(&cfg.Log.Level, flags.LogLevel)
	setString(&cfg.Log.Format, flags.LogFormat)
}

// Validate checks that configuration values are within acceptable ranges.
func (c Config) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %s", ErrInvalidConfig, c.Window)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidConfig, c.Timeout)
	}
	if c.Window > c.Timeout {
		return fmt.Errorf("%w: window %s exceeds timeout %s", ErrInvalidConfig, c.Window, c.Timeout)
	}
	if c.ScriptFetchTimeout <= 0 {
		return fmt.Errorf("%w: script_fetch_timeout must be positive, got %s", ErrInvalidConfig, c.ScriptFetchTimeout)
	}
	if c.MaxScripts < 1 {
		return fmt.Errorf("%w: max_scripts must be at least 1, got %d", ErrInvalidConfig, c.MaxScripts)
	}

	validFormats := map[string]bool{"human": true, "json": true}
	if !validFormats[c.Output.Format] {
		return fmt.Errorf("%w: format must be human or json, got %q", ErrInvalidConfig, c.Output.Format)
	}
	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[strings.ToLower(c.Log.Format)] {
		return fmt.Errorf("%w: log.format must be text or json, got %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}
