// loader_test.go — Tests for configuration loading cascade.
// Tests priority: defaults < config.yaml < .pagediag.yaml < env vars < flags.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestDefaults(t *testing.T) {
	t.Parallel()
	cfg := Defaults()

	if cfg.Window != 3*time.Second {
		t.Errorf("expected default window 3s, got %s", cfg.Window)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %s", cfg.Timeout)
	}
	if cfg.Output.Format != "human" {
		t.Errorf("expected default format 'human', got %q", cfg.Output.Format)
	}
	if !cfg.Browser.Headless {
		t.Error("expected headless by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate, got %v", err)
	}
}

func TestLoadProjectConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".pagediag.yaml"), `
browser:
  headless: false
  control_url: ws://127.0.0.1:9222/devtools/browser/x
window: 5s
timeout: 1m
max_scripts: 4
output:
  format: json
  sqlite_path: reports.db
log:
  level: debug
`)

	cfg := Defaults()
	if err := loadProjectConfig(&cfg, dir); err != nil {
		t.Fatalf("loadProjectConfig failed: %v", err)
	}

	if cfg.Browser.Headless {
		t.Error("expected headless false")
	}
	if cfg.Browser.ControlURL != "ws://127.0.0.1:9222/devtools/browser/x" {
		t.Errorf("control_url = %q", cfg.Browser.ControlURL)
	}
	if cfg.Window != 5*time.Second || cfg.Timeout != time.Minute {
		t.Errorf("window/timeout = %s/%s", cfg.Window, cfg.Timeout)
	}
	if cfg.MaxScripts != 4 {
		t.Errorf("max_scripts = %d, want 4", cfg.MaxScripts)
	}
	if cfg.Output.Format != "json" || cfg.Output.SQLitePath != "reports.db" {
		t.Errorf("output = %+v", cfg.Output)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("log = %+v, want level debug with default format", cfg.Log)
	}
	// Unset fields keep their defaults.
	if cfg.ScriptFetchTimeout != 10*time.Second {
		t.Errorf("script_fetch_timeout = %s, want default", cfg.ScriptFetchTimeout)
	}
}

func TestLoadProjectConfigMissing(t *testing.T) {
	t.Parallel()
	cfg := Defaults()
	if err := loadProjectConfig(&cfg, t.TempDir()); err != nil {
		t.Fatalf("missing config should not error, got: %v", err)
	}
	if cfg != Defaults() {
		t.Errorf("missing config changed values: %+v", cfg)
	}
}

func TestLoadProjectConfigErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad yaml", "window: [", "parse"},
		{"bad duration", "timeout: soon", "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, ".pagediag.yaml"), tt.content)
			cfg := Defaults()
			err := loadProjectConfig(&cfg, dir)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadEnvVars(t *testing.T) {
	t.Parallel()
	env := map[string]string{
		"PAGEDIAG_HEADLESS":    "false",
		"PAGEDIAG_WINDOW":      "2s",
		"PAGEDIAG_TIMEOUT":     "not-a-duration",
		"PAGEDIAG_MAX_SCRIPTS": "7",
		"PAGEDIAG_FORMAT":      "json",
		"PAGEDIAG_LOG_LEVEL":   "warn",
	}
	cfg := Defaults()
	loadEnvVars(&cfg, func(k string) string { return env[k] })

	if cfg.Browser.Headless {
		t.Error("expected headless false from env")
	}
	if cfg.Window != 2*time.Second {
		t.Errorf("window = %s, want 2s", cfg.Window)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("invalid env timeout must be ignored, got %s", cfg.Timeout)
	}
	if cfg.MaxScripts != 7 || cfg.Output.Format != "json" || cfg.Log.Level != "warn" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestApplyFlags(t *testing.T) {
	t.Parallel()
	format := "json"
	window := 500 * time.Millisecond
	har := "out/%s.har"

	cfg := Defaults()
	applyFlags(&cfg, &FlagOverrides{Format: &format, Window: &window, HARPath: &har})

	if cfg.Output.Format != "json" || cfg.Window != window || cfg.Output.HARPath != har {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if cfg.Timeout != 30*time.Second {
		t.Error("unset flag changed timeout")
	}
}

func TestLoadCascade(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("PAGEDIAG_TIMEOUT", "45s")

	writeFile(t, filepath.Join(home, ".pagediag", "config.yaml"), "window: 4s\ntimeout: 20s\nmax_scripts: 3\n")
	writeFile(t, filepath.Join(project, ".pagediag.yaml"), "max_scripts: 9\n")

	format := "json"
	cfg, err := Load(project, "", &FlagOverrides{Format: &format})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Window != 4*time.Second {
		t.Errorf("global window = %s, want 4s", cfg.Window)
	}
	if cfg.MaxScripts != 9 {
		t.Errorf("project must override global, max_scripts = %d", cfg.MaxScripts)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("env must override files, timeout = %s", cfg.Timeout)
	}
	if cfg.Output.Format != "json" {
		t.Errorf("flag must override all, format = %q", cfg.Output.Format)
	}
}

func TestLoadRejectsZeroMaxScripts(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	project := t.TempDir()
	writeFile(t, filepath.Join(project, ".pagediag.yaml"), "max_scripts: 0\n")

	_, err := Load(project, "", nil)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
	}
}

func TestLoadExplicitConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	project := t.TempDir()
	writeFile(t, filepath.Join(project, ".pagediag.yaml"), "max_scripts: 9\n")
	explicit := filepath.Join(t.TempDir(), "ci.yaml")
	writeFile(t, explicit, "max_scripts: 2\n")

	cfg, err := Load(project, explicit, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxScripts != 2 {
		t.Errorf("explicit file must replace project file, max_scripts = %d", cfg.MaxScripts)
	}

	if _, err := Load(project, filepath.Join(project, "nope.yaml"), nil); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero window", func(c *Config) { c.Window = 0 }, "window"},
		{"window exceeds timeout", func(c *Config) { c.Window = time.Hour }, "exceeds"},
		{"zero fetch timeout", func(c *Config) { c.ScriptFetchTimeout = 0 }, "script_fetch_timeout"},
		{"negative max scripts", func(c *Config) { c.MaxScripts = -1 }, "max_scripts"},
		{"zero max scripts", func(c *Config) { c.MaxScripts = 0 }, "max_scripts must be at least 1"},
		{"bad format", func(c *Config) { c.Output.Format = "csv" }, "format"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() = %v, want ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
