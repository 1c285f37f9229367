// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/modforge/core/formatter"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Input   InputConfig   `yaml:"input"`
	Output  OutputConfig  `yaml:"output"`
	Compile CompileConfig `yaml:"compile"`
	Watch   WatchConfig   `yaml:"watch"`
	Server  ServerConfig  `yaml:"server"`
	History HistoryConfig `yaml:"history"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// InputConfig names the module definition files and directories.
type InputConfig struct {
	Paths []string `yaml:"paths"`
}

// OutputConfig configures where and how artifacts are written.
type OutputConfig struct {
	Dir      string   `yaml:"dir"`      // Empty writes the combined result to stdout
	Format   string   `yaml:"format"`   // "json", "yaml" or "table"
	Sections []string `yaml:"sections"` // Subset of validation, persistence, populations
	Compact  bool     `yaml:"compact"`
}

// CompileConfig configures the compiler.
type CompileConfig struct {
	Parallelism int           `yaml:"parallelism"` // 0 means GOMAXPROCS
	Timeout     time.Duration `yaml:"timeout"`
}

// WatchConfig configures source watching.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// ServerConfig configures the preview HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// APIBasePath prefixes collection paths in the served OpenAPI document.
	APIBasePath string `yaml:"api_base_path"`
}

// HistoryConfig configures the build history database.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Driver  string `yaml:"driver"` // "sqlite" or "memory"
	DSN     string `yaml:"dsn"`    // SQLite database path
	Keep    int    `yaml:"keep"`   // Builds retained after each compile, 0 keeps all
}

// History drivers.
const (
	HistorySQLite = "sqlite"
	HistoryMemory = "memory"
)

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`  // Enable /metrics endpoint
	Path     string `yaml:"path"`     // Custom path (default: /metrics)
	Textfile string `yaml:"textfile"` // Write metrics here after one-shot compiles
}

// Addr returns the server listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// Load reads configuration from a YAML file. Relative input paths are
// resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	base := filepath.Dir(path)
	for i, p := range cfg.Input.Paths {
		if !filepath.IsAbs(p) {
			cfg.Input.Paths[i] = filepath.Join(base, p)
		}
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	MODFORGE_INPUT            - Comma-separated module paths (default: modules)
//	MODFORGE_OUTPUT_DIR       - Artifact directory (default: stdout)
//	MODFORGE_OUTPUT_FORMAT    - json, yaml or table (default: json)
//	MODFORGE_PARALLELISM      - Modules compiled at once (default: GOMAXPROCS)
//	MODFORGE_SERVER_HOST      - Server host (default: 127.0.0.1)
//	MODFORGE_SERVER_PORT      - Server port (default: 8420)
//	MODFORGE_HISTORY_ENABLED  - Record builds in SQLite (default: false)
//	MODFORGE_HISTORY_DRIVER   - History backend: sqlite or memory (default: sqlite)
//	MODFORGE_HISTORY_DSN      - History database path (default: modforge.db)
//	MODFORGE_LOG_LEVEL        - Log level: debug, info, warn, error (default: info)
//	MODFORGE_LOG_FORMAT       - Log format: json or console (default: console)
//	MODFORGE_METRICS_ENABLED  - Enable /metrics endpoint (default: false)
//	MODFORGE_METRICS_TEXTFILE - Write metrics to this file after compile
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback loads path when it exists and falls back to environment
// variables and defaults otherwise.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies MODFORGE_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MODFORGE_INPUT"); v != "" {
		cfg.Input.Paths = splitList(v)
	}

	// Output configuration
	if v := os.Getenv("MODFORGE_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("MODFORGE_OUTPUT_FORMAT"); v != "" {
		cfg.Output.Format = v
	}
	if v := os.Getenv("MODFORGE_OUTPUT_SECTIONS"); v != "" {
		cfg.Output.Sections = splitList(v)
	}

	// Compile configuration
	if v := os.Getenv("MODFORGE_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Compile.Parallelism = n
		}
	}
	if v := os.Getenv("MODFORGE_COMPILE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Compile.Timeout = d
		}
	}
	if v := os.Getenv("MODFORGE_WATCH_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Watch.Debounce = d
		}
	}

	// Server configuration
	if v := os.Getenv("MODFORGE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("MODFORGE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	// History configuration
	if v := os.Getenv("MODFORGE_HISTORY_ENABLED"); v != "" {
		cfg.History.Enabled = parseBool(v)
	}
	if v := os.Getenv("MODFORGE_HISTORY_DRIVER"); v != "" {
		cfg.History.Driver = v
	}
	if v := os.Getenv("MODFORGE_HISTORY_DSN"); v != "" {
		cfg.History.DSN = v
	}
	if v := os.Getenv("MODFORGE_HISTORY_KEEP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.History.Keep = n
		}
	}

	// Logging configuration
	if v := os.Getenv("MODFORGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MODFORGE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("MODFORGE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("MODFORGE_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
	if v := os.Getenv("MODFORGE_METRICS_TEXTFILE"); v != "" {
		cfg.Metrics.Textfile = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func setDefaults(cfg *Config) {
	if len(cfg.Input.Paths) == 0 {
		cfg.Input.Paths = []string{"modules"}
	}

	if cfg.Output.Format == "" {
		cfg.Output.Format = "json"
	}

	if cfg.Compile.Timeout == 0 {
		cfg.Compile.Timeout = 30 * time.Second
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 200 * time.Millisecond
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8420
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}

	if cfg.History.Driver == "" {
		cfg.History.Driver = HistorySQLite
	}
	if cfg.History.DSN == "" {
		cfg.History.DSN = "modforge.db"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	if _, ok := formatter.Get(cfg.Output.Format); !ok {
		return fmt.Errorf("output.format must be one of: %s, got %q",
			strings.Join(formatter.List(), ", "), cfg.Output.Format)
	}

	validSections := map[string]bool{
		string(formatter.SectionValidation):  true,
		string(formatter.SectionPersistence): true,
		string(formatter.SectionPopulations): true,
	}
	for i, s := range cfg.Output.Sections {
		if !validSections[s] {
			return fmt.Errorf("output.sections[%d]: unknown section %q", i, s)
		}
	}

	if cfg.Compile.Parallelism < 0 {
		return fmt.Errorf("compile.parallelism must not be negative")
	}
	if cfg.Compile.Timeout < 0 {
		return fmt.Errorf("compile.timeout must not be negative")
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	if cfg.History.Driver != HistorySQLite && cfg.History.Driver != HistoryMemory {
		return fmt.Errorf("history.driver must be '%s' or '%s', got %q",
			HistorySQLite, HistoryMemory, cfg.History.Driver)
	}
	if cfg.History.Keep < 0 {
		return fmt.Errorf("history.keep must not be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if cfg.Server.APIBasePath != "" && !strings.HasPrefix(cfg.Server.APIBasePath, "/") {
		return fmt.Errorf("server.api_base_path must start with '/'")
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/'")
	}

	return nil
}

// FormatOptions converts the output settings for the formatter.
func (o OutputConfig) FormatOptions() formatter.FormatOptions {
	opts := formatter.FormatOptions{Compact: o.Compact}
	for _, s := range o.Sections {
		opts.Sections = append(opts.Sections, formatter.Section(s))
	}
	return opts
}
