package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/artpar/modforge/config"
	"github.com/artpar/modforge/core/formatter"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
input:
  paths: ["modules", "/abs/shared.yaml"]

output:
  dir: "build"
  format: "yaml"
  sections: ["validation", "populations"]
  compact: true

compile:
  parallelism: 4
  timeout: 5s

server:
  host: "0.0.0.0"
  port: 9090

history:
  enabled: true
  dsn: ":memory:"
  keep: 20
`

	cfg, dir := writeAndLoadDir(t, content)

	if got := cfg.Input.Paths[0]; got != filepath.Join(dir, "modules") {
		t.Errorf("Input.Paths[0] = %s, want path relative to config file", got)
	}
	if got := cfg.Input.Paths[1]; got != "/abs/shared.yaml" {
		t.Errorf("Input.Paths[1] = %s, want /abs/shared.yaml", got)
	}
	if cfg.Output.Format != "yaml" || !cfg.Output.Compact || cfg.Output.Dir != "build" {
		t.Errorf("Output = %+v", cfg.Output)
	}
	if cfg.Compile.Parallelism != 4 {
		t.Errorf("Compile.Parallelism = %d, want 4", cfg.Compile.Parallelism)
	}
	if cfg.Compile.Timeout != 5*time.Second {
		t.Errorf("Compile.Timeout = %v, want 5s", cfg.Compile.Timeout)
	}
	if cfg.Server.Addr() != "0.0.0.0:9090" {
		t.Errorf("Server.Addr() = %s, want 0.0.0.0:9090", cfg.Server.Addr())
	}
	if !cfg.History.Enabled || cfg.History.DSN != ":memory:" || cfg.History.Keep != 20 {
		t.Errorf("History = %+v", cfg.History)
	}

	opts := cfg.Output.FormatOptions()
	if !opts.Compact || len(opts.Sections) != 2 || opts.Sections[1] != formatter.SectionPopulations {
		t.Errorf("FormatOptions() = %+v", opts)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := writeAndLoad(t, "{}\n")

	if len(cfg.Input.Paths) != 1 || cfg.Input.Paths[0] != "modules" {
		t.Errorf("default Input.Paths = %v, want [modules]", cfg.Input.Paths)
	}
	if cfg.Output.Format != "json" {
		t.Errorf("default Output.Format = %s, want json", cfg.Output.Format)
	}
	if cfg.Compile.Timeout != 30*time.Second {
		t.Errorf("default Compile.Timeout = %v, want 30s", cfg.Compile.Timeout)
	}
	if cfg.Watch.Debounce != 200*time.Millisecond {
		t.Errorf("default Watch.Debounce = %v, want 200ms", cfg.Watch.Debounce)
	}
	if cfg.Server.Addr() != "127.0.0.1:8420" {
		t.Errorf("default Server.Addr() = %s, want 127.0.0.1:8420", cfg.Server.Addr())
	}
	if cfg.History.Enabled || cfg.History.DSN != "modforge.db" {
		t.Errorf("default History = %+v", cfg.History)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "console" {
		t.Errorf("default Logging = %+v", cfg.Logging)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("default Metrics.Path = %s, want /metrics", cfg.Metrics.Path)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_MODFORGE_FORMAT", "table")

	cfg := writeAndLoad(t, `
output:
  format: "${TEST_MODFORGE_FORMAT}"
`)

	if cfg.Output.Format != "table" {
		t.Errorf("Output.Format = %s, want table", cfg.Output.Format)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown format", "output:\n  format: xml\n", "output.format"},
		{"unknown section", "output:\n  sections: [validation, graphql]\n", "output.sections[1]"},
		{"negative parallelism", "compile:\n  parallelism: -1\n", "compile.parallelism"},
		{"port out of range", "server:\n  port: 70000\n", "server.port"},
		{"negative keep", "history:\n  keep: -5\n", "history.keep"},
		{"bad log level", "logging:\n  level: verbose\n", "logging.level"},
		{"bad log format", "logging:\n  format: xml\n", "logging.format"},
		{"relative metrics path", "metrics:\n  path: metrics\n", "metrics.path"},
		{"unknown history driver", "history:\n  driver: postgres\n", "history.driver"},
		{"relative api base path", "server:\n  api_base_path: api\n", "server.api_base_path"},
		{"invalid yaml", "output: [", "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := writeAndLoadErr(t, tt.content)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MODFORGE_INPUT", "a, b ,,c")
	t.Setenv("MODFORGE_OUTPUT_DIR", "out")
	t.Setenv("MODFORGE_OUTPUT_FORMAT", "table")
	t.Setenv("MODFORGE_OUTPUT_SECTIONS", "persistence")
	t.Setenv("MODFORGE_PARALLELISM", "2")
	t.Setenv("MODFORGE_COMPILE_TIMEOUT", "1m")
	t.Setenv("MODFORGE_WATCH_DEBOUNCE", "1s")
	t.Setenv("MODFORGE_SERVER_HOST", "0.0.0.0")
	t.Setenv("MODFORGE_SERVER_PORT", "9999")
	t.Setenv("MODFORGE_HISTORY_ENABLED", "yes")
	t.Setenv("MODFORGE_HISTORY_DSN", "/tmp/h.db")
	t.Setenv("MODFORGE_HISTORY_KEEP", "3")
	t.Setenv("MODFORGE_LOG_LEVEL", "debug")
	t.Setenv("MODFORGE_LOG_FORMAT", "json")
	t.Setenv("MODFORGE_METRICS_ENABLED", "on")
	t.Setenv("MODFORGE_METRICS_PATH", "/prom")
	t.Setenv("MODFORGE_METRICS_TEXTFILE", "/tmp/modforge.prom")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv error: %v", err)
	}

	if strings.Join(cfg.Input.Paths, "|") != "a|b|c" {
		t.Errorf("Input.Paths = %v, want [a b c]", cfg.Input.Paths)
	}
	if cfg.Output.Dir != "out" || cfg.Output.Format != "table" || cfg.Output.Sections[0] != "persistence" {
		t.Errorf("Output = %+v", cfg.Output)
	}
	if cfg.Compile.Parallelism != 2 || cfg.Compile.Timeout != time.Minute {
		t.Errorf("Compile = %+v", cfg.Compile)
	}
	if cfg.Watch.Debounce != time.Second {
		t.Errorf("Watch.Debounce = %v, want 1s", cfg.Watch.Debounce)
	}
	if cfg.Server.Addr() != "0.0.0.0:9999" {
		t.Errorf("Server.Addr() = %s", cfg.Server.Addr())
	}
	if !cfg.History.Enabled || cfg.History.DSN != "/tmp/h.db" || cfg.History.Keep != 3 {
		t.Errorf("History = %+v", cfg.History)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/prom" || cfg.Metrics.Textfile != "/tmp/modforge.prom" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("MODFORGE_OUTPUT_FORMAT", "table")

	cfg := writeAndLoad(t, "output:\n  format: yaml\n")

	if cfg.Output.Format != "table" {
		t.Errorf("Output.Format = %s, want env override table", cfg.Output.Format)
	}
}

func TestEnvOverrides_InvalidValuesIgnored(t *testing.T) {
	t.Setenv("MODFORGE_SERVER_PORT", "not-a-number")
	t.Setenv("MODFORGE_COMPILE_TIMEOUT", "soon")
	t.Setenv("MODFORGE_PARALLELISM", "many")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv error: %v", err)
	}
	if cfg.Server.Port != 8420 {
		t.Errorf("Server.Port = %d, want default 8420", cfg.Server.Port)
	}
	if cfg.Compile.Timeout != 30*time.Second {
		t.Errorf("Compile.Timeout = %v, want default 30s", cfg.Compile.Timeout)
	}
	if cfg.Compile.Parallelism != 0 {
		t.Errorf("Compile.Parallelism = %d, want 0", cfg.Compile.Parallelism)
	}
}

func TestLoadWithFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modforge.yaml")
	if err := os.WriteFile(path, []byte("output:\n  format: yaml\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.LoadWithFallback(path)
	if err != nil {
		t.Fatalf("LoadWithFallback error: %v", err)
	}
	if cfg.Output.Format != "yaml" {
		t.Errorf("Output.Format = %s, want yaml from file", cfg.Output.Format)
	}

	for _, p := range []string{"", filepath.Join(t.TempDir(), "missing.yaml")} {
		cfg, err := config.LoadWithFallback(p)
		if err != nil {
			t.Fatalf("LoadWithFallback(%q) error: %v", p, err)
		}
		if cfg.Output.Format != "json" {
			t.Errorf("LoadWithFallback(%q) Output.Format = %s, want default json", p, cfg.Output.Format)
		}
	}
}

// Helpers

func writeAndLoad(t *testing.T, content string) *config.Config {
	t.Helper()
	cfg, err := writeAndLoadErr(t, content)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	return cfg
}

func writeAndLoadErr(t *testing.T, content string) (*config.Config, error) {
	t.Helper()
	cfg, _, err := writeAndLoadIn(t, content)
	return cfg, err
}

func writeAndLoadDir(t *testing.T, content string) (*config.Config, string) {
	t.Helper()
	cfg, dir, err := writeAndLoadIn(t, content)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	return cfg, dir
}

func writeAndLoadIn(t *testing.T, content string) (*config.Config, string, error) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	return cfg, dir, err
}
