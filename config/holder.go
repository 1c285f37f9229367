// Package config provides configuration loading and hot reload.
package config

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// field is one tracked setting. Restart fields are read once at startup.
type field struct {
	name    string
	restart bool
	value   func(*Config) string
}

var fields = []field{
	{"input.paths", false, func(c *Config) string { return strings.Join(c.Input.Paths, ",") }},
	{"output.dir", false, func(c *Config) string { return c.Output.Dir }},
	{"output.format", false, func(c *Config) string { return c.Output.Format }},
	{"output.sections", false, func(c *Config) string { return strings.Join(c.Output.Sections, ",") }},
	{"output.compact", false, func(c *Config) string { return strconv.FormatBool(c.Output.Compact) }},
	{"compile.parallelism", false, func(c *Config) string { return strconv.Itoa(c.Compile.Parallelism) }},
	{"compile.timeout", false, func(c *Config) string { return c.Compile.Timeout.String() }},
	{"history.keep", false, func(c *Config) string { return strconv.Itoa(c.History.Keep) }},
	{"logging.level", false, func(c *Config) string { return c.Logging.Level }},

	{"logging.format", true, func(c *Config) string { return c.Logging.Format }},
	{"server.host", true, func(c *Config) string { return c.Server.Host }},
	{"server.port", true, func(c *Config) string { return strconv.Itoa(c.Server.Port) }},
	{"server.read_timeout", true, func(c *Config) string { return c.Server.ReadTimeout.String() }},
	{"server.write_timeout", true, func(c *Config) string { return c.Server.WriteTimeout.String() }},
	{"server.api_base_path", true, func(c *Config) string { return c.Server.APIBasePath }},
	{"history.enabled", true, func(c *Config) string { return strconv.FormatBool(c.History.Enabled) }},
	{"history.driver", true, func(c *Config) string { return c.History.Driver }},
	{"history.dsn", true, func(c *Config) string { return c.History.DSN }},
	{"metrics.enabled", true, func(c *Config) string { return strconv.FormatBool(c.Metrics.Enabled) }},
	{"metrics.path", true, func(c *Config) string { return c.Metrics.Path }},
	{"watch.debounce", true, func(c *Config) string { return c.Watch.Debounce.String() }},
}

// Change is a tracked setting whose value differs between two configs.
type Change struct {
	Field   string
	Old     string
	New     string
	Restart bool // the running process keeps the old value
}

// Diff returns the changed settings in a fixed order.
func Diff(old, new *Config) []Change {
	var changes []Change
	for _, f := range fields {
		o, n := f.value(old), f.value(new)
		if o != n {
			changes = append(changes, Change{Field: f.name, Old: o, New: n, Restart: f.restart})
		}
	}
	return changes
}

// Changed reports whether name is among changes.
func Changed(changes []Change, name string) bool {
	return slices.ContainsFunc(changes, func(c Change) bool { return c.Field == name })
}

// ReloadableFields returns which fields can be changed without restart.
func ReloadableFields() []string {
	return fieldNames(false)
}

// NonReloadableFields returns which fields require a restart.
func NonReloadableFields() []string {
	return fieldNames(true)
}

func fieldNames(restart bool) []string {
	var names []string
	for _, f := range fields {
		if f.restart == restart {
			names = append(names, f.name)
		}
	}
	return names
}

// Listener receives the new configuration and what changed since the last one.
type Listener func(cfg *Config, changes []Change)

// Holder provides thread-safe access to configuration with hot reload support.
type Holder struct {
	mu        sync.RWMutex
	config    *Config
	path      string
	logger    zerolog.Logger
	listeners []Listener

	// reloads serializes Load+swap so listeners see changes in order.
	reloads  sync.Mutex
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewHolder creates a new config holder and loads the initial configuration.
func NewHolder(path string, logger zerolog.Logger) (*Holder, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	cfg, err := Load(absPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &Holder{
		config: cfg,
		path:   absPath,
		logger: logger,
		stopCh: make(chan struct{}),
	}, nil
}

// Get returns the current configuration (thread-safe).
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

// Path returns the absolute path of the config file.
func (h *Holder) Path() string {
	return h.path
}

// OnChange registers a listener called after every successful reload.
func (h *Holder) OnChange(fn Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Reload re-reads the config file. A file that fails to load or validate
// leaves the current configuration in place.
func (h *Holder) Reload() error {
	h.reloads.Lock()
	defer h.reloads.Unlock()

	next, err := Load(h.path)
	if err != nil {
		h.logger.Error().Err(err).Str("path", h.path).Msg("config reload failed, keeping old config")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	prev := h.config
	h.config = next
	listeners := slices.Clone(h.listeners)
	h.mu.Unlock()

	changes := Diff(prev, next)
	for _, c := range changes {
		ev := h.logger.Info()
		msg := "config changed"
		if c.Restart {
			ev = h.logger.Warn()
			msg = "config change requires restart to take effect"
		}
		ev.Str("field", c.Field).Str("old", c.Old).Str("new", c.New).Msg(msg)
	}

	for _, fn := range listeners {
		fn(next, changes)
	}

	h.logger.Info().Int("changes", len(changes)).Msg("configuration reloaded")
	return nil
}

// Watch reloads on SIGHUP and on writes to the config file until Stop.
// The directory is watched so editors that save by rename are seen. If the
// file watcher cannot start, the error is returned and SIGHUP still works.
func (h *Holder) Watch() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if addErr := watcher.Add(filepath.Dir(h.path)); addErr != nil {
			watcher.Close()
			watcher, err = nil, addErr
		}
	}

	go h.loop(sigCh, watcher)

	if err != nil {
		return fmt.Errorf("watch config file: %w", err)
	}
	h.logger.Info().Str("path", h.path).Msg("watching config file for changes")
	return nil
}

// Stop ends Watch. Safe to call twice.
func (h *Holder) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

func (h *Holder) loop(sigCh chan os.Signal, watcher *fsnotify.Watcher) {
	defer signal.Stop(sigCh)

	// Nil channels block, leaving only SIGHUP when the watcher is absent.
	var events chan fsnotify.Event
	var errs chan error
	if watcher != nil {
		defer watcher.Close()
		events, errs = watcher.Events, watcher.Errors
	}

	for {
		var source string
		select {
		case <-h.stopCh:
			return
		case <-sigCh:
			source = "SIGHUP"
		case event, ok := <-events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != h.path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			source = "file " + event.Op.String()
		case err, ok := <-errs:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Msg("config watcher error")
			continue
		}

		h.logger.Info().Str("trigger", source).Msg("reloading configuration")
		if err := h.Reload(); err != nil {
			h.logger.Error().Err(err).Str("trigger", source).Msg("reload failed")
		}
	}
}
