// Package formatter provides a pluggable output formatting system.
// Formatters render compile results and single compiled modules as
// json, yaml or text tables.
package formatter

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/artpar/modforge/core/compiler"
)

// Formatter converts compiled artifacts to a specific output format.
type Formatter interface {
	// Name returns the formatter name (e.g., "table", "json", "yaml").
	Name() string

	// Description returns a human-readable description.
	Description() string

	// Extension returns the file extension for written artifacts, without the dot.
	Extension() string

	// FormatResult formats a whole compile result.
	FormatResult(w io.Writer, result *compiler.Result, opts FormatOptions) error

	// FormatModule formats a single compiled module.
	FormatModule(w io.Writer, m compiler.CompiledModule, opts FormatOptions) error

	// FormatError formats an error.
	FormatError(w io.Writer, err error) error
}

// Section selects one artifact of a compiled module.
type Section string

const (
	SectionValidation  Section = "validation"
	SectionPersistence Section = "persistence"
	SectionPopulations Section = "populations"
)

// FormatOptions configures formatting behavior.
type FormatOptions struct {
	// Sections limits module output to the named artifacts (nil = all).
	Sections []Section

	// NoHeader disables header rows for tabular formats.
	NoHeader bool

	// Compact minimizes whitespace (for json).
	Compact bool
}

func (o FormatOptions) includes(s Section) bool {
	if len(o.Sections) == 0 {
		return true
	}
	for _, sec := range o.Sections {
		if sec == s {
			return true
		}
	}
	return false
}

// moduleView is the serialized shape of a compiled module, honoring Sections.
func moduleView(m compiler.CompiledModule, opts FormatOptions) map[string]any {
	out := map[string]any{
		"name":   m.Name,
		"plural": m.Plural,
	}
	if m.Auth {
		out["auth"] = true
	}
	if opts.includes(SectionValidation) {
		out["validation"] = m.Validation
	}
	if opts.includes(SectionPersistence) {
		out["persistence"] = m.Persistence
	}
	if opts.includes(SectionPopulations) {
		out["populations"] = m.Populations
	}
	return out
}

// Registry manages registered formatters.
type Registry struct {
	mu         sync.RWMutex
	formatters map[string]Formatter
	defaultFmt string
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		formatters: make(map[string]Formatter),
		defaultFmt: "json",
	}
}

// Register adds a formatter to the registry.
func (r *Registry) Register(f Formatter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.formatters[f.Name()]; exists {
		return fmt.Errorf("formatter %q already registered", f.Name())
	}

	r.formatters[f.Name()] = f
	return nil
}

// Get returns a formatter by name.
func (r *Registry) Get(name string) (Formatter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.formatters[name]
	return f, ok
}

// Default returns the default formatter.
func (r *Registry) Default() Formatter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.formatters[r.defaultFmt]
}

// SetDefault sets the default formatter.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.formatters[name]; !exists {
		return fmt.Errorf("formatter %q not registered", name)
	}

	r.defaultFmt = name
	return nil
}

// List returns all registered formatter names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.formatters))
	for name := range r.formatters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter to the default registry.
func Register(f Formatter) error {
	return DefaultRegistry.Register(f)
}

// Get returns a formatter from the default registry.
func Get(name string) (Formatter, bool) {
	return DefaultRegistry.Get(name)
}

// Default returns the default formatter from the default registry.
func Default() Formatter {
	return DefaultRegistry.Default()
}

// List returns all formatter names from the default registry.
func List() []string {
	return DefaultRegistry.List()
}
