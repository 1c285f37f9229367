// Package exporter reports compile runs to pluggable sinks.
// Implementations include Prometheus (pull) and zerolog (log lines).
package exporter

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"

	"github.com/artpar/modforge/core/compiler"
	"github.com/artpar/modforge/core/registry"
	"github.com/artpar/modforge/core/schema"
)

// Exporter is the base interface for all compile-run exporters.
type Exporter interface {
	compiler.Observer

	// Name returns the exporter identifier (e.g., "prometheus", "log").
	Name() string
}

// PullExporter exposes metrics for scraping.
type PullExporter interface {
	Exporter

	// Handler returns an HTTP handler for the metrics endpoint.
	Handler() http.Handler
}

// Error kinds used as metric labels and log fields.
const (
	KindShape         = "shape_violation"
	KindAmbiguousEnum = "ambiguous_enum"
	KindAuthModule    = "unresolved_auth_module"
	KindConflict      = "registry_conflict"
	KindCanceled      = "canceled"
	KindOther         = "other"
)

// ErrorKind classifies a compile error.
func ErrorKind(err error) string {
	var ambiguous *compiler.AmbiguousEnumName
	var auth *compiler.UnresolvedAuthModule
	var conflict *registry.ConflictError

	switch {
	case err == nil:
		return ""
	case len(schema.Violations(err)) > 0:
		return KindShape
	case errors.As(err, &ambiguous):
		return KindAmbiguousEnum
	case errors.As(err, &auth):
		return KindAuthModule
	case errors.As(err, &conflict):
		return KindConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindOther
	}
}

// Registry manages multiple exporters and fans compile runs out to all of them.
type Registry struct {
	mu        sync.RWMutex
	exporters map[string]Exporter
}

// NewRegistry creates a new exporter registry.
func NewRegistry() *Registry {
	return &Registry{
		exporters: make(map[string]Exporter),
	}
}

// Register adds an exporter to the registry, replacing one of the same name.
func (r *Registry) Register(exp Exporter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exporters[exp.Name()] = exp
}

// Get returns an exporter by name.
func (r *Registry) Get(name string) (Exporter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exp, ok := r.exporters[name]
	return exp, ok
}

// All returns all registered exporters sorted by name.
func (r *Registry) All() []Exporter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Exporter, 0, len(r.exporters))
	for _, exp := range r.exporters {
		result = append(result, exp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})
	return result
}

// PullExporters returns all pull-based exporters (for HTTP handler mounting).
func (r *Registry) PullExporters() []PullExporter {
	var result []PullExporter
	for _, exp := range r.All() {
		if pull, ok := exp.(PullExporter); ok {
			result = append(result, pull)
		}
	}
	return result
}

// ObserveCompile forwards a compile run to every exporter.
func (r *Registry) ObserveCompile(stats compiler.Stats, err error) {
	for _, exp := range r.All() {
		exp.ObserveCompile(stats, err)
	}
}

var _ compiler.Observer = (*Registry)(nil)
