package openapi

import (
	"sync"
	"sync/atomic"

	"github.com/artpar/modforge/core/registry"
	"github.com/rs/zerolog"
)

// Service serves the OpenAPI document of the modules currently loaded in a
// registry. The document is regenerated only when the registry revision moves.
type Service struct {
	registry *registry.Registry
	info     Info
	basePath string
	logger   zerolog.Logger

	cache atomic.Pointer[cachedSpec]
	mu    sync.Mutex // Protects cache generation
}

// cachedSpec holds a generated spec and the registry revision it reflects.
type cachedSpec struct {
	spec     *Spec
	revision uint64
}

// ServiceConfig contains configuration for the OpenAPI service.
type ServiceConfig struct {
	Registry *registry.Registry
	Info     Info
	BasePath string
	Logger   zerolog.Logger
}

// NewService creates a new OpenAPI service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Info.Title == "" {
		cfg.Info.Title = "Modules API"
	}
	if cfg.Info.Version == "" {
		cfg.Info.Version = "1.0.0"
	}
	return &Service{
		registry: cfg.Registry,
		info:     cfg.Info,
		basePath: cfg.BasePath,
		logger:   cfg.Logger,
	}
}

// Spec returns the document for the loaded modules, listing baseURL as the
// server when set.
func (s *Service) Spec(baseURL string) *Spec {
	revision := s.registry.Revision()
	if cached := s.cache.Load(); cached != nil && cached.revision == revision {
		return cloneSpecWithServer(cached.spec, baseURL)
	}

	// Generate with mutex to prevent thundering herd
	s.mu.Lock()
	defer s.mu.Unlock()

	result, revision := s.registry.Snapshot()
	if cached := s.cache.Load(); cached != nil && cached.revision == revision {
		return cloneSpecWithServer(cached.spec, baseURL)
	}

	g := NewGenerator(result)
	g.SetInfo(s.info)
	g.SetBasePath(s.basePath)
	spec := g.Generate()

	s.cache.Store(&cachedSpec{spec: spec, revision: revision})
	s.logger.Debug().
		Uint64("revision", revision).
		Int("schemas", len(spec.Components.Schemas)).
		Msg("openapi document generated")

	return cloneSpecWithServer(spec, baseURL)
}

// cloneSpecWithServer returns a shallow copy of spec whose server list is
// baseURL alone. Paths and components are shared and must not be mutated.
func cloneSpecWithServer(spec *Spec, baseURL string) *Spec {
	clone := *spec
	clone.Servers = nil
	if baseURL != "" {
		clone.Servers = []Server{{URL: baseURL}}
	}
	return &clone
}
