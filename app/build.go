// Package app contains the BuildService, which turns module sources into a
// loaded registry and a recorded build.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/artpar/modforge/core/compiler"
	"github.com/artpar/modforge/core/exporter"
	"github.com/artpar/modforge/core/registry"
	"github.com/artpar/modforge/core/schema"
	"github.com/artpar/modforge/domain/build"
	"github.com/artpar/modforge/ports"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Outcome is the result of one build.
type Outcome struct {
	Build  build.Build
	Result *compiler.Result
}

// BuildService reads, compiles and publishes module batches.
type BuildService struct {
	compiler *compiler.Compiler
	registry *registry.Registry
	store    ports.BuildStore
	logger   zerolog.Logger
	newID    func() string
	now      func() time.Time
	timeout  time.Duration

	mu   sync.RWMutex
	last *Outcome
}

// BuildOption configures a BuildService.
type BuildOption func(*BuildService)

// WithStore records every build in store.
func WithStore(store ports.BuildStore) BuildOption {
	return func(s *BuildService) { s.store = store }
}

// WithIDGenerator overrides build ID generation (default: UUID v4).
func WithIDGenerator(fn func() string) BuildOption {
	return func(s *BuildService) { s.newID = fn }
}

// WithClock overrides the time source.
func WithClock(fn func() time.Time) BuildOption {
	return func(s *BuildService) { s.now = fn }
}

// WithTimeout bounds each build (default: no limit).
func WithTimeout(d time.Duration) BuildOption {
	return func(s *BuildService) { s.timeout = d }
}

// NewBuildService creates a new build service.
func NewBuildService(c *compiler.Compiler, reg *registry.Registry, logger zerolog.Logger, opts ...BuildOption) *BuildService {
	s := &BuildService{
		compiler: c,
		registry: reg,
		logger:   logger,
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Build compiles the module files under paths and, on success, loads the
// result into the registry. A failed build leaves the registry untouched.
// The build is recorded in the store either way.
func (s *BuildService) Build(ctx context.Context, paths ...string) (Outcome, error) {
	b := build.Build{
		ID:        s.newID(),
		StartedAt: s.now(),
	}
	logger := s.logger.With().Str("build_id", b.ID).Logger()

	s.mu.RLock()
	c, timeout := s.compiler, s.timeout
	s.mu.RUnlock()

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, artifacts, err := s.run(runCtx, c, &b, paths)
	b.Duration = s.now().Sub(b.StartedAt)

	if err != nil {
		b.Status = build.StatusFailed
		b.Error = err.Error()
		b.ErrorKind = exporter.ErrorKind(err)
		artifacts = nil
	} else {
		b.Status = build.StatusSuccess
	}

	s.record(ctx, logger, b, artifacts)

	if err != nil {
		return Outcome{Build: b}, err
	}

	out := Outcome{Build: b, Result: result}
	s.mu.Lock()
	s.last = &out
	s.mu.Unlock()

	logger.Debug().
		Int("modules", b.Modules).
		Str("source_hash", b.SourceHash).
		Uint64("revision", s.registry.Revision()).
		Msg("build published")
	return out, nil
}

func (s *BuildService) run(ctx context.Context, c *compiler.Compiler, b *build.Build, paths []string) (*compiler.Result, []build.Artifact, error) {
	sources, err := schema.ReadSources(paths...)
	if err != nil {
		return nil, nil, err
	}
	if len(sources) == 0 {
		return nil, nil, fmt.Errorf("no module files found in %v", paths)
	}

	files := make(map[string][]byte, len(sources))
	for _, src := range sources {
		files[src.Path] = src.Data
	}
	b.SourceHash = build.HashSources(files)

	batch, err := schema.ParseSources(sources)
	if err != nil {
		return nil, nil, err
	}
	b.Modules = len(batch)

	result, err := c.Compile(ctx, batch)
	if err != nil {
		return nil, nil, err
	}
	b.Enums = len(result.Enums)
	for _, m := range result.Modules {
		b.References += len(m.Populations)
	}

	artifacts := make([]build.Artifact, 0, len(result.Modules))
	for _, m := range result.Modules {
		body, err := json.Marshal(m)
		if err != nil {
			return nil, nil, fmt.Errorf("encode module %s: %w", m.Name, err)
		}
		artifacts = append(artifacts, build.Artifact{BuildID: b.ID, Module: m.Name, Body: body})
	}

	if err := s.registry.Load(result); err != nil {
		return nil, nil, err
	}
	return result, artifacts, nil
}

// record stores the build. History is auxiliary: a store failure is logged
// and never fails the build itself.
func (s *BuildService) record(ctx context.Context, logger zerolog.Logger, b build.Build, artifacts []build.Artifact) {
	if s.store == nil {
		return
	}
	if err := s.store.Record(ctx, b, artifacts); err != nil {
		logger.Warn().Err(err).Msg("failed to record build")
	}
}

// Reconfigure swaps the compiler and build timeout. Builds already running
// finish with the old settings.
func (s *BuildService) Reconfigure(c *compiler.Compiler, timeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compiler = c
	s.timeout = timeout
}

// Last returns the most recent successful build.
func (s *BuildService) Last() (Outcome, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Outcome{}, false
	}
	return *s.last, true
}
