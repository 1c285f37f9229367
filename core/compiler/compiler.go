// Package compiler derives validation schemas, storage descriptors,
// enumeration declarations and population paths from a batch of module
// definitions.
//
// Compilation runs in two phases. References are resolved once for the whole
// batch; only then is each module compiled, independently and in parallel.
// Every function here is pure: the same batch always produces the same result
// or the same error.
package compiler

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/artpar/modforge/core/schema"
	"github.com/artpar/modforge/core/storage"
	"github.com/artpar/modforge/core/validation"
	"golang.org/x/sync/errgroup"
)

// Result holds every artifact derived from one batch.
type Result struct {
	// Enums are the enumeration declarations of the batch.
	Enums []Enum `json:"enums" yaml:"enums"`

	// Credential is the shared credential schema, nil without an auth module.
	Credential *validation.Schema `json:"credential,omitempty" yaml:"credential,omitempty"`

	// Modules are the compiled modules in batch order.
	Modules []CompiledModule `json:"modules" yaml:"modules"`
}

// CompiledModule holds the artifacts derived from one module.
type CompiledModule struct {
	Name   string `json:"name" yaml:"name"`
	Plural string `json:"plural" yaml:"plural"`

	// Auth marks the module holding login credentials.
	Auth bool `json:"auth,omitempty" yaml:"auth,omitempty"`

	Validation  *validation.Schema `json:"validation" yaml:"validation"`
	Persistence *storage.Document  `json:"persistence" yaml:"persistence"`
	Populations []string           `json:"populations" yaml:"populations"`
}

// Module returns the compiled module with the given singular or plural name.
func (r *Result) Module(name string) (CompiledModule, bool) {
	for _, m := range r.Modules {
		if m.Name == name || m.Plural == name {
			return m, true
		}
	}
	return CompiledModule{}, false
}

// Effective returns the schema input to m is checked against: its validation
// schema, merged with the credential schema for the auth module.
func (r *Result) Effective(m CompiledModule) *validation.Schema {
	if m.Validation.MergeCredentials && r.Credential != nil {
		return r.Credential.Merge(m.Validation)
	}
	return m.Validation
}

// Stats summarizes one compile run.
type Stats struct {
	Modules    int
	Enums      int
	References int
	Duration   time.Duration
}

// Observer receives the outcome of every compile run.
type Observer interface {
	ObserveCompile(stats Stats, err error)
}

// Compiler compiles module batches.
type Compiler struct {
	observer    Observer
	parallelism int
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithObserver reports every run to o.
func WithObserver(o Observer) Option {
	return func(c *Compiler) { c.observer = o }
}

// WithParallelism bounds how many modules compile at once (default GOMAXPROCS).
func WithParallelism(n int) Option {
	return func(c *Compiler) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

// New creates a compiler.
func New(opts ...Option) *Compiler {
	c := &Compiler{parallelism: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile compiles a batch with default options.
func Compile(ctx context.Context, batch schema.Batch) (*Result, error) {
	return New().Compile(ctx, batch)
}

// Compile checks, resolves and compiles a batch. Either every module compiles
// or an error naming the failing module is returned.
func (c *Compiler) Compile(ctx context.Context, batch schema.Batch) (*Result, error) {
	start := time.Now()
	result, stats, err := c.compile(ctx, batch)
	stats.Duration = time.Since(start)

	if c.observer != nil {
		c.observer.ObserveCompile(stats, err)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Compiler) compile(ctx context.Context, batch schema.Batch) (*Result, Stats, error) {
	stats := Stats{Modules: len(batch)}

	if err := schema.ValidateBatch(batch); err != nil {
		return nil, stats, fmt.Errorf("invalid modules: %w", err)
	}

	resolved := ResolveReferences(batch)

	bctx, err := NewContext(resolved)
	if err != nil {
		return nil, stats, err
	}

	enums, err := bctx.EnumDeclarations()
	if err != nil {
		return nil, stats, err
	}
	stats.Enums = len(enums)

	result := &Result{
		Enums:      enums,
		Credential: bctx.CredentialSchema(),
		Modules:    make([]CompiledModule, len(resolved)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for i := range resolved {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result.Modules[i] = bctx.CompileModule(resolved[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}

	for _, m := range result.Modules {
		stats.References += len(m.Populations)
	}

	return result, stats, nil
}

// CompileModule derives every per-module artifact of a resolved module.
func (c *Context) CompileModule(mod schema.Module) CompiledModule {
	return CompiledModule{
		Name:        mod.SingularName,
		Plural:      mod.PluralName,
		Auth:        c.isAuthModule(mod),
		Validation:  c.ValidationSchema(mod),
		Persistence: c.PersistenceSchema(mod),
		Populations: PopulationPaths(mod),
	}
}
