// Package registry holds the compiled modules served to readers.
// It indexes modules by singular and plural name, detects name and
// collection conflicts, and resolves references for the rule evaluator.
package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/artpar/modforge/core/compiler"
	"github.com/artpar/modforge/core/validation"
)

// Registry manages compiled modules and the names they claim.
type Registry struct {
	mu sync.RWMutex

	// modules in registration order
	modules []compiler.CompiledModule

	// singular and plural names to module index
	names map[string]int

	// collections to module name
	collections map[string]string

	enums      []compiler.Enum
	credential *validation.Schema
	revision   uint64
}

// New creates a new registry.
func New() *Registry {
	return &Registry{
		names:       make(map[string]int),
		collections: make(map[string]string),
	}
}

// Load replaces the registry contents with a compile result.
// On conflict the registry is left unchanged.
func (r *Registry) Load(result *compiler.Result) error {
	next := New()
	for _, m := range result.Modules {
		if err := next.register(m); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.modules = next.modules
	r.names = next.names
	r.collections = next.collections
	r.enums = result.Enums
	r.credential = result.Credential
	r.revision++
	return nil
}

// register claims the module's names and collection. Callers own r.
func (r *Registry) register(m compiler.CompiledModule) error {
	var conflicts []Conflict
	for _, name := range []string{m.Name, m.Plural} {
		if i, exists := r.names[name]; exists {
			conflicts = append(conflicts, Conflict{Kind: "name", Value: name, Owner: r.modules[i].Name, Claimant: m.Name})
		}
	}
	if m.Persistence != nil {
		if owner, exists := r.collections[m.Persistence.Collection]; exists {
			conflicts = append(conflicts, Conflict{Kind: "collection", Value: m.Persistence.Collection, Owner: owner, Claimant: m.Name})
		}
	}
	if len(conflicts) > 0 {
		return &ConflictError{Conflicts: conflicts}
	}

	i := len(r.modules)
	r.modules = append(r.modules, m)
	r.names[m.Name] = i
	r.names[m.Plural] = i
	if m.Persistence != nil {
		r.collections[m.Persistence.Collection] = m.Name
	}
	return nil
}

// Get returns a compiled module by singular or plural name.
func (r *Registry) Get(name string) (compiler.CompiledModule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.names[name]
	if !ok {
		return compiler.CompiledModule{}, false
	}
	return r.modules[i], true
}

// List returns all registered modules in registration order.
func (r *Registry) List() []compiler.CompiledModule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	modules := make([]compiler.CompiledModule, len(r.modules))
	copy(modules, r.modules)
	return modules
}

// Enums returns the enumeration declarations of the loaded result.
func (r *Registry) Enums() []compiler.Enum {
	r.mu.RLock()
	defer r.mu.RUnlock()

	enums := make([]compiler.Enum, len(r.enums))
	copy(enums, r.enums)
	return enums
}

// Credential returns the shared credential schema, nil without an auth module.
func (r *Registry) Credential() *validation.Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.credential
}

// Snapshot returns the loaded modules, enums and credential schema as one
// compile result, together with the revision they belong to.
func (r *Registry) Snapshot() (*compiler.Result, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := &compiler.Result{
		Enums:      make([]compiler.Enum, len(r.enums)),
		Credential: r.credential,
		Modules:    make([]compiler.CompiledModule, len(r.modules)),
	}
	copy(result.Enums, r.enums)
	copy(result.Modules, r.modules)
	return result, r.revision
}

// Revision counts successful changes; readers use it to detect reloads.
func (r *Registry) Revision() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.revision
}

// Effective returns the schema input to a module is checked against.
func (r *Registry) Effective(name string) (*validation.Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.names[name]
	if !ok {
		return nil, false
	}
	result := compiler.Result{Credential: r.credential}
	return result.Effective(r.modules[i]), true
}

// Schema implements validation.Resolver.
func (r *Registry) Schema(module string) (*validation.Schema, bool) {
	return r.Effective(module)
}

var _ validation.Resolver = (*Registry)(nil)

// Conflict is one name or collection claimed twice.
type Conflict struct {
	Kind     string
	Value    string
	Owner    string
	Claimant string
}

func (c Conflict) Error() string {
	return fmt.Sprintf("%s %q already claimed by module %q (claimed again by %q)", c.Kind, c.Value, c.Owner, c.Claimant)
}

// ConflictError represents one or more claim conflicts.
type ConflictError struct {
	Conflicts []Conflict
}

// Error returns the conflict error message.
func (e *ConflictError) Error() string {
	var msgs []string
	for _, c := range e.Conflicts {
		msgs = append(msgs, c.Error())
	}
	return fmt.Sprintf("registry conflicts detected:\n  - %s", strings.Join(msgs, "\n  - "))
}

// HasConflicts returns true if there are any conflicts.
func (e *ConflictError) HasConflicts() bool {
	return len(e.Conflicts) > 0
}
