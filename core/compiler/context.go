package compiler

import (
	"github.com/artpar/modforge/core/convention"
	"github.com/artpar/modforge/core/schema"
)

// Context is the read-only batch state every builder needs: the resolved
// modules, the reference candidates and the auth module. It is computed once
// per batch and is safe for concurrent use.
type Context struct {
	batch      schema.Batch
	candidates map[string]struct{}
	auth       *schema.Module
}

// NewContext builds the context of a resolved batch.
// More than one auth module yields *UnresolvedAuthModule.
func NewContext(batch schema.Batch) (*Context, error) {
	c := &Context{
		batch:      batch,
		candidates: referenceCandidates(batch),
	}

	var authModules []string
	for i := range batch {
		if !batch[i].IsAuth() {
			continue
		}
		authModules = append(authModules, batch[i].SingularName)
		if c.auth == nil {
			c.auth = &batch[i]
		}
	}
	if len(authModules) > 1 {
		return nil, &UnresolvedAuthModule{Modules: authModules}
	}

	return c, nil
}

// Batch returns the resolved batch.
func (c *Context) Batch() schema.Batch {
	return c.batch
}

// AuthModule returns the module designated for login credentials, if any.
func (c *Context) AuthModule() (schema.Module, bool) {
	if c.auth == nil {
		return schema.Module{}, false
	}
	return *c.auth, true
}

// IsReference reports whether a type name resolves to a module of the batch.
func (c *Context) IsReference(typ string) bool {
	_, ok := c.candidates[typ]
	return ok
}

// Target returns the module a reference type names.
func (c *Context) Target(typ string) (schema.Module, bool) {
	return c.batch.Lookup(typ)
}

func (c *Context) isAuthModule(mod schema.Module) bool {
	return c.auth != nil && c.auth.SingularName == mod.SingularName
}

// targetName returns the canonical key of the module a reference type names.
func (c *Context) targetName(typ string) string {
	if mod, ok := c.Target(typ); ok {
		return mod.SingularName
	}
	return convention.ModuleNames(typ).Singular
}
