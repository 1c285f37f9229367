package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ShapeViolation reports an authored module or attribute that breaks a model invariant.
type ShapeViolation struct {
	// Module is the singular name of the offending module.
	Module string

	// Path is the dotted attribute path, empty for module-level problems.
	Path string

	// Reason describes the broken invariant.
	Reason string
}

func (v *ShapeViolation) Error() string {
	if v.Path == "" {
		return fmt.Sprintf("module %q: %s", v.Module, v.Reason)
	}
	return fmt.Sprintf("module %q: attribute %q: %s", v.Module, v.Path, v.Reason)
}

// Violations extracts every ShapeViolation from a (possibly joined or wrapped) error.
func Violations(err error) []*ShapeViolation {
	switch e := err.(type) {
	case nil:
		return nil
	case *ShapeViolation:
		return []*ShapeViolation{e}
	case interface{ Unwrap() []error }:
		var out []*ShapeViolation
		for _, inner := range e.Unwrap() {
			out = append(out, Violations(inner)...)
		}
		return out
	}
	return Violations(errors.Unwrap(err))
}

type violations struct {
	module string
	errs   []error
}

func (vs *violations) add(path, format string, args ...any) {
	vs.errs = append(vs.errs, &ShapeViolation{
		Module: vs.module,
		Path:   path,
		Reason: fmt.Sprintf(format, args...),
	})
}

func (vs *violations) err() error {
	return errors.Join(vs.errs...)
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return strings.Join([]string{prefix, name}, ".")
}
