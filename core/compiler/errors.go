package compiler

import (
	"fmt"
	"strings"
)

// EnumSource identifies the attribute an enumeration declaration came from.
type EnumSource struct {
	Module string   `json:"module" yaml:"module"`
	Path   string   `json:"path" yaml:"path"`
	Values []string `json:"values" yaml:"values"`
}

func (s EnumSource) String() string {
	return fmt.Sprintf("%s.%s [%s]", s.Module, s.Path, strings.Join(s.Values, ", "))
}

// AmbiguousEnumName reports two attributes whose enumeration declarations
// share a name but not their literal values.
type AmbiguousEnumName struct {
	Name   string
	First  EnumSource
	Second EnumSource
}

func (e *AmbiguousEnumName) Error() string {
	return fmt.Sprintf("enum declaration %q is ambiguous: %s conflicts with %s", e.Name, e.First, e.Second)
}

// UnresolvedAuthModule reports a batch in which more than one module declares auth.
type UnresolvedAuthModule struct {
	Modules []string
}

func (e *UnresolvedAuthModule) Error() string {
	return fmt.Sprintf("only one module may declare auth, found %d: %s",
		len(e.Modules), strings.Join(e.Modules, ", "))
}
