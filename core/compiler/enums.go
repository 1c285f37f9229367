package compiler

import (
	"slices"

	"github.com/artpar/modforge/core/convention"
	"github.com/artpar/modforge/core/schema"
	"github.com/artpar/modforge/core/storage"
)

// Enum is one module-level enumeration declaration.
type Enum struct {
	// Name is the declaration name (PascalCase plural of the attribute name).
	Name string `json:"name" yaml:"name"`

	// Type is the literal-union type name (e.g., "StatusEnum").
	Type string `json:"type" yaml:"type"`

	// Values are the allowed literals in authored order.
	Values []string `json:"values" yaml:"values"`

	// Sources lists every attribute sharing this declaration.
	Sources []EnumSource `json:"sources,omitempty" yaml:"sources,omitempty"`
}

// EnumDeclarations collects one declaration per enumerated attribute, at any
// depth, in batch and declaration order. AccessTypes is declared first when
// the batch has an auth module. Attributes whose declaration names collide
// share it only when their values are identical; otherwise the result is
// *AmbiguousEnumName.
func (c *Context) EnumDeclarations() ([]Enum, error) {
	var enums []Enum
	index := make(map[string]int)

	add := func(name, typeName string, src EnumSource) error {
		if i, ok := index[name]; ok {
			if !slices.Equal(enums[i].Values, src.Values) {
				return &AmbiguousEnumName{Name: name, First: enums[i].Sources[0], Second: src}
			}
			enums[i].Sources = append(enums[i].Sources, src)
			return nil
		}
		index[name] = len(enums)
		enums = append(enums, Enum{
			Name:    name,
			Type:    typeName,
			Values:  append([]string(nil), src.Values...),
			Sources: []EnumSource{src},
		})
		return nil
	}

	if mod, ok := c.AuthModule(); ok {
		src := EnumSource{Module: mod.SingularName, Path: storage.FieldAccessType, Values: AccessTypes}
		if err := add(AccessTypesEnum, convention.EnumTypeName(storage.FieldAccessType), src); err != nil {
			return nil, err
		}
	}

	for _, mod := range c.batch {
		var walk func(attrs []schema.Attribute, prefix string) error
		walk = func(attrs []schema.Attribute, prefix string) error {
			for _, a := range attrs {
				path := convention.CamelCase(a.Name)
				if prefix != "" {
					path = prefix + "." + path
				}

				if a.HasEnum() {
					src := EnumSource{Module: mod.SingularName, Path: path, Values: a.Enum}
					if err := add(convention.EnumName(a.Name), convention.EnumTypeName(a.Name), src); err != nil {
						return err
					}
					continue
				}
				if err := walk(a.Attributes, path); err != nil {
					return err
				}
			}
			return nil
		}
		if err := walk(mod.Attributes, ""); err != nil {
			return nil, err
		}
	}

	return enums, nil
}

// EnumMap indexes declarations by name.
func EnumMap(enums []Enum) map[string][]string {
	m := make(map[string][]string, len(enums))
	for _, e := range enums {
		m[e.Name] = e.Values
	}
	return m
}
