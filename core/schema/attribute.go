package schema

import (
	"gopkg.in/yaml.v3"
)

// Attribute describes one field of a module or of a nested object attribute.
type Attribute struct {
	// Name is unique within its parent attribute list.
	Name string `yaml:"name" json:"name"`

	// Type is a primitive tag or the singular/plural name of a module.
	Type string `yaml:"type" json:"type"`

	// Required indicates the field must be present.
	Required bool `yaml:"required,omitempty" json:"required,omitempty"`

	// Unique indicates stored values must not repeat.
	Unique bool `yaml:"unique,omitempty" json:"unique,omitempty"`

	// Array indicates the field holds a sequence of Type.
	Array bool `yaml:"array,omitempty" json:"array,omitempty"`

	// Default is an optional literal value.
	Default any `yaml:"default,omitempty" json:"default,omitempty"`

	// Enum lists the allowed literal values. When set it overrides Type.
	Enum []string `yaml:"enum,omitempty" json:"enum,omitempty"`

	// Attributes is the nested shape, present only when Type is object.
	Attributes []Attribute `yaml:"attributes,omitempty" json:"attributes,omitempty"`

	// IsRef is derived by reference resolution and never authored.
	IsRef bool `yaml:"-" json:"isRef"`
}

// Primitive attribute types.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeDate    = "date"
	TypeObject  = "object"
)

// typeAliases maps loosely-authored type names to primitives.
var typeAliases = map[string]string{
	"int":     TypeNumber,
	"integer": TypeNumber,
	"float":   TypeNumber,
	"double":  TypeNumber,
	"decimal": TypeNumber,
	"bool":    TypeBoolean,
}

// NormalizeType returns the canonical primitive for an alias, or t unchanged.
func NormalizeType(t string) string {
	if canonical, ok := typeAliases[t]; ok {
		return canonical
	}
	return t
}

// IsPrimitive reports whether t is one of the primitive type tags.
func IsPrimitive(t string) bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeDate, TypeObject:
		return true
	default:
		return false
	}
}

// IsObject reports whether the attribute declares a nested shape.
func (a Attribute) IsObject() bool {
	return a.Type == TypeObject && len(a.Attributes) > 0
}

// HasEnum reports whether the attribute is constrained to literal values.
func (a Attribute) HasEnum() bool {
	return len(a.Enum) > 0
}

// UnmarshalYAML accepts isArray as an alias of array and normalizes type aliases.
func (a *Attribute) UnmarshalYAML(node *yaml.Node) error {
	type plain Attribute
	var raw struct {
		plain   `yaml:",inline"`
		IsArray bool `yaml:"isArray,omitempty"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	*a = Attribute(raw.plain)
	a.Array = a.Array || raw.IsArray
	a.Type = NormalizeType(a.Type)
	return nil
}

func cloneAttributes(attrs []Attribute) []Attribute {
	if attrs == nil {
		return nil
	}
	out := make([]Attribute, len(attrs))
	for i, a := range attrs {
		out[i] = a
		if a.Enum != nil {
			out[i].Enum = append([]string(nil), a.Enum...)
		}
		out[i].Attributes = cloneAttributes(a.Attributes)
	}
	return out
}
