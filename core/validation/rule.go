package validation

import "strings"

// Kind identifies a validation rule node.
type Kind string

const (
	KindString   Kind = "string"
	KindNumber   Kind = "number"
	KindBoolean  Kind = "boolean"
	KindDate     Kind = "date"
	KindEnum     Kind = "enum"
	KindObject   Kind = "object"
	KindRef      Kind = "ref"
	KindUnion    Kind = "union"
	KindArray    Kind = "array"
	KindOptional Kind = "optional"
)

// FormatEmail constrains a string rule to email addresses.
const FormatEmail = "email"

// Rule is one node of a compiled validation-rule tree.
// Array and Optional wrap Elem; Union lists Variants; Object lists Fields.
type Rule struct {
	Kind Kind `json:"kind" yaml:"kind"`

	// Format further constrains a string rule (e.g., "email").
	Format string `json:"format,omitempty" yaml:"format,omitempty"`

	// Enum is the declaration name backing an enum rule.
	Enum string `json:"enum,omitempty" yaml:"enum,omitempty"`

	// Values are the allowed literals of an enum rule.
	Values []string `json:"values,omitempty" yaml:"values,omitempty"`

	// Ref is the singular name of the module a ref rule points at.
	Ref string `json:"ref,omitempty" yaml:"ref,omitempty"`

	Fields   []Field `json:"fields,omitempty" yaml:"fields,omitempty"`
	Variants []*Rule `json:"variants,omitempty" yaml:"variants,omitempty"`
	Elem     *Rule   `json:"elem,omitempty" yaml:"elem,omitempty"`
}

// Field is a named rule inside an object rule or schema.
type Field struct {
	Name string `json:"name" yaml:"name"`
	Rule *Rule  `json:"rule" yaml:"rule"`
}

// String returns a string rule.
func String() *Rule { return &Rule{Kind: KindString} }

// Email returns a string rule constrained to email addresses.
func Email() *Rule { return &Rule{Kind: KindString, Format: FormatEmail} }

// Number returns a number rule.
func Number() *Rule { return &Rule{Kind: KindNumber} }

// Boolean returns a boolean rule.
func Boolean() *Rule { return &Rule{Kind: KindBoolean} }

// Date returns a date rule.
func Date() *Rule { return &Rule{Kind: KindDate} }

// Enum returns a rule accepting only the given literals.
func Enum(name string, values []string) *Rule {
	return &Rule{Kind: KindEnum, Enum: name, Values: append([]string(nil), values...)}
}

// Object returns a nested-shape rule.
func Object(fields ...Field) *Rule { return &Rule{Kind: KindObject, Fields: fields} }

// Ref returns a rule that checks a value against another module's schema.
func Ref(module string) *Rule { return &Rule{Kind: KindRef, Ref: module} }

// Union returns a rule satisfied by any of its variants.
func Union(variants ...*Rule) *Rule { return &Rule{Kind: KindUnion, Variants: variants} }

// Array wraps r so the value must be a sequence of r.
func (r *Rule) Array() *Rule { return &Rule{Kind: KindArray, Elem: r} }

// Optional wraps r so an absent value is accepted.
func (r *Rule) Optional() *Rule { return &Rule{Kind: KindOptional, Elem: r} }

// IsOptional reports whether the outermost wrap is optional.
func (r *Rule) IsOptional() bool { return r != nil && r.Kind == KindOptional }

// Unwrap strips optional and array wraps down to the base rule.
func (r *Rule) Unwrap() *Rule {
	for r != nil && (r.Kind == KindOptional || r.Kind == KindArray) {
		r = r.Elem
	}
	return r
}

// Schema is the compiled validation schema of one module.
type Schema struct {
	// Name is the schema identifier (module singular name, or "auth").
	Name string `json:"name" yaml:"name"`

	// Fields are the named rules in attribute declaration order.
	Fields []Field `json:"fields" yaml:"fields"`

	// MergeCredentials marks the schema as merged with the shared credential schema.
	MergeCredentials bool `json:"mergeCredentials,omitempty" yaml:"mergeCredentials,omitempty"`
}

// Field returns the named rule of the schema.
func (s *Schema) Field(name string) (*Rule, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Rule, true
		}
	}
	return nil, false
}

// Names returns the field names in order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Merge returns the schema formed by s's fields followed by other's.
// Fields of other replace same-named fields of s in place.
func (s *Schema) Merge(other *Schema) *Schema {
	out := &Schema{Name: other.Name}
	index := make(map[string]int, len(s.Fields)+len(other.Fields))

	for _, f := range s.Fields {
		index[f.Name] = len(out.Fields)
		out.Fields = append(out.Fields, f)
	}
	for _, f := range other.Fields {
		if i, ok := index[f.Name]; ok {
			out.Fields[i] = f
			continue
		}
		index[f.Name] = len(out.Fields)
		out.Fields = append(out.Fields, f)
	}
	return out
}

// Rule returns the schema as an object rule.
func (s *Schema) Rule() *Rule {
	return Object(s.Fields...)
}

// String renders the rule tree compactly, e.g. "optional(array(string))".
func (r *Rule) String() string {
	if r == nil {
		return "<nil>"
	}

	switch r.Kind {
	case KindString:
		if r.Format != "" {
			return "string(" + r.Format + ")"
		}
		return "string"
	case KindEnum:
		return "enum(" + r.Enum + ")"
	case KindRef:
		return "ref(" + r.Ref + ")"
	case KindObject:
		names := make([]string, len(r.Fields))
		for i, f := range r.Fields {
			names[i] = f.Name
		}
		return "object{" + strings.Join(names, ", ") + "}"
	case KindUnion:
		parts := make([]string, len(r.Variants))
		for i, v := range r.Variants {
			parts[i] = v.String()
		}
		return "union(" + strings.Join(parts, " | ") + ")"
	case KindArray, KindOptional:
		return string(r.Kind) + "(" + r.Elem.String() + ")"
	default:
		return string(r.Kind)
	}
}
