// Package storage describes how compiled modules are persisted: field storage
// types, uniqueness and sparse hints, defaults, reference links, enum links
// and indexes. The descriptors are backend-neutral field trees; turning them
// into a concrete model definition is the emitter's job.
package storage

// Type is a storage field type.
type Type string

const (
	TypeString   Type = "String"
	TypeNumber   Type = "Number"
	TypeBoolean  Type = "Boolean"
	TypeDate     Type = "Date"
	TypeObjectID Type = "ObjectId"
	TypeDocument Type = "Document"
)

// Implicit system fields.
const (
	FieldIsDeleted  = "isDeleted"
	FieldAccessType = "accessType"
)

// Document is the storage descriptor of a module or of a nested object.
type Document struct {
	// Name is the module singular name, or the attribute name for sub-documents.
	Name string `json:"name" yaml:"name"`

	// Collection is the storage collection of a root document.
	Collection string `json:"collection,omitempty" yaml:"collection,omitempty"`

	Fields  []Field `json:"fields" yaml:"fields"`
	Indexes []Index `json:"indexes,omitempty" yaml:"indexes,omitempty"`

	// ID marks sub-documents as independently addressable records.
	ID bool `json:"id,omitempty" yaml:"id,omitempty"`

	// Timestamps adds created/updated timestamps.
	Timestamps bool `json:"timestamps" yaml:"timestamps"`

	// VersionKey keeps a document revision counter.
	VersionKey bool `json:"versionKey" yaml:"versionKey"`
}

// Field is one storage field descriptor.
type Field struct {
	Name string `json:"name" yaml:"name"`
	Type Type   `json:"type" yaml:"type"`

	// Array stores a sequence of Type.
	Array bool `json:"array,omitempty" yaml:"array,omitempty"`

	// Document is the nested descriptor when Type is TypeDocument.
	Document *Document `json:"document,omitempty" yaml:"document,omitempty"`

	Unique   bool `json:"unique,omitempty" yaml:"unique,omitempty"`
	Sparse   bool `json:"sparse,omitempty" yaml:"sparse,omitempty"`
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`

	// Trim strips surrounding whitespace from string values.
	Trim bool `json:"trim,omitempty" yaml:"trim,omitempty"`

	Default any `json:"default,omitempty" yaml:"default,omitempty"`

	// Ref links an ObjectId field to its target module.
	Ref *Ref `json:"ref,omitempty" yaml:"ref,omitempty"`

	// Enum names the enumeration declaration constraining the field.
	Enum string `json:"enum,omitempty" yaml:"enum,omitempty"`

	// Implicit marks system fields not present in the authored attributes.
	Implicit bool `json:"implicit,omitempty" yaml:"implicit,omitempty"`
}

// Ref is a foreign-key link to another module.
type Ref struct {
	// Module is the target's canonical (singular) key.
	Module string `json:"module" yaml:"module"`

	// Collection is the target's storage collection.
	Collection string `json:"collection" yaml:"collection"`
}

// Index is an ascending storage index over one or more fields.
type Index struct {
	Fields []string `json:"fields" yaml:"fields"`
}

// Field returns the named field of the document.
func (d *Document) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Names returns the field names in order.
func (d *Document) Names() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	return names
}

// HasIndex reports whether an index covers exactly the given fields.
func (d *Document) HasIndex(fields ...string) bool {
	for _, idx := range d.Indexes {
		if equalStrings(idx.Fields, fields) {
			return true
		}
	}
	return false
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
