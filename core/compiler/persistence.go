package compiler

import (
	"github.com/artpar/modforge/core/convention"
	"github.com/artpar/modforge/core/schema"
	"github.com/artpar/modforge/core/storage"
)

// PersistenceSchema compiles a resolved module into its storage descriptor.
// Credentials are never filtered here. Every module gains the soft-delete
// flag and its index; the auth module also gains accessType plus indexes on
// its identifier and accessType.
func (c *Context) PersistenceSchema(mod schema.Module) *storage.Document {
	doc := &storage.Document{
		Name:       mod.SingularName,
		Collection: mod.PluralName,
		Fields:     c.storageFields(mod.Attributes),
		Timestamps: true,
	}

	if mod.IsAuth() {
		doc.Fields = append(doc.Fields, accessTypeField())
	}
	doc.Fields = append(doc.Fields, storage.Field{
		Name:     storage.FieldIsDeleted,
		Type:     storage.TypeBoolean,
		Default:  false,
		Implicit: true,
	})

	doc.Indexes = append(doc.Indexes, storage.Index{Fields: []string{storage.FieldIsDeleted}})
	if mod.IsAuth() {
		doc.Indexes = append(doc.Indexes,
			storage.Index{Fields: []string{convention.CamelCase(mod.Auth.Identifier)}},
			storage.Index{Fields: []string{storage.FieldAccessType}},
		)
	}

	return doc
}

func (c *Context) storageFields(attrs []schema.Attribute) []storage.Field {
	fields := make([]storage.Field, 0, len(attrs))
	for _, a := range attrs {
		fields = append(fields, c.storageField(a))
	}
	return fields
}

func (c *Context) storageField(a schema.Attribute) storage.Field {
	f := storage.Field{
		Name:     convention.CamelCase(a.Name),
		Array:    a.Array,
		Required: a.Required,
		Default:  a.Default,
	}

	switch {
	case a.HasEnum():
		f.Type = enumStorageType(a.Type)
		f.Enum = convention.EnumName(a.Name)
	case a.IsObject():
		f.Type = storage.TypeDocument
		f.Document = &storage.Document{
			Name:       f.Name,
			Fields:     c.storageFields(a.Attributes),
			ID:         true,
			Timestamps: true,
		}
	case a.IsRef:
		f.Type = storage.TypeObjectID
		f.Ref = c.refTarget(a.Type)
	default:
		f.Type = primitiveStorageType(a.Type)
	}

	if f.Type == storage.TypeString {
		f.Trim = true
	}

	if a.Unique {
		f.Unique = true
		// Absent values must not collide under the unique index.
		f.Sparse = !a.Required
	}

	return f
}

func (c *Context) refTarget(typ string) *storage.Ref {
	if mod, ok := c.Target(typ); ok {
		return &storage.Ref{Module: mod.SingularName, Collection: mod.PluralName}
	}
	names := convention.ModuleNames(typ)
	return &storage.Ref{Module: names.Singular, Collection: names.Plural}
}

func primitiveStorageType(typ string) storage.Type {
	switch typ {
	case schema.TypeNumber:
		return storage.TypeNumber
	case schema.TypeBoolean:
		return storage.TypeBoolean
	case schema.TypeDate:
		return storage.TypeDate
	case schema.TypeObject:
		return storage.TypeDocument
	default:
		return storage.TypeString
	}
}

// enumStorageType keeps numeric and boolean enums in their native type.
func enumStorageType(typ string) storage.Type {
	switch typ {
	case schema.TypeNumber:
		return storage.TypeNumber
	case schema.TypeBoolean:
		return storage.TypeBoolean
	default:
		return storage.TypeString
	}
}
