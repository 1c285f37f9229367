package compiler

import (
	"github.com/artpar/modforge/core/convention"
	"github.com/artpar/modforge/core/schema"
	"github.com/artpar/modforge/core/storage"
	"github.com/artpar/modforge/core/validation"
)

// CredentialSchemaName names the shared credential schema.
const CredentialSchemaName = "auth"

// Access levels every authenticable record carries.
const (
	AccessAdmin    = "ADMIN"
	AccessApproved = "APPROVED"
	AccessDenied   = "DENIED"
)

// AccessTypes lists the access levels in declaration order.
var AccessTypes = []string{AccessAdmin, AccessApproved, AccessDenied}

// AccessTypesEnum is the declaration name of the access-level enumeration.
var AccessTypesEnum = convention.EnumName(storage.FieldAccessType)

// CredentialSchema returns the shared login schema of the auth module:
// identifier as an email string, password as a string and an optional
// access level. It returns nil when the batch has no auth module.
func (c *Context) CredentialSchema() *validation.Schema {
	mod, ok := c.AuthModule()
	if !ok {
		return nil
	}
	return CredentialSchema(mod)
}

// CredentialSchema builds the credential schema for an auth module.
func CredentialSchema(mod schema.Module) *validation.Schema {
	return &validation.Schema{
		Name: CredentialSchemaName,
		Fields: []validation.Field{
			{Name: convention.CamelCase(mod.Auth.Identifier), Rule: validation.Email()},
			{Name: convention.CamelCase(mod.Auth.Password), Rule: validation.String()},
			{Name: storage.FieldAccessType, Rule: validation.Enum(AccessTypesEnum, AccessTypes).Optional()},
		},
	}
}

// withoutCredentials drops the identifier and password attributes.
func withoutCredentials(mod schema.Module) []schema.Attribute {
	attrs := make([]schema.Attribute, 0, len(mod.Attributes))
	for _, a := range mod.Attributes {
		if a.Name == mod.Auth.Identifier || a.Name == mod.Auth.Password {
			continue
		}
		attrs = append(attrs, a)
	}
	return attrs
}

func accessTypeField() storage.Field {
	return storage.Field{
		Name:     storage.FieldAccessType,
		Type:     storage.TypeString,
		Trim:     true,
		Default:  AccessDenied,
		Enum:     AccessTypesEnum,
		Implicit: true,
	}
}
