package compiler

import (
	"github.com/artpar/modforge/core/convention"
	"github.com/artpar/modforge/core/schema"
	"github.com/artpar/modforge/core/validation"
)

// ValidationSchema compiles a resolved module into its validation schema.
// For the auth module the credential attributes are removed first and the
// schema is flagged for merging with CredentialSchema.
func (c *Context) ValidationSchema(mod schema.Module) *validation.Schema {
	s := &validation.Schema{Name: mod.SingularName}

	attrs := mod.Attributes
	if c.isAuthModule(mod) {
		attrs = withoutCredentials(mod)
		s.MergeCredentials = true
	}

	s.Fields = c.ruleFields(attrs)
	return s
}

// EffectiveSchema returns the schema input is actually checked against:
// the validation schema, merged with the credential schema for the auth module.
func (c *Context) EffectiveSchema(mod schema.Module) *validation.Schema {
	s := c.ValidationSchema(mod)
	if !s.MergeCredentials {
		return s
	}
	return c.CredentialSchema().Merge(s)
}

func (c *Context) ruleFields(attrs []schema.Attribute) []validation.Field {
	fields := make([]validation.Field, 0, len(attrs))
	for _, a := range attrs {
		fields = append(fields, validation.Field{
			Name: convention.CamelCase(a.Name),
			Rule: c.attributeRule(a),
		})
	}
	return fields
}

// attributeRule composes base rule, then array, then optional.
// Base precedence: enum, nested object, reference, primitive.
func (c *Context) attributeRule(a schema.Attribute) *validation.Rule {
	var rule *validation.Rule
	switch {
	case a.HasEnum():
		rule = validation.Enum(convention.EnumName(a.Name), a.Enum)
	case a.IsObject():
		rule = validation.Object(c.ruleFields(a.Attributes)...)
	case a.IsRef:
		// Callers send either the populated record or just its identifier.
		rule = validation.Union(validation.Ref(c.targetName(a.Type)), validation.String())
	default:
		rule = primitiveRule(a.Type)
	}

	if a.Array {
		rule = rule.Array()
	}
	if !a.Required {
		rule = rule.Optional()
	}
	return rule
}

func primitiveRule(typ string) *validation.Rule {
	switch typ {
	case schema.TypeString:
		return validation.String()
	case schema.TypeNumber:
		return validation.Number()
	case schema.TypeBoolean:
		return validation.Boolean()
	case schema.TypeDate:
		return validation.Date()
	case schema.TypeObject:
		return validation.Object()
	default:
		return &validation.Rule{Kind: validation.Kind(typ)}
	}
}
