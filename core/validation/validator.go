// Package validation provides compiled validation-rule trees and an evaluator
// that checks values against them.
package validation

import (
	"fmt"
	"net/mail"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// FieldError represents one validation failure.
type FieldError struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Value      any    `json:"value,omitempty"`
	Message    string `json:"message"`
}

func (e FieldError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Result holds all validation errors for a value.
type Result struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors,omitempty"`
}

// AddError adds a validation error.
func (r *Result) AddError(field, constraint string, value any, message string) {
	r.Valid = false
	r.Errors = append(r.Errors, FieldError{
		Field:      field,
		Constraint: constraint,
		Value:      value,
		Message:    message,
	})
}

// Error returns a combined error message.
func (r Result) Error() string {
	if r.Valid {
		return ""
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// Resolver looks up the compiled schema of a referenced module.
type Resolver interface {
	Schema(module string) (*Schema, bool)
}

// Validator checks values against compiled rules.
type Validator struct {
	refs   Resolver
	strict bool
}

// Option configures a Validator.
type Option func(*Validator)

// WithResolver resolves ref rules against other modules' schemas.
// Without a resolver any object satisfies a ref rule.
func WithResolver(r Resolver) Option {
	return func(v *Validator) { v.refs = r }
}

// Strict rejects object keys that are not declared in the rule.
func Strict() Option {
	return func(v *Validator) { v.strict = true }
}

// New creates a new validator.
func New(opts ...Option) *Validator {
	v := &Validator{}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateSchema validates a record against a module schema.
func (v *Validator) ValidateSchema(s *Schema, data map[string]any) Result {
	result := Result{Valid: true}
	v.validateObject(&result, "", s.Fields, data, 0)
	return result
}

// Validate validates a single value against a rule.
// A nil value stands for an absent one.
func (v *Validator) Validate(rule *Rule, value any) Result {
	result := Result{Valid: true}
	v.validate(&result, "", rule, value, 0)
	return result
}

// maxRefDepth bounds recursion through self-referencing schemas.
const maxRefDepth = 32

func (v *Validator) validate(result *Result, path string, rule *Rule, value any, depth int) {
	if rule == nil {
		return
	}

	if rule.Kind == KindOptional {
		if value == nil {
			return
		}
		v.validate(result, path, rule.Elem, value, depth)
		return
	}

	if value == nil {
		result.AddError(path, "required", nil, "field is required")
		return
	}

	switch rule.Kind {
	case KindString:
		str, ok := value.(string)
		if !ok {
			result.AddError(path, "type", value, "must be a string")
			return
		}
		if rule.Format == FormatEmail {
			if _, err := mail.ParseAddress(str); err != nil {
				result.AddError(path, "format", value, "invalid email address")
			}
		}

	case KindNumber:
		if !isNumber(value) {
			result.AddError(path, "type", value, "must be a number")
		}

	case KindBoolean:
		if _, ok := value.(bool); !ok {
			result.AddError(path, "type", value, "must be a boolean")
		}

	case KindDate:
		if !isDate(value) {
			result.AddError(path, "type", value, "must be a date")
		}

	case KindEnum:
		if !containsLiteral(rule.Values, value) {
			result.AddError(path, "enum", value,
				fmt.Sprintf("must be one of: %s", strings.Join(rule.Values, ", ")))
		}

	case KindObject:
		obj, ok := value.(map[string]any)
		if !ok {
			result.AddError(path, "type", value, "must be an object")
			return
		}
		v.validateObject(result, path, rule.Fields, obj, depth)

	case KindRef:
		v.validateRef(result, path, rule, value, depth)

	case KindUnion:
		for _, variant := range rule.Variants {
			if r := v.sub(path, variant, value, depth); r.Valid {
				return
			}
		}
		result.AddError(path, "union", value, "does not match any allowed shape")

	case KindArray:
		items, ok := asSlice(value)
		if !ok {
			result.AddError(path, "type", value, "must be an array")
			return
		}
		for i, item := range items {
			v.validate(result, path+"["+strconv.Itoa(i)+"]", rule.Elem, item, depth)
		}

	default:
		result.AddError(path, "rule", value, fmt.Sprintf("unknown rule kind %q", rule.Kind))
	}
}

func (v *Validator) validateObject(result *Result, path string, fields []Field, data map[string]any, depth int) {
	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f.Name] = true
		v.validate(result, joinPath(path, f.Name), f.Rule, data[f.Name], depth)
	}

	if !v.strict {
		return
	}
	for name, value := range data {
		if !known[name] {
			result.AddError(joinPath(path, name), "unknown_field", value,
				fmt.Sprintf("unknown field '%s' - not defined in schema", name))
		}
	}
}

func (v *Validator) validateRef(result *Result, path string, rule *Rule, value any, depth int) {
	obj, ok := value.(map[string]any)
	if !ok {
		result.AddError(path, "type", value, fmt.Sprintf("must be a %s object", rule.Ref))
		return
	}
	if v.refs == nil || depth >= maxRefDepth {
		return
	}
	target, ok := v.refs.Schema(rule.Ref)
	if !ok {
		return
	}
	v.validateObject(result, path, target.Fields, obj, depth+1)
}

// sub validates into a scratch result so union variants don't leak errors.
func (v *Validator) sub(path string, rule *Rule, value any, depth int) Result {
	r := Result{Valid: true}
	v.validate(&r, path, rule, value, depth)
	return r
}

func isNumber(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

func isDate(value any) bool {
	switch d := value.(type) {
	case time.Time:
		return !d.IsZero()
	case string:
		if _, err := time.Parse(time.RFC3339, d); err == nil {
			return true
		}
		_, err := time.Parse(time.DateOnly, d)
		return err == nil
	default:
		return false
	}
}

func containsLiteral(values []string, value any) bool {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case bool, int, int32, int64, float64:
		s = fmt.Sprint(v)
	default:
		return false
	}
	for _, allowed := range values {
		if allowed == s {
			return true
		}
	}
	return false
}

func asSlice(value any) ([]any, bool) {
	if items, ok := value.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
