// Package openapi generates OpenAPI 3.0 documents from compiled modules.
// Every module becomes a set of component schemas and a CRUD collection
// path; enum declarations and the credential schema become shared components.
// With an auth module the document also carries register and authenticate.
package openapi

import (
	"fmt"
	"sort"

	"github.com/artpar/modforge/core/compiler"
	"github.com/artpar/modforge/core/convention"
	"github.com/artpar/modforge/core/validation"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Spec represents an OpenAPI 3.0 document.
type Spec struct {
	OpenAPI    string              `json:"openapi"`
	Info       Info                `json:"info"`
	Servers    []Server            `json:"servers,omitempty"`
	Paths      map[string]PathItem `json:"paths"`
	Components Components          `json:"components"`
	Tags       []Tag               `json:"tags,omitempty"`
}

// Info provides API metadata.
type Info struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

// Server represents a server URL.
type Server struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// PathItem contains operations for a path.
type PathItem struct {
	Get    *Operation `json:"get,omitempty"`
	Post   *Operation `json:"post,omitempty"`
	Patch  *Operation `json:"patch,omitempty"`
	Delete *Operation `json:"delete,omitempty"`
}

// Operation represents an API operation.
type Operation struct {
	Tags        []string            `json:"tags,omitempty"`
	Summary     string              `json:"summary,omitempty"`
	OperationID string              `json:"operationId,omitempty"`
	Parameters  []Parameter         `json:"parameters,omitempty"`
	RequestBody *RequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]Response `json:"responses"`
}

// Parameter represents an API parameter.
type Parameter struct {
	Name        string  `json:"name"`
	In          string  `json:"in"` // path, query
	Description string  `json:"description,omitempty"`
	Required    bool    `json:"required,omitempty"`
	Schema      *Schema `json:"schema,omitempty"`
}

// RequestBody represents a request body.
type RequestBody struct {
	Required bool                 `json:"required,omitempty"`
	Content  map[string]MediaType `json:"content"`
}

// Response represents an API response.
type Response struct {
	Description string               `json:"description"`
	Content     map[string]MediaType `json:"content,omitempty"`
}

// MediaType represents a media type.
type MediaType struct {
	Schema *Schema `json:"schema,omitempty"`
}

// Schema represents a JSON Schema.
type Schema struct {
	Type       string             `json:"type,omitempty"`
	Format     string             `json:"format,omitempty"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Required   []string           `json:"required,omitempty"`
	Items      *Schema            `json:"items,omitempty"`
	Enum       []string           `json:"enum,omitempty"`
	Ref        string             `json:"$ref,omitempty"`
	OneOf      []*Schema          `json:"oneOf,omitempty"`
	Default    any                `json:"default,omitempty"`
}

// Components contains reusable schemas.
type Components struct {
	Schemas map[string]*Schema `json:"schemas,omitempty"`
}

// Tag provides metadata for a group of operations.
type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CredentialSchema is the component name of the shared credential schema.
const CredentialSchema = "Credential"

// AuthTag groups the register and authenticate operations.
const AuthTag = "auth"

// Generator generates OpenAPI documents from a compile result.
type Generator struct {
	result   *compiler.Result
	info     Info
	servers  []Server
	basePath string

	// enum declaration name to component name
	enums map[string]string
}

// NewGenerator creates a new OpenAPI generator.
func NewGenerator(result *compiler.Result) *Generator {
	g := &Generator{
		result: result,
		info: Info{
			Title:       "Modules API",
			Version:     "1.0.0",
			Description: "Generated from compiled module definitions",
		},
		enums: make(map[string]string, len(result.Enums)),
	}
	for _, e := range result.Enums {
		g.enums[e.Name] = e.Type
	}
	return g
}

// SetInfo sets the API info.
func (g *Generator) SetInfo(info Info) {
	g.info = info
}

// AddServer adds a server URL.
func (g *Generator) AddServer(url, description string) {
	g.servers = append(g.servers, Server{URL: url, Description: description})
}

// SetBasePath prefixes every collection path (e.g., "/api").
func (g *Generator) SetBasePath(path string) {
	g.basePath = path
}

// Generate creates the OpenAPI document.
func (g *Generator) Generate() *Spec {
	spec := &Spec{
		OpenAPI: "3.0.3",
		Info:    g.info,
		Servers: g.servers,
		Paths:   make(map[string]PathItem),
		Components: Components{
			Schemas: make(map[string]*Schema),
		},
		Tags: make([]Tag, 0, len(g.result.Modules)),
	}

	for _, e := range g.result.Enums {
		spec.Components.Schemas[e.Type] = &Schema{Type: "string", Enum: e.Values}
	}
	if g.result.Credential != nil {
		spec.Components.Schemas[CredentialSchema] = g.objectSchema(g.result.Credential.Fields, true)
	}

	// Sort modules for consistent output
	modules := append([]compiler.CompiledModule(nil), g.result.Modules...)
	sort.Slice(modules, func(i, j int) bool { return modules[i].Name < modules[j].Name })

	if auth, ok := g.authModule(); ok {
		g.addAuthPaths(spec, auth)
	}
	for _, m := range modules {
		g.generateModule(spec, m)
	}

	return spec
}

// authModule returns the module holding credentials, if the result has one.
func (g *Generator) authModule() (compiler.CompiledModule, bool) {
	if g.result.Credential == nil {
		return compiler.CompiledModule{}, false
	}
	for _, m := range g.result.Modules {
		if m.Auth {
			return m, true
		}
	}
	return compiler.CompiledModule{}, false
}

// addAuthPaths adds registration, which creates an auth module record from
// its merged create schema, and authentication with the credential schema.
func (g *Generator) addAuthPaths(spec *Spec, auth compiler.CompiledModule) {
	title := ComponentName(auth.Name)
	spec.Tags = append(spec.Tags, Tag{
		Name:        AuthTag,
		Description: fmt.Sprintf("Registration and login for %s", auth.Plural),
	})

	spec.Paths[g.basePath+"/register"] = PathItem{Post: &Operation{
		Tags:        []string{AuthTag},
		Summary:     fmt.Sprintf("Register a %s", auth.Name),
		OperationID: "register",
		RequestBody: &RequestBody{
			Required: true,
			Content:  jsonContent(&Schema{Ref: ref(title + "Create")}),
		},
		Responses: map[string]Response{
			"201": {Description: "Registered", Content: jsonContent(&Schema{Ref: ref(title)})},
			"409": {Description: "Identifier already registered"},
			"422": {Description: "Validation failed"},
		},
	}}

	spec.Paths[g.basePath+"/authenticate"] = PathItem{Post: &Operation{
		Tags:        []string{AuthTag},
		Summary:     "Authenticate with credentials",
		OperationID: "authenticate",
		RequestBody: &RequestBody{
			Required: true,
			Content:  jsonContent(&Schema{Ref: ref(CredentialSchema)}),
		},
		Responses: map[string]Response{
			"200": {Description: "Authenticated"},
			"401": {Description: "Invalid credentials"},
			"403": {Description: "Access denied"},
			"422": {Description: "Validation failed"},
		},
	}}
}

// ComponentName returns the component schema name of a module.
func ComponentName(module string) string {
	return convention.PascalCase(module)
}

// generateModule adds a module's schemas, tag and paths to the spec.
func (g *Generator) generateModule(spec *Spec, m compiler.CompiledModule) {
	title := ComponentName(m.Name)

	description := fmt.Sprintf("Stored in the %s collection", m.Plural)
	if m.Auth {
		description += "; holds login credentials"
	}
	spec.Tags = append(spec.Tags, Tag{Name: m.Name, Description: description})

	g.generateSchemas(spec, m, title)

	basePath := g.basePath + "/" + m.Plural
	g.addListPath(spec, m, basePath, title)
	g.addCreatePath(spec, m, basePath, title)
	g.addGetPath(spec, m, basePath, title)
	g.addUpdatePath(spec, m, basePath, title)
	g.addDeletePath(spec, m, basePath, title)
}

// generateSchemas creates component schemas for a module.
func (g *Generator) generateSchemas(spec *Spec, m compiler.CompiledModule, title string) {
	effective := g.result.Effective(m)

	// Full record
	record := g.objectSchema(effective.Fields, false)
	record.Properties["_id"] = &Schema{Type: "string"}
	spec.Components.Schemas[title] = record

	// Create: required attributes must be present
	spec.Components.Schemas[title+"Create"] = g.objectSchema(effective.Fields, true)

	// Bulk create: a list of create bodies
	spec.Components.Schemas[title+"BulkCreate"] = &Schema{
		Type:  "array",
		Items: &Schema{Ref: ref(title + "Create")},
	}

	// Update: every attribute optional
	spec.Components.Schemas[title+"Update"] = g.objectSchema(effective.Fields, false)

	spec.Components.Schemas[title+"List"] = &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"data": {
				Type:  "array",
				Items: &Schema{Ref: ref(title)},
			},
			"count": {Type: "integer"},
		},
	}
}

// objectSchema converts named rules to an object schema. With withRequired
// every non-optional field is listed as required.
func (g *Generator) objectSchema(fields []validation.Field, withRequired bool) *Schema {
	s := &Schema{
		Type:       "object",
		Properties: make(map[string]*Schema, len(fields)),
	}
	for _, f := range fields {
		s.Properties[f.Name] = g.ruleSchema(f.Rule)
		if withRequired && !f.Rule.IsOptional() {
			s.Required = append(s.Required, f.Name)
		}
	}
	return s
}

// ruleSchema converts a validation rule to a JSON Schema.
func (g *Generator) ruleSchema(r *validation.Rule) *Schema {
	if r == nil {
		return &Schema{}
	}

	switch r.Kind {
	case validation.KindOptional:
		return g.ruleSchema(r.Elem)
	case validation.KindArray:
		return &Schema{Type: "array", Items: g.ruleSchema(r.Elem)}
	case validation.KindString:
		return &Schema{Type: "string", Format: r.Format}
	case validation.KindNumber:
		return &Schema{Type: "number"}
	case validation.KindBoolean:
		return &Schema{Type: "boolean"}
	case validation.KindDate:
		return &Schema{Type: "string", Format: "date-time"}
	case validation.KindEnum:
		if name, ok := g.enums[r.Enum]; ok {
			return &Schema{Ref: ref(name)}
		}
		return &Schema{Type: "string", Enum: r.Values}
	case validation.KindObject:
		return g.objectSchema(r.Fields, true)
	case validation.KindRef:
		return &Schema{Ref: ref(ComponentName(r.Ref))}
	case validation.KindUnion:
		s := &Schema{}
		for _, v := range r.Variants {
			s.OneOf = append(s.OneOf, g.ruleSchema(v))
		}
		return s
	default:
		return &Schema{}
	}
}

func ref(name string) string {
	return "#/components/schemas/" + name
}

func jsonContent(s *Schema) map[string]MediaType {
	return map[string]MediaType{"application/json": {Schema: s}}
}

func idParameter() Parameter {
	return Parameter{Name: "id", In: "path", Required: true, Description: "Record ID", Schema: &Schema{Type: "string"}}
}

// addListPath adds the list operation, with population of reference paths.
func (g *Generator) addListPath(spec *Spec, m compiler.CompiledModule, basePath, title string) {
	path := spec.Paths[basePath]

	params := []Parameter{
		{Name: "limit", In: "query", Description: "Maximum number of records", Schema: &Schema{Type: "integer", Default: 100}},
		{Name: "offset", In: "query", Description: "Number of records to skip", Schema: &Schema{Type: "integer", Default: 0}},
	}
	if len(m.Populations) > 0 {
		params = append(params, Parameter{
			Name:        "populate",
			In:          "query",
			Description: "Reference paths to expand",
			Schema:      &Schema{Type: "array", Items: &Schema{Type: "string", Enum: m.Populations}},
		})
	}

	path.Get = &Operation{
		Tags:        []string{m.Name},
		Summary:     fmt.Sprintf("List %s", m.Plural),
		OperationID: "list" + ComponentName(m.Plural),
		Parameters:  params,
		Responses: map[string]Response{
			"200": {Description: "Successful response", Content: jsonContent(&Schema{Ref: ref(title + "List")})},
		},
	}

	spec.Paths[basePath] = path
}

// addCreatePath adds the create operation. A list body creates every
// element in one request.
func (g *Generator) addCreatePath(spec *Spec, m compiler.CompiledModule, basePath, title string) {
	path := spec.Paths[basePath]

	path.Post = &Operation{
		Tags:        []string{m.Name},
		Summary:     fmt.Sprintf("Create one or more %s", m.Plural),
		OperationID: "create" + title,
		RequestBody: &RequestBody{
			Required: true,
			Content: jsonContent(&Schema{OneOf: []*Schema{
				{Ref: ref(title + "Create")},
				{Ref: ref(title + "BulkCreate")},
			}}),
		},
		Responses: map[string]Response{
			"201": {Description: "Records created", Content: jsonContent(&Schema{OneOf: []*Schema{
				{Ref: ref(title)},
				{Type: "array", Items: &Schema{Ref: ref(title)}},
			}})},
			"422": {Description: "Validation failed"},
		},
	}

	spec.Paths[basePath] = path
}

// addGetPath adds the get operation.
func (g *Generator) addGetPath(spec *Spec, m compiler.CompiledModule, basePath, title string) {
	pathWithID := basePath + "/{id}"
	path := spec.Paths[pathWithID]

	path.Get = &Operation{
		Tags:        []string{m.Name},
		Summary:     fmt.Sprintf("Get %s by ID", m.Name),
		OperationID: "get" + title,
		Parameters:  []Parameter{idParameter()},
		Responses: map[string]Response{
			"200": {Description: "Successful response", Content: jsonContent(&Schema{Ref: ref(title)})},
			"404": {Description: "Record not found"},
		},
	}

	spec.Paths[pathWithID] = path
}

// addUpdatePath adds the update operation.
func (g *Generator) addUpdatePath(spec *Spec, m compiler.CompiledModule, basePath, title string) {
	pathWithID := basePath + "/{id}"
	path := spec.Paths[pathWithID]

	path.Patch = &Operation{
		Tags:        []string{m.Name},
		Summary:     fmt.Sprintf("Update %s", m.Name),
		OperationID: "update" + title,
		Parameters:  []Parameter{idParameter()},
		RequestBody: &RequestBody{
			Required: true,
			Content:  jsonContent(&Schema{Ref: ref(title + "Update")}),
		},
		Responses: map[string]Response{
			"200": {Description: "Record updated", Content: jsonContent(&Schema{Ref: ref(title)})},
			"404": {Description: "Record not found"},
			"422": {Description: "Validation failed"},
		},
	}

	spec.Paths[pathWithID] = path
}

// addDeletePath adds the delete operation. Records are soft-deleted through
// the isDeleted flag.
func (g *Generator) addDeletePath(spec *Spec, m compiler.CompiledModule, basePath, title string) {
	pathWithID := basePath + "/{id}"
	path := spec.Paths[pathWithID]

	path.Delete = &Operation{
		Tags:        []string{m.Name},
		Summary:     fmt.Sprintf("Delete %s", m.Name),
		OperationID: "delete" + title,
		Parameters:  []Parameter{idParameter()},
		Responses: map[string]Response{
			"204": {Description: "Record deleted"},
			"404": {Description: "Record not found"},
		},
	}

	spec.Paths[pathWithID] = path
}

// ToJSON serializes the spec to indented JSON.
func (spec *Spec) ToJSON() ([]byte, error) {
	return json.MarshalIndent(spec, "", "  ")
}

// ToJSONCompact serializes the spec to compact JSON.
func (spec *Spec) ToJSONCompact() ([]byte, error) {
	return json.Marshal(spec)
}

// ToYAML serializes the spec to YAML, keeping the JSON field names.
func (spec *Spec) ToYAML() ([]byte, error) {
	data, err := json.Marshal(spec)
	if err != nil {
		return nil, err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	blockStyle(&node)
	return yaml.Marshal(&node)
}

// blockStyle drops the flow and quoting styles parsed from JSON.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
