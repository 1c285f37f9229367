package openapi

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/artpar/modforge/core/compiler"
	"github.com/artpar/modforge/core/registry"
	"github.com/artpar/modforge/core/schema"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Helper function to compile a blog batch with an auth module
func compileBlog(t *testing.T) *compiler.Result {
	t.Helper()
	batch := schema.Batch{
		{
			SingularName: "user",
			PluralName:   "users",
			Auth:         &schema.Auth{Identifier: "email", Password: "password"},
			Attributes: []schema.Attribute{
				{Name: "email", Type: schema.TypeString, Required: true},
				{Name: "password", Type: schema.TypeString, Required: true},
				{Name: "name", Type: schema.TypeString},
			},
		},
		{
			SingularName: "post",
			PluralName:   "posts",
			Attributes: []schema.Attribute{
				{Name: "title", Type: schema.TypeString, Required: true},
				{Name: "status", Type: schema.TypeString, Enum: []string{"DRAFT", "LIVE"}},
				{Name: "tags", Type: schema.TypeString, Array: true},
				{Name: "publishedAt", Type: schema.TypeDate},
				{Name: "author", Type: "user"},
				{Name: "meta", Type: schema.TypeObject, Attributes: []schema.Attribute{
					{Name: "views", Type: schema.TypeNumber, Required: true},
				}},
			},
		},
	}
	result, err := compiler.Compile(context.Background(), batch)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return result
}

// =============================================================================
// Generator Tests
// =============================================================================

func TestGenerator_Paths(t *testing.T) {
	g := NewGenerator(compileBlog(t))
	g.SetBasePath("/api")
	spec := g.Generate()

	if spec.OpenAPI != "3.0.3" {
		t.Errorf("OpenAPI = %s, want 3.0.3", spec.OpenAPI)
	}

	tests := []struct {
		path    string
		methods []string
	}{
		{"/api/posts", []string{"get", "post"}},
		{"/api/posts/{id}", []string{"get", "patch", "delete"}},
		{"/api/users", []string{"get", "post"}},
		{"/api/users/{id}", []string{"get", "patch", "delete"}},
		{"/api/register", []string{"post"}},
		{"/api/authenticate", []string{"post"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			item, ok := spec.Paths[tt.path]
			if !ok {
				t.Fatalf("path %s missing", tt.path)
			}
			ops := map[string]*Operation{"get": item.Get, "post": item.Post, "patch": item.Patch, "delete": item.Delete}
			for method, op := range ops {
				want := slices.Contains(tt.methods, method)
				if (op != nil) != want {
					t.Errorf("%s %s present = %v, want %v", method, tt.path, op != nil, want)
				}
			}
		})
	}

	if len(spec.Paths) != len(tests) {
		t.Errorf("len(Paths) = %d, want %d", len(spec.Paths), len(tests))
	}
	if len(spec.Tags) != 3 || spec.Tags[0].Name != AuthTag || spec.Tags[1].Name != "post" || spec.Tags[2].Name != "user" {
		t.Errorf("Tags = %+v, want auth, post, user", spec.Tags)
	}
}

func TestGenerator_ListPopulate(t *testing.T) {
	spec := NewGenerator(compileBlog(t)).Generate()

	var populate *Parameter
	for i, p := range spec.Paths["/posts"].Get.Parameters {
		if p.Name == "populate" {
			populate = &spec.Paths["/posts"].Get.Parameters[i]
		}
	}
	if populate == nil {
		t.Fatal("list posts should accept populate")
	}
	if got := populate.Schema.Items.Enum; !slices.Equal(got, []string{"author"}) {
		t.Errorf("populate values = %v, want [author]", got)
	}

	for _, p := range spec.Paths["/users"].Get.Parameters {
		if p.Name == "populate" {
			t.Error("users have no references to populate")
		}
	}
}

func TestGenerator_Schemas(t *testing.T) {
	spec := NewGenerator(compileBlog(t)).Generate()
	schemas := spec.Components.Schemas

	for _, name := range []string{"Post", "PostCreate", "PostUpdate", "PostList", "User", "UserCreate", "StatusEnum", "AccessTypeEnum", CredentialSchema} {
		if _, ok := schemas[name]; !ok {
			t.Errorf("component %s missing", name)
		}
	}

	post := schemas["Post"]
	tests := []struct {
		field string
		check func(*Schema) bool
	}{
		{"title", func(s *Schema) bool { return s.Type == "string" }},
		{"status", func(s *Schema) bool { return s.Ref == "#/components/schemas/StatusEnum" }},
		{"tags", func(s *Schema) bool { return s.Type == "array" && s.Items.Type == "string" }},
		{"publishedAt", func(s *Schema) bool { return s.Type == "string" && s.Format == "date-time" }},
		{"author", func(s *Schema) bool {
			return len(s.OneOf) == 2 && s.OneOf[0].Ref == "#/components/schemas/User" && s.OneOf[1].Type == "string"
		}},
		{"meta", func(s *Schema) bool { return s.Type == "object" && slices.Equal(s.Required, []string{"views"}) }},
		{"_id", func(s *Schema) bool { return s.Type == "string" }},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			s, ok := post.Properties[tt.field]
			if !ok {
				t.Fatalf("Post.%s missing", tt.field)
			}
			if !tt.check(s) {
				data, _ := json.Marshal(s)
				t.Errorf("Post.%s = %s", tt.field, data)
			}
		})
	}

	if got := schemas["PostCreate"].Required; !slices.Equal(got, []string{"title"}) {
		t.Errorf("PostCreate.Required = %v, want [title]", got)
	}
	if got := schemas["PostUpdate"].Required; len(got) != 0 {
		t.Errorf("PostUpdate.Required = %v, want none", got)
	}
	if got := schemas["StatusEnum"].Enum; !slices.Equal(got, []string{"DRAFT", "LIVE"}) {
		t.Errorf("StatusEnum = %v", got)
	}
}

func TestGenerator_AuthModuleMergesCredentials(t *testing.T) {
	spec := NewGenerator(compileBlog(t)).Generate()
	create := spec.Components.Schemas["UserCreate"]

	email, ok := create.Properties["email"]
	if !ok || email.Format != "email" {
		t.Errorf("UserCreate.email = %+v, want email format", email)
	}
	if _, ok := create.Properties["accessType"]; !ok {
		t.Error("UserCreate should include accessType from the credential schema")
	}
	for _, name := range []string{"email", "password"} {
		if !slices.Contains(create.Required, name) {
			t.Errorf("UserCreate.Required = %v, missing %s", create.Required, name)
		}
	}
}

func TestGenerator_AuthPaths(t *testing.T) {
	spec := NewGenerator(compileBlog(t)).Generate()

	register, ok := spec.Paths["/register"]
	if !ok || register.Post == nil {
		t.Fatal("POST /register missing")
	}
	if got := register.Post.RequestBody.Content["application/json"].Schema.Ref; got != "#/components/schemas/UserCreate" {
		t.Errorf("register body = %s, want UserCreate", got)
	}

	authenticate, ok := spec.Paths["/authenticate"]
	if !ok || authenticate.Post == nil {
		t.Fatal("POST /authenticate missing")
	}
	if got := authenticate.Post.RequestBody.Content["application/json"].Schema.Ref; got != "#/components/schemas/"+CredentialSchema {
		t.Errorf("authenticate body = %s, want %s", got, CredentialSchema)
	}
	if _, ok := authenticate.Post.Responses["401"]; !ok {
		t.Error("authenticate should document 401")
	}
}

func TestGenerator_NoAuthModule(t *testing.T) {
	batch := schema.Batch{{
		SingularName: "note",
		PluralName:   "notes",
		Attributes:   []schema.Attribute{{Name: "body", Type: schema.TypeString}},
	}}
	result, err := compiler.Compile(context.Background(), batch)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	spec := NewGenerator(result).Generate()
	for _, path := range []string{"/register", "/authenticate"} {
		if _, ok := spec.Paths[path]; ok {
			t.Errorf("%s present without an auth module", path)
		}
	}
	if _, ok := spec.Components.Schemas[CredentialSchema]; ok {
		t.Error("Credential component present without an auth module")
	}
	for _, tag := range spec.Tags {
		if tag.Name == AuthTag {
			t.Error("auth tag present without an auth module")
		}
	}
}

func TestGenerator_BulkCreate(t *testing.T) {
	spec := NewGenerator(compileBlog(t)).Generate()

	bulk, ok := spec.Components.Schemas["PostBulkCreate"]
	if !ok {
		t.Fatal("PostBulkCreate component missing")
	}
	if bulk.Type != "array" || bulk.Items.Ref != "#/components/schemas/PostCreate" {
		t.Errorf("PostBulkCreate = %+v, want array of PostCreate", bulk)
	}

	body := spec.Paths["/posts"].Post.RequestBody.Content["application/json"].Schema
	var refs []string
	for _, variant := range body.OneOf {
		refs = append(refs, variant.Ref)
	}
	want := []string{"#/components/schemas/PostCreate", "#/components/schemas/PostBulkCreate"}
	if !slices.Equal(refs, want) {
		t.Errorf("create body variants = %v, want %v", refs, want)
	}
}

func TestSpec_Serialization(t *testing.T) {
	g := NewGenerator(compileBlog(t))
	g.SetInfo(Info{Title: "Blog", Version: "2.0.0"})
	g.AddServer("http://localhost:8420", "preview")
	spec := g.Generate()

	data, err := spec.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	if !strings.Contains(string(data), `"$ref": "#/components/schemas/StatusEnum"`) {
		t.Error("JSON should contain enum refs")
	}

	compact, err := spec.ToJSONCompact()
	if err != nil {
		t.Fatalf("ToJSONCompact() error = %v", err)
	}
	if len(compact) >= len(data) {
		t.Errorf("compact JSON (%d bytes) should be smaller than indented (%d bytes)", len(compact), len(data))
	}

	out, err := spec.ToYAML()
	if err != nil {
		t.Fatalf("ToYAML() error = %v", err)
	}
	var decoded map[string]any
	if err := yaml.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("YAML does not parse: %v", err)
	}
	if decoded["openapi"] != "3.0.3" {
		t.Errorf("openapi = %v, want 3.0.3 as a string", decoded["openapi"])
	}
	info, _ := decoded["info"].(map[string]any)
	if info["title"] != "Blog" {
		t.Errorf("info.title = %v, want Blog", info["title"])
	}
	if strings.Contains(string(out), "{") {
		t.Errorf("YAML should use block style:\n%s", out)
	}
}

// =============================================================================
// Service Tests
// =============================================================================

func TestService_CachesByRevision(t *testing.T) {
	reg := registry.New()
	if err := reg.Load(compileBlog(t)); err != nil {
		t.Fatal(err)
	}

	svc := NewService(ServiceConfig{Registry: reg, Info: Info{Title: "Blog"}, Logger: zerolog.Nop()})

	first := svc.Spec("http://a.example")
	second := svc.Spec("http://b.example")

	if fmt.Sprintf("%p", first.Paths) != fmt.Sprintf("%p", second.Paths) {
		t.Error("unchanged registry should reuse the cached document")
	}
	if len(second.Servers) != 1 || second.Servers[0].URL != "http://b.example" {
		t.Errorf("Servers = %+v, want b.example", second.Servers)
	}
	if first.Servers[0].URL != "http://a.example" {
		t.Errorf("first Servers changed to %+v", first.Servers)
	}
	if first.Info.Version != "1.0.0" {
		t.Errorf("Version = %s, want default 1.0.0", first.Info.Version)
	}

	if err := reg.Load(compileBlog(t)); err != nil {
		t.Fatal(err)
	}
	third := svc.Spec("")
	if fmt.Sprintf("%p", third.Paths) == fmt.Sprintf("%p", first.Paths) {
		t.Error("new revision should regenerate the document")
	}
	if third.Servers != nil {
		t.Errorf("Servers = %+v, want none without a base URL", third.Servers)
	}
}

func TestService_EmptyRegistry(t *testing.T) {
	svc := NewService(ServiceConfig{Registry: registry.New()})
	spec := svc.Spec("")

	if len(spec.Paths) != 0 || len(spec.Components.Schemas) != 0 {
		t.Errorf("empty registry produced %d paths and %d schemas", len(spec.Paths), len(spec.Components.Schemas))
	}
	if spec.Info.Title != "Modules API" {
		t.Errorf("Title = %s, want default", spec.Info.Title)
	}
}
