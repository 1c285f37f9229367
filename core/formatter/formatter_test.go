package formatter

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/artpar/modforge/core/compiler"
	"github.com/artpar/modforge/core/schema"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Helper function to compile a small batch with an auth module and an enum
func createTestResult(t *testing.T) *compiler.Result {
	t.Helper()
	batch := schema.Batch{
		{
			SingularName: "user",
			PluralName:   "users",
			Auth:         &schema.Auth{Identifier: "email", Password: "password"},
			Attributes: []schema.Attribute{
				{Name: "email", Type: schema.TypeString, Required: true, Unique: true},
				{Name: "password", Type: schema.TypeString, Required: true},
			},
		},
		{
			SingularName: "post",
			PluralName:   "posts",
			Attributes: []schema.Attribute{
				{Name: "title", Type: schema.TypeString, Required: true},
				{Name: "status", Type: schema.TypeString, Enum: []string{"DRAFT", "LIVE"}},
				{Name: "author", Type: "user"},
			},
		},
	}
	result, err := compiler.Compile(context.Background(), batch)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return result
}

// ===========================================
// Registry Tests
// ===========================================

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry returned nil")
	}
	if r.formatters == nil {
		t.Fatal("formatters map should be initialized")
	}
	if r.defaultFmt != "json" {
		t.Errorf("default format should be 'json', got %q", r.defaultFmt)
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(NewJSONFormatter()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(NewJSONFormatter()); err == nil {
		t.Error("duplicate Register should fail")
	}

	if _, ok := r.Get("json"); !ok {
		t.Error("Get should find registered formatter")
	}
	if r.Default() == nil {
		t.Error("Default should return the json formatter")
	}

	if err := r.SetDefault("table"); err == nil {
		t.Error("SetDefault of unregistered formatter should fail")
	}
	if err := r.Register(NewTableFormatter()); err != nil {
		t.Fatal(err)
	}
	if err := r.SetDefault("table"); err != nil {
		t.Errorf("SetDefault failed: %v", err)
	}
	if r.Default().Name() != "table" {
		t.Errorf("Default().Name() = %q, want table", r.Default().Name())
	}
}

func TestDefaultRegistry(t *testing.T) {
	got := strings.Join(List(), ",")
	if got != "json,table,yaml" {
		t.Errorf("List() = %q, want json,table,yaml", got)
	}
	if Default().Name() != "json" {
		t.Errorf("Default().Name() = %q, want json", Default().Name())
	}
	for _, name := range List() {
		f, ok := Get(name)
		if !ok {
			t.Fatalf("Get(%q) failed", name)
		}
		if f.Description() == "" || f.Extension() == "" {
			t.Errorf("formatter %q missing description or extension", name)
		}
	}
}

// ===========================================
// JSON Tests
// ===========================================

func TestJSONFormatter_FormatResult(t *testing.T) {
	result := createTestResult(t)

	var buf bytes.Buffer
	if err := NewJSONFormatter().FormatResult(&buf, result, FormatOptions{}); err != nil {
		t.Fatalf("FormatResult failed: %v", err)
	}

	var decoded struct {
		Count   int `json:"count"`
		Enums   []compiler.Enum
		Modules []struct {
			Name        string   `json:"name"`
			Auth        bool     `json:"auth"`
			Populations []string `json:"populations"`
			Persistence struct {
				Collection string `json:"collection"`
			} `json:"persistence"`
		} `json:"modules"`
		Credential struct {
			Name string `json:"name"`
		} `json:"credential"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}

	if decoded.Count != 2 || len(decoded.Modules) != 2 {
		t.Fatalf("count = %d, modules = %d, want 2", decoded.Count, len(decoded.Modules))
	}
	if !decoded.Modules[0].Auth || decoded.Modules[1].Auth {
		t.Error("auth flag should be set on user only")
	}
	if got := decoded.Modules[1].Populations; len(got) != 1 || got[0] != "author" {
		t.Errorf("post populations = %v, want [author]", got)
	}
	if decoded.Modules[1].Persistence.Collection != "posts" {
		t.Errorf("collection = %q, want posts", decoded.Modules[1].Persistence.Collection)
	}
	if decoded.Credential.Name != compiler.CredentialSchemaName {
		t.Errorf("credential name = %q", decoded.Credential.Name)
	}
	if len(decoded.Enums) != 2 {
		t.Errorf("got %d enums, want 2", len(decoded.Enums))
	}
}

func TestJSONFormatter_Compact(t *testing.T) {
	result := createTestResult(t)

	var buf bytes.Buffer
	if err := NewJSONFormatter().FormatModule(&buf, result.Modules[1], FormatOptions{Compact: true}); err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(strings.TrimSpace(buf.String()), "\n"); lines != 0 {
		t.Errorf("compact output has %d newlines, want 0", lines)
	}
}

func TestJSONFormatter_Sections(t *testing.T) {
	result := createTestResult(t)

	var buf bytes.Buffer
	opts := FormatOptions{Sections: []Section{SectionPopulations}}
	if err := NewJSONFormatter().FormatModule(&buf, result.Modules[1], opts); err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if _, ok := decoded["validation"]; ok {
		t.Error("validation section should be omitted")
	}
	if _, ok := decoded["populations"]; !ok {
		t.Error("populations section should be present")
	}
}

func TestJSONFormatter_FormatError(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONFormatter().FormatError(&buf, errors.New("boom")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"error": "boom"`) {
		t.Errorf("output = %s", buf.String())
	}
}

// ===========================================
// YAML Tests
// ===========================================

func TestYAMLFormatter_FormatResult(t *testing.T) {
	result := createTestResult(t)

	var buf bytes.Buffer
	if err := NewYAMLFormatter().FormatResult(&buf, result, FormatOptions{}); err != nil {
		t.Fatalf("FormatResult failed: %v", err)
	}

	var decoded struct {
		Count   int `yaml:"count"`
		Modules []struct {
			Name       string `yaml:"name"`
			Validation struct {
				Fields []struct {
					Name string `yaml:"name"`
				} `yaml:"fields"`
				MergeCredentials bool `yaml:"mergeCredentials"`
			} `yaml:"validation"`
		} `yaml:"modules"`
		Enums []struct {
			Name   string   `yaml:"name"`
			Values []string `yaml:"values"`
		} `yaml:"enums"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid YAML: %v\n%s", err, buf.String())
	}

	if decoded.Count != 2 {
		t.Errorf("count = %d, want 2", decoded.Count)
	}
	user := decoded.Modules[0]
	if !user.Validation.MergeCredentials || len(user.Validation.Fields) != 0 {
		t.Errorf("user validation = %+v, want credentials filtered and merge flag set", user.Validation)
	}
	if decoded.Enums[1].Name != "Statuses" {
		t.Errorf("enums[1].Name = %q, want Statuses", decoded.Enums[1].Name)
	}
}

func TestYAMLFormatter_FormatError(t *testing.T) {
	var buf bytes.Buffer
	if err := NewYAMLFormatter().FormatError(&buf, errors.New("boom")); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "error: boom" {
		t.Errorf("output = %q", buf.String())
	}
}

// ===========================================
// Table Tests
// ===========================================

func TestTableFormatter_FormatResult(t *testing.T) {
	result := createTestResult(t)

	var buf bytes.Buffer
	if err := NewTableFormatter().FormatResult(&buf, result, FormatOptions{}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{"MODULE", "COLLECTION", "user", "posts", "author", "ENUM", "AccessTypes", "DRAFT, LIVE", "post.status"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTableFormatter_FormatModule(t *testing.T) {
	result := createTestResult(t)

	var buf bytes.Buffer
	if err := NewTableFormatter().FormatModule(&buf, result.Modules[0], FormatOptions{}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		"Module: user (users)",
		"email",
		"unique",
		"accessType",
		"default=DENIED",
		"isDeleted",
		"implicit",
		"Populations: -",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTableFormatter_NoModules(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTableFormatter().FormatResult(&buf, &compiler.Result{}, FormatOptions{}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No modules compiled.") {
		t.Errorf("output = %q", buf.String())
	}
}
