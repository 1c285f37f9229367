package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/artpar/modforge/core/compiler"
	"github.com/artpar/modforge/core/registry"
	"github.com/artpar/modforge/core/schema"
	"github.com/artpar/modforge/domain/build"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Helper function to create a registry loaded with a small blog batch
func createTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	batch := schema.Batch{
		{
			SingularName: "user",
			PluralName:   "users",
			Auth:         &schema.Auth{Identifier: "email", Password: "password"},
			Attributes: []schema.Attribute{
				{Name: "email", Type: schema.TypeString, Required: true, Unique: true},
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
				{Name: "author", Type: "user"},
			},
		},
	}
	result, err := compiler.Compile(context.Background(), batch)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	reg := registry.New()
	if err := reg.Load(result); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return reg
}

// stubBuildStore implements ports.BuildStore over a fixed list.
type stubBuildStore struct {
	builds    []build.Build
	artifacts map[string][]build.Artifact
}

func (s *stubBuildStore) Record(context.Context, build.Build, []build.Artifact) error { return nil }

func (s *stubBuildStore) Get(_ context.Context, id string) (build.Build, error) {
	var found []build.Build
	for _, b := range s.builds {
		if b.ID == id {
			return b, nil
		}
		if strings.HasPrefix(b.ID, id) {
			found = append(found, b)
		}
	}
	switch len(found) {
	case 0:
		return build.Build{}, build.ErrNotFound
	case 1:
		return found[0], nil
	default:
		return build.Build{}, build.ErrAmbiguousID
	}
}

func (s *stubBuildStore) List(_ context.Context, f build.Filter) ([]build.Build, error) {
	var out []build.Build
	for _, b := range s.builds {
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		out = append(out, b)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s *stubBuildStore) Artifacts(_ context.Context, id string) ([]build.Artifact, error) {
	return s.artifacts[id], nil
}

func (s *stubBuildStore) Prune(context.Context, int) (int, error) { return 0, nil }

func newTestServer(t *testing.T, cfg RouterConfig) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(createTestRegistry(t), zerolog.Nop(), cfg))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

// ===========================================
// Module Tests
// ===========================================

func TestListModules(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	resp, body := do(t, srv, http.MethodGet, "/modules", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var decoded struct {
		Revision uint64          `json:"revision"`
		Modules  []ModuleSummary `json:"modules"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Revision != 1 || len(decoded.Modules) != 2 {
		t.Fatalf("decoded = %+v", decoded)
	}
	if m := decoded.Modules[1]; m.Name != "post" || m.Collection != "posts" || m.Populations[0] != "author" {
		t.Errorf("post summary = %+v", m)
	}
	if !decoded.Modules[0].Auth {
		t.Error("user should be flagged as auth module")
	}
}

func TestGetModule(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
		wantType   string
	}{
		{"by singular", "/modules/post", http.StatusOK, `"plural":"posts"`, ContentType},
		{"by plural", "/modules/posts", http.StatusOK, `"name":"post"`, ContentType},
		{"yaml format", "/modules/post?format=yaml", http.StatusOK, "plural: posts", "application/yaml"},
		{"table format", "/modules/post?format=table", http.StatusOK, "Module: post (posts)", "text/plain; charset=utf-8"},
		{"unknown format", "/modules/post?format=xml", http.StatusBadRequest, `"parameter":"format"`, ContentType},
		{"missing module", "/modules/comment", http.StatusNotFound, `module \"comment\" not found`, ContentType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, srv, http.MethodGet, tt.path, "")
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if got := resp.Header.Get("Content-Type"); got != tt.wantType {
				t.Errorf("Content-Type = %q, want %q", got, tt.wantType)
			}
			if !strings.Contains(string(body), tt.wantBody) {
				t.Errorf("body missing %q:\n%s", tt.wantBody, body)
			}
		})
	}
}

func TestGetValidation_MergesCredentials(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	resp, body := do(t, srv, http.MethodGet, "/modules/user/validation", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var decoded struct {
		Fields []struct {
			Name string `json:"name"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, f := range decoded.Fields {
		names = append(names, f.Name)
	}
	got := strings.Join(names, ",")
	if !strings.Contains(got, "email") || !strings.Contains(got, "password") || !strings.Contains(got, "name") {
		t.Errorf("effective fields = %s, want credential and module fields", got)
	}
}

func TestGetPersistence(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	resp, body := do(t, srv, http.MethodGet, "/modules/users/persistence", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	for _, want := range []string{`"collection":"users"`, `"isDeleted"`, `"accessType"`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("body missing %s:\n%s", want, body)
		}
	}
}

func TestListEnumsAndCredential(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	resp, body := do(t, srv, http.MethodGet, "/enums", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var enums struct {
		Enums  []compiler.Enum     `json:"enums"`
		Values map[string][]string `json:"values"`
	}
	if err := json.Unmarshal(body, &enums); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(enums.Enums) != 2 || enums.Enums[0].Name != compiler.AccessTypesEnum {
		t.Errorf("enums = %+v, want AccessTypes first of two", enums.Enums)
	}
	if got := enums.Values["Statuses"]; !slices.Equal(got, []string{"DRAFT", "LIVE"}) {
		t.Errorf("values[Statuses] = %v, want [DRAFT LIVE]", got)
	}
	if got := enums.Values[compiler.AccessTypesEnum]; len(got) != 3 || got[0] != compiler.AccessAdmin {
		t.Errorf("values[AccessTypes] = %v", got)
	}

	resp, body = do(t, srv, http.MethodGet, "/credential", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), compiler.CredentialSchemaName) {
		t.Errorf("credential status = %d body = %s", resp.StatusCode, body)
	}
}

func TestCredential_NoAuthModule(t *testing.T) {
	srv := httptest.NewServer(NewRouter(registry.New(), zerolog.Nop(), RouterConfig{}))
	defer srv.Close()

	resp, _ := do(t, srv, http.MethodGet, "/credential", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCheck(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"valid", "/modules/post/check", `{"title":"Hello","status":"LIVE"}`, http.StatusOK, `"valid":true`},
		{"reference by id", "/modules/post/check", `{"title":"Hello","author":"65a1"}`, http.StatusOK, `"valid":true`},
		{"embedded reference", "/modules/post/check", `{"title":"Hello","author":{"email":"a@b.co","password":"pw"}}`, http.StatusOK, `"valid":true`},
		{"missing required", "/modules/post/check", `{"status":"LIVE"}`, http.StatusUnprocessableEntity, `"field":"title"`},
		{"bad enum", "/modules/post/check", `{"title":"x","status":"GONE"}`, http.StatusUnprocessableEntity, `"field":"status"`},
		{"strict unknown field", "/modules/post/check?strict=true", `{"title":"x","extra":1}`, http.StatusUnprocessableEntity, `"field":"extra"`},
		{"lenient unknown field", "/modules/post/check", `{"title":"x","extra":1}`, http.StatusOK, `"valid":true`},
		{"auth credentials", "/modules/user/check", `{"name":"Ada"}`, http.StatusUnprocessableEntity, `"field":"email"`},
		{"not an object", "/modules/post/check", `[1,2]`, http.StatusBadRequest, `"code":"bad_request"`},
		{"unknown module", "/modules/nope/check", `{}`, http.StatusNotFound, `"code":"not_found"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, srv, http.MethodPost, tt.path, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", resp.StatusCode, tt.wantStatus, body)
			}
			if !strings.Contains(string(body), tt.wantBody) {
				t.Errorf("body missing %s:\n%s", tt.wantBody, body)
			}
		})
	}
}

func TestCheck_BodyTooLarge(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	big := `{"title":"` + strings.Repeat("x", maxCheckBody) + `"}`
	resp, _ := do(t, srv, http.MethodPost, "/modules/post/check", big)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", resp.StatusCode)
	}
}

// ===========================================
// Router Tests
// ===========================================

func TestHealth(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})
	if resp, _ := do(t, srv, http.MethodGet, "/health/ready", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("ready status = %d, want 200", resp.StatusCode)
	}

	empty := httptest.NewServer(NewRouter(registry.New(), zerolog.Nop(), RouterConfig{}))
	defer empty.Close()
	if resp, _ := do(t, empty, http.MethodGet, "/health/ready", ""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("ready status before first build = %d, want 503", resp.StatusCode)
	}
	if resp, _ := do(t, empty, http.MethodGet, "/health", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("liveness status = %d, want 200", resp.StatusCode)
	}
}

func TestVersionAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "modforge_modules 2\n")
	})
	srv := newTestServer(t, RouterConfig{Version: "1.2.3", MetricsHandler: metrics, MetricsPath: "/prom"})

	_, body := do(t, srv, http.MethodGet, "/version", "")
	if !strings.Contains(string(body), `"version":"1.2.3"`) {
		t.Errorf("version body = %s", body)
	}

	resp, body := do(t, srv, http.MethodGet, "/prom", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "modforge_modules 2") {
		t.Errorf("metrics status = %d body = %s", resp.StatusCode, body)
	}
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	resp, body := do(t, srv, http.MethodGet, "/nowhere", "")
	if resp.StatusCode != http.StatusNotFound || !strings.Contains(string(body), `"errors"`) {
		t.Errorf("status = %d body = %s", resp.StatusCode, body)
	}

	resp, _ = do(t, srv, http.MethodDelete, "/modules/post", "")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}

	resp, _ = do(t, srv, http.MethodGet, "/builds", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("/builds without history status = %d, want 404", resp.StatusCode)
	}
}

// ===========================================
// Build Tests
// ===========================================

func TestBuilds(t *testing.T) {
	store := &stubBuildStore{
		builds: []build.Build{
			{ID: "b2-aaaa", Status: build.StatusFailed, Error: "boom", ErrorKind: "other", StartedAt: time.Unix(200, 0).UTC()},
			{ID: "b1-bbbb", Status: build.StatusSuccess, Modules: 2, Duration: 1500 * time.Microsecond, StartedAt: time.Unix(100, 0).UTC()},
			{ID: "b1-cccc", Status: build.StatusSuccess, StartedAt: time.Unix(50, 0).UTC()},
		},
		artifacts: map[string][]build.Artifact{
			"b1-bbbb": {{BuildID: "b1-bbbb", Module: "post", Body: []byte(`{"name":"post"}`)}},
		},
	}
	srv := newTestServer(t, RouterConfig{Builds: store})

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"list", "/builds", http.StatusOK, `"id":"b2-aaaa"`},
		{"list failed", "/builds?status=failed", http.StatusOK, `"errorKind":"other"`},
		{"bad limit", "/builds?limit=0", http.StatusBadRequest, `"parameter":"limit"`},
		{"get with artifacts", "/builds/b1-bbbb", http.StatusOK, `"artifacts":{"post":{"name":"post"}}`},
		{"duration in ms", "/builds/b1-bbbb", http.StatusOK, `"durationMs":1.5`},
		{"unique prefix", "/builds/b2", http.StatusOK, `"status":"failed"`},
		{"ambiguous prefix", "/builds/b1", http.StatusBadRequest, "more than one build"},
		{"missing", "/builds/zz", http.StatusNotFound, `build \"zz\" not found`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, srv, http.MethodGet, tt.path, "")
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if !strings.Contains(string(body), tt.wantBody) {
				t.Errorf("body missing %s:\n%s", tt.wantBody, body)
			}
		})
	}
}

// =============================================================================
// OpenAPI Tests
// =============================================================================

func TestOpenAPI(t *testing.T) {
	srv := newTestServer(t, RouterConfig{Version: "1.2.3", APIBasePath: "/api"})

	t.Run("json", func(t *testing.T) {
		resp, body := do(t, srv, http.MethodGet, "/openapi.json", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}

		var doc struct {
			OpenAPI string `json:"openapi"`
			Info    struct {
				Version string `json:"version"`
			} `json:"info"`
			Servers []struct {
				URL string `json:"url"`
			} `json:"servers"`
			Paths map[string]any `json:"paths"`
		}
		if err := json.Unmarshal(body, &doc); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if doc.OpenAPI != "3.0.3" || doc.Info.Version != "1.2.3" {
			t.Errorf("openapi = %s, version = %s", doc.OpenAPI, doc.Info.Version)
		}
		if len(doc.Servers) != 1 || doc.Servers[0].URL != srv.URL {
			t.Errorf("servers = %+v, want %s", doc.Servers, srv.URL)
		}
		for _, path := range []string{"/api/posts", "/api/posts/{id}", "/api/users", "/api/users/{id}"} {
			if _, ok := doc.Paths[path]; !ok {
				t.Errorf("path %s missing", path)
			}
		}
	})

	t.Run("yaml", func(t *testing.T) {
		resp, body := do(t, srv, http.MethodGet, "/openapi.yaml", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/yaml") {
			t.Errorf("Content-Type = %s", ct)
		}
		if !strings.Contains(string(body), "openapi: 3.0.3") {
			t.Errorf("body:\n%s", body)
		}
	})
}
