// Package http serves compiled modules over a read-only preview API.
package http

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/artpar/modforge/core/compiler"
	"github.com/artpar/modforge/core/formatter"
	"github.com/artpar/modforge/core/registry"
	"github.com/artpar/modforge/core/validation"
	"github.com/artpar/modforge/domain/build"
	"github.com/artpar/modforge/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// maxCheckBody bounds the size of a document submitted for checking.
const maxCheckBody = 1 << 20

// ModuleHandler serves the modules held by a registry.
type ModuleHandler struct {
	registry *registry.Registry
	logger   zerolog.Logger
}

// NewModuleHandler creates a new module handler.
func NewModuleHandler(reg *registry.Registry, logger zerolog.Logger) *ModuleHandler {
	return &ModuleHandler{registry: reg, logger: logger}
}

// ModuleSummary is one entry of the module listing.
type ModuleSummary struct {
	Name        string   `json:"name"`
	Plural      string   `json:"plural"`
	Collection  string   `json:"collection,omitempty"`
	Auth        bool     `json:"auth,omitempty"`
	Populations []string `json:"populations"`
}

// ListModules returns a summary of every module.
func (h *ModuleHandler) ListModules(w http.ResponseWriter, r *http.Request) {
	modules := h.registry.List()
	out := make([]ModuleSummary, 0, len(modules))
	for _, m := range modules {
		s := ModuleSummary{Name: m.Name, Plural: m.Plural, Auth: m.Auth, Populations: m.Populations}
		if m.Persistence != nil {
			s.Collection = m.Persistence.Collection
		}
		out = append(out, s)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"revision": h.registry.Revision(),
		"modules":  out,
	})
}

// GetModule returns every artifact of one module. The format query parameter
// selects any registered formatter instead of the default JSON document.
func (h *ModuleHandler) GetModule(w http.ResponseWriter, r *http.Request) {
	m, ok := h.module(w, r)
	if !ok {
		return
	}

	name := r.URL.Query().Get("format")
	if name == "" {
		writeJSON(w, http.StatusOK, m)
		return
	}

	f, ok := formatter.Get(name)
	if !ok {
		writeError(w, http.StatusBadRequest, Error{
			Code:   "unknown_format",
			Title:  "Bad Request",
			Detail: "unknown format " + strconv.Quote(name),
			Source: &ErrorSource{Parameter: "format"},
		})
		return
	}

	var buf bytes.Buffer
	if err := f.FormatModule(&buf, m, formatter.FormatOptions{}); err != nil {
		writeInternalError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", contentTypeFor(f))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// GetValidation returns the effective validation schema of a module, with
// credential fields merged in for the auth module.
func (h *ModuleHandler) GetValidation(w http.ResponseWriter, r *http.Request) {
	m, ok := h.module(w, r)
	if !ok {
		return
	}
	schema, _ := h.registry.Effective(m.Name)
	writeJSON(w, http.StatusOK, schema)
}

// GetPersistence returns the storage descriptor of a module.
func (h *ModuleHandler) GetPersistence(w http.ResponseWriter, r *http.Request) {
	m, ok := h.module(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, m.Persistence)
}

// GetCredential returns the shared credential schema.
func (h *ModuleHandler) GetCredential(w http.ResponseWriter, r *http.Request) {
	cred := h.registry.Credential()
	if cred == nil {
		writeNotFound(w, "schema", compiler.CredentialSchemaName)
		return
	}
	writeJSON(w, http.StatusOK, cred)
}

// ListEnums returns every enum declaration, as a list in declaration order
// and as a name to values mapping.
func (h *ModuleHandler) ListEnums(w http.ResponseWriter, r *http.Request) {
	enums := h.registry.Enums()
	if enums == nil {
		enums = []compiler.Enum{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enums":  enums,
		"values": compiler.EnumMap(enums),
	})
}

// Check validates a JSON document against a module's effective schema.
// References to other modules are checked against their schemas too.
// Responds 200 when the document is valid and 422 with field errors when not.
// The strict query parameter rejects unknown fields.
func (h *ModuleHandler) Check(w http.ResponseWriter, r *http.Request) {
	m, ok := h.module(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCheckBody+1))
	if err != nil {
		writeBadRequest(w, "read body: "+err.Error())
		return
	}
	if len(body) > maxCheckBody {
		writeError(w, http.StatusRequestEntityTooLarge, Error{
			Code:  "body_too_large",
			Title: "Request Entity Too Large",
		})
		return
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		writeBadRequest(w, "body must be a JSON object")
		return
	}

	opts := []validation.Option{validation.WithResolver(h.registry)}
	if strict, _ := strconv.ParseBool(r.URL.Query().Get("strict")); strict {
		opts = append(opts, validation.Strict())
	}

	schema, _ := h.registry.Effective(m.Name)
	result := validation.New(opts...).ValidateSchema(schema, doc)

	h.logger.Debug().
		Str("module", m.Name).
		Bool("valid", result.Valid).
		Int("errors", len(result.Errors)).
		Str("request_id", middleware.GetReqID(r.Context())).
		Msg("document checked")

	status := http.StatusOK
	if !result.Valid {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

func (h *ModuleHandler) module(w http.ResponseWriter, r *http.Request) (compiler.CompiledModule, bool) {
	name := chi.URLParam(r, "name")
	m, ok := h.registry.Get(name)
	if !ok {
		writeNotFound(w, "module", name)
	}
	return m, ok
}

func contentTypeFor(f formatter.Formatter) string {
	switch f.Extension() {
	case "json":
		return ContentType
	case "yaml":
		return "application/yaml"
	default:
		return "text/plain; charset=utf-8"
	}
}

// BuildHandler serves the build history.
type BuildHandler struct {
	store ports.BuildStore
}

// NewBuildHandler creates a new build handler.
func NewBuildHandler(store ports.BuildStore) *BuildHandler {
	return &BuildHandler{store: store}
}

// BuildResponse is the wire form of a recorded build.
type BuildResponse struct {
	ID         string                     `json:"id"`
	StartedAt  time.Time                  `json:"startedAt"`
	SourceHash string                     `json:"sourceHash"`
	Status     string                     `json:"status"`
	Modules    int                        `json:"modules"`
	Enums      int                        `json:"enums"`
	References int                        `json:"references"`
	DurationMs float64                    `json:"durationMs"`
	Error      string                     `json:"error,omitempty"`
	ErrorKind  string                     `json:"errorKind,omitempty"`
	Artifacts  map[string]json.RawMessage `json:"artifacts,omitempty"`
}

func toBuildResponse(b build.Build) BuildResponse {
	return BuildResponse{
		ID:         b.ID,
		StartedAt:  b.StartedAt,
		SourceHash: b.SourceHash,
		Status:     string(b.Status),
		Modules:    b.Modules,
		Enums:      b.Enums,
		References: b.References,
		DurationMs: float64(b.Duration) / float64(time.Millisecond),
		Error:      b.Error,
		ErrorKind:  b.ErrorKind,
	}
}

// ListBuilds returns recorded builds, newest first.
// Query parameters: limit (default 20), status (success or failed).
func (h *BuildHandler) ListBuilds(w http.ResponseWriter, r *http.Request) {
	filter := build.Filter{Limit: 20, Status: build.Status(r.URL.Query().Get("status"))}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, Error{
				Code:   "invalid_parameter",
				Title:  "Bad Request",
				Detail: "limit must be a positive integer",
				Source: &ErrorSource{Parameter: "limit"},
			})
			return
		}
		filter.Limit = n
	}

	builds, err := h.store.List(r.Context(), filter)
	if err != nil {
		writeInternalError(w, err.Error())
		return
	}

	out := make([]BuildResponse, 0, len(builds))
	for _, b := range builds {
		out = append(out, toBuildResponse(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"builds": out})
}

// GetBuild returns one build with its stored module artifacts.
func (h *BuildHandler) GetBuild(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	b, err := h.store.Get(r.Context(), id)
	switch {
	case errors.Is(err, build.ErrNotFound):
		writeNotFound(w, "build", id)
		return
	case errors.Is(err, build.ErrAmbiguousID):
		writeBadRequest(w, "build id prefix "+strconv.Quote(id)+" matches more than one build")
		return
	case err != nil:
		writeInternalError(w, err.Error())
		return
	}

	artifacts, err := h.store.Artifacts(r.Context(), b.ID)
	if err != nil {
		writeInternalError(w, err.Error())
		return
	}

	resp := toBuildResponse(b)
	if len(artifacts) > 0 {
		resp.Artifacts = make(map[string]json.RawMessage, len(artifacts))
		for _, a := range artifacts {
			resp.Artifacts[a.Module] = json.RawMessage(a.Body)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	registry *registry.Registry
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(reg *registry.Registry) *HealthHandler {
	return &HealthHandler{registry: reg}
}

// Liveness returns a simple liveness check.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness reports ready once a build has been published.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.registry.Revision() == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  "no build published yet",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"revision": h.registry.Revision(),
	})
}
