package http

import (
	"net/http"

	"github.com/artpar/modforge/core/openapi"
)

// OpenAPIHandler serves the OpenAPI document of the loaded modules.
type OpenAPIHandler struct {
	service *openapi.Service
}

// NewOpenAPIHandler creates a new OpenAPI handler.
func NewOpenAPIHandler(service *openapi.Service) *OpenAPIHandler {
	return &OpenAPIHandler{service: service}
}

// JSON serves the document as JSON.
func (h *OpenAPIHandler) JSON(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.Spec(baseURL(r)).ToJSON()
	if err != nil {
		writeInternalError(w, "failed to encode openapi document")
		return
	}
	w.Header().Set("Content-Type", ContentType)
	w.Write(data)
}

// YAML serves the document as YAML.
func (h *OpenAPIHandler) YAML(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.Spec(baseURL(r)).ToYAML()
	if err != nil {
		writeInternalError(w, "failed to encode openapi document")
		return
	}
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	w.Write(data)
}

// baseURL reconstructs the externally visible server URL of a request.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
