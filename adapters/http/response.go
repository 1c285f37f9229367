package http

import (
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
)

// ContentType is the media type of every JSON response.
const ContentType = "application/json"

// ErrorBody is the error envelope returned by every endpoint.
type ErrorBody struct {
	Errors []Error `json:"errors"`
}

// Error describes one failure.
type Error struct {
	Status string       `json:"status"`
	Code   string       `json:"code"`
	Title  string       `json:"title"`
	Detail string       `json:"detail,omitempty"`
	Source *ErrorSource `json:"source,omitempty"`
}

// ErrorSource points at the input that caused an error.
type ErrorSource struct {
	Pointer   string `json:"pointer,omitempty"`
	Parameter string `json:"parameter,omitempty"`
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes one or more errors. The HTTP status comes from the first.
func writeError(w http.ResponseWriter, status int, errs ...Error) {
	for i := range errs {
		if errs[i].Status == "" {
			errs[i].Status = strconv.Itoa(status)
		}
	}
	writeJSON(w, status, ErrorBody{Errors: errs})
}

func writeNotFound(w http.ResponseWriter, kind, name string) {
	writeError(w, http.StatusNotFound, Error{
		Code:   "not_found",
		Title:  "Not Found",
		Detail: kind + " " + strconv.Quote(name) + " not found",
	})
}

func writeBadRequest(w http.ResponseWriter, detail string) {
	writeError(w, http.StatusBadRequest, Error{
		Code:   "bad_request",
		Title:  "Bad Request",
		Detail: detail,
	})
}

func writeInternalError(w http.ResponseWriter, detail string) {
	writeError(w, http.StatusInternalServerError, Error{
		Code:   "internal_error",
		Title:  "Internal Server Error",
		Detail: detail,
	})
}
