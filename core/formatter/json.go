package formatter

import (
	"fmt"
	"io"

	"github.com/artpar/modforge/core/compiler"
	"github.com/goccy/go-json"
)

// JSONFormatter formats output as JSON.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Name returns the formatter name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// Description returns the formatter description.
func (f *JSONFormatter) Description() string {
	return "JSON output format"
}

// Extension returns the artifact file extension.
func (f *JSONFormatter) Extension() string {
	return "json"
}

// FormatResult formats a compile result as JSON.
func (f *JSONFormatter) FormatResult(w io.Writer, result *compiler.Result, opts FormatOptions) error {
	modules := make([]map[string]any, len(result.Modules))
	for i, m := range result.Modules {
		modules[i] = moduleView(m, opts)
	}

	output := map[string]any{
		"count":   len(modules),
		"enums":   result.Enums,
		"modules": modules,
	}
	if result.Credential != nil {
		output["credential"] = result.Credential
	}

	return f.encode(w, output, opts.Compact)
}

// FormatModule formats a single compiled module as JSON.
func (f *JSONFormatter) FormatModule(w io.Writer, m compiler.CompiledModule, opts FormatOptions) error {
	return f.encode(w, moduleView(m, opts), opts.Compact)
}

// FormatError formats an error as JSON.
func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	output := map[string]any{
		"error": err.Error(),
	}
	return f.encode(w, output, false)
}

// encode writes JSON to the writer.
func (f *JSONFormatter) encode(w io.Writer, data any, compact bool) error {
	encoder := json.NewEncoder(w)
	if !compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

func init() {
	if err := Register(NewJSONFormatter()); err != nil {
		fmt.Printf("failed to register json formatter: %v\n", err)
	}
}
