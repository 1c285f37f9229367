package formatter

import (
	"fmt"
	"io"

	"github.com/artpar/modforge/core/compiler"
	"gopkg.in/yaml.v3"
)

// YAMLFormatter formats output as YAML.
type YAMLFormatter struct{}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

// Name returns the formatter name.
func (f *YAMLFormatter) Name() string {
	return "yaml"
}

// Description returns the formatter description.
func (f *YAMLFormatter) Description() string {
	return "YAML output format"
}

// Extension returns the artifact file extension.
func (f *YAMLFormatter) Extension() string {
	return "yaml"
}

// FormatResult formats a compile result as YAML.
func (f *YAMLFormatter) FormatResult(w io.Writer, result *compiler.Result, opts FormatOptions) error {
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

	return f.encode(w, output)
}

// FormatModule formats a single compiled module as YAML.
func (f *YAMLFormatter) FormatModule(w io.Writer, m compiler.CompiledModule, opts FormatOptions) error {
	return f.encode(w, moduleView(m, opts))
}

// FormatError formats an error as YAML.
func (f *YAMLFormatter) FormatError(w io.Writer, err error) error {
	output := map[string]any{
		"error": err.Error(),
	}
	return f.encode(w, output)
}

// encode writes YAML to the writer.
func (f *YAMLFormatter) encode(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()
	return encoder.Encode(data)
}

func init() {
	if err := Register(NewYAMLFormatter()); err != nil {
		fmt.Printf("failed to register yaml formatter: %v\n", err)
	}
}
