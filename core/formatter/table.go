package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/artpar/modforge/core/compiler"
	"github.com/artpar/modforge/core/storage"
	"github.com/jedib0t/go-pretty/v6/table"
)

// TableFormatter formats output as text tables.
type TableFormatter struct{}

// NewTableFormatter creates a new table formatter.
func NewTableFormatter() *TableFormatter {
	return &TableFormatter{}
}

// Name returns the formatter name.
func (f *TableFormatter) Name() string {
	return "table"
}

// Description returns the formatter description.
func (f *TableFormatter) Description() string {
	return "Text table output"
}

// Extension returns the artifact file extension.
func (f *TableFormatter) Extension() string {
	return "txt"
}

// FormatResult formats a module summary followed by the enum declarations.
func (f *TableFormatter) FormatResult(w io.Writer, result *compiler.Result, opts FormatOptions) error {
	if len(result.Modules) == 0 {
		fmt.Fprintln(w, "No modules compiled.")
		return nil
	}

	t := f.newTable(w)
	if !opts.NoHeader {
		t.AppendHeader(table.Row{"MODULE", "COLLECTION", "AUTH", "FIELDS", "POPULATIONS"})
	}
	for _, m := range result.Modules {
		fields := 0
		if m.Validation != nil {
			fields = len(m.Validation.Fields)
		}
		t.AppendRow(table.Row{m.Name, m.Plural, yesNo(m.Auth), fields, joinOrDash(m.Populations)})
	}
	t.Render()

	if len(result.Enums) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	t = f.newTable(w)
	if !opts.NoHeader {
		t.AppendHeader(table.Row{"ENUM", "TYPE", "VALUES", "SOURCES"})
	}
	for _, e := range result.Enums {
		sources := make([]string, len(e.Sources))
		for i, s := range e.Sources {
			sources[i] = s.Module + "." + s.Path
		}
		t.AppendRow(table.Row{e.Name, e.Type, strings.Join(e.Values, ", "), strings.Join(sources, ", ")})
	}
	t.Render()
	return nil
}

// FormatModule formats one row per stored field, pairing each with its
// validation rule. Fields without a rule (credentials, implicit fields) show "-".
func (f *TableFormatter) FormatModule(w io.Writer, m compiler.CompiledModule, opts FormatOptions) error {
	fmt.Fprintf(w, "Module: %s (%s)\n", m.Name, m.Plural)

	t := f.newTable(w)
	if !opts.NoHeader {
		t.AppendHeader(table.Row{"FIELD", "RULE", "STORAGE", "FLAGS"})
	}

	showRules := opts.includes(SectionValidation) && m.Validation != nil
	showStorage := opts.includes(SectionPersistence) && m.Persistence != nil

	seen := make(map[string]bool)
	if showStorage {
		for _, sf := range m.Persistence.Fields {
			seen[sf.Name] = true
			rule := "-"
			if showRules {
				if r, ok := m.Validation.Field(sf.Name); ok {
					rule = r.String()
				}
			}
			t.AppendRow(table.Row{sf.Name, rule, storageType(sf), storageFlags(sf)})
		}
	}
	if showRules {
		for _, vf := range m.Validation.Fields {
			if seen[vf.Name] {
				continue
			}
			t.AppendRow(table.Row{vf.Name, vf.Rule.String(), "-", "-"})
		}
	}
	t.Render()

	if opts.includes(SectionPopulations) {
		fmt.Fprintf(w, "Populations: %s\n", joinOrDash(m.Populations))
	}
	return nil
}

// FormatError formats an error message.
func (f *TableFormatter) FormatError(w io.Writer, err error) error {
	fmt.Fprintf(w, "Error: %s\n", err.Error())
	return nil
}

func (f *TableFormatter) newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func storageType(sf storage.Field) string {
	typ := string(sf.Type)
	if sf.Ref != nil {
		typ += " -> " + sf.Ref.Collection
	}
	if sf.Enum != "" {
		typ += " (" + sf.Enum + ")"
	}
	if sf.Array {
		typ = "[" + typ + "]"
	}
	return typ
}

func storageFlags(sf storage.Field) string {
	var flags []string
	if sf.Required {
		flags = append(flags, "required")
	}
	if sf.Unique {
		flags = append(flags, "unique")
	}
	if sf.Sparse {
		flags = append(flags, "sparse")
	}
	if sf.Trim {
		flags = append(flags, "trim")
	}
	if sf.Implicit {
		flags = append(flags, "implicit")
	}
	if sf.Default != nil {
		flags = append(flags, fmt.Sprintf("default=%v", sf.Default))
	}
	if len(flags) == 0 {
		return "-"
	}
	return strings.Join(flags, " ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func init() {
	Register(NewTableFormatter())
}
