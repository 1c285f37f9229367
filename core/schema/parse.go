package schema

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/artpar/modforge/core/convention"
	"gopkg.in/yaml.v3"
)

// ParseFile parses a batch of module definitions from a YAML file.
func ParseFile(path string) (Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}

	batch, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return batch, nil
}

// Parse parses a batch of module definitions from YAML bytes.
// The document is either a mapping of module key to definition, or a
// sequence of single-key mappings, bare or under a top-level "modules" key.
// Declaration order is preserved.
func Parse(data []byte) (Batch, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, errors.New("no modules found")
	}

	root := doc.Content[0]
	var entries []*yaml.Node
	switch {
	case isModulesList(root):
		seq, err := sequenceEntries(root.Content[1])
		if err != nil {
			return nil, err
		}
		entries = seq
	case root.Kind == yaml.MappingNode:
		entries = root.Content
	case root.Kind == yaml.SequenceNode:
		seq, err := sequenceEntries(root)
		if err != nil {
			return nil, err
		}
		entries = seq
	default:
		return nil, fmt.Errorf("line %d: expected a mapping of modules", root.Line)
	}

	if len(entries) == 0 {
		return nil, errors.New("no modules found")
	}

	batch := make(Batch, 0, len(entries)/2)
	for i := 0; i < len(entries); i += 2 {
		key, value := entries[i], entries[i+1]

		mod, err := decodeModule(key.Value, value)
		if err != nil {
			return nil, fmt.Errorf("line %d: module %q: %w", key.Line, key.Value, err)
		}
		batch = append(batch, mod)
	}

	var errs []error
	for _, mod := range batch {
		if err := Validate(mod); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return batch, nil
}

// isModulesList reports whether root is a single "modules" key holding a list.
func isModulesList(root *yaml.Node) bool {
	return root.Kind == yaml.MappingNode &&
		len(root.Content) == 2 &&
		root.Content[0].Value == "modules" &&
		root.Content[1].Kind == yaml.SequenceNode
}

// sequenceEntries flattens a list of single-key mappings into key/value pairs.
func sequenceEntries(seq *yaml.Node) ([]*yaml.Node, error) {
	var entries []*yaml.Node
	for _, item := range seq.Content {
		if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
			return nil, fmt.Errorf("line %d: each list item must be a single-key mapping", item.Line)
		}
		entries = append(entries, item.Content...)
	}
	return entries, nil
}

func decodeModule(key string, node *yaml.Node) (Module, error) {
	var mod Module
	if err := node.Decode(&mod); err != nil {
		return Module{}, fmt.Errorf("decode: %w", err)
	}

	if node.Kind == yaml.MappingNode && !hasKey(node, "attributes") {
		return Module{}, errors.New("missing 'attributes' property")
	}

	names := convention.ModuleNames(key)
	if mod.SingularName == "" {
		mod.SingularName = names.Singular
	}
	if mod.PluralName == "" {
		mod.PluralName = names.Plural
	}

	return mod, nil
}

func hasKey(node *yaml.Node, key string) bool {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}

// Source is the raw content of one module definition file.
type Source struct {
	Path string
	Data []byte
}

// ReadSources reads every module definition file named by paths. Directories
// are walked recursively in lexical order.
func ReadSources(paths ...string) ([]Source, error) {
	var sources []Source
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}

		if !info.IsDir() {
			data, err := os.ReadFile(p)
			if err != nil {
				return nil, fmt.Errorf("read file %s: %w", p, err)
			}
			sources = append(sources, Source{Path: p, Data: data})
			continue
		}

		sub, err := readDir(p)
		if err != nil {
			return nil, err
		}
		sources = append(sources, sub...)
	}
	return sources, nil
}

func readDir(dir string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var sources []Source
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			sub, err := readDir(path)
			if err != nil {
				return nil, err
			}
			sources = append(sources, sub...)
			continue
		}

		if !IsModuleFile(entry.Name()) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read file %s: %w", path, err)
		}
		sources = append(sources, Source{Path: path, Data: data})
	}
	return sources, nil
}

// ParseSources parses sources in order and concatenates their batches.
func ParseSources(sources []Source) (Batch, error) {
	var batch Batch
	for _, src := range sources {
		mods, err := Parse(src.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", src.Path, err)
		}
		batch = append(batch, mods...)
	}
	return batch, nil
}

// ParseDir parses all module definitions from a directory, including subdirectories.
// Files are read in lexical order and their batches concatenated.
func ParseDir(dir string) (Batch, error) {
	sources, err := readDir(dir)
	if err != nil {
		return nil, err
	}
	return ParseSources(sources)
}

// ParsePaths parses every file or directory in paths into one batch.
func ParsePaths(paths ...string) (Batch, error) {
	sources, err := ReadSources(paths...)
	if err != nil {
		return nil, err
	}
	return ParseSources(sources)
}

// IsModuleFile reports whether a file name looks like a YAML module definition.
func IsModuleFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

// Attribute names synthesized by the compiler.
const (
	ReservedSoftDelete = "isDeleted"
	ReservedAccessType = "accessType"
)

// Validate checks the invariants of a single module definition.
// All problems are reported together as joined *ShapeViolation errors.
func Validate(mod Module) error {
	vs := &violations{module: mod.SingularName}

	if mod.SingularName == "" {
		vs.add("", "singular name is required")
	} else if !isValidIdentifier(mod.SingularName) {
		vs.add("", "singular name %q is not a valid identifier", mod.SingularName)
	}
	if mod.PluralName == "" {
		vs.add("", "plural name is required")
	} else if !isValidIdentifier(mod.PluralName) {
		vs.add("", "plural name %q is not a valid identifier", mod.PluralName)
	}
	if mod.SingularName != "" && mod.SingularName == mod.PluralName {
		vs.add("", "plural name must differ from singular name %q", mod.SingularName)
	}
	if IsPrimitive(mod.SingularName) || IsPrimitive(mod.PluralName) {
		vs.add("", "module name shadows a primitive type")
	}

	if len(mod.Attributes) == 0 {
		vs.add("", "at least one attribute is required")
	}
	validateAttributes(vs, "", mod.Attributes)

	if _, ok := mod.Attribute(ReservedSoftDelete); ok {
		vs.add(ReservedSoftDelete, "attribute name is reserved for the soft-delete flag")
	}

	if mod.Auth != nil {
		validateAuth(vs, mod)
	}

	return vs.err()
}

func validateAttributes(vs *violations, prefix string, attrs []Attribute) {
	seen := make(map[string]bool, len(attrs))

	for _, a := range attrs {
		path := joinPath(prefix, a.Name)

		if a.Name == "" {
			vs.add(path, "name is required")
		} else if !isValidIdentifier(a.Name) {
			vs.add(path, "name %q is not a valid identifier", a.Name)
		}
		if seen[a.Name] {
			vs.add(path, "duplicate attribute name")
		}
		seen[a.Name] = true

		if a.Type == "" {
			vs.add(path, "type is required")
		}

		// An enum overrides type, so an enum object without children is tolerated.
		switch {
		case a.Type == TypeObject && len(a.Attributes) == 0 && !a.HasEnum():
			vs.add(path, "object type requires nested attributes")
		case a.Type != TypeObject && len(a.Attributes) > 0:
			vs.add(path, "nested attributes require type object, got %q", a.Type)
		}

		if a.HasEnum() && a.Default != nil {
			if !containsString(a.Enum, fmt.Sprint(a.Default)) {
				vs.add(path, "default %v is not one of the enum values", a.Default)
			}
		}

		validateAttributes(vs, path, a.Attributes)
	}
}

func validateAuth(vs *violations, mod Module) {
	if mod.Auth.Identifier == "" {
		vs.add("", "auth identifier is required")
	} else if _, ok := mod.Attribute(mod.Auth.Identifier); !ok {
		vs.add(mod.Auth.Identifier, "auth identifier names a missing attribute")
	}

	if mod.Auth.Password == "" {
		vs.add("", "auth password is required")
	} else if _, ok := mod.Attribute(mod.Auth.Password); !ok {
		vs.add(mod.Auth.Password, "auth password names a missing attribute")
	}

	if mod.Auth.Identifier != "" && mod.Auth.Identifier == mod.Auth.Password {
		vs.add("", "auth identifier and password must be different attributes")
	}

	if _, ok := mod.Attribute(ReservedAccessType); ok {
		vs.add(ReservedAccessType, "attribute name is reserved on auth modules")
	}
}

// ValidateBatch checks invariants that span modules: every module is valid,
// names are unique across the batch, and every attribute type is either a
// primitive or the name of a module in the batch.
func ValidateBatch(batch Batch) error {
	var errs []error

	owners := make(map[string]int, len(batch)*2)
	for i, mod := range batch {
		if err := Validate(mod); err != nil {
			errs = append(errs, err)
		}

		for _, name := range []string{mod.SingularName, mod.PluralName} {
			if name == "" {
				continue
			}
			if owner, exists := owners[name]; exists {
				if owner != i {
					errs = append(errs, &ShapeViolation{
						Module: mod.SingularName,
						Reason: fmt.Sprintf("name %q already claimed by module %q", name, batch[owner].SingularName),
					})
				}
				continue
			}
			owners[name] = i
		}
	}

	for _, mod := range batch {
		vs := &violations{module: mod.SingularName}
		validateTypes(vs, "", mod.Attributes, owners)
		if err := vs.err(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func validateTypes(vs *violations, prefix string, attrs []Attribute, modules map[string]int) {
	for _, a := range attrs {
		path := joinPath(prefix, a.Name)
		if a.Type != "" && !a.HasEnum() && !IsPrimitive(a.Type) {
			if _, ok := modules[a.Type]; !ok {
				vs.add(path, "unknown type %q: not a primitive or a module in this batch", a.Type)
			}
		}
		validateTypes(vs, path, a.Attributes, modules)
	}
}

// isValidIdentifier checks if a string is a valid identifier.
func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, c := range s {
		if i == 0 {
			if !isLetter(c) && c != '_' {
				return false
			}
		} else {
			if !isLetter(c) && !isDigit(c) && c != '_' {
				return false
			}
		}
	}

	return true
}

func isLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}

func containsString(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
