package compiler

import (
	"github.com/artpar/modforge/core/convention"
	"github.com/artpar/modforge/core/schema"
)

// PopulationPaths returns the dotted path of every reference attribute of a
// resolved module, at any depth, in declaration order. Object attributes
// contribute only their children; non-reference leaves are dropped.
func PopulationPaths(mod schema.Module) []string {
	paths := []string{}
	for _, leaf := range flatten(mod.Attributes, "") {
		if leaf.IsRef {
			paths = append(paths, leaf.Name)
		}
	}
	return paths
}

// flatten expands nested objects into leaves named by their dotted path.
// An enum attribute is a leaf even when authored as an object.
func flatten(attrs []schema.Attribute, parent string) []schema.Attribute {
	var leaves []schema.Attribute
	for _, a := range attrs {
		name := convention.CamelCase(a.Name)
		if parent != "" {
			name = parent + "." + name
		}

		if a.IsObject() && !a.HasEnum() {
			leaves = append(leaves, flatten(a.Attributes, name)...)
			continue
		}

		leaf := a
		leaf.Name = name
		leaves = append(leaves, leaf)
	}
	return leaves
}
