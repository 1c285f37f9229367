package compiler

import "github.com/artpar/modforge/core/schema"

// ResolveReferences returns a copy of batch in which every attribute, at any
// depth, has IsRef set iff its type names a module of the batch. The input is
// not modified, and resolving an already-resolved batch yields the same flags.
func ResolveReferences(batch schema.Batch) schema.Batch {
	candidates := referenceCandidates(batch)

	out := batch.Clone()
	for i := range out {
		resolveAttributes(out[i].Attributes, candidates)
	}
	return out
}

func referenceCandidates(batch schema.Batch) map[string]struct{} {
	names := batch.Names()
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

func resolveAttributes(attrs []schema.Attribute, candidates map[string]struct{}) {
	for i := range attrs {
		_, attrs[i].IsRef = candidates[attrs[i].Type]
		resolveAttributes(attrs[i].Attributes, candidates)
	}
}
