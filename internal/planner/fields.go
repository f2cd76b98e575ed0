package planner

import (
	"github.com/graphweave/fedgate/internal/bind"
	"github.com/graphweave/fedgate/internal/schema"
)

// projectionField synthesizes an unaliased field selection for a key or
// @requires field, recursing into its FieldSet children for composite
// key fields (e.g. `nested { id }`).
func projectionField(g *schema.Graph, fieldID schema.FieldID, child schema.FieldSetID) *bind.Field {
	def := g.FieldOf(fieldID)
	f := &bind.Field{
		ResponseKey: def.Name,
		Def:         fieldID,
		Synthetic:   true,
	}
	if child != 0 {
		f.SelectionSet = fieldSetToSelectionSet(g, child)
	}
	return f
}

// fieldSetToSelectionSet converts a resolved FieldSet (spec.md §3) into
// the equivalent bound selection set, used both to build a partition's
// key-lookup input selection and to append key projections into a
// parent partition's own selection set.
func fieldSetToSelectionSet(g *schema.Graph, id schema.FieldSetID) *bind.SelectionSet {
	fs := g.FieldSetOf(id)
	if fs.Empty() {
		return &bind.SelectionSet{}
	}
	ss := &bind.SelectionSet{Fields: make([]*bind.Field, 0, len(fs.Entries))}
	for _, e := range fs.Entries {
		ss.Fields = append(ss.Fields, projectionField(g, e.Field, e.Child))
	}
	return ss
}

// appendUnique appends fields to dst, skipping a field whose (Def,
// TypeCondition) pair dst already selects when neither has a
// sub-selection, so repeated key projections across sibling jump groups
// don't duplicate.
func appendUnique(dst *bind.SelectionSet, fields ...*bind.Field) {
	for _, f := range fields {
		dup := false
		for _, existing := range dst.Fields {
			if existing.Def == f.Def && existing.TypeCondition == f.TypeCondition && existing.SelectionSet == nil && f.SelectionSet == nil {
				dup = true
				break
			}
		}
		if !dup {
			dst.Fields = append(dst.Fields, f)
		}
	}
}
