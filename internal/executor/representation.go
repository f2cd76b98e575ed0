package executor

import (
	"github.com/graphweave/fedgate/internal/respgraph"
	"github.com/graphweave/fedgate/internal/schema"
)

// representationValue reads keySet's fields (and, for composite
// entries, their nested field sets) off member into a plain decoded
// value, the same shape a subgraph's JSON response would have decoded
// to. Unlike the flat scalar-only representation runEntityPartition
// builds for the plain federation `_entities` call, this supports
// composite (nested) keys, since a batched @lookup field's @is mapping
// (spec.md §6) may project through them.
func representationValue(g *respgraph.Graph, s *schema.Graph, member respgraph.NodeID, keySet *schema.FieldSet) map[string]interface{} {
	out := make(map[string]interface{}, len(keySet.Entries))
	for _, entry := range keySet.Entries {
		field := s.FieldOf(entry.Field)
		value, ok := g.Field(member, field.Name)
		if !ok || value == 0 {
			continue
		}
		name := s.Strings.String(field.Name)
		if entry.Child != 0 {
			out[name] = representationValue(g, s, value, s.FieldSetOf(entry.Child))
			continue
		}
		out[name] = rawNodeValue(g, s, value)
	}
	return out
}

// rawNodeValue recursively decodes a response graph node into the
// equivalent plain Go value (string/float64/bool/nil, []interface{}, or
// map[string]interface{}), with no shape metadata involved.
func rawNodeValue(g *respgraph.Graph, s *schema.Graph, id respgraph.NodeID) interface{} {
	if id == 0 {
		return nil
	}
	switch g.Kind(id) {
	case respgraph.KindScalar:
		return g.Scalar(id)
	case respgraph.KindList:
		elems := g.List(id)
		out := make([]interface{}, len(elems))
		for i, e := range elems {
			out[i] = rawNodeValue(g, s, e)
		}
		return out
	case respgraph.KindContainer:
		entries := g.Entries(id)
		out := make(map[string]interface{}, len(entries))
		for _, e := range entries {
			if e.Value == 0 {
				continue
			}
			out[s.Strings.String(e.Key)] = rawNodeValue(g, s, e.Value)
		}
		return out
	default:
		return nil
	}
}
