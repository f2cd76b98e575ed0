package executor

import (
	"github.com/graphweave/fedgate/internal/ident"
	"github.com/graphweave/fedgate/internal/respgraph"
	"github.com/graphweave/fedgate/internal/schema"
	"github.com/graphweave/fedgate/internal/shape"
)

// objectCollector registers newly-built containers into the
// respgraph.ObjectSet a later partition will project keys from,
// keyed by the entity type the collecting edge needs (spec.md §4.6
// step 4: "record the new ResponseObjectSet membership if this shape
// participates in one"). A concrete object is eligible the moment its
// runtime type matches one of the needed types — this assumes, as is
// true of every federated schema in practice, that an object of an
// entity type never nests another object of that same type directly
// beneath it within one partition's own selection set, so collecting
// at every depth cannot double-count.
type objectCollector struct {
	g     *respgraph.Graph
	needs map[schema.TypeID]respgraph.ObjectSetID
}

func (c *objectCollector) collect(objectType schema.TypeID, node respgraph.NodeID) {
	if c == nil {
		return
	}
	if set, ok := c.needs[objectType]; ok {
		c.g.AddMember(set, node)
	}
}

// applier walks a shape tree against a subgraph's decoded JSON response
// (or, for derived entities, against an already-resolved sibling's raw
// map) and writes the result into a respgraph.Graph, implementing
// spec.md §4.6 steps 3-5 (deserialize through the shape tree, write
// into the response graph, enforce wrapping/null propagation).
type applier struct {
	g      *respgraph.Graph
	schema *schema.Graph
	tree   *shape.Tree
	coll   *objectCollector
}

// resolveField applies one FieldShape's wrapping chain against raw,
// the parent object's decoded value for that field's subgraph key (or
// nil if absent/null). It returns the written node id, whether a
// non-null violation must bubble to the enclosing object, and any
// errors encountered along the way.
func (a *applier) resolveField(fs shape.FieldShape, raw interface{}, path []interface{}) (respgraph.NodeID, bool, []ExecutionError) {
	return a.coerceWrapped(fs.Wrapping, fs.Nested, raw, path, a.fieldCollector(fs))
}

// fieldCollector returns the per-resolved-node collect callback for fs,
// or nil if fs's value isn't an entity-typed object. Collection happens
// at the point each object node is actually produced (coerceWrapped's
// base case), not after the whole (possibly list-wrapped) field value
// is assembled — a list field's elements are the objects a downstream
// partition keys off, not the list node itself.
func (a *applier) fieldCollector(fs shape.FieldShape) func(respgraph.NodeID) {
	if fs.Nested == 0 {
		return nil
	}
	def := a.schema.FieldOf(fs.Def)
	typ := a.schema.TypeOf(def.Type.Unwrapped().Def)
	if typ.Kind != schema.KindObject {
		return nil
	}
	return func(id respgraph.NodeID) { a.coll.collect(typ.ID, id) }
}

func (a *applier) coerceWrapped(wrapping []schema.WrapKind, nested shape.ID, raw interface{}, path []interface{}, collect func(respgraph.NodeID)) (respgraph.NodeID, bool, []ExecutionError) {
	if len(wrapping) == 0 {
		if raw == nil {
			return 0, false, nil
		}
		id, errs := a.resolveShape(nested, raw, path)
		if collect != nil && id != 0 {
			collect(id)
		}
		return id, false, errs
	}

	switch wrapping[0] {
	case schema.WrapNonNull:
		if raw == nil {
			return 0, true, []ExecutionError{{Path: append([]interface{}{}, path...), Message: "non-null field resolved to null"}}
		}
		id, bubble, errs := a.coerceWrapped(wrapping[1:], nested, raw, path, collect)
		if bubble {
			return 0, true, errs
		}
		return id, false, errs

	case schema.WrapList:
		if raw == nil {
			return 0, false, nil
		}
		arr, ok := raw.([]interface{})
		if !ok {
			return 0, false, []ExecutionError{{Path: append([]interface{}{}, path...), Message: "expected a list value"}}
		}
		listID := a.g.NewList(len(arr))
		var errs []ExecutionError
		for i, elem := range arr {
			elemPath := append(append([]interface{}{}, path...), i)
			id, bubble, elemErrs := a.coerceWrapped(wrapping[1:], nested, elem, elemPath, collect)
			errs = append(errs, elemErrs...)
			if bubble {
				return 0, true, errs
			}
			a.g.SetListElem(listID, i, id)
		}
		return listID, false, errs

	default: // WrapNone: no-op wrapper, pass through
		return a.coerceWrapped(wrapping[1:], nested, raw, path, collect)
	}
}

// resolveShape dispatches by shape.Kind and returns the node id for a
// freshly built value (never merges into an existing container; see
// applyInto for that case, used only at a partition's own root).
func (a *applier) resolveShape(id shape.ID, raw interface{}, path []interface{}) (respgraph.NodeID, []ExecutionError) {
	s := a.tree.ShapeOf(id)
	switch s.Kind {
	case shape.KindConcrete:
		return a.resolveConcrete(s, raw, path)
	case shape.KindPolymorphic:
		return a.resolvePolymorphic(s, raw, path)
	case shape.KindDerivedEntity:
		return a.resolveDerivedEntity(s, raw, path)
	default:
		return 0, []ExecutionError{{Path: path, Message: "unknown shape kind"}}
	}
}

func (a *applier) resolveConcrete(s *shape.Shape, raw interface{}, path []interface{}) (respgraph.NodeID, []ExecutionError) {
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return 0, []ExecutionError{{Path: path, Message: "expected an object value"}}
	}

	container := a.g.NewContainer(len(s.Fields) + len(s.Typenames))
	var errs []ExecutionError
	failed := false

	for _, tn := range s.Typenames {
		a.g.SetField(container, tn.QueryPosition, tn.ClientKey, a.g.NewScalar(obj["__typename"]))
	}

	for i, fs := range s.Fields {
		fieldPath := append(append([]interface{}{}, path...), a.schema.Strings.String(fs.ClientKey))

		if fs.Nested != 0 && a.tree.ShapeOf(fs.Nested).Kind == shape.KindDerivedEntity {
			fieldRaw := obj[a.schema.Strings.String(fs.SubgraphKey)]
			id, fieldErrs := a.resolveDerivedEntity(a.tree.ShapeOf(fs.Nested), fieldRaw, fieldPath)
			errs = append(errs, fieldErrs...)
			a.g.SetField(container, fieldPosition(s, i), fs.SubgraphKey, id)
			if collect := a.fieldCollector(fs); collect != nil && id != 0 {
				collect(id)
			}
			continue
		}

		fieldRaw := obj[a.schema.Strings.String(fs.SubgraphKey)]
		id, bubble, fieldErrs := a.resolveField(fs, fieldRaw, fieldPath)
		errs = append(errs, fieldErrs...)
		if bubble {
			failed = true
			break
		}
		a.g.SetField(container, fieldPosition(s, i), fs.SubgraphKey, id)
	}

	if failed {
		return 0, errs
	}
	return container, errs
}

func (a *applier) resolvePolymorphic(s *shape.Shape, raw interface{}, path []interface{}) (respgraph.NodeID, []ExecutionError) {
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return 0, []ExecutionError{{Path: path, Message: "expected an object value"}}
	}
	typenameStr, _ := obj["__typename"].(string)
	typenameID, ok := a.schema.Strings.Lookup(typenameStr)
	if !ok {
		if s.Fallback != 0 {
			return a.resolveShape(s.Fallback, raw, path)
		}
		return 0, []ExecutionError{{Path: path, Message: "unknown __typename " + typenameStr}}
	}
	objectType, ok := a.schema.TypeByName[typenameID]
	if !ok {
		return 0, []ExecutionError{{Path: path, Message: "unknown __typename " + typenameStr}}
	}
	for _, c := range s.Cases {
		if c.ObjectType == objectType {
			return a.resolveShape(c.Shape, raw, path)
		}
	}
	if s.Fallback != 0 {
		return a.resolveShape(s.Fallback, raw, path)
	}
	return 0, []ExecutionError{{Path: path, Message: "__typename " + typenameStr + " has no matching case"}}
}

// resolveDerivedEntity synthesizes a field's value purely from leaf
// fields already present in sourceRaw -- the field's own raw value, not
// the enclosing object (spec.md §4.4 "derived entities") -- with no
// additional subgraph round trip. List-sourced derived entities (Shape.IsList)
// would need one synthesized object per parent list element; no
// fixture in this codebase exercises that shape, so it fails loudly
// rather than silently mishandling the fan-out.
func (a *applier) resolveDerivedEntity(s *shape.Shape, sourceRaw interface{}, path []interface{}) (respgraph.NodeID, []ExecutionError) {
	if s.IsList {
		return 0, []ExecutionError{{Path: path, Message: "list-sourced derived entities are not supported"}}
	}
	obj, ok := sourceRaw.(map[string]interface{})
	if !ok {
		return 0, []ExecutionError{{Path: path, Message: "expected an object value for derived entity source"}}
	}

	synthesized := make(map[string]interface{}, len(s.SourceFields))
	for _, fs := range s.SourceFields {
		synthesized[a.schema.Strings.String(fs.SubgraphKey)] = obj[a.schema.Strings.String(fs.SubgraphKey)]
	}
	return a.resolveShape(s.Inner, synthesized, path)
}

// applyInto merges a Concrete or Polymorphic shape's fields onto an
// already-allocated container, used when a non-root partition's
// response adds fields to objects another partition already wrote
// (spec.md §4.6: an entity-lookup partition's result augments the
// object it was keyed by, rather than replacing it).
func (a *applier) applyInto(id shape.ID, target respgraph.NodeID, raw interface{}, path []interface{}) []ExecutionError {
	concrete := a.tree.ShapeOf(id)
	if concrete.Kind == shape.KindPolymorphic {
		obj, ok := raw.(map[string]interface{})
		if !ok {
			return []ExecutionError{{Path: path, Message: "expected an object value"}}
		}
		typenameStr, _ := obj["__typename"].(string)
		typenameID, ok := a.schema.Strings.Lookup(typenameStr)
		if !ok {
			return []ExecutionError{{Path: path, Message: "unknown __typename " + typenameStr}}
		}
		objectType, ok := a.schema.TypeByName[typenameID]
		if !ok {
			return []ExecutionError{{Path: path, Message: "unknown __typename " + typenameStr}}
		}
		matched := concrete.Fallback
		for _, c := range concrete.Cases {
			if c.ObjectType == objectType {
				matched = c.Shape
				break
			}
		}
		if matched == 0 {
			return []ExecutionError{{Path: path, Message: "__typename " + typenameStr + " has no matching case"}}
		}
		concrete = a.tree.ShapeOf(matched)
	}
	if concrete.Kind != shape.KindConcrete {
		return []ExecutionError{{Path: path, Message: "applyInto requires a concrete or polymorphic shape"}}
	}

	obj, ok := raw.(map[string]interface{})
	if !ok {
		return []ExecutionError{{Path: path, Message: "expected an object value"}}
	}

	base := a.g.GrowContainer(target, len(concrete.Fields))
	var errs []ExecutionError
	for i, fs := range concrete.Fields {
		fieldPath := append(append([]interface{}{}, path...), a.schema.Strings.String(fs.ClientKey))
		fieldRaw := obj[a.schema.Strings.String(fs.SubgraphKey)]
		id, bubble, fieldErrs := a.resolveField(fs, fieldRaw, fieldPath)
		errs = append(errs, fieldErrs...)
		if bubble {
			continue
		}
		a.g.SetField(target, base+fieldPosition(concrete, i), fs.SubgraphKey, id)
	}
	return errs
}

// fieldPosition returns the query position a FieldShape was compiled
// at, used as the respgraph container slot index.
func fieldPosition(s *shape.Shape, fieldIdx int) int {
	return s.Fields[fieldIdx].QueryPosition
}

// keyIdentFor returns the ident.ID a schema field's value is stored
// under in the response graph. Client-selected fields keep their
// response key (alias or name); a synthesized key/@requires projection
// has no alias, so the executor assumes the planner names it after the
// field's own schema name (DESIGN.md records this as the resolved
// ambiguity in spec.md's silence on synthetic-field naming).
func keyIdentFor(g *schema.Graph, f schema.FieldID) ident.ID {
	return g.FieldOf(f).Name
}
