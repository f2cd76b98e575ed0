// Package schema implements the Schema Graph: an immutable, interned
// model of a composed federated schema. It is built once per
// configuration reload and is safe for concurrent reads for the
// lifetime of that configuration (spec.md §3 "Lifecycles").
package schema

import (
	"sort"

	"github.com/graphweave/fedgate/internal/ident"
)

// TypeKind discriminates the six kinds of schema type spec.md §3 names.
type TypeKind int

const (
	KindScalar TypeKind = iota
	KindEnum
	KindInputObject
	KindObject
	KindInterface
	KindUnion
)

func (k TypeKind) String() string {
	switch k {
	case KindScalar:
		return "SCALAR"
	case KindEnum:
		return "ENUM"
	case KindInputObject:
		return "INPUT_OBJECT"
	case KindObject:
		return "OBJECT"
	case KindInterface:
		return "INTERFACE"
	case KindUnion:
		return "UNION"
	default:
		return "UNKNOWN"
	}
}

// TypeID, FieldID, ArgID, FieldSetID, ResolverID, DirectiveID, SubgraphID
// are the dense index types used to cross-reference arenas in Graph.
type (
	TypeID     ident.ID
	FieldID    ident.ID
	ArgID      ident.ID
	FieldSetID ident.ID
	ResolverID ident.ID
	DirectiveID ident.ID
	SubgraphID ident.ID
)

// Wrapping describes the nullability/list chain wrapping a field's base
// type, innermost-last (e.g. `[String!]!` is [NonNull, List, NonNull]
// read outer to inner, matching GraphQL's own wrapper ordering).
type WrapKind int

const (
	WrapNone WrapKind = iota
	WrapNonNull
	WrapList
)

// TypeRef is a (definition id, wrapping chain) pair. The chain is
// ordered outermost-first, e.g. `[String!]!` => [NonNull, List, NonNull].
type TypeRef struct {
	Def      TypeID
	Wrapping []WrapKind
}

// IsNonNull reports whether the outermost wrapper is NonNull.
func (t TypeRef) IsNonNull() bool {
	return len(t.Wrapping) > 0 && t.Wrapping[0] == WrapNonNull
}

// Unwrapped returns the TypeRef with the outermost wrapper stripped.
func (t TypeRef) Unwrapped() TypeRef {
	if len(t.Wrapping) == 0 {
		return t
	}
	return TypeRef{Def: t.Def, Wrapping: t.Wrapping[1:]}
}

// IsList reports whether the outermost wrapper (after stripping a
// leading NonNull) is List.
func (t TypeRef) IsList() bool {
	w := t.Wrapping
	if len(w) > 0 && w[0] == WrapNonNull {
		w = w[1:]
	}
	return len(w) > 0 && w[0] == WrapList
}

// Type is one schema type: Scalar, Enum, InputObject, Object, Interface,
// or Union (spec.md §3).
type Type struct {
	ID          TypeID
	Name        ident.ID
	Description ident.ID
	Kind        TypeKind
	Directives  []DirectiveID

	// Object and Interface only (an Input Object's fields are in
	// InputFields); ExistsInSubgraph is set for all three:
	Fields           []FieldID
	ExistsInSubgraph ident.SortedSet // subgraph ids, as SubgraphID cast to ident.ID

	// Interface/Union only. Sorted ascending by TypeID, per spec.md §3
	// invariant, and complete: every object implementing the interface
	// in any subgraph is present.
	PossibleTypes                 []TypeID
	PossibleTypesByTypename       []TypeID // sorted by typename, for introspection

	// InputObject only.
	InputFields []FieldID

	// Enum only.
	EnumValues []ident.ID
}

// ExistsInSubgraphs returns the type's subgraph membership as SubgraphID.
func (t *Type) ExistsInSubgraphs() []SubgraphID {
	out := make([]SubgraphID, len(t.ExistsInSubgraph))
	for i, id := range t.ExistsInSubgraph {
		out[i] = SubgraphID(id)
	}
	return out
}

// Field is one field of a composite type (spec.md §3).
type Field struct {
	ID         FieldID
	Parent     TypeID
	Name       ident.ID
	Type       TypeRef
	ArgsStart  ArgID
	ArgsCount  int
	Directives []DirectiveID

	// ExistsInSubgraphs is sorted ascending, enabling binary search
	// during planning (spec.md §3 invariant).
	ExistsInSubgraphs ident.SortedSet

	Resolvers []ResolverID

	// Provides/Requires are per-subgraph: a field may be provided or
	// require extra data differently in each subgraph it exists in.
	Provides map[SubgraphID]FieldSetID
	Requires map[SubgraphID]FieldSetID

	// TypeOverride lets a subgraph expose a field with a narrower or
	// renamed wire type than the supergraph's canonical TypeRef (rare,
	// used by @interfaceObject synthetic fields).
	TypeOverride map[SubgraphID]TypeRef
}

// Arg is an argument definition, referenced by a contiguous
// [ArgsStart, ArgsStart+ArgsCount) range on its owning Field.
type Arg struct {
	Name         ident.ID
	Type         TypeRef
	DefaultValue *CoercedValue
}

// Graph is the full interned Schema Graph. It is built once by Builder
// and is read-only afterward.
type Graph struct {
	Strings *ident.Interner

	Types  []*Type
	Fields []*Field
	Args   []Arg

	FieldSets  []*FieldSet
	Resolvers  []Resolver
	Directives []Directive

	Subgraphs []string // index 0 unused, SubgraphID 1-based like ident.ID

	TypeByName  map[ident.ID]TypeID
	QueryType   TypeID
	MutationType TypeID

	// fieldShapeRefsMu is unused; the field_shape_refs index (spec.md
	// §4.4) lives on shape.Compiler, keyed by bound field occurrence.
	fieldShapeRefsMu struct{}
}

// TypeOf returns the Type for id. Ids are 1-based (0 is Invalid), so the
// backing arena is indexed at id-1.
func (g *Graph) TypeOf(id TypeID) *Type { return g.Types[id-1] }

// FieldOf returns the Field for id.
func (g *Graph) FieldOf(id FieldID) *Field { return g.Fields[id-1] }

// DirectiveOf returns the Directive record for id.
func (g *Graph) DirectiveOf(id DirectiveID) *Directive { return &g.Directives[id-1] }

// FieldSetOf returns the FieldSet for id, or nil for ident.Invalid (the
// "no field set"/leaf sentinel).
func (g *Graph) FieldSetOf(id FieldSetID) *FieldSet {
	if id == 0 {
		return nil
	}
	return g.FieldSets[id-1]
}

// ArgsOf returns the argument slice for a field.
func (g *Graph) ArgsOf(f *Field) []Arg {
	return g.Args[f.ArgsStart : int(f.ArgsStart)+f.ArgsCount]
}

// FieldByName looks up a field by name on a composite type (for an
// Input Object, among its InputFields). Fields are sorted by their
// interned name id at build time (sortFieldsByName), giving a
// deterministic order and letting lookup binary search instead of
// scanning.
func (g *Graph) FieldByName(t *Type, name ident.ID) (*Field, bool) {
	fields := t.Fields
	if t.Kind == KindInputObject {
		fields = t.InputFields
	}
	lo, hi := 0, len(fields)
	for lo < hi {
		mid := (lo + hi) / 2
		f := g.Fields[fields[mid]-1]
		switch {
		case f.Name == name:
			return f, true
		case f.Name < name:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return nil, false
}

// SubgraphName returns the human-readable name for a SubgraphID.
func (g *Graph) SubgraphName(id SubgraphID) string {
	return g.Subgraphs[id]
}

// sortFieldsByName sorts a field id slice by the field's interned name,
// establishing the deterministic binary-searchable order FieldByName
// relies on and which the spec requires for stable planning order.
func sortFieldsByName(g *Graph, ids []FieldID) {
	sort.Slice(ids, func(i, j int) bool {
		return g.Fields[ids[i]-1].Name < g.Fields[ids[j]-1].Name
	})
}
