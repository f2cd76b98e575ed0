// Package shape implements the Shape Compiler (spec.md §4.4): given a
// planned partition's bound selection set, it produces a tree that
// describes exactly how to walk that partition's subgraph response and
// write values into the response graph, resolving polymorphic dispatch
// and derived-entity reconstruction once, at compile time, instead of
// on every response.
package shape

import (
	"github.com/graphweave/fedgate/internal/ident"
	"github.com/graphweave/fedgate/internal/schema"
)

// ID is a dense, 1-based index into a Tree's Shapes arena (0 is never
// issued, matching the rest of the codebase's reserved-zero convention).
type ID uint32

// Kind discriminates the three shape forms spec.md §3 names.
type Kind int

const (
	KindConcrete Kind = iota
	KindPolymorphic
	KindDerivedEntity
)

// IdentifierKind discriminates how a ConcreteShape's runtime object
// type is known.
type IdentifierKind int

const (
	// IdentAnonymous: no type identity is needed to deserialize this
	// shape (a uniform field subset shared by every possible type, and
	// the client didn't ask for __typename either).
	IdentAnonymous IdentifierKind = iota
	// IdentKnown: the object type is fixed at compile time.
	IdentKnown
	// IdentInterfaceTypename: dispatch/tag by __typename, but no
	// per-type field subset differs (promoted from Anonymous).
	IdentInterfaceTypename
	// IdentUnionTypename: as IdentInterfaceTypename, for a union.
	IdentUnionTypename
)

// Identifier names the runtime object type a ConcreteShape describes.
type Identifier struct {
	Kind IdentifierKind
	// Object/Abstract is populated per Kind: Known carries the object
	// type id directly; the two Typename kinds carry the interface or
	// union type id whose possible types are being tagged.
	Object   schema.TypeID
	Abstract schema.TypeID
}

// FieldShape is one field write a shape performs (spec.md §3).
type FieldShape struct {
	// SubgraphKey is the response key the subgraph is expected to use
	// in its JSON. The compiler sets it and ClientKey from the same
	// bound response key, so the two are always equal.
	SubgraphKey ident.ID
	ClientKey   ident.ID
	// QueryPosition is the field's index in the client's original
	// selection order, used to restore response field order after
	// shape fields have been sorted by SubgraphKey for lookup.
	QueryPosition int
	Def           schema.FieldID
	Wrapping      []schema.WrapKind
	Nested        ID // 0 for scalar/enum leaves
	// ClientVisible is false for synthetic key/@requires projections
	// the planner added, which must be read off the response but never
	// written into the client-facing result.
	ClientVisible bool
}

// TypenameShape is one `__typename` alias a shape must produce.
type TypenameShape struct {
	ClientKey     ident.ID
	QueryPosition int
}

// PolymorphicCase maps one possible object type to the concrete shape
// that applies when a response element's __typename resolves to it.
type PolymorphicCase struct {
	ObjectType schema.TypeID
	Shape      ID
}

// Shape is the compiled node, discriminated by Kind (spec.md §9's
// sum-type-per-role guidance: one record, explicit Kind, no dynamic
// dispatch needed downstream).
type Shape struct {
	ID   ID
	Kind Kind

	// KindConcrete
	Identifier Identifier
	Fields     []FieldShape
	Typenames  []TypenameShape

	// KindPolymorphic
	Cases    []PolymorphicCase // sorted by ObjectType
	Fallback ID                // 0 if every possible type was partitioned

	// KindDerivedEntity: describes synthesizing an EntityType object
	// from SourceFields read off the parent partition's own response,
	// with no subgraph round trip for the object itself (spec.md §4.4
	// "derived entities" — the representation object batched entity
	// lookups are keyed by). Inner is the shape the synthesized
	// object's own requested fields use once built.
	EntityType   schema.TypeID
	SourceFields []FieldShape
	Inner        ID
	// IsList marks that the field producing SourceFields is itself
	// list-valued. The executor does not synthesize per-element
	// entities for such a shape; it reports an error at that field.
	IsList bool
}

// Tree is a compiled shape forest: one root ID per partition, stored in
// a dense arena shared across all partitions of one query plan so IDs
// stay comparable.
type Tree struct {
	Shapes []*Shape
}

// ShapeOf returns the Shape for id, or nil for 0.
func (t *Tree) ShapeOf(id ID) *Shape {
	if id == 0 {
		return nil
	}
	return t.Shapes[id-1]
}

func (t *Tree) alloc(s *Shape) ID {
	s.ID = ID(len(t.Shapes) + 1)
	t.Shapes = append(t.Shapes, s)
	return s.ID
}
