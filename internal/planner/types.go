// Package planner implements the Query Planner (spec.md §4.3): it
// transforms a bound operation into a QueryPlan, a DAG of per-subgraph
// partitions linked by key-projection edges.
package planner

import (
	"github.com/graphweave/fedgate/internal/bind"
	"github.com/graphweave/fedgate/internal/schema"
)

// PartitionID is a dense, 1-based id into QueryPlan.Partitions (0 is
// never issued, matching the ident package's reserved-zero convention).
type PartitionID uint32

// Partition is a maximal contiguous piece of the operation resolvable
// by one resolver of one subgraph in one call (spec.md §9 Glossary).
type Partition struct {
	ID       PartitionID
	Resolver schema.ResolverID
	Subgraph schema.SubgraphID

	// ParentType is the entity type this partition's selection set is
	// rooted on (the root type for root-field partitions, the entity
	// type for entity-lookup and @requires partitions).
	ParentType schema.TypeID

	// SelectionSet is what gets sent to Subgraph: the fields resolvable
	// there, plus any key or @requires projections synthesized by the
	// planner so child partitions and dependent fields can be fed.
	SelectionSet *bind.SelectionSet

	// InputKey is the key field set this partition's lookup is keyed
	// by (the @key fields projected from the parent partition's
	// response), or 0 for root partitions that need no key.
	InputKey schema.FieldSetID

	// IsRequires marks a partition synthesized to satisfy a field's
	// @requires field set rather than an ordinary entity-lookup hop.
	IsRequires bool

	// LookupField is the resolver's @lookup field (e.g. Query.productBatch)
	// when this partition is fed through a batched lookup field rather
	// than the plain federation `_entities` call; 0 otherwise.
	LookupField schema.FieldID

	// RootShape is filled in by internal/shape once this partition's
	// shape tree has been compiled; zero until then.
	RootShape int

	firstAppearance int // planning-order counter, used for stable sort
}

// PartitionEdge links a parent partition to a child partition,
// recording which field on the child's key input is projected from
// which field on the parent's response (spec.md §3 "Query Plan").
type PartitionEdge struct {
	Parent   PartitionID
	Child    PartitionID
	KeyField schema.FieldID
}

// QueryPlan is the planner's output: an ordered partition list in
// stable topological order plus the edges linking them into a DAG.
type QueryPlan struct {
	Partitions []*Partition
	Edges      []PartitionEdge
}

// PlanningErrorKind discriminates the two failure modes spec.md §4.3
// names.
type PlanningErrorKind int

const (
	// ErrMissingKey: a field selected on a subgraph that doesn't host
	// the parent entity requires a @key the parent subgraph doesn't
	// expose — a schema composition bug, not a client error.
	ErrMissingKey PlanningErrorKind = iota
	// ErrUnreachable: a selected field isn't resolvable in any
	// subgraph given the ancestor constraints collected so far.
	ErrUnreachable
)

// PlanningError is returned for both spec.md §4.3 failure modes.
type PlanningError struct {
	Kind    PlanningErrorKind
	Field   schema.FieldID
	Message string
}

func (e *PlanningError) Error() string { return e.Message }
