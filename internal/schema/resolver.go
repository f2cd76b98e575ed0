package schema

import (
	"github.com/graphweave/fedgate/internal/fsm"
	"github.com/graphweave/fedgate/internal/ident"
)

// ResolverKind discriminates the three resolver shapes spec.md §3 names.
type ResolverKind int

const (
	// ResolverRootField resolves a root Query/Mutation field directly
	// against one subgraph.
	ResolverRootField ResolverKind = iota
	// ResolverEntityLookup is a federation entity lookup (`@lookup`) on
	// a subgraph, keyed by a field set.
	ResolverEntityLookup
	// ResolverExtension is a field-level extension resolver (a
	// connector such as REST/OpenAPI or a database binding) attached
	// directly to a field rather than reached via a subgraph hop.
	ResolverExtension
)

// Resolver is the discriminated resolver record referenced from field
// definitions (spec.md §3 "a field may be resolvable by several").
type Resolver struct {
	ID      ResolverID
	Kind    ResolverKind
	Subgraph SubgraphID

	// RootField: the field this resolver answers directly (Kind ==
	// ResolverRootField).
	RootField FieldID

	// EntityLookup: the entity type and key field set used to batch-load
	// it (Kind == ResolverEntityLookup). LookupField is the subgraph's
	// `@lookup` field (e.g. `productBatch`), IsField is the `@is`
	// mapping parsed by internal/fsm describing how the key projects
	// into the lookup's input argument.
	EntityType  TypeID
	Key         FieldSetID
	LookupField FieldID
	IsMapping   ident.ID          // interned raw @is source text
	IsField     *fsm.SelectedValue // IsMapping parsed at build time; nil if IsMapping is empty

	// Extension: name and owning subgraph of an extension directive
	// resolver (Kind == ResolverExtension).
	ExtensionName ident.ID

	// InterfaceObject marks that Subgraph treats EntityType (an
	// interface) as a concrete object it alone fully resolves the
	// common fields of (spec.md §4.3 (5)).
	InterfaceObject bool

	// CostWeight/ListSize feed the planner's cost heuristic and the
	// @cost/@listSize directive vocabulary (spec.md §3, §6).
	CostWeight int
	ListSize   int
}
