package bind

import (
	"github.com/graphweave/fedgate/internal/ident"
	"github.com/graphweave/fedgate/internal/schema"
)

// Operation is the Bound Operation spec.md §3 describes: a root type,
// operation kind, and a fully resolved selection set.
type Operation struct {
	RootType      schema.TypeID
	Kind          OperationKind
	SelectionSet  *SelectionSet
	VariableDefs  []VariableDef
	Variables     map[string]*schema.CoercedValue // supplied+defaulted, fully coerced
}

type OperationKind int

const (
	OpQuery OperationKind = iota
	OpMutation
	OpSubscription
)

type VariableDef struct {
	Name ident.ID
	Type schema.TypeRef
}

// SelectionSet is a bound, flattened list of fields: fragment spreads
// and inline fragments have already been resolved at binding time, but
// type-conditional selections (on an interface/union) are preserved as
// TypeCondition on the individual Field so the planner/shape compiler
// can still dispatch by runtime type.
type SelectionSet struct {
	Fields []*Field
}

// Field is one bound selection (spec.md §3 "Bound Operation" / Field).
type Field struct {
	ResponseKey ident.ID // alias, or name if no alias
	Def         schema.FieldID
	Args        map[ident.ID]*schema.CoercedValue
	SelectionSet *SelectionSet // nil for leaf/scalar selections

	// TypeCondition restricts this field's applicability to selections
	// that matched a fragment on a concrete object type; fragments on an
	// interface or union leave it unchanged. Zero when unconditional.
	TypeCondition schema.TypeID

	// AuthDirectives/ExtensionDirectives are directives lifted out of
	// the field by the binder (spec.md §4.2) so the planner can consult
	// them without re-walking directive ASTs.
	AuthDirectives      []schema.DirectiveID
	ExtensionDirectives []schema.DirectiveID

	// IsTypename marks the synthetic `__typename` meta-field.
	IsTypename bool

	// Synthetic marks a field the planner projected onto the selection
	// itself (an `@key`/`@requires` field set entry) rather than one the
	// client actually asked for. The shape compiler hides synthetic
	// fields from the client-visible response and, for composite ones,
	// compiles them as derived entities.
	Synthetic bool

	Pos Position
}
