package schema

import "github.com/graphweave/fedgate/internal/ident"

// DirectiveKind discriminates the directive-record shapes spec.md §3
// lists under "Directive record".
type DirectiveKind int

const (
	DirectiveAuthenticated DirectiveKind = iota
	DirectiveRequiresScopes
	DirectiveDeprecated
	DirectiveAuthorized
	DirectiveCost
	DirectiveListSize
	DirectiveExtension
)

// ScopeSet is one conjunction of scope ids (all must be present).
type ScopeSet []ident.ID

// ScopeDisjunction is a disjunction of ScopeSets: satisfied if any one
// conjunction is fully satisfied (spec.md §3 "2-D disjunction of
// conjunctions of scope ids").
type ScopeDisjunction []ScopeSet

// Satisfies reports whether the caller's held scopes satisfy the
// disjunction.
func (d ScopeDisjunction) Satisfies(held ident.SortedSet) bool {
	for _, conj := range d {
		ok := true
		for _, s := range conj {
			if !held.Contains(s) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// Directive is the discriminated directive record attached to types and
// fields via Directives []DirectiveID.
type Directive struct {
	ID   DirectiveID
	Kind DirectiveKind

	// DirectiveRequiresScopes
	Scopes ScopeDisjunction

	// DirectiveDeprecated
	DeprecationReason ident.ID

	// DirectiveAuthorized: metadata + the subset of arguments and
	// fields the authorization hook is allowed to inspect.
	AuthorizedArgs  []ident.ID
	AuthorizedField FieldSetID
	AuthorizedMeta  map[string]interface{}

	// DirectiveCost
	CostWeight     int
	CostArguments  map[string]int // per-argument multiplier, by arg name id stringified by caller

	// DirectiveListSize
	ListSizeAssumedSize  int
	ListSizeSlicingArgs  []ident.ID
	ListSizeSizedFields  []FieldID

	// DirectiveExtension: an arbitrary named directive from a specific
	// subgraph, carried through verbatim for the extension resolver to
	// interpret (spec.md §3 "name id + argument value + subgraph id").
	ExtensionName    ident.ID
	ExtensionArgs    map[string]interface{}
	ExtensionSubgraph SubgraphID
}

// CoercedValue is a pre-coerced default/input value (spec.md §3 "Bound
// Operation" / "InputValue"), shared between schema defaults and bound
// operation arguments.
type CoercedValue struct {
	Kind ValueKind

	Scalar interface{} // string/int/float/bool/enum-name, by Kind
	List   []*CoercedValue
	Object map[string]*CoercedValue

	// VariableRef is set only inside an (unresolved) operation-time
	// value; schema defaults are always fully coerced scalars/lists/
	// objects and never hold a VariableRef.
	VariableRef string
	IsNull      bool
}

// ValueKind discriminates the CoercedValue variants named in spec.md
// §3 ("InputValue: discriminated enum over scalar/list/object/enum/
// null/variable-ref/default-of").
type ValueKind int

const (
	ValueScalar ValueKind = iota
	ValueEnum
	ValueList
	ValueObject
	ValueNull
	ValueVariable
)
