// Package bind implements the Operation Binder (spec.md §4.2): it
// validates a parsed GraphQL document against the Schema Graph and
// produces a fully resolved Bound Operation. The GraphQL lexer/parser
// itself is out of scope (spec.md §1); this package consumes an
// already-parsed, untyped document shape (RawDocument) that an external
// parser (e.g. a vektah/gqlparser-style AST, per the pack) is assumed to
// produce.
package bind

// RawDocument is the untyped parsed-document input to Bind.
type RawDocument struct {
	Operations []RawOperationDef
	Fragments  []RawFragmentDef
}

type RawOperationDef struct {
	Name          string // "" for anonymous operations
	Type          string // "query" | "mutation" | "subscription"
	VariableDefs  []RawVariableDef
	SelectionSet  RawSelectionSet
	Pos           Position
}

type RawVariableDef struct {
	Name         string
	Type         RawTypeRef
	DefaultValue *RawValue
	Pos          Position
}

type RawTypeRef struct {
	Kind   string // LIST | NON_NULL | NAMED
	Name   string
	OfType *RawTypeRef
}

type RawFragmentDef struct {
	Name         string
	On           string
	SelectionSet RawSelectionSet
	Pos          Position
}

type RawSelectionSet struct {
	Selections []RawSelection
}

// RawSelection is one of: a field selection, a fragment spread, or an
// inline fragment. Exactly one of the three groups of fields is set.
type RawSelection struct {
	// Field selection
	Alias        string
	Name         string
	Arguments    []RawArgument
	SelectionSet RawSelectionSet
	Directives   []RawDirective

	// Fragment spread
	FragmentSpread string

	// Inline fragment ("" TypeCondition means untyped)
	InlineFragmentOn string
	IsInlineFragment bool

	Pos Position
}

func (s RawSelection) IsFragmentSpread() bool { return s.FragmentSpread != "" }

type RawArgument struct {
	Name  string
	Value RawValue
	Pos   Position
}

type RawDirective struct {
	Name      string
	Arguments []RawArgument
	Pos       Position
}

// RawValue is a discriminated literal/variable value as it appears in
// the source document, prior to coercion against a schema type.
type RawValue struct {
	Kind     string // Int|Float|String|Bool|Null|Enum|List|Object|Variable
	Scalar   interface{}
	List     []RawValue
	Object   map[string]RawValue
	Variable string
	Pos      Position
}

// Position is a byte offset plus line/column, used for binding-error
// reporting (spec.md §4.2 "variables ... fail with position").
type Position struct {
	Offset int
	Line   int
	Column int
}
