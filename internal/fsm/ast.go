// Package fsm implements the field-selection-map parser: the small DSL
// used by `@is`/`@require` to describe how a subgraph field's input
// argument projects from another subgraph's fields (spec.md §4.1).
package fsm

// SelectedValue is the top-level parse result: one or more alternative
// Entries separated by '|'. A SelectedValue with a single Entry and no
// pipe is the common case; the alternation form lets a mapping pick
// whichever entry type-checks against the runtime value.
type SelectedValue struct {
	Entries []Entry
}

// Entry is one of the four entry shapes the grammar allows.
type Entry interface {
	entry()
}

// Identity represents the literal "." entry: pass the received value
// through unchanged.
type Identity struct{}

func (Identity) entry() {}

// Path is ('<' name '>' '.')? Segment ('.' Segment)*.
type Path struct {
	// TypeCondition is the optional leading `<Name>.` narrowing; empty
	// when absent.
	TypeCondition string
	Segments      []Segment
}

func (Path) entry() {}

// Segment is one dotted path component, optionally narrowed by a
// trailing `<Name>` type condition.
type Segment struct {
	Name          string
	TypeCondition string
}

// Object is '{' (Field ws)* '}'.
type Object struct {
	Fields []Field
}

func (Object) entry() {}

// Field is `name` or `name: value`. Value is nil for the shorthand form,
// which means "project the field of the same name" (mirrors GraphQL
// object literal shorthand conventions used elsewhere in the pack).
type Field struct {
	Name  string
	Value *SelectedValue
}

// List is '[' Value ']'.
type List struct {
	Value *SelectedValue
}

func (List) entry() {}
