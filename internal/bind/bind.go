package bind

import (
	"github.com/samsarahq/go/oops"

	"github.com/graphweave/fedgate/internal/ident"
	"github.com/graphweave/fedgate/internal/schema"
)

// BindingError is the "operation doesn't match schema" error kind
// spec.md §7 names: fatal for the operation it's raised on.
type BindingError struct {
	Message string
	Pos     Position
}

func (e *BindingError) Error() string { return e.Message }

// Binder validates a RawDocument against a Graph and produces a bound
// Operation.
type Binder struct {
	g         *schema.Graph
	fragments map[string]RawFragmentDef
	variables map[string]interface{}
}

// Bind resolves opName (or the document's sole operation, if opName is
// empty) against g, coercing variables from the supplied map.
func Bind(g *schema.Graph, doc RawDocument, opName string, variables map[string]interface{}) (*Operation, error) {
	b := &Binder{g: g, fragments: make(map[string]RawFragmentDef), variables: variables}
	for _, f := range doc.Fragments {
		b.fragments[f.Name] = f
	}

	def, err := selectOperation(doc, opName)
	if err != nil {
		return nil, err
	}

	var kind OperationKind
	var rootType schema.TypeID
	switch def.Type {
	case "query":
		kind, rootType = OpQuery, g.QueryType
	case "mutation":
		kind, rootType = OpMutation, g.MutationType
	case "subscription":
		return nil, &BindingError{Message: "subscriptions are not supported", Pos: def.Pos}
	default:
		return nil, &BindingError{Message: "unknown operation type " + def.Type, Pos: def.Pos}
	}
	if rootType == 0 {
		return nil, &BindingError{Message: "schema has no root type for " + def.Type, Pos: def.Pos}
	}

	varDefs, varValues, err := b.bindVariables(def.VariableDefs)
	if err != nil {
		return nil, err
	}

	ss, err := b.bindSelectionSet(def.SelectionSet, g.TypeOf(rootType), 0, make(map[string]bool))
	if err != nil {
		return nil, err
	}

	return &Operation{
		RootType:     rootType,
		Kind:         kind,
		SelectionSet: ss,
		VariableDefs: varDefs,
		Variables:    varValues,
	}, nil
}

func selectOperation(doc RawDocument, opName string) (*RawOperationDef, error) {
	if opName != "" {
		for i := range doc.Operations {
			if doc.Operations[i].Name == opName {
				return &doc.Operations[i], nil
			}
		}
		return nil, &BindingError{Message: "unknown operation " + opName}
	}
	if len(doc.Operations) == 1 {
		return &doc.Operations[0], nil
	}
	return nil, &BindingError{Message: "operationName is required when a document defines multiple operations"}
}

func (b *Binder) bindVariables(defs []RawVariableDef) ([]VariableDef, map[string]*schema.CoercedValue, error) {
	out := make([]VariableDef, 0, len(defs))
	values := make(map[string]*schema.CoercedValue, len(defs))
	for _, d := range defs {
		typ, err := b.resolveRawTypeRef(&d.Type)
		if err != nil {
			return nil, nil, &BindingError{Message: err.Error(), Pos: d.Pos}
		}
		out = append(out, VariableDef{Name: b.g.Strings.Intern(d.Name), Type: typ})

		supplied, ok := b.variables[d.Name]
		switch {
		case ok:
			cv, err := coerceGoValue(supplied, typ, b.g)
			if err != nil {
				return nil, nil, &BindingError{Message: "variable $" + d.Name + ": " + err.Error(), Pos: d.Pos}
			}
			values[d.Name] = cv
		case d.DefaultValue != nil:
			cv, err := b.coerceRawValue(*d.DefaultValue, typ)
			if err != nil {
				return nil, nil, &BindingError{Message: "variable $" + d.Name + " default: " + err.Error(), Pos: d.Pos}
			}
			values[d.Name] = cv
		case typ.IsNonNull():
			return nil, nil, &BindingError{Message: "missing required variable $" + d.Name, Pos: d.Pos}
		default:
			values[d.Name] = &schema.CoercedValue{Kind: schema.ValueNull, IsNull: true}
		}
	}
	return out, values, nil
}

func (b *Binder) resolveRawTypeRef(t *RawTypeRef) (schema.TypeRef, error) {
	var wrapping []schema.WrapKind
	cur := t
	for cur.Kind == "LIST" || cur.Kind == "NON_NULL" {
		if cur.Kind == "LIST" {
			wrapping = append(wrapping, schema.WrapList)
		} else {
			wrapping = append(wrapping, schema.WrapNonNull)
		}
		cur = cur.OfType
		if cur == nil {
			return schema.TypeRef{}, oops.Errorf("malformed type reference")
		}
	}
	id, ok := b.g.TypeByName[b.g.Strings.Intern(cur.Name)]
	if !ok {
		return schema.TypeRef{}, oops.Errorf("unknown type %s", cur.Name)
	}
	return schema.TypeRef{Def: id, Wrapping: wrapping}, nil
}

// bindSelectionSet binds selections against staticType, flattening
// fragment spreads and inline fragments non-recursively (a fragment
// referencing itself, directly or transitively, is a binding error
// detected via the visiting set).
func (b *Binder) bindSelectionSet(raw RawSelectionSet, staticType *schema.Type, typeCondition schema.TypeID, visiting map[string]bool) (*SelectionSet, error) {
	ss := &SelectionSet{}
	for _, sel := range raw.Selections {
		include, err := b.shouldInclude(sel.Directives)
		if err != nil {
			return nil, err
		}
		if !include {
			continue
		}

		switch {
		case sel.IsFragmentSpread():
			if visiting[sel.FragmentSpread] {
				return nil, &BindingError{Message: "fragment cycle on " + sel.FragmentSpread, Pos: sel.Pos}
			}
			fd, ok := b.fragments[sel.FragmentSpread]
			if !ok {
				return nil, &BindingError{Message: "unknown fragment " + sel.FragmentSpread, Pos: sel.Pos}
			}
			onType, ok := b.lookupType(fd.On)
			if !ok {
				return nil, &BindingError{Message: "fragment on unknown type " + fd.On, Pos: fd.Pos}
			}
			if !isCompatible(staticType, onType) {
				// Per GraphQL semantics, a spread on an incompatible
				// type is simply ignored, not an error.
				continue
			}
			visiting[sel.FragmentSpread] = true
			inner, err := b.bindSelectionSet(fd.SelectionSet, onType, coalesceTypeCondition(onType, typeCondition), visiting)
			delete(visiting, sel.FragmentSpread)
			if err != nil {
				return nil, err
			}
			ss.Fields = append(ss.Fields, inner.Fields...)
			continue

		case sel.IsInlineFragment:
			var onType *schema.Type
			if sel.InlineFragmentOn != "" {
				var ok bool
				onType, ok = b.lookupType(sel.InlineFragmentOn)
				if !ok {
					return nil, &BindingError{Message: "inline fragment on unknown type " + sel.InlineFragmentOn, Pos: sel.Pos}
				}
				if !isCompatible(staticType, onType) {
					continue
				}
			} else {
				onType = staticType
			}
			inner, err := b.bindSelectionSet(sel.SelectionSet, onType, coalesceTypeCondition(onType, typeCondition), visiting)
			if err != nil {
				return nil, err
			}
			ss.Fields = append(ss.Fields, inner.Fields...)
			continue
		}

		field, err := b.bindField(sel, staticType, typeCondition)
		if err != nil {
			return nil, err
		}
		ss.Fields = append(ss.Fields, field)
	}
	return ss, nil
}

// coalesceTypeCondition narrows the active type condition: once set to a
// concrete object type it never widens back out, since the executor
// only needs the most specific applicable condition.
func coalesceTypeCondition(onType *schema.Type, existing schema.TypeID) schema.TypeID {
	if onType.Kind == schema.KindObject {
		return onType.ID
	}
	return existing
}

func isCompatible(staticType, onType *schema.Type) bool {
	if staticType.ID == onType.ID {
		return true
	}
	switch staticType.Kind {
	case schema.KindInterface, schema.KindUnion:
		for _, pt := range staticType.PossibleTypes {
			if pt == onType.ID {
				return true
			}
		}
	}
	switch onType.Kind {
	case schema.KindInterface, schema.KindUnion:
		for _, pt := range onType.PossibleTypes {
			if pt == staticType.ID {
				return true
			}
		}
	}
	return false
}

func (b *Binder) lookupType(name string) (*schema.Type, bool) {
	id, ok := b.g.TypeByName[b.g.Strings.Intern(name)]
	if !ok {
		return nil, false
	}
	return b.g.TypeOf(id), true
}

func (b *Binder) bindField(sel RawSelection, staticType *schema.Type, typeCondition schema.TypeID) (*Field, error) {
	if sel.Name == "__typename" {
		alias := sel.Alias
		if alias == "" {
			alias = sel.Name
		}
		return &Field{
			ResponseKey: b.g.Strings.Intern(alias),
			IsTypename:  true,
			Pos:         sel.Pos,
		}, nil
	}

	def, ok := b.g.FieldByName(staticType, b.g.Strings.Intern(sel.Name))
	if !ok {
		return nil, &BindingError{Message: "type " + b.g.Strings.String(staticType.Name) + " has no field " + sel.Name, Pos: sel.Pos}
	}

	args, err := b.bindArguments(sel.Arguments, def, sel.Pos)
	if err != nil {
		return nil, err
	}

	alias := sel.Alias
	if alias == "" {
		alias = sel.Name
	}

	f := &Field{
		ResponseKey: b.g.Strings.Intern(alias),
		Def:         def.ID,
		Args:        args,
		Pos:         sel.Pos,
	}
	f.TypeCondition = typeCondition

	fieldType := def.Type.Unwrapped().Def
	if ft := b.g.TypeOf(fieldType); isComposite(ft) {
		inner, err := b.bindSelectionSet(sel.SelectionSet, ft, 0, make(map[string]bool))
		if err != nil {
			return nil, err
		}
		f.SelectionSet = inner
	}

	for _, did := range def.Directives {
		d := b.g.Directives[did-1]
		switch d.Kind {
		case schema.DirectiveAuthenticated, schema.DirectiveRequiresScopes, schema.DirectiveAuthorized:
			f.AuthDirectives = append(f.AuthDirectives, did)
		case schema.DirectiveExtension:
			f.ExtensionDirectives = append(f.ExtensionDirectives, did)
		}
	}

	return f, nil
}

func isComposite(t *schema.Type) bool {
	switch t.Kind {
	case schema.KindObject, schema.KindInterface, schema.KindUnion:
		return true
	default:
		return false
	}
}

func (b *Binder) bindArguments(raw []RawArgument, def *schema.Field, pos Position) (map[ident.ID]*schema.CoercedValue, error) {
	args := b.g.ArgsOf(def)
	byName := make(map[string]schema.Arg, len(args))
	for _, a := range args {
		byName[b.g.Strings.String(a.Name)] = a
	}

	out := make(map[ident.ID]*schema.CoercedValue, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, ra := range raw {
		seen[ra.Name] = true
		argDef, ok := byName[ra.Name]
		if !ok {
			return nil, &BindingError{Message: "unknown argument " + ra.Name, Pos: ra.Pos}
		}
		cv, err := b.coerceRawValue(ra.Value, argDef.Type)
		if err != nil {
			return nil, &BindingError{Message: "argument " + ra.Name + ": " + err.Error(), Pos: ra.Pos}
		}
		out[b.g.Strings.Intern(ra.Name)] = cv
	}
	for _, a := range args {
		name := b.g.Strings.String(a.Name)
		if seen[name] {
			continue
		}
		switch {
		case a.DefaultValue != nil:
			out[a.Name] = a.DefaultValue
		case a.Type.IsNonNull():
			return nil, &BindingError{Message: "missing required argument " + name, Pos: pos}
		}
	}
	return out, nil
}

// shouldInclude evaluates @skip/@include on a selection, the only
// directives GraphQL mandates be honored at bind time regardless of
// schema-level directive semantics.
func (b *Binder) shouldInclude(directives []RawDirective) (bool, error) {
	include := true
	for _, d := range directives {
		switch d.Name {
		case "skip", "include":
			var ifArg *RawValue
			for _, a := range d.Arguments {
				if a.Name == "if" {
					v := a.Value
					ifArg = &v
				}
			}
			if ifArg == nil {
				return false, &BindingError{Message: "@" + d.Name + " requires argument if", Pos: d.Pos}
			}
			val, err := b.resolveBoolean(*ifArg)
			if err != nil {
				return false, err
			}
			if d.Name == "skip" && val {
				include = false
			}
			if d.Name == "include" && !val {
				include = false
			}
		}
	}
	return include, nil
}

func (b *Binder) resolveBoolean(v RawValue) (bool, error) {
	switch v.Kind {
	case "Bool":
		bv, _ := v.Scalar.(bool)
		return bv, nil
	case "Variable":
		val, ok := b.variables[v.Variable]
		if !ok {
			return false, &BindingError{Message: "missing variable $" + v.Variable, Pos: v.Pos}
		}
		bv, ok := val.(bool)
		if !ok {
			return false, &BindingError{Message: "$" + v.Variable + " is not a boolean", Pos: v.Pos}
		}
		return bv, nil
	default:
		return false, &BindingError{Message: "expected boolean", Pos: v.Pos}
	}
}
