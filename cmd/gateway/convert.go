package main

import (
	"strconv"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/graphweave/fedgate/internal/bind"
)

// parseRawDocument lexes and parses source with vektah/gqlparser, the
// external parser internal/bind's own doc comment names as the
// assumed producer of its untyped RawDocument input (GraphQL lexing
// and parsing are explicitly out of scope for internal/bind itself).
func parseRawDocument(source string) (bind.RawDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return bind.RawDocument{}, err
	}

	out := bind.RawDocument{
		Operations: make([]bind.RawOperationDef, 0, len(doc.Operations)),
		Fragments:  make([]bind.RawFragmentDef, 0, len(doc.Fragments)),
	}
	for _, op := range doc.Operations {
		out.Operations = append(out.Operations, convertOperation(op))
	}
	for _, frag := range doc.Fragments {
		out.Fragments = append(out.Fragments, bind.RawFragmentDef{
			Name:         frag.Name,
			On:           frag.TypeCondition,
			SelectionSet: convertSelectionSet(frag.SelectionSet),
			Pos:          convertPosition(frag.Position),
		})
	}
	return out, nil
}

func convertOperation(op *ast.OperationDefinition) bind.RawOperationDef {
	vars := make([]bind.RawVariableDef, 0, len(op.VariableDefinitions))
	for _, v := range op.VariableDefinitions {
		var def *bind.RawValue
		if v.DefaultValue != nil {
			rv := convertValue(v.DefaultValue)
			def = &rv
		}
		vars = append(vars, bind.RawVariableDef{
			Name:         v.Variable,
			Type:         convertType(v.Type),
			DefaultValue: def,
			Pos:          convertPosition(v.Position),
		})
	}
	return bind.RawOperationDef{
		Name:         op.Name,
		Type:         string(op.Operation),
		VariableDefs: vars,
		SelectionSet: convertSelectionSet(op.SelectionSet),
		Pos:          convertPosition(op.Position),
	}
}

func convertType(t *ast.Type) bind.RawTypeRef {
	if t.NonNull {
		of := *t
		of.NonNull = false
		inner := convertType(&of)
		return bind.RawTypeRef{Kind: "NON_NULL", OfType: &inner}
	}
	if t.Elem != nil {
		inner := convertType(t.Elem)
		return bind.RawTypeRef{Kind: "LIST", OfType: &inner}
	}
	return bind.RawTypeRef{Kind: "NAMED", Name: t.NamedType}
}

func convertSelectionSet(ss ast.SelectionSet) bind.RawSelectionSet {
	out := bind.RawSelectionSet{Selections: make([]bind.RawSelection, 0, len(ss))}
	for _, sel := range ss {
		out.Selections = append(out.Selections, convertSelection(sel))
	}
	return out
}

func convertSelection(sel ast.Selection) bind.RawSelection {
	switch s := sel.(type) {
	case *ast.Field:
		return bind.RawSelection{
			Alias:        s.Alias,
			Name:         s.Name,
			Arguments:    convertArguments(s.Arguments),
			SelectionSet: convertSelectionSet(s.SelectionSet),
			Directives:   convertDirectives(s.Directives),
			Pos:          convertPosition(s.Position),
		}
	case *ast.FragmentSpread:
		return bind.RawSelection{
			FragmentSpread: s.Name,
			Pos:            convertPosition(s.Position),
		}
	case *ast.InlineFragment:
		return bind.RawSelection{
			IsInlineFragment: true,
			InlineFragmentOn: s.TypeCondition,
			SelectionSet:     convertSelectionSet(s.SelectionSet),
			Pos:              convertPosition(s.Position),
		}
	default:
		return bind.RawSelection{}
	}
}

func convertArguments(args ast.ArgumentList) []bind.RawArgument {
	out := make([]bind.RawArgument, 0, len(args))
	for _, a := range args {
		out = append(out, bind.RawArgument{
			Name:  a.Name,
			Value: convertValue(a.Value),
			Pos:   convertPosition(a.Position),
		})
	}
	return out
}

func convertDirectives(dirs ast.DirectiveList) []bind.RawDirective {
	out := make([]bind.RawDirective, 0, len(dirs))
	for _, d := range dirs {
		out = append(out, bind.RawDirective{
			Name:      d.Name,
			Arguments: convertArguments(d.Arguments),
			Pos:       convertPosition(d.Position),
		})
	}
	return out
}

func convertValue(v *ast.Value) bind.RawValue {
	pos := convertPosition(v.Position)
	switch v.Kind {
	case ast.Variable:
		return bind.RawValue{Kind: "Variable", Variable: v.Raw, Pos: pos}
	case ast.IntValue:
		n, _ := strconv.Atoi(v.Raw)
		return bind.RawValue{Kind: "Int", Scalar: n, Pos: pos}
	case ast.FloatValue:
		f, _ := strconv.ParseFloat(v.Raw, 64)
		return bind.RawValue{Kind: "Float", Scalar: f, Pos: pos}
	case ast.StringValue, ast.BlockValue:
		return bind.RawValue{Kind: "String", Scalar: v.Raw, Pos: pos}
	case ast.BooleanValue:
		b, _ := strconv.ParseBool(v.Raw)
		return bind.RawValue{Kind: "Bool", Scalar: b, Pos: pos}
	case ast.NullValue:
		return bind.RawValue{Kind: "Null", Pos: pos}
	case ast.EnumValue:
		return bind.RawValue{Kind: "Enum", Scalar: v.Raw, Pos: pos}
	case ast.ListValue:
		list := make([]bind.RawValue, 0, len(v.Children))
		for _, c := range v.Children {
			list = append(list, convertValue(c.Value))
		}
		return bind.RawValue{Kind: "List", List: list, Pos: pos}
	case ast.ObjectValue:
		obj := make(map[string]bind.RawValue, len(v.Children))
		for _, c := range v.Children {
			obj[c.Name] = convertValue(c.Value)
		}
		return bind.RawValue{Kind: "Object", Object: obj, Pos: pos}
	default:
		return bind.RawValue{Kind: "Null", Pos: pos}
	}
}

func convertPosition(p *ast.Position) bind.Position {
	if p == nil {
		return bind.Position{}
	}
	return bind.Position{Offset: p.Start, Line: p.Line, Column: p.Column}
}
