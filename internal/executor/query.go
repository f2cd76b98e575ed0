package executor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/graphweave/fedgate/internal/bind"
	"github.com/graphweave/fedgate/internal/ident"
	"github.com/graphweave/fedgate/internal/schema"
)

// renderRootQuery renders a root partition's selection set back to
// GraphQL text. The planner and shape compiler operate on the bound,
// typed form throughout, but a subgraph still speaks plain GraphQL over
// the wire (spec.md §6), so the executor is the one place a text query
// gets assembled again.
func renderRootQuery(g *schema.Graph, opName string, ss *bind.SelectionSet) string {
	var b strings.Builder
	b.WriteString(opName)
	b.WriteString(" { ")
	renderSelectionSet(&b, g, ss)
	b.WriteString(" }")
	return b.String()
}

// renderEntitiesQuery renders the standard federation entity-lookup
// query (spec.md §6: "adds federation `_entities(representations:
// [_Any!]!)` calls for entity-lookup partitions"), dispatching each
// representation's fields through an inline fragment on typeName so a
// single call can batch every parent object regardless of its concrete
// type.
func renderEntitiesQuery(g *schema.Graph, typeName string, ss *bind.SelectionSet) string {
	var b strings.Builder
	b.WriteString("query($representations: [_Any!]!) { _entities(representations: $representations) { ... on ")
	b.WriteString(typeName)
	b.WriteString(" { ")
	renderSelectionSet(&b, g, ss)
	b.WriteString(" } } }")
	return b.String()
}

// renderLookupFieldQuery renders a batched @lookup field call (e.g.
// `productBatch(nested: $nested)`), spec.md §6's alternative to the
// plain federation `_entities` call, with one list-typed variable per
// @is-mapped argument name.
func renderLookupFieldQuery(g *schema.Graph, lookupField schema.FieldID, argNames []string, ss *bind.SelectionSet) (string, error) {
	def := g.FieldOf(lookupField)
	fieldName := g.Strings.String(def.Name)
	args := g.ArgsOf(def)

	var b strings.Builder
	b.WriteString("query(")
	for i, name := range argNames {
		if i > 0 {
			b.WriteString(", ")
		}
		arg, ok := findArgByName(g, args, name)
		if !ok {
			return "", fmt.Errorf("lookup field %s has no argument named %s", fieldName, name)
		}
		b.WriteString("$")
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(renderTypeRef(g, arg.Type))
	}
	b.WriteString(") { ")
	b.WriteString(fieldName)
	b.WriteString("(")
	for i, name := range argNames {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(name)
		b.WriteString(": $")
		b.WriteString(name)
	}
	b.WriteString(") { ")
	renderSelectionSet(&b, g, ss)
	b.WriteString(" } }")
	return b.String(), nil
}

func findArgByName(g *schema.Graph, args []schema.Arg, name string) (schema.Arg, bool) {
	for _, a := range args {
		if g.Strings.String(a.Name) == name {
			return a, true
		}
	}
	return schema.Arg{}, false
}

// renderTypeRef renders a TypeRef back to GraphQL type syntax (e.g.
// `[String!]!`), walking the outermost-first wrapping chain.
func renderTypeRef(g *schema.Graph, t schema.TypeRef) string {
	return wrapTypeName(g.Strings.String(g.TypeOf(t.Def).Name), t.Wrapping)
}

func wrapTypeName(name string, wrapping []schema.WrapKind) string {
	if len(wrapping) == 0 {
		return name
	}
	switch wrapping[0] {
	case schema.WrapNonNull:
		return wrapTypeName(name, wrapping[1:]) + "!"
	case schema.WrapList:
		return "[" + wrapTypeName(name, wrapping[1:]) + "]"
	default:
		return wrapTypeName(name, wrapping[1:])
	}
}

func renderSelectionSet(b *strings.Builder, g *schema.Graph, ss *bind.SelectionSet) {
	first := true
	for _, f := range ss.Fields {
		if !first {
			b.WriteString(" ")
		}
		first = false
		renderField(b, g, f)
	}
}

func renderField(b *strings.Builder, g *schema.Graph, f *bind.Field) {
	if f.IsTypename {
		renderAlias(b, g, f.ResponseKey, "__typename")
		return
	}

	def := g.FieldOf(f.Def)
	name := g.Strings.String(def.Name)
	renderAlias(b, g, f.ResponseKey, name)
	renderArgs(b, f.Args, g.Strings)
	if f.SelectionSet != nil {
		b.WriteString(" { ")
		renderSelectionSet(b, g, f.SelectionSet)
		b.WriteString(" }")
	}
}

func renderAlias(b *strings.Builder, g *schema.Graph, responseKey ident.ID, name string) {
	alias := g.Strings.String(responseKey)
	if alias != "" && alias != name {
		b.WriteString(alias)
		b.WriteString(": ")
	}
	b.WriteString(name)
}

func renderArgs(b *strings.Builder, args map[ident.ID]*schema.CoercedValue, strings_ *ident.Interner) {
	if len(args) == 0 {
		return
	}
	b.WriteString("(")
	first := true
	for name, v := range args {
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(strings_.String(name))
		b.WriteString(": ")
		renderValue(b, v)
	}
	b.WriteString(")")
}

func renderValue(b *strings.Builder, v *schema.CoercedValue) {
	if v == nil || v.IsNull {
		b.WriteString("null")
		return
	}
	switch v.Kind {
	case schema.ValueVariable:
		b.WriteString("$")
		b.WriteString(v.VariableRef)
	case schema.ValueList:
		b.WriteString("[")
		for i, e := range v.List {
			if i > 0 {
				b.WriteString(", ")
			}
			renderValue(b, e)
		}
		b.WriteString("]")
	case schema.ValueObject:
		b.WriteString("{")
		first := true
		for k, e := range v.Object {
			if !first {
				b.WriteString(", ")
			}
			first = false
			b.WriteString(k)
			b.WriteString(": ")
			renderValue(b, e)
		}
		b.WriteString("}")
	case schema.ValueEnum:
		b.WriteString(v.Scalar.(string))
	default:
		renderScalar(b, v.Scalar)
	}
}

func renderScalar(b *strings.Builder, v interface{}) {
	switch val := v.(type) {
	case string:
		b.WriteString(strconv.Quote(val))
	case bool:
		b.WriteString(strconv.FormatBool(val))
	case int:
		b.WriteString(strconv.Itoa(val))
	case int64:
		b.WriteString(strconv.FormatInt(val, 10))
	case float64:
		b.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
	default:
		b.WriteString(strconv.Quote(""))
	}
}
