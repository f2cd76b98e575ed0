package bind

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphweave/fedgate/internal/schema"
)

func testGraph(t *testing.T) *schema.Graph {
	t.Helper()
	named := func(name string) schema.TypeRefDoc { return schema.TypeRefDoc{Kind: "NAMED", Name: name} }
	nonNull := func(of schema.TypeRefDoc) schema.TypeRefDoc { return schema.TypeRefDoc{Kind: "NON_NULL", OfType: &of} }
	list := func(of schema.TypeRefDoc) schema.TypeRefDoc { return schema.TypeRefDoc{Kind: "LIST", OfType: &of} }

	doc := schema.Doc{
		Subgraphs: []string{"users"},
		Types: []schema.TypeDoc{
			{Name: "String", Kind: "SCALAR"},
			{Name: "Int", Kind: "SCALAR"},
			{Name: "Boolean", Kind: "SCALAR"},
			{Name: "Role", Kind: "ENUM", EnumValues: []string{"ADMIN", "MEMBER"}},
			{
				Name: "UserFilter", Kind: "INPUT_OBJECT",
				Fields: []schema.FieldDoc{
					{Name: "role", Type: named("Role")},
					{Name: "active", Type: nonNull(named("Boolean"))},
				},
			},
			{
				Name: "User", Kind: "OBJECT",
				Fields: []schema.FieldDoc{
					{Name: "id", Type: nonNull(named("String")), ExistsIn: []string{"users"}},
					{Name: "name", Type: named("String"), ExistsIn: []string{"users"}},
					{Name: "role", Type: named("Role"), ExistsIn: []string{"users"}},
				},
			},
			{
				Name: "Query", Kind: "OBJECT",
				Fields: []schema.FieldDoc{
					{
						Name: "user", Type: named("User"), ExistsIn: []string{"users"},
						Args: []schema.ArgDoc{{Name: "id", Type: nonNull(named("String"))}},
					},
					{
						Name: "users", Type: list(named("User")), ExistsIn: []string{"users"},
						Args: []schema.ArgDoc{
							{Name: "filter", Type: named("UserFilter")},
							{Name: "limit", Type: named("Int"), Default: &schema.CoercedValueDoc{Kind: "scalar", Scalar: 10}},
						},
					},
				},
			},
		},
	}

	g, err := schema.Build(doc)
	require.NoError(t, err)
	return g
}

func TestBindSimpleQuery(t *testing.T) {
	g := testGraph(t)
	doc := RawDocument{
		Operations: []RawOperationDef{{
			Type: "query",
			SelectionSet: RawSelectionSet{Selections: []RawSelection{
				{
					Name: "user",
					Arguments: []RawArgument{
						{Name: "id", Value: RawValue{Kind: "String", Scalar: "u1"}},
					},
					SelectionSet: RawSelectionSet{Selections: []RawSelection{
						{Name: "id"},
						{Name: "name", Alias: "userName"},
						{Name: "__typename"},
					}},
				},
			}},
		}},
	}

	op, err := Bind(g, doc, "", nil)
	require.NoError(t, err)
	require.Equal(t, OpQuery, op.Kind)
	require.Len(t, op.SelectionSet.Fields, 1)

	userField := op.SelectionSet.Fields[0]
	wantKey, _ := g.Strings.Lookup("user")
	require.Equal(t, wantKey, userField.ResponseKey)
	require.Len(t, userField.SelectionSet.Fields, 3)
	require.True(t, userField.SelectionSet.Fields[2].IsTypename)
}

func TestBindVariableDefaultsAndMissing(t *testing.T) {
	g := testGraph(t)
	doc := RawDocument{
		Operations: []RawOperationDef{{
			Type: "query",
			VariableDefs: []RawVariableDef{
				{Name: "limit", Type: RawTypeRef{Kind: "NAMED", Name: "Int"}},
				{Name: "id", Type: RawTypeRef{Kind: "NON_NULL", OfType: &RawTypeRef{Kind: "NAMED", Name: "String"}}},
			},
			SelectionSet: RawSelectionSet{Selections: []RawSelection{
				{
					Name: "user",
					Arguments: []RawArgument{
						{Name: "id", Value: RawValue{Kind: "Variable", Variable: "id"}},
					},
					SelectionSet: RawSelectionSet{Selections: []RawSelection{{Name: "id"}}},
				},
			}},
		}},
	}

	_, err := Bind(g, doc, "", map[string]interface{}{})
	require.Error(t, err, "missing required variable $id should fail binding")

	op, err := Bind(g, doc, "", map[string]interface{}{"id": "u1"})
	require.NoError(t, err)
	require.True(t, op.Variables["limit"].IsNull)
	require.Equal(t, "u1", op.Variables["id"].Scalar)

	arg := op.SelectionSet.Fields[0].Args
	require.Len(t, arg, 1)
	for _, v := range arg {
		require.Equal(t, schema.ValueVariable, v.Kind)
		require.Equal(t, "id", v.VariableRef)
	}
}

func TestBindArgumentDefault(t *testing.T) {
	g := testGraph(t)
	doc := RawDocument{
		Operations: []RawOperationDef{{
			Type: "query",
			SelectionSet: RawSelectionSet{Selections: []RawSelection{
				{
					Name:         "users",
					SelectionSet: RawSelectionSet{Selections: []RawSelection{{Name: "id"}}},
				},
			}},
		}},
	}

	op, err := Bind(g, doc, "", nil)
	require.NoError(t, err)
	f := op.SelectionSet.Fields[0]
	require.Len(t, f.Args, 1, "limit should be filled in from its schema default")
	for _, v := range f.Args {
		require.Equal(t, schema.ValueScalar, v.Kind)
		require.Equal(t, 10, v.Scalar)
	}
}

func TestBindFragmentSpreadAndInlineFragment(t *testing.T) {
	g := testGraph(t)
	doc := RawDocument{
		Fragments: []RawFragmentDef{
			{Name: "UserFields", On: "User", SelectionSet: RawSelectionSet{Selections: []RawSelection{{Name: "name"}}}},
		},
		Operations: []RawOperationDef{{
			Type: "query",
			SelectionSet: RawSelectionSet{Selections: []RawSelection{
				{
					Name: "user",
					Arguments: []RawArgument{
						{Name: "id", Value: RawValue{Kind: "String", Scalar: "u1"}},
					},
					SelectionSet: RawSelectionSet{Selections: []RawSelection{
						{Name: "id"},
						{FragmentSpread: "UserFields"},
						{IsInlineFragment: true, InlineFragmentOn: "User", SelectionSet: RawSelectionSet{
							Selections: []RawSelection{{Name: "role"}},
						}},
					}},
				},
			}},
		}},
	}

	op, err := Bind(g, doc, "", nil)
	require.NoError(t, err)
	require.Len(t, op.SelectionSet.Fields[0].SelectionSet.Fields, 3, "fragment spread and inline fragment should flatten into the parent selection")
}

func TestBindSkipIncludeDirectives(t *testing.T) {
	g := testGraph(t)
	doc := RawDocument{
		Operations: []RawOperationDef{{
			Type: "query",
			VariableDefs: []RawVariableDef{
				{Name: "skipName", Type: RawTypeRef{Kind: "NON_NULL", OfType: &RawTypeRef{Kind: "NAMED", Name: "Boolean"}}},
			},
			SelectionSet: RawSelectionSet{Selections: []RawSelection{
				{
					Name: "user",
					Arguments: []RawArgument{
						{Name: "id", Value: RawValue{Kind: "String", Scalar: "u1"}},
					},
					SelectionSet: RawSelectionSet{Selections: []RawSelection{
						{Name: "id"},
						{Name: "name", Directives: []RawDirective{
							{Name: "skip", Arguments: []RawArgument{{Name: "if", Value: RawValue{Kind: "Variable", Variable: "skipName"}}}},
						}},
					}},
				},
			}},
		}},
	}

	op, err := Bind(g, doc, "", map[string]interface{}{"skipName": true})
	require.NoError(t, err)
	require.Len(t, op.SelectionSet.Fields[0].SelectionSet.Fields, 1, "@skip(if: true) should drop the name field")
}

func TestBindUnknownFieldFails(t *testing.T) {
	g := testGraph(t)
	doc := RawDocument{
		Operations: []RawOperationDef{{
			Type: "query",
			SelectionSet: RawSelectionSet{Selections: []RawSelection{
				{Name: "nope"},
			}},
		}},
	}
	_, err := Bind(g, doc, "", nil)
	require.Error(t, err)
	var berr *BindingError
	require.ErrorAs(t, err, &berr)
}
