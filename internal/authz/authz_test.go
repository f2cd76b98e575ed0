package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphweave/fedgate/internal/bind"
	"github.com/graphweave/fedgate/internal/schema"
)

func authzGraph(t *testing.T) *schema.Graph {
	t.Helper()
	named := func(name string) schema.TypeRefDoc { return schema.TypeRefDoc{Kind: "NAMED", Name: name} }

	doc := schema.Doc{
		Subgraphs: []string{"accounts"},
		Types: []schema.TypeDoc{
			{Name: "String", Kind: "SCALAR"},
			{
				Name: "User", Kind: "OBJECT",
				Fields: []schema.FieldDoc{
					{Name: "id", Type: named("String"), ExistsIn: []string{"accounts"}},
					{Name: "name", Type: named("String"), ExistsIn: []string{"accounts"}},
				},
			},
			{
				Name: "Query", Kind: "OBJECT",
				Fields: []schema.FieldDoc{
					{
						Name: "me", Type: named("User"), ExistsIn: []string{"accounts"},
						Directives: []schema.DirectiveDoc{{Name: "authenticated"}},
					},
					{
						Name: "adminReport", Type: named("String"), ExistsIn: []string{"accounts"},
						Directives: []schema.DirectiveDoc{
							{Name: "requiresScopes", Args: map[string]interface{}{
								"scopes": [][]string{{"admin"}, {"auditor", "readOnly"}},
							}},
						},
					},
					{
						Name: "billing", Type: named("String"), ExistsIn: []string{"accounts"},
						Args: []schema.ArgDoc{{Name: "accountId", Type: named("String")}},
						Directives: []schema.DirectiveDoc{
							{Name: "authorized", Args: map[string]interface{}{
								"arguments": []string{"accountId"},
								"provider":  "billing-service",
							}},
						},
					},
					{
						Name: "public", Type: named("String"), ExistsIn: []string{"accounts"},
					},
				},
			},
		},
	}

	g, err := schema.Build(doc)
	require.NoError(t, err)
	return g
}

func bindQuery(t *testing.T, g *schema.Graph, doc bind.RawDocument) *bind.Operation {
	t.Helper()
	op, err := bind.Bind(g, doc, "", nil)
	require.NoError(t, err)
	return op
}

func TestEnforceAuthenticatedField(t *testing.T) {
	g := authzGraph(t)
	doc := bind.RawDocument{
		Operations: []bind.RawOperationDef{{
			Type: "query",
			SelectionSet: bind.RawSelectionSet{Selections: []bind.RawSelection{
				{Name: "me", SelectionSet: bind.RawSelectionSet{Selections: []bind.RawSelection{
					{Name: "id"},
				}}},
			}},
		}},
	}

	op := bindQuery(t, g, doc)
	errs := Enforce(context.Background(), g, op, Identity{}, nil)
	require.Len(t, errs, 1)
	require.Equal(t, []string{"me"}, errs[0].Path)
	require.Empty(t, op.SelectionSet.Fields, "unauthenticated access to @authenticated field should be pruned")

	op = bindQuery(t, g, doc)
	errs = Enforce(context.Background(), g, op, Identity{Subject: "user-1"}, nil)
	require.Empty(t, errs)
	require.Len(t, op.SelectionSet.Fields, 1)
}

func TestEnforceRequiresScopesDisjunction(t *testing.T) {
	g := authzGraph(t)
	doc := bind.RawDocument{
		Operations: []bind.RawOperationDef{{
			Type:         "query",
			SelectionSet: bind.RawSelectionSet{Selections: []bind.RawSelection{{Name: "adminReport"}}},
		}},
	}

	op := bindQuery(t, g, doc)
	errs := Enforce(context.Background(), g, op, Identity{Subject: "u", Groups: []string{"someoneElse"}}, nil)
	require.Len(t, errs, 1, "neither conjunction of the disjunction is held")
	require.Empty(t, op.SelectionSet.Fields)

	op = bindQuery(t, g, doc)
	errs = Enforce(context.Background(), g, op, Identity{Subject: "u", Groups: []string{"admin"}}, nil)
	require.Empty(t, errs, "the single-scope conjunction is satisfied")
	require.Len(t, op.SelectionSet.Fields, 1)

	op = bindQuery(t, g, doc)
	errs = Enforce(context.Background(), g, op, Identity{Subject: "u", Groups: []string{"auditor", "readOnly"}}, nil)
	require.Empty(t, errs, "the second conjunction requires both scopes, both held")
	require.Len(t, op.SelectionSet.Fields, 1)

	op = bindQuery(t, g, doc)
	errs = Enforce(context.Background(), g, op, Identity{Subject: "u", Groups: []string{"auditor"}}, nil)
	require.Len(t, errs, 1, "the second conjunction is only half held")
}

func TestEnforceAuthorizedHook(t *testing.T) {
	g := authzGraph(t)
	doc := bind.RawDocument{
		Operations: []bind.RawOperationDef{{
			Type: "query",
			SelectionSet: bind.RawSelectionSet{Selections: []bind.RawSelection{
				{Name: "billing", Arguments: []bind.RawArgument{
					{Name: "accountId", Value: bind.RawValue{Kind: "String", Scalar: "acct-1"}},
				}},
			}},
		}},
	}

	op := bindQuery(t, g, doc)
	errs := Enforce(context.Background(), g, op, Identity{Subject: "u"}, nil)
	require.Len(t, errs, 1, "a nil Hook must deny every @authorized field")

	var gotReq Request
	hook := func(ctx context.Context, req Request) bool {
		gotReq = req
		return req.Args["accountId"] == "acct-1" && req.Meta["provider"] == "billing-service"
	}

	op = bindQuery(t, g, doc)
	errs = Enforce(context.Background(), g, op, Identity{Subject: "u"}, hook)
	require.Empty(t, errs)
	require.Len(t, op.SelectionSet.Fields, 1)
	require.Equal(t, "billing", gotReq.FieldName)
	require.Equal(t, "acct-1", gotReq.Args["accountId"])

	op = bindQuery(t, g, doc)
	denyHook := func(ctx context.Context, req Request) bool { return false }
	errs = Enforce(context.Background(), g, op, Identity{Subject: "u"}, denyHook)
	require.Len(t, errs, 1)
}

func TestEnforcePrunesNestedSubtree(t *testing.T) {
	g := authzGraph(t)
	doc := bind.RawDocument{
		Operations: []bind.RawOperationDef{{
			Type: "query",
			SelectionSet: bind.RawSelectionSet{Selections: []bind.RawSelection{
				{Name: "me", SelectionSet: bind.RawSelectionSet{Selections: []bind.RawSelection{
					{Name: "id"},
					{Name: "name"},
				}}},
				{Name: "public"},
			}},
		}},
	}

	op := bindQuery(t, g, doc)
	errs := Enforce(context.Background(), g, op, Identity{}, nil)
	require.Len(t, errs, 1, "only the root @authenticated field should produce an error, not its children")
	require.Equal(t, []string{"me"}, errs[0].Path)
	require.Len(t, op.SelectionSet.Fields, 1, "public survives; me and its subtree are gone")
	require.Equal(t, "public", g.Strings.String(op.SelectionSet.Fields[0].ResponseKey))
}

func TestEnforceNoDirectivesAlwaysAllowed(t *testing.T) {
	g := authzGraph(t)
	doc := bind.RawDocument{
		Operations: []bind.RawOperationDef{{
			Type:         "query",
			SelectionSet: bind.RawSelectionSet{Selections: []bind.RawSelection{{Name: "public"}}},
		}},
	}

	op := bindQuery(t, g, doc)
	errs := Enforce(context.Background(), g, op, Identity{}, nil)
	require.Empty(t, errs)
	require.Len(t, op.SelectionSet.Fields, 1)
}
