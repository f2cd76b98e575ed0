package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphweave/fedgate/internal/bind"
	"github.com/graphweave/fedgate/internal/planner"
	"github.com/graphweave/fedgate/internal/schema"
	"github.com/graphweave/fedgate/internal/subgraph"
)

// productBatchGraph mirrors spec.md §8 scenario 1: "catalog" owns
// Query.products and Product.nested, "inventory" owns Product.args
// behind a batched @lookup field (Query.productBatch) keyed on the
// composite field nested.id and projected through `@is(field: "{
// nested }")`.
func productBatchGraph(t *testing.T) *schema.Graph {
	t.Helper()
	named := func(name string) schema.TypeRefDoc { return schema.TypeRefDoc{Kind: "NAMED", Name: name} }
	nonNull := func(of schema.TypeRefDoc) schema.TypeRefDoc { return schema.TypeRefDoc{Kind: "NON_NULL", OfType: &of} }
	list := func(of schema.TypeRefDoc) schema.TypeRefDoc { return schema.TypeRefDoc{Kind: "LIST", OfType: &of} }

	doc := schema.Doc{
		Subgraphs: []string{"catalog", "inventory"},
		Types: []schema.TypeDoc{
			{Name: "String", Kind: "SCALAR"},
			{Name: "NestedRefInput", Kind: "INPUT_OBJECT"},
			{
				Name: "NestedRef", Kind: "OBJECT",
				Fields: []schema.FieldDoc{
					{Name: "id", Type: nonNull(named("String")), ExistsIn: []string{"catalog"}},
				},
			},
			{
				Name: "Product", Kind: "OBJECT",
				Fields: []schema.FieldDoc{
					{
						Name: "nested", Type: nonNull(named("NestedRef")), ExistsIn: []string{"catalog"},
						Resolvers: []schema.ResolverDoc{
							{Kind: "entity", Subgraph: "inventory", Key: "nested { id }", LookupField: "productBatch", IsMapping: "{ nested }"},
						},
					},
					{Name: "args", Type: named("String"), ExistsIn: []string{"inventory"}},
				},
			},
			{
				Name: "Query", Kind: "OBJECT",
				Fields: []schema.FieldDoc{
					{
						Name: "products", Type: list(named("Product")), ExistsIn: []string{"catalog"},
						Resolvers: []schema.ResolverDoc{{Kind: "root", Subgraph: "catalog"}},
					},
					{
						Name: "productBatch", Type: list(nonNull(named("Product"))), ExistsIn: []string{"inventory"},
						Args: []schema.ArgDoc{{Name: "nested", Type: nonNull(list(nonNull(named("NestedRefInput"))))}},
					},
				},
			},
		},
	}

	g, err := schema.Build(doc)
	require.NoError(t, err)
	return g
}

func TestExecuteBatchedLookupFieldProjectsCompositeKey(t *testing.T) {
	g := productBatchGraph(t)
	doc := bind.RawDocument{Operations: []bind.RawOperationDef{{
		Type: "query",
		SelectionSet: bind.RawSelectionSet{Selections: []bind.RawSelection{
			{Name: "products", SelectionSet: bind.RawSelectionSet{Selections: []bind.RawSelection{
				{Name: "args"},
			}}},
		}},
	}}}
	op, err := bind.Bind(g, doc, "", nil)
	require.NoError(t, err)

	plan, err := planner.NewPlanner(g).Plan(op)
	require.NoError(t, err)
	require.Len(t, plan.Partitions, 2)

	var lookupPartition *planner.Partition
	for _, p := range plan.Partitions {
		if p.LookupField != 0 {
			lookupPartition = p
		}
	}
	require.NotNil(t, lookupPartition, "the jump to inventory must be planned as a batched lookup field partition")

	tree := compileAll(t, g, plan)

	catalog := &fakeClient{response: subgraph.Response{
		Data: jsonData(t, `{"products": [{"nested": {"id": "1"}}]}`),
	}}
	inventory := &fakeClient{response: subgraph.Response{
		Data: jsonData(t, `{"productBatch": [{"args": "widget"}]}`),
	}}

	exec := &Executor{
		Schema: g,
		Clients: map[schema.SubgraphID]subgraph.Client{
			schema.SubgraphID(1): catalog,
			schema.SubgraphID(2): inventory,
		},
	}

	result, err := exec.Execute(context.Background(), plan, tree)
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	require.Len(t, inventory.requests, 1)
	require.Contains(t, inventory.requests[0].Query, "productBatch(nested: $nested)")
	require.Equal(t, map[string]interface{}{
		"nested": []interface{}{map[string]interface{}{"id": "1"}},
	}, inventory.requests[0].Variables)

	productsField, ok := result.Graph.Field(result.Root, g.Strings.Intern("products"))
	require.True(t, ok)
	elems := result.Graph.List(productsField)
	require.Len(t, elems, 1)

	argsField, ok := result.Graph.Field(elems[0], g.Strings.Intern("args"))
	require.True(t, ok)
	require.Equal(t, "widget", result.Graph.Scalar(argsField))
}
