package shape

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphweave/fedgate/internal/bind"
	"github.com/graphweave/fedgate/internal/ident"
	"github.com/graphweave/fedgate/internal/schema"
)

func named(name string) schema.TypeRefDoc { return schema.TypeRefDoc{Kind: "NAMED", Name: name} }

// mediaGraph builds an interface Media with two implementors, Movie and
// Show, where each adds a field the other doesn't have — so the
// polymorphic compiler must partition them into two distinct concrete
// shapes.
func mediaGraph(t *testing.T) *schema.Graph {
	t.Helper()
	doc := schema.Doc{
		Subgraphs: []string{"catalog"},
		Types: []schema.TypeDoc{
			{Name: "String", Kind: "SCALAR"},
			{
				Name: "Media", Kind: "INTERFACE",
				Fields:        []schema.FieldDoc{{Name: "id", Type: named("String"), ExistsIn: []string{"catalog"}}},
				PossibleTypes: []string{"Movie", "Show"},
			},
			{
				Name: "Movie", Kind: "OBJECT",
				Fields: []schema.FieldDoc{
					{Name: "id", Type: named("String"), ExistsIn: []string{"catalog"}},
					{Name: "runtimeMinutes", Type: named("String"), ExistsIn: []string{"catalog"}},
				},
			},
			{
				Name: "Show", Kind: "OBJECT",
				Fields: []schema.FieldDoc{
					{Name: "id", Type: named("String"), ExistsIn: []string{"catalog"}},
					{Name: "seasonCount", Type: named("String"), ExistsIn: []string{"catalog"}},
				},
			},
			{
				Name: "Query", Kind: "OBJECT",
				Fields: []schema.FieldDoc{
					{
						Name: "media", Type: named("Media"), ExistsIn: []string{"catalog"},
						Resolvers: []schema.ResolverDoc{{Kind: "root", Subgraph: "catalog"}},
					},
				},
			},
		},
	}
	g, err := schema.Build(doc)
	require.NoError(t, err)
	return g
}

func TestCompileConcreteShape(t *testing.T) {
	doc := schema.Doc{
		Subgraphs: []string{"catalog"},
		Types: []schema.TypeDoc{
			{Name: "String", Kind: "SCALAR"},
			{
				Name: "Widget", Kind: "OBJECT",
				Fields: []schema.FieldDoc{
					{Name: "id", Type: named("String"), ExistsIn: []string{"catalog"}},
					{Name: "name", Type: named("String"), ExistsIn: []string{"catalog"}},
				},
			},
			{
				Name: "Query", Kind: "OBJECT",
				Fields: []schema.FieldDoc{
					{Name: "widget", Type: named("Widget"), ExistsIn: []string{"catalog"}, Resolvers: []schema.ResolverDoc{{Kind: "root", Subgraph: "catalog"}}},
				},
			},
		},
	}
	g, err := schema.Build(doc)
	require.NoError(t, err)

	widgetID := mustType(t, g, "Widget")
	idField := mustField(t, g, widgetID, "id")
	nameField := mustField(t, g, widgetID, "name")

	ss := &bind.SelectionSet{Fields: []*bind.Field{
		{ResponseKey: intern(g, "id"), Def: idField},
		{ResponseKey: intern(g, "name"), Def: nameField},
	}}

	c := NewCompiler(g)
	id, err := c.compileSelection(widgetID, ss)
	require.NoError(t, err)

	shape := c.Tree().ShapeOf(id)
	require.Equal(t, KindConcrete, shape.Kind)
	require.Equal(t, IdentKnown, shape.Identifier.Kind)
	require.Equal(t, widgetID, shape.Identifier.Object)
	require.Len(t, shape.Fields, 2)
	require.Len(t, c.FieldShapeRefs(ss.Fields[0]), 1)
}

func TestCompilePolymorphicPartitionsByFieldSubset(t *testing.T) {
	g := mediaGraph(t)
	mediaID := mustType(t, g, "Media")
	idField := mustField(t, g, mediaID, "id")
	movieID := mustType(t, g, "Movie")
	showID := mustType(t, g, "Show")
	runtimeField := mustField(t, g, movieID, "runtimeMinutes")
	seasonField := mustField(t, g, showID, "seasonCount")

	ss := &bind.SelectionSet{Fields: []*bind.Field{
		{ResponseKey: intern(g, "id"), Def: idField},
		{ResponseKey: intern(g, "runtimeMinutes"), Def: runtimeField, TypeCondition: movieID},
		{ResponseKey: intern(g, "seasonCount"), Def: seasonField, TypeCondition: showID},
	}}

	c := NewCompiler(g)
	id, err := c.compileSelection(mediaID, ss)
	require.NoError(t, err)

	shape := c.Tree().ShapeOf(id)
	require.Equal(t, KindPolymorphic, shape.Kind)
	require.Len(t, shape.Cases, 2, "Movie and Show have different field subsets, so each gets its own case")

	seen := map[schema.TypeID]bool{}
	for _, cs := range shape.Cases {
		seen[cs.ObjectType] = true
		caseShape := c.Tree().ShapeOf(cs.Shape)
		require.Equal(t, KindConcrete, caseShape.Kind)
		require.Len(t, caseShape.Fields, 2, "each case includes the shared id field plus its own type-specific field")
	}
	require.True(t, seen[movieID])
	require.True(t, seen[showID])
}

func TestCompilePolymorphicUniformSubsetCollapsesToOneShape(t *testing.T) {
	g := mediaGraph(t)
	mediaID := mustType(t, g, "Media")
	idField := mustField(t, g, mediaID, "id")

	ss := &bind.SelectionSet{Fields: []*bind.Field{
		{ResponseKey: intern(g, "id"), Def: idField},
		{ResponseKey: intern(g, "__typename"), IsTypename: true},
	}}

	c := NewCompiler(g)
	id, err := c.compileSelection(mediaID, ss)
	require.NoError(t, err)

	shape := c.Tree().ShapeOf(id)
	require.Equal(t, KindConcrete, shape.Kind, "every possible type shares the same field subset, so no PolymorphicShape wrapper is needed")
	require.Equal(t, IdentInterfaceTypename, shape.Identifier.Kind, "__typename was requested, so Anonymous is promoted")
	require.Equal(t, mediaID, shape.Identifier.Abstract)
}

func intern(g *schema.Graph, name string) ident.ID {
	return g.Strings.Intern(name)
}

func mustType(t *testing.T, g *schema.Graph, name string) schema.TypeID {
	t.Helper()
	id, ok := g.Strings.Lookup(name)
	require.True(t, ok)
	typID, ok := g.TypeByName[id]
	require.True(t, ok)
	return typID
}

func mustField(t *testing.T, g *schema.Graph, typ schema.TypeID, name string) schema.FieldID {
	t.Helper()
	nameID, ok := g.Strings.Lookup(name)
	require.True(t, ok)
	f, ok := g.FieldByName(g.TypeOf(typ), nameID)
	require.True(t, ok)
	return f.ID
}
