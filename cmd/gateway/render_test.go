package main

import (
	"testing"

	"github.com/kylelemons/godebug/pretty"
	"github.com/stretchr/testify/require"

	"github.com/graphweave/fedgate/internal/ident"
	"github.com/graphweave/fedgate/internal/respgraph"
)

func TestRenderValueScalar(t *testing.T) {
	g := respgraph.New()
	id := g.NewScalar("hello")
	strings := ident.NewInterner()

	require.Equal(t, "hello", renderValue(g, strings, id))
}

func TestRenderValueExplicitNull(t *testing.T) {
	g := respgraph.New()
	strings := ident.NewInterner()

	require.Nil(t, renderValue(g, strings, 0))
}

func TestRenderValueList(t *testing.T) {
	g := respgraph.New()
	strings := ident.NewInterner()

	a := g.NewScalar(1)
	b := g.NewScalar(2)
	list := g.NewList(3)
	g.SetListElem(list, 0, a)
	g.SetListElem(list, 1, b)
	// index 2 left as 0 (explicit null)

	got := renderValue(g, strings, list)
	require.Equal(t, []interface{}{1, 2, nil}, got)
}

func TestRenderValueContainer(t *testing.T) {
	g := respgraph.New()
	strings := ident.NewInterner()

	nameKey := strings.Intern("name")
	ageKey := strings.Intern("age")

	name := g.NewScalar("ada")
	age := g.NewScalar(37)
	container := g.NewContainer(2)
	g.SetField(container, 0, nameKey, name)
	g.SetField(container, 1, ageKey, age)

	got := renderValue(g, strings, container)
	require.Equal(t, map[string]interface{}{"name": "ada", "age": 37}, got)
}

func TestRenderValueNestedContainerDiff(t *testing.T) {
	g := respgraph.New()
	strings := ident.NewInterner()

	idKey := strings.Intern("id")
	meKey := strings.Intern("me")

	id := g.NewScalar("u-1")
	inner := g.NewContainer(1)
	g.SetField(inner, 0, idKey, id)

	outer := g.NewContainer(1)
	g.SetField(outer, 0, meKey, inner)

	got := renderValue(g, strings, outer)
	want := map[string]interface{}{"me": map[string]interface{}{"id": "u-1"}}
	if diff := pretty.Compare(got, want); diff != "" {
		t.Errorf("rendered value did not match: %s", diff)
	}
}

func TestSetNullAtPathTopLevel(t *testing.T) {
	data := map[string]interface{}{"me": map[string]interface{}{"billing": "secret"}}
	setNullAtPath(data, []string{"me"})
	require.Nil(t, data["me"])
}

func TestSetNullAtPathNested(t *testing.T) {
	data := map[string]interface{}{"me": map[string]interface{}{"billing": "secret", "name": "ada"}}
	setNullAtPath(data, []string{"me", "billing"})

	inner, ok := data["me"].(map[string]interface{})
	require.True(t, ok)
	require.Nil(t, inner["billing"])
	require.Equal(t, "ada", inner["name"])
}

func TestSetNullAtPathMissingIntermediateIsNoOp(t *testing.T) {
	data := map[string]interface{}{"me": "not a container"}
	require.NotPanics(t, func() {
		setNullAtPath(data, []string{"me", "billing"})
	})
}

func TestSetNullAtPathEmptyIsNoOp(t *testing.T) {
	data := map[string]interface{}{"me": "ada"}
	setNullAtPath(data, nil)
	require.Equal(t, "ada", data["me"])
}
