package mutation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var userKey = Key{PK: "User", SK: "1"}

func TestMergeNodeInsertInsertErrors(t *testing.T) {
	a := &InternalChange{Key: userKey, Kind: InsertNode}
	b := &InternalChange{Key: userKey, Kind: InsertNode}

	_, err := Merge(a, b)
	require.Error(t, err)
	require.Equal(t, ErrMultipleInsertWithSameNode, err.(*MergeError).Code)
}

func TestMergeNodeInsertDeleteErrors(t *testing.T) {
	a := &InternalChange{Key: userKey, Kind: InsertNode}
	b := &InternalChange{Key: userKey, Kind: DeleteNode}

	_, err := Merge(a, b)
	require.Error(t, err)
	require.Equal(t, ErrInsertAndDelete, err.(*MergeError).Code)
}

func TestMergeNodeUpdateUpdateUnionsAttributesLaterWins(t *testing.T) {
	a := &InternalChange{Key: userKey, Kind: UpdateNode, Attributes: map[string]interface{}{"name": "Ada", "age": 30}}
	b := &InternalChange{Key: userKey, Kind: UpdateNode, Attributes: map[string]interface{}{"age": 31}}

	merged, err := Merge(a, b)
	require.NoError(t, err)
	require.Equal(t, UpdateNode, merged.Kind)
	require.Equal(t, "Ada", merged.Attributes["name"])
	require.Equal(t, 31, merged.Attributes["age"])
}

func TestMergeNodeInsertUpdateProducesInsertWithMergedAttributes(t *testing.T) {
	a := &InternalChange{Key: userKey, Kind: InsertNode, Attributes: map[string]interface{}{"name": "Ada"}}
	b := &InternalChange{Key: userKey, Kind: UpdateNode, Attributes: map[string]interface{}{"age": 31}}

	merged, err := Merge(a, b)
	require.NoError(t, err)
	require.Equal(t, InsertNode, merged.Kind)
	require.Equal(t, "Ada", merged.Attributes["name"])
	require.Equal(t, 31, merged.Attributes["age"])
}

func TestMergeNodeUpdateDeleteDeleteWins(t *testing.T) {
	a := &InternalChange{Key: userKey, Kind: UpdateNode, Attributes: map[string]interface{}{"name": "Ada"}}
	b := &InternalChange{Key: userKey, Kind: DeleteNode}

	merged, err := Merge(a, b)
	require.NoError(t, err)
	require.Equal(t, DeleteNode, merged.Kind)

	merged2, err := Merge(b, a)
	require.NoError(t, err)
	require.Equal(t, DeleteNode, merged2.Kind)
}

func TestMergeNodeDeleteDeleteErrors(t *testing.T) {
	a := &InternalChange{Key: userKey, Kind: DeleteNode}
	b := &InternalChange{Key: userKey, Kind: DeleteNode}

	_, err := Merge(a, b)
	require.Error(t, err)
	require.Equal(t, ErrMultipleDeleteWithSameNode, err.(*MergeError).Code)
}

func TestMergeNodeAndRelationOnSameKeyErrors(t *testing.T) {
	a := &InternalChange{Key: userKey, IsRelation: false, Kind: UpdateNode}
	b := &InternalChange{Key: userKey, IsRelation: true, Kind: UpdateNode}

	_, err := Merge(a, b)
	require.Error(t, err)
	require.Equal(t, ErrNodeAndRelationCompare, err.(*MergeError).Code)
}

func TestMergeRelationAccumulatesAndDedupesNameOps(t *testing.T) {
	relKey := relationKey(NodeRef{Type: "User", ID: "1"}, NodeRef{Type: "Post", ID: "7"})
	a := &InternalChange{
		Key: relKey, IsRelation: true, Kind: UpdateNode,
		NameOps: []RelationNameOp{{Add: true, Name: "author"}},
	}
	b := &InternalChange{
		Key: relKey, IsRelation: true, Kind: UpdateNode,
		NameOps: []RelationNameOp{{Add: true, Name: "author"}, {Add: true, Name: "editor"}},
	}

	merged, err := Merge(a, b)
	require.NoError(t, err)
	require.ElementsMatch(t, []RelationNameOp{{Add: true, Name: "author"}, {Add: true, Name: "editor"}}, merged.NameOps)
}

func TestFoldChangesStopsAtFirstError(t *testing.T) {
	changes := []*InternalChange{
		{Key: userKey, Kind: InsertNode},
		{Key: userKey, Kind: InsertNode},
	}
	_, err := foldChanges(changes)
	require.Error(t, err)
}

func TestFoldChangesMergesAllChangesForOneKey(t *testing.T) {
	other := Key{PK: "User", SK: "2"}
	changes := []*InternalChange{
		{Key: userKey, Kind: InsertNode, Attributes: map[string]interface{}{"name": "Ada"}},
		{Key: userKey, Kind: UpdateNode, Attributes: map[string]interface{}{"age": 31}},
		{Key: other, Kind: InsertNode, Attributes: map[string]interface{}{"name": "Grace"}},
	}

	folded, err := foldChanges(changes)
	require.NoError(t, err)
	require.Len(t, folded, 2)
	require.Equal(t, InsertNode, folded[userKey].Kind)
	require.Equal(t, 31, folded[userKey].Attributes["age"])
	require.Equal(t, "Grace", folded[other].Attributes["name"])
}
