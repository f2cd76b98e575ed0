package mutation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLowerInsertNodeStampsPrivateColumns(t *testing.T) {
	c := &InternalChange{
		Key: userKey, Node: NodeRef{Type: "User", ID: "1"}, Kind: InsertNode,
		Attributes: map[string]interface{}{"name": "Ada"},
	}

	item := Lower(c, "2026-08-01T00:00:00Z")
	require.Equal(t, Put, item.Op)
	require.Equal(t, "Ada", item.Attributes["name"])
	require.Equal(t, "User", item.Attributes[colPK])
	require.Equal(t, "1", item.Attributes[colSK])
	require.Equal(t, "2026-08-01T00:00:00Z", item.Attributes[colCreatedAt])
	require.Equal(t, "2026-08-01T00:00:00Z", item.Attributes[colUpdatedAt])
}

func TestLowerUpdateNodeOnlyStampsUpdatedAt(t *testing.T) {
	c := &InternalChange{Key: userKey, Kind: UpdateNode, Attributes: map[string]interface{}{"age": 31}}

	item := Lower(c, "now")
	require.Equal(t, Update, item.Op)
	require.Equal(t, 31, item.Attributes["age"])
	require.Equal(t, "now", item.Attributes[colUpdatedAt])
	require.NotContains(t, item.Attributes, colCreatedAt)
}

func TestLowerDeleteNodeCarriesNoAttributes(t *testing.T) {
	item := Lower(&InternalChange{Key: userKey, Kind: DeleteNode}, "now")
	require.Equal(t, Delete, item.Op)
	require.Empty(t, item.Attributes)
}

func TestLowerRelationUpdateSplitsAddAndRemoveNames(t *testing.T) {
	relKey := relationKey(NodeRef{Type: "User", ID: "1"}, NodeRef{Type: "Post", ID: "7"})
	c := &InternalChange{
		Key: relKey, IsRelation: true, Kind: UpdateNode,
		NameOps: []RelationNameOp{{Add: true, Name: "editor"}, {Add: false, Name: "author"}},
	}

	item := Lower(c, "now")
	require.Equal(t, Update, item.Op)
	require.Equal(t, []string{"editor"}, item.AddNames)
	require.Equal(t, []string{"author"}, item.DeleteNames)
}

func TestLowerRelationDeleteIsDeleteOp(t *testing.T) {
	relKey := relationKey(NodeRef{Type: "User", ID: "1"}, NodeRef{Type: "Post", ID: "7"})
	item := Lower(&InternalChange{Key: relKey, IsRelation: true, Kind: DeleteNode}, "now")
	require.Equal(t, Delete, item.Op)
}
