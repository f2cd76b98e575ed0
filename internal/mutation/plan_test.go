package mutation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeReader is an in-memory GraphReader fixture for resolve/plan
// tests, avoiding any need for a real SQL backend.
type fakeReader struct {
	rows      map[Key]RowSnapshot
	relations map[NodeRef][]RelationSnapshot
}

func (f *fakeReader) GetBatch(ctx context.Context, keys []Key) (map[Key]RowSnapshot, error) {
	out := make(map[Key]RowSnapshot, len(keys))
	for _, k := range keys {
		if row, ok := f.rows[k]; ok {
			out[k] = row
		}
	}
	return out, nil
}

func (f *fakeReader) RelationsOfBatch(ctx context.Context, nodes []NodeRef) (map[NodeRef][]RelationSnapshot, error) {
	out := make(map[NodeRef][]RelationSnapshot, len(nodes))
	for _, n := range nodes {
		if rels, ok := f.relations[n]; ok {
			out[n] = rels
		}
	}
	return out, nil
}

func fixedClock(ts string) Clock { return func() string { return ts } }

func TestPlanInsertNodeProducesOnePut(t *testing.T) {
	p := &Planner{Reader: &fakeReader{}, Now: fixedClock("t0")}

	txn, err := p.Plan(context.Background(), []PossibleChange{
		{Kind: InsertNode, Node: NodeRef{Type: "User", ID: "1"}, Attributes: map[string]interface{}{"name": "Ada"}},
	})
	require.NoError(t, err)
	require.Len(t, txn.WriteItems, 1)
	require.Equal(t, Put, txn.WriteItems[0].Op)
	require.Equal(t, "Ada", txn.WriteItems[0].Attributes["name"])
}

func TestPlanDeleteNodeFansOutToTouchingRelations(t *testing.T) {
	user := NodeRef{Type: "User", ID: "1"}
	post := NodeRef{Type: "Post", ID: "7"}
	reader := &fakeReader{
		relations: map[NodeRef][]RelationSnapshot{
			user: {{From: user, To: post, Names: []string{"author"}}},
		},
	}
	p := &Planner{Reader: reader, Now: fixedClock("t0")}

	txn, err := p.Plan(context.Background(), []PossibleChange{{Kind: DeleteNode, Node: user}})
	require.NoError(t, err)
	require.Len(t, txn.WriteItems, 2)

	// ordered by (pk, sk): the bare node row "User"/"1" sorts before the
	// relation row "User#1"/"Post#7" because "User" is a prefix of
	// "User#1"; assert on keys directly instead of position.
	byKey := map[Key]*WriteItem{}
	for _, item := range txn.WriteItems {
		byKey[item.Key] = item
	}
	require.Equal(t, Delete, byKey[nodeKey(user)].Op)
	require.Equal(t, Delete, byKey[relationKey(user, post)].Op)
}

func TestPlanUnlinkLastNameDeletesRelationRow(t *testing.T) {
	user := NodeRef{Type: "User", ID: "1"}
	post := NodeRef{Type: "Post", ID: "7"}
	reader := &fakeReader{
		rows: map[Key]RowSnapshot{
			relationKey(user, post): {Names: []string{"author"}},
		},
	}
	p := &Planner{Reader: reader, Now: fixedClock("t0")}

	txn, err := p.Plan(context.Background(), []PossibleChange{
		{Kind: UnlinkRelation, From: user, To: post, RelationName: "author"},
	})
	require.NoError(t, err)
	require.Len(t, txn.WriteItems, 1)
	require.Equal(t, Delete, txn.WriteItems[0].Op)
}

func TestPlanUnlinkNonLastNameUpdatesRelationRow(t *testing.T) {
	user := NodeRef{Type: "User", ID: "1"}
	post := NodeRef{Type: "Post", ID: "7"}
	reader := &fakeReader{
		rows: map[Key]RowSnapshot{
			relationKey(user, post): {Names: []string{"author", "editor"}},
		},
	}
	p := &Planner{Reader: reader, Now: fixedClock("t0")}

	txn, err := p.Plan(context.Background(), []PossibleChange{
		{Kind: UnlinkRelation, From: user, To: post, RelationName: "author"},
	})
	require.NoError(t, err)
	require.Len(t, txn.WriteItems, 1)
	require.Equal(t, Update, txn.WriteItems[0].Op)
	require.Equal(t, []string{"author"}, txn.WriteItems[0].DeleteNames)
}

func TestPlanLinkAlreadyPresentIsNoOp(t *testing.T) {
	user := NodeRef{Type: "User", ID: "1"}
	post := NodeRef{Type: "Post", ID: "7"}
	reader := &fakeReader{
		rows: map[Key]RowSnapshot{
			relationKey(user, post): {Names: []string{"author"}},
		},
	}
	p := &Planner{Reader: reader, Now: fixedClock("t0")}

	txn, err := p.Plan(context.Background(), []PossibleChange{
		{Kind: LinkRelation, From: user, To: post, RelationName: "author"},
	})
	require.NoError(t, err)
	require.Empty(t, txn.WriteItems)
}

func TestPlanWriteItemsOrderedByKey(t *testing.T) {
	p := &Planner{Reader: &fakeReader{}, Now: fixedClock("t0")}

	txn, err := p.Plan(context.Background(), []PossibleChange{
		{Kind: InsertNode, Node: NodeRef{Type: "User", ID: "2"}},
		{Kind: InsertNode, Node: NodeRef{Type: "User", ID: "1"}},
	})
	require.NoError(t, err)
	require.Len(t, txn.WriteItems, 2)
	require.True(t, txn.WriteItems[0].Key.Less(txn.WriteItems[1].Key))
}

func TestPlanMergeErrorPropagates(t *testing.T) {
	p := &Planner{Reader: &fakeReader{}, Now: fixedClock("t0")}

	_, err := p.Plan(context.Background(), []PossibleChange{
		{Kind: InsertNode, Node: NodeRef{Type: "User", ID: "1"}},
		{Kind: InsertNode, Node: NodeRef{Type: "User", ID: "1"}},
	})
	require.Error(t, err)
	require.IsType(t, &MergeError{}, err)
}
