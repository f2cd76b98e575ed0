package purge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphweave/fedgate/internal/cache"
	"github.com/graphweave/fedgate/internal/mutation"
)

var errPurge = errors.New("purge failed")

type stubBackend struct {
	onPurge func(tags []string)
	err     error
}

func (s *stubBackend) Get(ctx context.Context, namespace, key string) (cache.Entry, error) {
	return cache.MissEntry(), nil
}

func (s *stubBackend) Put(ctx context.Context, namespace, rayID, key string, state cache.EntryState, value cache.Cacheable, tags []string) error {
	return nil
}

func (s *stubBackend) PurgeByTags(ctx context.Context, tags []string) error {
	if s.onPurge != nil {
		s.onPurge(tags)
	}
	return s.err
}

func TestTagByNodeTypeUsesTypePrefixForRelationRows(t *testing.T) {
	item := &mutation.WriteItem{Key: mutation.Key{PK: "User#1", SK: "Post#7"}}
	require.Equal(t, []string{"User"}, TagByNodeType(item))
}

func TestTagByNodeTypeUsesBarePKForNodeRows(t *testing.T) {
	item := &mutation.WriteItem{Key: mutation.Key{PK: "User", SK: "1"}}
	require.Equal(t, []string{"User"}, TagByNodeType(item))
}

func TestOnCommitPurgesUnionOfMappedTags(t *testing.T) {
	var purged [][]string
	listener := &Listener{
		Backend: &stubBackend{onPurge: func(tags []string) { purged = append(purged, tags) }},
		Tags:    TagByNodeType,
	}

	txn := &mutation.Transaction{WriteItems: []*mutation.WriteItem{
		{Key: mutation.Key{PK: "User", SK: "1"}},
		{Key: mutation.Key{PK: "User#1", SK: "Post#7"}},
	}}

	listener.OnCommit(context.Background(), txn)
	require.Len(t, purged, 1)
	require.ElementsMatch(t, []string{"User"}, purged[0])
}

func TestOnCommitSkipsPurgeWhenNoTags(t *testing.T) {
	called := false
	listener := &Listener{
		Backend: &stubBackend{onPurge: func(tags []string) { called = true }},
		Tags:    func(item *mutation.WriteItem) []string { return nil },
	}

	listener.OnCommit(context.Background(), &mutation.Transaction{WriteItems: []*mutation.WriteItem{
		{Key: mutation.Key{PK: "User", SK: "1"}},
	}})
	require.False(t, called)
}

func TestOnCommitReportsErrorToOnError(t *testing.T) {
	var got error
	listener := &Listener{
		Backend: &stubBackend{err: errPurge},
		Tags:    TagByNodeType,
		OnError: func(err error) { got = err },
	}

	listener.OnCommit(context.Background(), &mutation.Transaction{WriteItems: []*mutation.WriteItem{
		{Key: mutation.Key{PK: "User", SK: "1"}},
	}})
	require.Error(t, got)
}
