// Package purge bridges a graph-mutation commit stream to
// cache.Backend.PurgeByTags, modeled on livesql's dbTracker: rather
// than reactively invalidating named resources registered against a
// query, it maps each committed WriteItem to the cache tags it
// touches and asks the backend to drop them.
package purge

import (
	"context"

	"github.com/samsarahq/go/oops"

	"github.com/graphweave/fedgate/internal/cache"
	"github.com/graphweave/fedgate/internal/mutation"
)

// TagMapper derives the cache tags a committed WriteItem invalidates.
// A typical mapper tags by the node/relation type encoded in the
// WriteItem's Key (the pk column), so a mutation to any User row
// purges every cached response tagged "User".
type TagMapper func(item *mutation.WriteItem) []string

// Listener subscribes to a store.Store's commit stream (via
// store.Store.Subscribe(listener.OnCommit)) and purges Backend by the
// union of tags every committed WriteItem maps to.
type Listener struct {
	Backend cache.Backend
	Tags    TagMapper

	// OnError receives purge failures; PurgeByTags failures are
	// best-effort per spec.md §4.7 and must never fail the mutation
	// they were triggered by. Defaults to a no-op.
	OnError func(error)
}

// OnCommit is a store.CommitHook.
func (l *Listener) OnCommit(ctx context.Context, txn *mutation.Transaction) {
	tagSet := make(map[string]struct{})
	for _, item := range txn.WriteItems {
		for _, tag := range l.Tags(item) {
			tagSet[tag] = struct{}{}
		}
	}
	if len(tagSet) == 0 {
		return
	}

	tags := make([]string, 0, len(tagSet))
	for tag := range tagSet {
		tags = append(tags, tag)
	}

	if err := l.Backend.PurgeByTags(ctx, tags); err != nil && l.OnError != nil {
		l.OnError(oops.Wrapf(err, "purging cache tags after mutation commit"))
	}
}

// TagByNodeType is the default TagMapper: it tags by the node or
// relation's type name, taken from the Key's pk column up to the
// first "#" for relation rows (encoded "Type#ID") or the whole pk for
// node rows (encoded as the bare type name).
func TagByNodeType(item *mutation.WriteItem) []string {
	pk := item.Key.PK
	for i := 0; i < len(pk); i++ {
		if pk[i] == '#' {
			return []string{pk[:i]}
		}
	}
	return []string{pk}
}
