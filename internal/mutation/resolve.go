package mutation

import (
	"context"

	"github.com/graphweave/fedgate/internal/dataloader"
)

// RowSnapshot is what the resolve phase reads back about one existing
// row (node or relation) while resolving a PossibleChange. Names holds
// the relation-name string set for a relation row; it is unused for
// node rows.
type RowSnapshot struct {
	Attributes map[string]interface{}
	Names      []string
}

// RelationSnapshot is one relation row discovered while fanning out
// from a node being deleted (spec.md §4.8: "fans out to every (pk,sk)
// pair reachable from the node by inbound or outbound relation keys").
type RelationSnapshot struct {
	From, To NodeRef
	Names    []string
}

// GraphReader is the read side of the current stored graph, supplied
// by the caller's storage driver. Both methods are invoked through
// dataloaders so concurrent resolves of the same batch of
// PossibleChanges share reads (spec.md §4.8 "reading the current graph
// through the regular dataloaders (batched)").
type GraphReader interface {
	GetBatch(ctx context.Context, keys []Key) (map[Key]RowSnapshot, error)
	RelationsOfBatch(ctx context.Context, nodes []NodeRef) (map[NodeRef][]RelationSnapshot, error)
}

func nodeKey(ref NodeRef) Key { return Key{PK: ref.Type, SK: ref.ID} }

func relationKey(from, to NodeRef) Key {
	return Key{PK: from.Type + "#" + from.ID, SK: to.Type + "#" + to.ID}
}

// Resolver runs Phase 1 (spec.md §4.8 "resolve"): turning a
// PossibleChange into the InternalChanges it implies, reading whatever
// current state that requires through GraphReader.
type Resolver struct {
	keys *dataloader.Loader[Key, RowSnapshot]
	rels *dataloader.Loader[NodeRef, []RelationSnapshot]
}

// NewResolver builds a Resolver backed by reader, with one dataloader
// per read shape, scoped to the lifetime of one transaction-planning
// call (spec.md §3 "Dataloaders are created per request").
func NewResolver(ctx context.Context, reader GraphReader) (*Resolver, error) {
	keys, err := dataloader.New(ctx, dataloader.Config[Key, RowSnapshot]{
		Batch: func(ctx context.Context, ks []Key) (map[Key]RowSnapshot, map[Key]error, error) {
			values, err := reader.GetBatch(ctx, ks)
			return values, nil, err
		},
	})
	if err != nil {
		return nil, err
	}

	rels, err := dataloader.New(ctx, dataloader.Config[NodeRef, []RelationSnapshot]{
		Batch: func(ctx context.Context, nodes []NodeRef) (map[NodeRef][]RelationSnapshot, map[NodeRef]error, error) {
			values, err := reader.RelationsOfBatch(ctx, nodes)
			return values, nil, err
		},
	})
	if err != nil {
		return nil, err
	}

	return &Resolver{keys: keys, rels: rels}, nil
}

// Resolve turns one PossibleChange into the InternalChanges it
// implies. A DeleteNode can imply several (the node itself plus every
// relation row touching it); every other kind implies exactly one, or
// none when the change is a no-op against current state (e.g.
// unlinking a relation that was never linked).
func (r *Resolver) Resolve(ctx context.Context, pc PossibleChange) ([]*InternalChange, error) {
	switch pc.Kind {
	case InsertNode:
		return []*InternalChange{{
			Key: nodeKey(pc.Node), Node: pc.Node, Kind: InsertNode, Attributes: pc.Attributes,
		}}, nil

	case UpdateNode:
		return []*InternalChange{{
			Key: nodeKey(pc.Node), Node: pc.Node, Kind: UpdateNode, Attributes: pc.Attributes,
		}}, nil

	case DeleteNode:
		return r.resolveDeleteNode(ctx, pc)

	case LinkRelation:
		return r.resolveLink(ctx, pc)

	case UnlinkRelation:
		return r.resolveUnlink(ctx, pc)

	default:
		return nil, nil
	}
}

// resolveDeleteNode fans out to every relation row the node
// participates in, so deleting a node also deletes the edges that
// would otherwise dangle.
func (r *Resolver) resolveDeleteNode(ctx context.Context, pc PossibleChange) ([]*InternalChange, error) {
	changes := []*InternalChange{{Key: nodeKey(pc.Node), Node: pc.Node, Kind: DeleteNode}}

	rels, err := r.rels.Load(ctx, pc.Node)
	if err != nil {
		return nil, err
	}
	if !rels.Found {
		return changes, nil
	}
	for _, rel := range rels.Value {
		changes = append(changes, &InternalChange{
			Key: relationKey(rel.From, rel.To), IsRelation: true,
			From: rel.From, To: rel.To, Kind: DeleteNode,
		})
	}
	return changes, nil
}

// resolveLink produces the Update that appends RelationName to the
// (from, to) row's name set. An uncached link first checks whether the
// name is already present and is a no-op if so; a cached link (the
// caller already knows the pair isn't linked under this name) skips
// that read.
func (r *Resolver) resolveLink(ctx context.Context, pc PossibleChange) ([]*InternalChange, error) {
	key := relationKey(pc.From, pc.To)

	if !pc.RelationCached {
		snap, err := r.keys.Load(ctx, key)
		if err != nil {
			return nil, err
		}
		if snap.Found && containsName(snap.Value.Names, pc.RelationName) {
			return nil, nil
		}
	}

	return []*InternalChange{{
		Key: key, IsRelation: true, From: pc.From, To: pc.To, Kind: UpdateNode,
		Attributes: pc.Attributes,
		NameOps:    []RelationNameOp{{Add: true, Name: pc.RelationName}},
	}}, nil
}

// resolveUnlink reads the relation row's current name set to choose
// between deleting the row outright (this was the last name) and
// removing just this name (spec.md §4.8).
func (r *Resolver) resolveUnlink(ctx context.Context, pc PossibleChange) ([]*InternalChange, error) {
	key := relationKey(pc.From, pc.To)

	snap, err := r.keys.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if !snap.Found || !containsName(snap.Value.Names, pc.RelationName) {
		return nil, nil
	}

	if len(snap.Value.Names) == 1 {
		return []*InternalChange{{
			Key: key, IsRelation: true, From: pc.From, To: pc.To, Kind: DeleteNode,
		}}, nil
	}

	return []*InternalChange{{
		Key: key, IsRelation: true, From: pc.From, To: pc.To, Kind: UpdateNode,
		NameOps: []RelationNameOp{{Add: false, Name: pc.RelationName}},
	}}, nil
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
