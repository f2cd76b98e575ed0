// Package respgraph implements the response graph (spec.md §3): the
// addressable, concurrently-written structure the executor assembles a
// query's result into as per-partition subgraph responses arrive.
//
// A node is a scalar JSON value, a list of child node ids, or a
// container mapping response-key ids to child node ids, generalizing
// the teacher's tree of outputNode closures
// (graphql/batch_executor.go's newOutputNode/Fill/Fail) into a dense,
// explicitly addressable arena: every write goes through one Graph
// guarded by a single RWMutex instead of closures closing over private
// state, so a partition's response can be projected by id into later
// partitions' inputs (spec.md's ResponseObjectSet) without threading
// pointers through unrelated code.
package respgraph

import (
	"sync"

	"github.com/graphweave/fedgate/internal/ident"
)

// NodeID is a dense, 1-based index into a Graph's node arena. The zero
// value means JSON null, consistent with the zero-reserved convention
// used by every other arena in this codebase — a null is simply "no
// node", not a distinct node kind.
type NodeID uint32

// Kind discriminates what shape of value a node holds.
type Kind int

const (
	KindScalar Kind = iota
	KindList
	KindContainer
)

// ContainerEntry is one field slot in a container node. Entries are
// stored by query position (spec.md §4.6's ordering guarantee: "the
// final response's field order equals the client's operation order"),
// so walking a container's Entries in index order reproduces the
// client's selection order directly, with no re-sort at serialization
// time. An entry whose Value is still 0 has not been resolved yet.
type ContainerEntry struct {
	Key   ident.ID
	Value NodeID
}

type node struct {
	kind Kind

	scalar interface{}
	list   []NodeID
	fields []ContainerEntry
}

// Graph is one request's response graph. It is safe for concurrent use
// by every partition's work: writes take the write lock, reads the
// read lock, and both are kept as short as possible since nodes store
// already-computed ids rather than nested structures (spec.md §3:
// "reads during assembly are short and disjoint").
type Graph struct {
	mu    sync.RWMutex
	nodes []*node

	objectSets [][]NodeID
}

// New returns an empty response graph.
func New() *Graph {
	return &Graph{}
}

func (g *Graph) alloc(n *node) NodeID {
	g.nodes = append(g.nodes, n)
	return NodeID(len(g.nodes))
}

// NewScalar stores a leaf JSON value (string/number/bool) and returns
// its node id.
func (g *Graph) NewScalar(v interface{}) NodeID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.alloc(&node{kind: KindScalar, scalar: v})
}

// NewList preallocates a list node of length n, with every element
// initially null, and returns its node id. Callers fill elements with
// SetListElem as the corresponding work completes, in any order.
func (g *Graph) NewList(n int) NodeID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.alloc(&node{kind: KindList, list: make([]NodeID, n)})
}

// SetListElem sets list's element at idx to value.
func (g *Graph) SetListElem(list NodeID, idx int, value NodeID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[list-1].list[idx] = value
}

// NewContainer preallocates a container node with n field slots, keyed
// by query position, and returns its node id.
func (g *Graph) NewContainer(n int) NodeID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.alloc(&node{kind: KindContainer, fields: make([]ContainerEntry, n)})
}

// SetField sets container's field at query position pos to (key,
// value). Writing NodeID 0 as value records an explicit null, which is
// how null propagation (spec.md §4.6 step 5) overwrites an
// already-allocated slot once a non-null child resolves to null.
func (g *Graph) SetField(container NodeID, pos int, key ident.ID, value NodeID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[container-1].fields[pos] = ContainerEntry{Key: key, Value: value}
}

// GrowContainer appends n unwritten field slots to container and
// returns the index the first new slot landed at. A shape tree's
// FieldShape.QueryPosition values are local to whatever partition
// compiled them, so when a later partition's response adds fields to
// an object an earlier partition already started (an entity-lookup
// partition extending the object it was keyed by, spec.md §4.6 step
// 4), the executor reserves a fresh block with GrowContainer and
// offsets that partition's own local positions into it, rather than
// colliding with the block an earlier partition already claimed.
func (g *Graph) GrowContainer(container NodeID, n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	base := len(g.nodes[container-1].fields)
	g.nodes[container-1].fields = append(g.nodes[container-1].fields, make([]ContainerEntry, n)...)
	return base
}

// Field looks up container's current value for key by linear scan.
// Containers hold one object's selection set, which is small relative
// to the schema-wide arenas that justify binary search elsewhere in
// this codebase, so a scan keeps the write side (insertion by
// position, not sorted order) simple.
func (g *Graph) Field(container NodeID, key ident.ID) (NodeID, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, e := range g.nodes[container-1].fields {
		if e.Key == key {
			return e.Value, true
		}
	}
	return 0, false
}

// Kind returns id's node kind. Calling Kind on NodeID 0 (null) is a
// caller bug.
func (g *Graph) Kind(id NodeID) Kind {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id-1].kind
}

// Scalar returns a scalar node's value.
func (g *Graph) Scalar(id NodeID) interface{} {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id-1].scalar
}

// List returns a snapshot of a list node's element ids.
func (g *Graph) List(id NodeID) []NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]NodeID, len(g.nodes[id-1].list))
	copy(out, g.nodes[id-1].list)
	return out
}

// Entries returns a snapshot of a container node's fields, in query
// position order.
func (g *Graph) Entries(id NodeID) []ContainerEntry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]ContainerEntry, len(g.nodes[id-1].fields))
	copy(out, g.nodes[id-1].fields)
	return out
}
