// Package mutation implements the graph-mutation transaction planner
// (spec.md §4.8): a three-phase pipeline (resolve, merge, lower) that
// turns a batch of client-requested PossibleChanges into an ordered
// set of storage WriteItems, independent of any particular storage
// driver.
//
// The pipeline mirrors the Schema Graph/Response Graph split used
// elsewhere in this codebase: PossibleChange is the request-shaped
// input, InternalChange is the resolved, mergeable intermediate form
// keyed by storage identity, and WriteItem is what a driver actually
// executes. Unlike the query-serving packages this one does not key
// off interned ids — a node's identity is its own (type, id) pair, so
// an interner would just be overhead for a batch that rarely exceeds a
// few hundred entries.
package mutation

import "fmt"

// Key identifies one row in the underlying storage model: a partition
// key (the node or relation's owning entity) and a sort key (spec.md
// §3 "resolved form keyed by (partition-key, sort-key)").
type Key struct {
	PK string
	SK string
}

func (k Key) String() string { return k.PK + "#" + k.SK }

// Less orders two keys by (pk, sk), the ordering the planner commits
// WriteItems in to avoid lock-ordering deadlocks across concurrent
// transactions touching the same rows (spec.md §4.8 "ordering within a
// transaction is by (pk, sk)").
func (k Key) Less(o Key) bool {
	if k.PK != o.PK {
		return k.PK < o.PK
	}
	return k.SK < o.SK
}

// NodeRef identifies one node by its entity type name and id.
type NodeRef struct {
	Type string
	ID   string
}

// PossibleChange is the discriminated union spec.md §3 names:
// InsertNode, UpdateNode, DeleteNode, LinkRelation (cached or
// uncached), UnlinkRelation. Exactly one of the typed fields is set,
// selected by Kind.
type PossibleChange struct {
	Kind ChangeKind

	Node NodeRef

	// From/To/RelationName are set for LinkRelation/UnlinkRelation.
	From         NodeRef
	To           NodeRef
	RelationName string

	// RelationCached marks a LinkRelation whose existence the caller
	// already knows to be new (skips the resolve phase's read of the
	// current relation-name set for this pair).
	RelationCached bool

	// Attributes carries the user-defined attribute map InsertNode and
	// UpdateNode attach to the target node.
	Attributes map[string]interface{}
}

// ChangeKind discriminates PossibleChange and InternalChange variants.
type ChangeKind int

const (
	InsertNode ChangeKind = iota
	UpdateNode
	DeleteNode
	LinkRelation
	UnlinkRelation
)

// RelationNameOp is one pending addition or removal of a relation-name
// string, accumulated and deduplicated across merges (spec.md §4.8
// "Update may carry a set of relation-name additions/removals
// represented as a sum type {Add(name), Remove(name)}").
type RelationNameOp struct {
	Add  bool
	Name string
}

// InternalChange is the resolved, mergeable form of one or more
// PossibleChanges landing on the same Key (spec.md §3). Node and
// Relation changes are distinguished by IsRelation; within each, Kind
// selects Insert/Update/Delete.
type InternalChange struct {
	Key        Key
	IsRelation bool

	Kind ChangeKind // InsertNode, UpdateNode, or DeleteNode regardless of IsRelation

	Node     NodeRef // node identity, set when !IsRelation
	From, To NodeRef // relation endpoints, set when IsRelation

	Attributes map[string]interface{}
	NameOps    []RelationNameOp
}

// MergeError is returned by Merge when two InternalChanges on the same
// key combine illegally (spec.md §4.8's named error cases).
type MergeError struct {
	Code string
	Key  Key
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("%s at %s", e.Code, e.Key)
}

const (
	ErrMultipleInsertWithSameNode = "MultipleInsertWithSameNode"
	ErrInsertAndDelete            = "InsertAndDelete"
	ErrMultipleDeleteWithSameNode = "MultipleDeleteWithSameNode"
	ErrNodeAndRelationCompare     = "NodeAndRelationCompare"
)
