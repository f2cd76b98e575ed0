package mutation

import "sort"

// WriteOp discriminates the three storage-level operations spec.md §3
// names for WriteItem.
type WriteOp int

const (
	Put WriteOp = iota
	Update
	Delete
)

// WriteItem is the storage-level unit of change a driver executes
// (spec.md §3, §4.8 Phase 3 "lower"). Attributes holds the full row
// for Put, the SET-expression fields for Update; AddNames/DeleteNames
// hold the relation-name string-set deltas an Update on a relation row
// may carry.
type WriteItem struct {
	Key Key
	Op  WriteOp

	Attributes  map[string]interface{}
	AddNames    []string
	DeleteNames []string
}

// Private metadata column names. An inserted node row carries __pk,
// __sk, __created_at and __updated_at alongside user fields (spec.md
// §4.8 "Insert node -> Put with private metadata attributes");
// __relation_names names a relation row's name-set column.
const (
	colPK        = "__pk"
	colSK        = "__sk"
	colCreatedAt = "__created_at"
	colUpdatedAt = "__updated_at"
	colNames     = "__relation_names"
)

// Lower implements Phase 3: rendering one merged InternalChange into
// the WriteItem a storage driver executes. now is the timestamp string
// stamped onto __created_at/__updated_at; the caller supplies it so
// Lower stays a pure function of its inputs.
func Lower(c *InternalChange, now string) *WriteItem {
	if c.IsRelation {
		return lowerRelation(c, now)
	}
	return lowerNode(c, now)
}

func lowerNode(c *InternalChange, now string) *WriteItem {
	switch c.Kind {
	case InsertNode:
		attrs := make(map[string]interface{}, len(c.Attributes)+4)
		for k, v := range c.Attributes {
			attrs[k] = v
		}
		attrs[colPK] = c.Key.PK
		attrs[colSK] = c.Key.SK
		attrs[colCreatedAt] = now
		attrs[colUpdatedAt] = now
		return &WriteItem{Key: c.Key, Op: Put, Attributes: attrs}

	case UpdateNode:
		attrs := make(map[string]interface{}, len(c.Attributes)+1)
		for k, v := range c.Attributes {
			attrs[k] = v
		}
		attrs[colUpdatedAt] = now
		return &WriteItem{Key: c.Key, Op: Update, Attributes: attrs}

	default: // DeleteNode
		return &WriteItem{Key: c.Key, Op: Delete}
	}
}

func lowerRelation(c *InternalChange, now string) *WriteItem {
	if c.Kind == DeleteNode {
		return &WriteItem{Key: c.Key, Op: Delete}
	}

	attrs := make(map[string]interface{}, len(c.Attributes)+1)
	for k, v := range c.Attributes {
		attrs[k] = v
	}
	attrs[colUpdatedAt] = now

	var add, remove []string
	for _, op := range c.NameOps {
		if op.Add {
			add = append(add, op.Name)
		} else {
			remove = append(remove, op.Name)
		}
	}
	sort.Strings(add)
	sort.Strings(remove)

	return &WriteItem{Key: c.Key, Op: Update, Attributes: attrs, AddNames: add, DeleteNames: remove}
}
