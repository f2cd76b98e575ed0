package mutation

// Merge folds two InternalChanges that resolved to the same Key into
// one, per the algebra in spec.md §4.8. a and b must share a.Key ==
// b.Key; the caller (foldChanges) is responsible for grouping by key
// before calling this.
func Merge(a, b *InternalChange) (*InternalChange, error) {
	if a.IsRelation != b.IsRelation {
		return nil, &MergeError{Code: ErrNodeAndRelationCompare, Key: a.Key}
	}
	if a.IsRelation {
		return mergeRelation(a, b)
	}
	return mergeNode(a, b)
}

// mergeNode implements the Node · Node table (spec.md §4.8):
//
//	Insert+Insert -> error MultipleInsertWithSameNode
//	Insert+Delete -> error InsertAndDelete
//	Update+Update -> union of attributes, later wins
//	Insert+Update -> Insert with merged attributes
//	Update+Delete -> Delete (delete wins)
//	Delete+Delete -> error MultipleDeleteWithSameNode
func mergeNode(a, b *InternalChange) (*InternalChange, error) {
	switch {
	case a.Kind == InsertNode && b.Kind == InsertNode:
		return nil, &MergeError{Code: ErrMultipleInsertWithSameNode, Key: a.Key}

	case a.Kind == DeleteNode && b.Kind == DeleteNode:
		return nil, &MergeError{Code: ErrMultipleDeleteWithSameNode, Key: a.Key}

	case a.Kind == InsertNode && b.Kind == DeleteNode, a.Kind == DeleteNode && b.Kind == InsertNode:
		return nil, &MergeError{Code: ErrInsertAndDelete, Key: a.Key}

	case a.Kind == UpdateNode && b.Kind == UpdateNode:
		return &InternalChange{
			Key: a.Key, Node: a.Node, Kind: UpdateNode,
			Attributes: mergeAttributes(a.Attributes, b.Attributes),
		}, nil

	case a.Kind == DeleteNode || b.Kind == DeleteNode:
		return &InternalChange{Key: a.Key, Node: a.Node, Kind: DeleteNode}, nil

	default: // one Insert, one Update, in either order
		insert, update := a, b
		if update.Kind == InsertNode {
			insert, update = b, a
		}
		return &InternalChange{
			Key: a.Key, Node: insert.Node, Kind: InsertNode,
			Attributes: mergeAttributes(insert.Attributes, update.Attributes),
		}, nil
	}
}

// mergeRelation implements the Relation · Relation table, analogous to
// mergeNode, plus accumulating and deduplicating pending relation-name
// operations.
func mergeRelation(a, b *InternalChange) (*InternalChange, error) {
	switch {
	case a.Kind == InsertNode && b.Kind == InsertNode:
		return nil, &MergeError{Code: ErrMultipleInsertWithSameNode, Key: a.Key}

	case a.Kind == DeleteNode && b.Kind == DeleteNode:
		return nil, &MergeError{Code: ErrMultipleDeleteWithSameNode, Key: a.Key}

	case a.Kind == InsertNode && b.Kind == DeleteNode, a.Kind == DeleteNode && b.Kind == InsertNode:
		return nil, &MergeError{Code: ErrInsertAndDelete, Key: a.Key}

	case a.Kind == UpdateNode && b.Kind == UpdateNode:
		return &InternalChange{
			Key: a.Key, IsRelation: true, From: a.From, To: a.To, Kind: UpdateNode,
			Attributes: mergeAttributes(a.Attributes, b.Attributes),
			NameOps:    mergeNameOps(a.NameOps, b.NameOps),
		}, nil

	case a.Kind == DeleteNode || b.Kind == DeleteNode:
		return &InternalChange{Key: a.Key, IsRelation: true, From: a.From, To: a.To, Kind: DeleteNode}, nil

	default:
		insert, update := a, b
		if update.Kind == InsertNode {
			insert, update = b, a
		}
		return &InternalChange{
			Key: a.Key, IsRelation: true, From: insert.From, To: insert.To, Kind: InsertNode,
			Attributes: mergeAttributes(insert.Attributes, update.Attributes),
			NameOps:    mergeNameOps(insert.NameOps, update.NameOps),
		}, nil
	}
}

// mergeAttributes unions two attribute maps; keys present in both take
// b's value, matching "union of attributes (later wins)".
func mergeAttributes(a, b map[string]interface{}) map[string]interface{} {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

// mergeNameOps concatenates two pending relation-name op lists and
// deduplicates by (Add, Name), keeping the first occurrence's
// position so repeated adds/removes don't inflate the set passed to
// the storage driver.
func mergeNameOps(a, b []RelationNameOp) []RelationNameOp {
	seen := make(map[RelationNameOp]bool, len(a)+len(b))
	var out []RelationNameOp
	for _, op := range append(append([]RelationNameOp{}, a...), b...) {
		if seen[op] {
			continue
		}
		seen[op] = true
		out = append(out, op)
	}
	return out
}

// foldChanges groups changes by Key and merges each group down to a
// single InternalChange, returning the first MergeError encountered.
func foldChanges(changes []*InternalChange) (map[Key]*InternalChange, error) {
	folded := make(map[Key]*InternalChange, len(changes))
	for _, c := range changes {
		existing, ok := folded[c.Key]
		if !ok {
			folded[c.Key] = c
			continue
		}
		merged, err := Merge(existing, c)
		if err != nil {
			return nil, err
		}
		folded[c.Key] = merged
	}
	return folded, nil
}
