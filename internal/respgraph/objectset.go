package respgraph

// ObjectSetID is a dense, 1-based identifier for a ResponseObjectSet
// (spec.md §3): a stable handle on a set of response objects that a
// later partition will index into to project its input key fields.
type ObjectSetID uint32

// NewObjectSet allocates an empty, growable object set and returns its
// id. The executor creates one set for each partition that has child
// partitions, then adds the response objects those children key off as
// the partition's subgraph response arrives.
func (g *Graph) NewObjectSet() ObjectSetID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.objectSets = append(g.objectSets, nil)
	return ObjectSetID(len(g.objectSets))
}

// AddMember appends object to set. object is typically a container
// node id, but the graph does not enforce that — membership is purely
// nominal bookkeeping for the executor's input-projection step.
func (g *Graph) AddMember(set ObjectSetID, object NodeID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx := set - 1
	g.objectSets[idx] = append(g.objectSets[idx], object)
}

// Members returns a snapshot of set's current members, in the order
// they were added.
func (g *Graph) Members(set ObjectSetID) []NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	src := g.objectSets[set-1]
	out := make([]NodeID, len(src))
	copy(out, src)
	return out
}
