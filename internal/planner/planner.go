package planner

import (
	"fmt"
	"sort"

	"github.com/graphweave/fedgate/internal/bind"
	"github.com/graphweave/fedgate/internal/fsm"
	"github.com/graphweave/fedgate/internal/ident"
	"github.com/graphweave/fedgate/internal/schema"
)

// Planner turns bound operations into query plans against a fixed
// Schema Graph (spec.md §4.3). It holds no per-request state and is
// safe for concurrent use across requests.
type Planner struct {
	g *schema.Graph
}

func NewPlanner(g *schema.Graph) *Planner {
	return &Planner{g: g}
}

// buildCtx accumulates partitions and edges while planning. Partitions
// are identified by pointer during planning; PartitionID is assigned
// only once the full set is known, by the deterministic sort spec.md
// §4.3 names (subgraph id, then first appearance in the operation).
type buildCtx struct {
	g        *schema.Graph
	counter  int
	all      []*Partition
	edges    []edgeLink
	parentOf map[*Partition]parentLink
}

// parentLink records, for a jumped-to partition, both the ancestor
// partition (for the PartitionEdge) and the exact selection set that
// holds the entity's other fields at the jump site — which may be
// nested arbitrarily deep inside the ancestor partition's own
// SelectionSet. @key and @requires projections both land there, since
// both are "extra fields read off the same entity selection to feed
// the jump".
type parentLink struct {
	partition *Partition
	sel       *bind.SelectionSet
}

type edgeLink struct {
	parent   *Partition
	child    *Partition
	keyField schema.FieldID
}

func (c *buildCtx) newPartition(sg schema.SubgraphID, parentType schema.TypeID, resolver schema.ResolverID, inputKey schema.FieldSetID, isRequires bool) *Partition {
	p := &Partition{
		Subgraph:        sg,
		ParentType:      parentType,
		Resolver:        resolver,
		InputKey:        inputKey,
		IsRequires:      isRequires,
		SelectionSet:    &bind.SelectionSet{},
		firstAppearance: c.counter,
	}
	c.counter++
	c.all = append(c.all, p)
	return p
}

func (c *buildCtx) hasEdge(parent, child *Partition, field schema.FieldID) bool {
	for _, e := range c.edges {
		if e.parent == parent && e.child == child && e.keyField == field {
			return true
		}
	}
	return false
}

// finish assigns final PartitionIDs in stable topological order (every
// parent before its children), breaking ties by (subgraph id, first
// appearance), and resolves edgeLinks into PartitionEdges against those
// ids. Edges always run from an earlier-created partition to a later
// one, so the placement loop below always finds a ready partition.
func (c *buildCtx) finish() *QueryPlan {
	sorted := append([]*Partition(nil), c.all...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Subgraph != sorted[j].Subgraph {
			return sorted[i].Subgraph < sorted[j].Subgraph
		}
		return sorted[i].firstAppearance < sorted[j].firstAppearance
	})
	placed := make(map[*Partition]bool, len(sorted))
	ordered := make([]*Partition, 0, len(sorted))
	for len(ordered) < len(sorted) {
		for _, p := range sorted {
			ready := !placed[p]
			for _, e := range c.edges {
				ready = ready && (e.child != p || placed[e.parent])
			}
			if ready {
				placed[p] = true
				ordered = append(ordered, p)
				break
			}
		}
	}
	ids := make(map[*Partition]PartitionID, len(ordered))
	for i, p := range ordered {
		p.ID = PartitionID(i + 1)
		ids[p] = p.ID
	}
	edges := make([]PartitionEdge, 0, len(c.edges))
	for _, e := range c.edges {
		edges = append(edges, PartitionEdge{Parent: ids[e.parent], Child: ids[e.child], KeyField: e.keyField})
	}
	return &QueryPlan{Partitions: ordered, Edges: edges}
}

// Plan transforms a bound operation into a QueryPlan.
func (p *Planner) Plan(op *bind.Operation) (*QueryPlan, error) {
	ctx := &buildCtx{g: p.g, parentOf: map[*Partition]parentLink{}}
	rootType := p.g.TypeOf(op.RootType)
	if err := p.planRoot(ctx, rootType, op.SelectionSet); err != nil {
		return nil, err
	}
	return ctx.finish(), nil
}

// planRoot groups root-level selections by the subgraph hosting their
// chosen ResolverRootField resolver, emitting one keyless root
// partition per distinct subgraph (spec.md §4.3 (1): root fields need
// no ancestor key, so "best resolver" degenerates to an existence
// check plus the sorted-schema tie-break).
func (p *Planner) planRoot(ctx *buildCtx, rootType *schema.Type, ss *bind.SelectionSet) error {
	g := p.g

	type group struct {
		sg       schema.SubgraphID
		resolver schema.ResolverID
		fields   []*bind.Field
	}
	groups := map[schema.SubgraphID]*group{}
	var order []schema.SubgraphID

	var typenameFields []*bind.Field

	for _, f := range ss.Fields {
		if f.IsTypename {
			typenameFields = append(typenameFields, f)
			continue
		}
		def := g.FieldOf(f.Def)
		var chosen *schema.Resolver
		for _, rid := range def.Resolvers {
			r := &g.Resolvers[rid-1]
			if r.Kind != schema.ResolverRootField {
				continue
			}
			if chosen == nil || r.Subgraph < chosen.Subgraph {
				chosen = r
			}
		}
		if chosen == nil {
			return &PlanningError{Kind: ErrUnreachable, Field: f.Def, Message: "field " + g.Strings.String(def.Name) + " has no root resolver"}
		}
		grp, ok := groups[chosen.Subgraph]
		if !ok {
			grp = &group{sg: chosen.Subgraph, resolver: chosen.ID}
			groups[chosen.Subgraph] = grp
			order = append(order, chosen.Subgraph)
		}
		grp.fields = append(grp.fields, f)
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	if len(order) == 0 {
		if len(typenameFields) == 0 {
			return nil
		}
		// A bare `{ __typename }` query still needs somewhere to run;
		// any configured subgraph will do.
		if len(g.Subgraphs) < 2 {
			return &PlanningError{Kind: ErrUnreachable, Message: "no subgraphs configured"}
		}
		part := ctx.newPartition(schema.SubgraphID(1), rootType.ID, 0, 0, false)
		part.SelectionSet.Fields = typenameFields
		return nil
	}

	for i, sg := range order {
		grp := groups[sg]
		part := ctx.newPartition(sg, rootType.ID, grp.resolver, 0, false)
		if i == 0 {
			grp.fields = append(grp.fields, typenameFields...)
		}
		for _, f := range grp.fields {
			fcopy := *f
			def := g.FieldOf(f.Def)
			if f.SelectionSet != nil {
				childType := g.TypeOf(def.Type.Def)
				rewritten, err := p.planInto(ctx, part, childType, f.SelectionSet, nil)
				if err != nil {
					return err
				}
				fcopy.SelectionSet = rewritten
			}
			part.SelectionSet.Fields = append(part.SelectionSet.Fields, &fcopy)
		}
	}
	return nil
}

// planInto resolves ss's fields against typ within partition's
// subgraph, returning the rewritten selection set to embed at this
// position (local fields plus any key projections synthesized for
// child jumps), and appending any entity-lookup/@requires partitions
// discovered along the way into ctx.
func (p *Planner) planInto(ctx *buildCtx, partition *Partition, typ *schema.Type, ss *bind.SelectionSet, provided map[schema.FieldID]bool) (*bind.SelectionSet, error) {
	g := p.g
	out := &bind.SelectionSet{}

	type jumpGroup struct {
		typeCondition schema.TypeID
		target        schema.SubgraphID
		fields        []*bind.Field
	}
	type jumpKey struct {
		typeCondition schema.TypeID
		target        schema.SubgraphID
	}
	var jumpOrder []jumpKey
	jumps := map[jumpKey]*jumpGroup{}

	for _, f := range ss.Fields {
		if f.IsTypename {
			out.Fields = append(out.Fields, f)
			continue
		}
		def := g.FieldOf(f.Def)

		local := def.ExistsInSubgraphs.Contains(ident.ID(partition.Subgraph)) || provided[f.Def]
		if local {
			if reqFS, ok := def.Requires[partition.Subgraph]; ok && reqFS != 0 {
				if err := p.planRequires(ctx, partition, reqFS); err != nil {
					return nil, err
				}
			}
			fcopy := *f
			if f.SelectionSet != nil {
				childType := g.TypeOf(def.Type.Def)
				newProvided := provided
				if providesFS, ok := def.Provides[partition.Subgraph]; ok && providesFS != 0 {
					newProvided = unionProvided(provided, g, providesFS)
				}
				rewritten, err := p.planInto(ctx, partition, childType, f.SelectionSet, newProvided)
				if err != nil {
					return nil, err
				}
				fcopy.SelectionSet = rewritten
			}
			out.Fields = append(out.Fields, &fcopy)
			continue
		}

		lookupType := typ
		if f.TypeCondition != 0 {
			lookupType = g.TypeOf(f.TypeCondition)
		}
		target, ok := bestLookupSubgraph(g, lookupType.ID, def)
		if !ok {
			return nil, &PlanningError{Kind: ErrUnreachable, Field: f.Def, Message: "field " + g.Strings.String(def.Name) + " unreachable from subgraph " + g.SubgraphName(partition.Subgraph)}
		}
		gk := jumpKey{typeCondition: f.TypeCondition, target: target}
		jg, ok := jumps[gk]
		if !ok {
			jg = &jumpGroup{typeCondition: f.TypeCondition, target: target}
			jumps[gk] = jg
			jumpOrder = append(jumpOrder, gk)
		}
		jg.fields = append(jg.fields, f)
	}

	for _, gk := range jumpOrder {
		jg := jumps[gk]
		lookupType := typ
		if jg.typeCondition != 0 {
			lookupType = g.TypeOf(jg.typeCondition)
		}
		resolver, _ := findEntityLookup(g, lookupType.ID, jg.target)

		if resolver.Key == 0 {
			return nil, &PlanningError{Kind: ErrMissingKey, Message: "entity lookup for " + g.Strings.String(lookupType.Name) + " in " + g.SubgraphName(jg.target) + " has no @key"}
		}
		keyFS := g.FieldSetOf(resolver.Key)
		for _, e := range keyFS.Entries {
			kdef := g.FieldOf(e.Field)
			if !kdef.ExistsInSubgraphs.Contains(ident.ID(partition.Subgraph)) && !provided[e.Field] {
				return nil, &PlanningError{Kind: ErrMissingKey, Field: e.Field, Message: "parent subgraph " + g.SubgraphName(partition.Subgraph) + " cannot provide key field " + g.Strings.String(kdef.Name)}
			}
		}

		if resolver.LookupField != 0 {
			lookupName := g.Strings.String(g.FieldOf(resolver.LookupField).Name)
			if resolver.IsField == nil {
				return nil, &PlanningError{Kind: ErrMissingKey, Message: "@lookup field " + lookupName + " has no @is mapping"}
			}
			mapped, err := fsmMappingFieldNames(resolver.IsField)
			if err != nil {
				return nil, &PlanningError{Kind: ErrMissingKey, Message: "@is mapping for " + lookupName + ": " + err.Error()}
			}
			keyNames := make(map[string]bool, len(keyFS.Entries))
			for _, e := range keyFS.Entries {
				keyNames[g.Strings.String(g.FieldOf(e.Field).Name)] = true
			}
			for _, name := range mapped {
				if !keyNames[name] {
					return nil, &PlanningError{Kind: ErrMissingKey, Message: "@is mapping for " + lookupName + " references " + name + ", which is not part of its @key field set"}
				}
			}
		}

		child := ctx.newPartition(jg.target, lookupType.ID, resolver.ID, resolver.Key, false)
		child.LookupField = resolver.LookupField
		ctx.parentOf[child] = parentLink{partition: partition, sel: out}
		for _, e := range keyFS.Entries {
			if !ctx.hasEdge(partition, child, e.Field) {
				ctx.edges = append(ctx.edges, edgeLink{parent: partition, child: child, keyField: e.Field})
				appendUnique(out, projectionField(g, e.Field, e.Child))
			}
		}

		groupSS := &bind.SelectionSet{Fields: jg.fields}
		rewritten, err := p.planInto(ctx, child, lookupType, groupSS, nil)
		if err != nil {
			return nil, err
		}
		child.SelectionSet = rewritten
	}

	return out, nil
}

// planRequires extends partition's parent edge with the extra fields a
// @requires field set names, coalescing with the entity-lookup
// projection that already feeds partition rather than emitting a
// separate partition (spec.md §9 Open Question, decided in DESIGN.md).
func (p *Planner) planRequires(ctx *buildCtx, partition *Partition, reqFS schema.FieldSetID) error {
	link, ok := ctx.parentOf[partition]
	if !ok {
		return &PlanningError{Kind: ErrUnreachable, Message: "@requires on a root-level field has no parent partition to pull from"}
	}
	parent := link.partition
	fs := p.g.FieldSetOf(reqFS)
	for _, e := range fs.Entries {
		fdef := p.g.FieldOf(e.Field)
		if !fdef.ExistsInSubgraphs.Contains(ident.ID(parent.Subgraph)) {
			return &PlanningError{Kind: ErrMissingKey, Field: e.Field, Message: "@requires field " + p.g.Strings.String(fdef.Name) + " not available in " + p.g.SubgraphName(parent.Subgraph)}
		}
		if !ctx.hasEdge(parent, partition, e.Field) {
			ctx.edges = append(ctx.edges, edgeLink{parent: parent, child: partition, keyField: e.Field})
			appendUnique(link.sel, projectionField(p.g, e.Field, e.Child))
		}
	}
	return nil
}

// bestLookupSubgraph picks the lowest-id subgraph (spec.md §4.3's
// "sorted order in the schema" tie-break) among def's hosting
// subgraphs that also expose an entity-lookup resolver for typ.
func bestLookupSubgraph(g *schema.Graph, typ schema.TypeID, def *schema.Field) (schema.SubgraphID, bool) {
	for _, id := range def.ExistsInSubgraphs {
		sg := schema.SubgraphID(id)
		if _, ok := findEntityLookup(g, typ, sg); ok {
			return sg, true
		}
	}
	return 0, false
}

// fsmMappingFieldNames extracts the argument names a batched @lookup
// field's @is mapping projects, per spec.md §6: the mapping must be a
// single field-selection-map object whose field names are the lookup
// field's argument names (e.g. `{ id: nested.id }`).
func fsmMappingFieldNames(sv *fsm.SelectedValue) ([]string, error) {
	if sv == nil || len(sv.Entries) != 1 {
		return nil, fmt.Errorf("a batched lookup field's @is mapping must be a single object naming its arguments")
	}
	obj, ok := sv.Entries[0].(fsm.Object)
	if !ok {
		return nil, fmt.Errorf("a batched lookup field's @is mapping must be an object, not %T", sv.Entries[0])
	}
	names := make([]string, len(obj.Fields))
	for i, field := range obj.Fields {
		names[i] = field.Name
	}
	return names, nil
}

func findEntityLookup(g *schema.Graph, typ schema.TypeID, sg schema.SubgraphID) (*schema.Resolver, bool) {
	for i := range g.Resolvers {
		r := &g.Resolvers[i]
		if r.Kind == schema.ResolverEntityLookup && r.EntityType == typ && r.Subgraph == sg {
			return r, true
		}
	}
	return nil, false
}

// unionProvided returns a new provided-field set extending base with
// providesFS's top-level fields, implementing spec.md §4.3 (4):
// @provides enlarges what the current resolver can satisfy without
// another hop.
func unionProvided(base map[schema.FieldID]bool, g *schema.Graph, providesFS schema.FieldSetID) map[schema.FieldID]bool {
	out := make(map[schema.FieldID]bool, len(base)+4)
	for k := range base {
		out[k] = true
	}
	fs := g.FieldSetOf(providesFS)
	for _, e := range fs.Entries {
		out[e.Field] = true
	}
	return out
}
