package shape

import (
	"sort"
	"strconv"

	"github.com/samsarahq/go/oops"

	"github.com/graphweave/fedgate/internal/bind"
	"github.com/graphweave/fedgate/internal/planner"
	"github.com/graphweave/fedgate/internal/schema"
)

// Compiler compiles bound selection sets into shape trees against a
// fixed Schema Graph.
type Compiler struct {
	g    *schema.Graph
	tree *Tree

	// fieldShapeRefs is the global field_shape_refs index (spec.md
	// §4.4): for every bound field occurrence that ended up writing
	// into some shape, the set of shapes doing that write. Keyed by
	// pointer identity since the same schema field definition can
	// appear many times in one operation under different aliases or
	// type conditions, each a distinct write site.
	fieldShapeRefs map[*bind.Field][]ID
}

func NewCompiler(g *schema.Graph) *Compiler {
	return &Compiler{g: g, tree: &Tree{}, fieldShapeRefs: map[*bind.Field][]ID{}}
}

// Tree returns the shared arena every CompilePartition call appends to.
func (c *Compiler) Tree() *Tree { return c.tree }

// FieldShapeRefs returns every shape that writes to f, for O(1)
// lookup when a modifier (e.g. an auth failure) needs to null it out.
func (c *Compiler) FieldShapeRefs(f *bind.Field) []ID {
	return c.fieldShapeRefs[f]
}

// CompilePartition compiles the root shape for one planned partition's
// outward selection set.
func (c *Compiler) CompilePartition(p *planner.Partition) (ID, error) {
	return c.compileSelection(p.ParentType, p.SelectionSet)
}

// compileSelection compiles ss against the static type parentType,
// choosing a plain ConcreteShape for object types and partitioning by
// field subset for interfaces/unions (spec.md §4.4).
func (c *Compiler) compileSelection(parentType schema.TypeID, ss *bind.SelectionSet) (ID, error) {
	t := c.g.TypeOf(parentType)
	switch t.Kind {
	case schema.KindObject:
		return c.compileConcrete(Identifier{Kind: IdentKnown, Object: parentType}, ss)
	case schema.KindInterface, schema.KindUnion:
		return c.compilePolymorphic(t, ss)
	default:
		return 0, oops.Errorf("shape: cannot select fields on non-composite type %s", c.g.Strings.String(t.Name))
	}
}

// compileConcrete builds one ConcreteShape with identifier ident for
// every field in ss (all applicable, since the caller already knows
// there's a single runtime type or a uniform field subset).
func (c *Compiler) compileConcrete(ident Identifier, ss *bind.SelectionSet) (ID, error) {
	shape := &Shape{Kind: KindConcrete, Identifier: ident}
	id := c.tree.alloc(shape)

	for pos, f := range ss.Fields {
		if f.IsTypename {
			shape.Typenames = append(shape.Typenames, TypenameShape{ClientKey: f.ResponseKey, QueryPosition: pos})
			continue
		}
		fs, err := c.compileField(f, pos)
		if err != nil {
			return 0, err
		}
		shape.Fields = append(shape.Fields, fs)
		c.fieldShapeRefs[f] = append(c.fieldShapeRefs[f], id)
	}

	sort.SliceStable(shape.Fields, func(i, j int) bool { return shape.Fields[i].SubgraphKey < shape.Fields[j].SubgraphKey })
	return id, nil
}

func (c *Compiler) compileField(f *bind.Field, pos int) (FieldShape, error) {
	def := c.g.FieldOf(f.Def)
	fs := FieldShape{
		SubgraphKey:   f.ResponseKey,
		ClientKey:     f.ResponseKey,
		QueryPosition: pos,
		Def:           f.Def,
		Wrapping:      def.Type.Wrapping,
		ClientVisible: !f.Synthetic,
	}
	if f.SelectionSet != nil {
		nested, err := c.compileSelection(def.Type.Def, f.SelectionSet)
		if err != nil {
			return FieldShape{}, oops.Wrapf(err, "field %s", c.g.Strings.String(def.Name))
		}
		if f.Synthetic {
			// A composite key/@requires projection (e.g. `nested { id }`):
			// the gateway never requested this field for its own sake, so
			// its value is synthesized from the leaf fields already present
			// rather than compiled as an ordinary nested object.
			nested, err = c.CompileDerivedEntity(def.Type.Def, f.SelectionSet.Fields, nested, def.Type.IsList())
			if err != nil {
				return FieldShape{}, oops.Wrapf(err, "field %s", c.g.Strings.String(def.Name))
			}
		}
		fs.Nested = nested
	}
	return fs, nil
}

// compilePolymorphic implements spec.md §4.4's partition-by-field-subset
// rule: possible types are grouped by which exact set of (response key,
// Def) fields apply to them; a single group covering every
// possible type collapses to one ConcreteShape (Anonymous, or promoted
// to a Typename identity if __typename was requested) instead of a
// PolymorphicShape wrapper.
func (c *Compiler) compilePolymorphic(t *schema.Type, ss *bind.SelectionSet) (ID, error) {
	base := make([]*bind.Field, 0, len(ss.Fields))
	byType := map[schema.TypeID][]*bind.Field{}
	for _, f := range ss.Fields {
		if f.TypeCondition == 0 {
			base = append(base, f)
			continue
		}
		byType[f.TypeCondition] = append(byType[f.TypeCondition], f)
	}

	type group struct {
		sig    string
		types  []schema.TypeID
		fields []*bind.Field
	}
	groups := map[string]*group{}
	var groupOrder []string

	for _, pt := range t.PossibleTypes {
		fields := append(append([]*bind.Field(nil), base...), byType[pt]...)
		sig := fieldSubsetSignature(c.g, fields)
		grp, ok := groups[sig]
		if !ok {
			grp = &group{sig: sig, fields: fields}
			groups[sig] = grp
			groupOrder = append(groupOrder, sig)
		}
		grp.types = append(grp.types, pt)
	}

	if len(groupOrder) <= 1 {
		id, err := c.compileConcrete(Identifier{Kind: IdentAnonymous}, &bind.SelectionSet{Fields: base})
		if err != nil {
			return 0, err
		}
		shape := c.tree.ShapeOf(id)
		if len(shape.Typenames) > 0 {
			if t.Kind == schema.KindInterface {
				shape.Identifier = Identifier{Kind: IdentInterfaceTypename, Abstract: t.ID}
			} else {
				shape.Identifier = Identifier{Kind: IdentUnionTypename, Abstract: t.ID}
			}
		}
		return id, nil
	}

	poly := &Shape{Kind: KindPolymorphic}
	polyID := c.tree.alloc(poly)

	for _, sig := range groupOrder {
		grp := groups[sig]
		// Identifier.Object names an arbitrary representative; the
		// authoritative type for dispatch is PolymorphicCase.ObjectType
		// below, since every type in the group shares this one shape.
		caseID, err := c.compileConcrete(Identifier{Kind: IdentKnown, Object: grp.types[0]}, &bind.SelectionSet{Fields: grp.fields})
		if err != nil {
			return 0, err
		}
		for _, pt := range grp.types {
			poly.Cases = append(poly.Cases, PolymorphicCase{ObjectType: pt, Shape: caseID})
		}
	}
	sort.Slice(poly.Cases, func(i, j int) bool { return poly.Cases[i].ObjectType < poly.Cases[j].ObjectType })

	return polyID, nil
}

// fieldSubsetSignature renders the (Def, alias) set a possible type's
// fields resolve to into a comparable string, used purely to dedupe
// possible types sharing an identical field subset before compiling a
// shape for each distinct group.
func fieldSubsetSignature(g *schema.Graph, fields []*bind.Field) string {
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, g.Strings.String(f.ResponseKey)+"#"+strconv.Itoa(int(f.Def)))
	}
	sort.Strings(keys)
	sig := ""
	for _, k := range keys {
		sig += k + "|"
	}
	return sig
}

// CompileDerivedEntity builds the DerivedEntityShape that describes
// synthesizing a composite key/@requires field's own value from the
// leaf fields already nested under it, rather than from a plain
// subgraph response read (spec.md §4.4 "derived entities"). The
// executor applies it against the field's own raw value (not the
// enclosing object), so SourceFields name keys of that value.
// isListSource reflects whether the field itself is list-valued; the
// executor reports an error for such a shape instead of synthesizing
// one entity per list element.
func (c *Compiler) CompileDerivedEntity(entityType schema.TypeID, keyFields []*bind.Field, inner ID, isListSource bool) (ID, error) {
	shape := &Shape{Kind: KindDerivedEntity, EntityType: entityType, Inner: inner, IsList: isListSource}
	for pos, f := range keyFields {
		fs, err := c.compileField(f, pos)
		if err != nil {
			return 0, err
		}
		fs.ClientVisible = false
		shape.SourceFields = append(shape.SourceFields, fs)
	}
	return c.tree.alloc(shape), nil
}
