package schema

import (
	"fmt"
	"sort"

	"github.com/samsarahq/go/oops"

	"github.com/graphweave/fedgate/internal/fsm"
	"github.com/graphweave/fedgate/internal/ident"
)

// Doc is the composed-schema input the Builder consumes. Schema
// composition itself is out of scope (spec.md §1 Non-goals): the
// gateway receives an already-composed supergraph document, annotated
// per field with which subgraphs can resolve it and how. This mirrors
// the shape of `federation/federation.go`'s IntrospectionQuery in the
// teacher, extended with the federation metadata real introspection
// doesn't carry (keys, requires/provides, resolver bindings).
type Doc struct {
	Subgraphs []string
	Types     []TypeDoc
}

type TypeDoc struct {
	Name          string
	Kind          string // SCALAR | ENUM | INPUT_OBJECT | OBJECT | INTERFACE | UNION
	Fields        []FieldDoc
	PossibleTypes []string // INTERFACE | UNION
	EnumValues    []string
	Directives    []DirectiveDoc
}

type FieldDoc struct {
	Name       string
	Type       TypeRefDoc
	Args       []ArgDoc
	ExistsIn   []string // subgraph names able to resolve this field
	Resolvers  []ResolverDoc
	Provides   map[string]string // subgraph name -> field set source
	Requires   map[string]string
	Directives []DirectiveDoc
}

type ArgDoc struct {
	Name    string
	Type    TypeRefDoc
	Default *CoercedValueDoc
}

// TypeRefDoc mirrors a GraphQL introspection __Type reference: Kind is
// one of the scalar/object/... kinds for a named type, or LIST/NON_NULL
// wrapping OfType.
type TypeRefDoc struct {
	Kind   string
	Name   string
	OfType *TypeRefDoc
}

type ResolverDoc struct {
	Kind            string // "root" | "entity" | "extension"
	Subgraph        string
	Key             string // field set source, entity lookups only
	LookupField     string
	IsMapping       string
	InterfaceObject bool
	ExtensionName   string
	ExtensionArgs   map[string]interface{}
	CostWeight      int
	ListSize        int
}

type DirectiveDoc struct {
	Name string
	Args map[string]interface{}
}

type CoercedValueDoc struct {
	Kind   string // scalar|enum|list|object|null
	Scalar interface{}
	List   []*CoercedValueDoc
	Object map[string]*CoercedValueDoc
}

// Builder constructs a Graph from a Doc.
type Builder struct {
	g        *Graph
	interner *ident.Interner
	byName   map[string]*Type
}

// Build parses and validates doc, returning the immutable Graph.
func Build(doc Doc) (*Graph, error) {
	b := &Builder{
		interner: ident.NewInterner(),
		byName:   make(map[string]*Type),
	}
	b.g = &Graph{
		Strings:    b.interner,
		TypeByName: make(map[ident.ID]TypeID),
	}

	b.g.Subgraphs = append(b.g.Subgraphs, "") // index 0 unused
	subgraphID := make(map[string]SubgraphID, len(doc.Subgraphs))
	for _, name := range doc.Subgraphs {
		id := SubgraphID(len(b.g.Subgraphs))
		b.g.Subgraphs = append(b.g.Subgraphs, name)
		subgraphID[name] = id
	}

	// Pass 1: allocate bare Type records so forward references resolve.
	for _, td := range doc.Types {
		if _, ok := b.byName[td.Name]; ok {
			return nil, oops.Errorf("duplicate type %s", td.Name)
		}
		kind, err := parseKind(td.Kind)
		if err != nil {
			return nil, oops.Wrapf(err, "type %s", td.Name)
		}
		t := &Type{
			ID:   TypeID(len(b.g.Types) + 1),
			Name: b.interner.Intern(td.Name),
			Kind: kind,
		}
		b.g.Types = append(b.g.Types, nil) // placeholder at index t.ID-1 fixed below
		b.g.Types[t.ID-1] = t
		b.byName[td.Name] = t
		b.g.TypeByName[t.Name] = t.ID
	}

	// Pass 2: fill in fields, possible types, enum values, directives.
	for _, td := range doc.Types {
		t := b.byName[td.Name]
		switch t.Kind {
		case KindObject, KindInterface, KindInputObject:
			fieldIDs, err := b.buildFields(t, td.Fields, subgraphID)
			if err != nil {
				return nil, oops.Wrapf(err, "type %s", td.Name)
			}
			sortFieldsByName(b.g, fieldIDs)
			if t.Kind == KindInputObject {
				t.InputFields = fieldIDs
			} else {
				t.Fields = fieldIDs
			}
			t.ExistsInSubgraph = subgraphSetFromFields(b.g, fieldIDs)
		}

		if t.Kind == KindUnion || t.Kind == KindInterface {
			ids := make([]TypeID, 0, len(td.PossibleTypes))
			for _, name := range td.PossibleTypes {
				pt, ok := b.byName[name]
				if !ok {
					return nil, oops.Errorf("type %s: unknown possible type %s", td.Name, name)
				}
				ids = append(ids, pt.ID)
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			t.PossibleTypes = ids

			byName := append([]TypeID(nil), ids...)
			sort.Slice(byName, func(i, j int) bool {
				return b.interner.String(b.g.Types[byName[i]-1].Name) < b.interner.String(b.g.Types[byName[j]-1].Name)
			})
			t.PossibleTypesByTypename = byName
		}

		if t.Kind == KindEnum {
			for _, v := range td.EnumValues {
				t.EnumValues = append(t.EnumValues, b.interner.Intern(v))
			}
		}

		ds, err := b.buildDirectives(t, td.Directives, subgraphID, nil)
		if err != nil {
			return nil, oops.Wrapf(err, "type %s directives", td.Name)
		}
		t.Directives = ds
	}

	// Pass 3: resolve field type refs and args now that all types exist,
	// then resolvers/provides/requires, which reference field sets that
	// in turn reference field names on possibly-forward-declared types.
	for _, td := range doc.Types {
		t := b.byName[td.Name]
		if t.Kind != KindObject && t.Kind != KindInterface && t.Kind != KindInputObject {
			continue
		}
		fds := td.Fields
		for _, fd := range fds {
			f, ok := b.g.FieldByName(t, b.interner.Intern(fd.Name))
			if !ok {
				return nil, fmt.Errorf("type %s: field %s vanished between passes", td.Name, fd.Name)
			}
			ref, err := b.resolveTypeRef(&fd.Type)
			if err != nil {
				return nil, oops.Wrapf(err, "type %s field %s", td.Name, fd.Name)
			}
			f.Type = ref

			for _, ad := range fd.Args {
				argRef, err := b.resolveTypeRef(&ad.Type)
				if err != nil {
					return nil, oops.Wrapf(err, "type %s field %s arg %s", td.Name, fd.Name, ad.Name)
				}
				var def *CoercedValue
				if ad.Default != nil {
					def = convertCoercedDoc(ad.Default)
				}
				b.g.Args = append(b.g.Args, Arg{
					Name:         b.interner.Intern(ad.Name),
					Type:         argRef,
					DefaultValue: def,
				})
			}
			f.ArgsCount = len(fd.Args)
			if f.ArgsCount > 0 {
				f.ArgsStart = ArgID(len(b.g.Args) - f.ArgsCount)
			}

			if err := b.buildResolvers(t, f, fd, subgraphID); err != nil {
				return nil, oops.Wrapf(err, "type %s field %s resolvers", td.Name, fd.Name)
			}

			f.Provides = make(map[SubgraphID]FieldSetID, len(fd.Provides))
			for sg, src := range fd.Provides {
				fsID, err := ParseFieldSet(b.g, b.g.TypeOf(f.Type.Unwrapped().Def), src)
				if err != nil {
					return nil, oops.Wrapf(err, "type %s field %s @provides", td.Name, fd.Name)
				}
				f.Provides[subgraphID[sg]] = fsID
			}
			f.Requires = make(map[SubgraphID]FieldSetID, len(fd.Requires))
			for sg, src := range fd.Requires {
				fsID, err := ParseFieldSet(b.g, t, src)
				if err != nil {
					return nil, oops.Wrapf(err, "type %s field %s @requires", td.Name, fd.Name)
				}
				f.Requires[subgraphID[sg]] = fsID
			}

			var fieldReturnType *Type
			if unwrapped := f.Type.Unwrapped().Def; unwrapped != 0 {
				fieldReturnType = b.g.TypeOf(unwrapped)
			}
			fds, err := b.buildDirectives(t, fd.Directives, subgraphID, fieldReturnType)
			if err != nil {
				return nil, oops.Wrapf(err, "type %s field %s directives", td.Name, fd.Name)
			}
			f.Directives = fds
		}
	}

	if q, ok := b.byName["Query"]; ok {
		b.g.QueryType = q.ID
	} else {
		return nil, oops.Errorf("schema has no Query type")
	}
	if m, ok := b.byName["Mutation"]; ok {
		b.g.MutationType = m.ID
	}

	if err := validateGraph(b.g); err != nil {
		return nil, err
	}

	return b.g, nil
}

func (b *Builder) buildFields(t *Type, fds []FieldDoc, subgraphID map[string]SubgraphID) ([]FieldID, error) {
	ids := make([]FieldID, 0, len(fds))
	for _, fd := range fds {
		f := &Field{
			ID:     FieldID(len(b.g.Fields) + 1),
			Parent: t.ID,
			Name:   b.interner.Intern(fd.Name),
		}
		exists := make([]ident.ID, 0, len(fd.ExistsIn))
		for _, sg := range fd.ExistsIn {
			id, ok := subgraphID[sg]
			if !ok {
				return nil, fmt.Errorf("field %s: unknown subgraph %s", fd.Name, sg)
			}
			exists = append(exists, ident.ID(id))
		}
		f.ExistsInSubgraphs = ident.NewSortedSet(exists)
		b.g.Fields = append(b.g.Fields, nil)
		b.g.Fields[f.ID-1] = f
		ids = append(ids, f.ID)
	}
	return ids, nil
}

func (b *Builder) buildResolvers(t *Type, f *Field, fd FieldDoc, subgraphID map[string]SubgraphID) error {
	for _, rd := range fd.Resolvers {
		sg, ok := subgraphID[rd.Subgraph]
		if !ok {
			return fmt.Errorf("unknown subgraph %s", rd.Subgraph)
		}
		r := Resolver{
			ID:       ResolverID(len(b.g.Resolvers) + 1),
			Subgraph: sg,
		}
		switch rd.Kind {
		case "root":
			r.Kind = ResolverRootField
			r.RootField = f.ID
		case "entity":
			r.Kind = ResolverEntityLookup
			r.EntityType = t.ID
			r.InterfaceObject = rd.InterfaceObject
			keyFS, err := ParseFieldSet(b.g, t, rd.Key)
			if err != nil {
				return oops.Wrapf(err, "@key")
			}
			r.Key = keyFS
			r.IsMapping = b.interner.Intern(rd.IsMapping)
			if rd.IsMapping != "" {
				sv, err := fsm.Parse(rd.IsMapping)
				if err != nil {
					return oops.Wrapf(err, "@is")
				}
				r.IsField = sv
			}
			if rd.LookupField != "" {
				// @lookup fields are batched entity-lookup fields, conventionally
				// declared on the root Query type (e.g. Query.productBatch), not
				// on the entity type itself.
				if query, ok := b.byName["Query"]; ok {
					if lf, ok := b.g.FieldByName(query, b.interner.Intern(rd.LookupField)); ok {
						r.LookupField = lf.ID
					}
				}
			}
		case "extension":
			r.Kind = ResolverExtension
			r.ExtensionName = b.interner.Intern(rd.ExtensionName)
		default:
			return fmt.Errorf("unknown resolver kind %q", rd.Kind)
		}
		r.CostWeight = rd.CostWeight
		r.ListSize = rd.ListSize
		b.g.Resolvers = append(b.g.Resolvers, r)
		f.Resolvers = append(f.Resolvers, r.ID)
	}
	return nil
}

func (b *Builder) buildDirectives(t *Type, dds []DirectiveDoc, subgraphID map[string]SubgraphID, fieldReturnType *Type) ([]DirectiveID, error) {
	ids := make([]DirectiveID, 0, len(dds))
	for _, dd := range dds {
		d := Directive{ID: DirectiveID(len(b.g.Directives) + 1)}
		switch dd.Name {
		case "authenticated":
			d.Kind = DirectiveAuthenticated
		case "requiresScopes":
			d.Kind = DirectiveRequiresScopes
			d.Scopes = parseScopesArg(b.interner, dd.Args["scopes"])
		case "deprecated":
			d.Kind = DirectiveDeprecated
			if reason, ok := dd.Args["reason"].(string); ok {
				d.DeprecationReason = b.interner.Intern(reason)
			}
		case "authorized":
			d.Kind = DirectiveAuthorized
			d.AuthorizedMeta = dd.Args
			if names, ok := dd.Args["arguments"].([]string); ok {
				for _, name := range names {
					d.AuthorizedArgs = append(d.AuthorizedArgs, b.interner.Intern(name))
				}
			}
			if src, ok := dd.Args["fields"].(string); ok && fieldReturnType != nil {
				fsID, err := ParseFieldSet(b.g, fieldReturnType, src)
				if err != nil {
					return nil, oops.Wrapf(err, "@authorized fields")
				}
				d.AuthorizedField = fsID
			}
		case "cost":
			d.Kind = DirectiveCost
			if w, ok := dd.Args["weight"].(int); ok {
				d.CostWeight = w
			}
		case "listSize":
			d.Kind = DirectiveListSize
			if n, ok := dd.Args["assumedSize"].(int); ok {
				d.ListSizeAssumedSize = n
			}
		default:
			d.Kind = DirectiveExtension
			d.ExtensionName = b.interner.Intern(dd.Name)
			d.ExtensionArgs = dd.Args
		}
		b.g.Directives = append(b.g.Directives, d)
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func parseScopesArg(interner *ident.Interner, raw interface{}) ScopeDisjunction {
	conjs, ok := raw.([][]string)
	if !ok {
		return nil
	}
	out := make(ScopeDisjunction, 0, len(conjs))
	for _, conj := range conjs {
		set := make(ScopeSet, 0, len(conj))
		for _, s := range conj {
			set = append(set, interner.Intern(s))
		}
		out = append(out, set)
	}
	return out
}

func (b *Builder) resolveTypeRef(t *TypeRefDoc) (TypeRef, error) {
	var wrapping []WrapKind
	cur := t
	for cur.Kind == "LIST" || cur.Kind == "NON_NULL" {
		if cur.Kind == "LIST" {
			wrapping = append(wrapping, WrapList)
		} else {
			wrapping = append(wrapping, WrapNonNull)
		}
		if cur.OfType == nil {
			return TypeRef{}, fmt.Errorf("malformed type ref")
		}
		cur = cur.OfType
	}
	typ, ok := b.byName[cur.Name]
	if !ok {
		return TypeRef{}, fmt.Errorf("unknown type %s", cur.Name)
	}
	return TypeRef{Def: typ.ID, Wrapping: wrapping}, nil
}

func convertCoercedDoc(d *CoercedValueDoc) *CoercedValue {
	if d == nil {
		return nil
	}
	v := &CoercedValue{}
	switch d.Kind {
	case "null":
		v.Kind = ValueNull
		v.IsNull = true
	case "enum":
		v.Kind = ValueEnum
		v.Scalar = d.Scalar
	case "list":
		v.Kind = ValueList
		for _, e := range d.List {
			v.List = append(v.List, convertCoercedDoc(e))
		}
	case "object":
		v.Kind = ValueObject
		v.Object = make(map[string]*CoercedValue, len(d.Object))
		for k, e := range d.Object {
			v.Object[k] = convertCoercedDoc(e)
		}
	default:
		v.Kind = ValueScalar
		v.Scalar = d.Scalar
	}
	return v
}

func subgraphSetFromFields(g *Graph, fieldIDs []FieldID) ident.SortedSet {
	var all []ident.ID
	for _, fid := range fieldIDs {
		for _, sg := range g.Fields[fid-1].ExistsInSubgraphs {
			all = append(all, sg)
		}
	}
	return ident.NewSortedSet(all)
}

func parseKind(s string) (TypeKind, error) {
	switch s {
	case "SCALAR":
		return KindScalar, nil
	case "ENUM":
		return KindEnum, nil
	case "INPUT_OBJECT":
		return KindInputObject, nil
	case "OBJECT":
		return KindObject, nil
	case "INTERFACE":
		return KindInterface, nil
	case "UNION":
		return KindUnion, nil
	default:
		return 0, fmt.Errorf("unknown type kind %q", s)
	}
}

// validateGraph checks the invariants spec.md §3 names: sorted id
// lists, complete interface possibility sets.
func validateGraph(g *Graph) error {
	for _, t := range g.Types {
		if !sort.SliceIsSorted(t.PossibleTypes, func(i, j int) bool { return t.PossibleTypes[i] < t.PossibleTypes[j] }) {
			return oops.Errorf("type %s: possible_types not sorted", g.Strings.String(t.Name))
		}
	}
	return nil
}
