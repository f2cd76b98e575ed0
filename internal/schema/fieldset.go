package schema

import "github.com/graphweave/fedgate/internal/ident"

// FieldSet is a tree of (field id -> child field set), representing a
// selection without arguments. It's used to express @key, @requires and
// @provides field sets (spec.md §3).
type FieldSet struct {
	ID       FieldSetID
	Entries  []FieldSetEntry
}

// FieldSetEntry is one field named by a FieldSet, with an optional
// nested FieldSet when the field itself is a composite type being
// partially selected (e.g. `nested { id }` in a key).
type FieldSetEntry struct {
	Field FieldID
	Child FieldSetID // ident.Invalid (0) when the field is a leaf
}

// Empty reports whether the field set selects nothing.
func (fs *FieldSet) Empty() bool {
	return fs == nil || len(fs.Entries) == 0
}

// fieldSetToken is the intermediate parse result before field names are
// resolved against a concrete object type.
type fieldSetToken struct {
	name     string
	children []fieldSetToken
}

// parseFieldSetTokens parses the federation `@key(fields: "...")` style
// grammar: a whitespace-separated list of names, each optionally
// followed by `{ ... }` to select nested fields. This is distinct from,
// and much simpler than, the field-selection-map grammar in
// internal/fsm, which governs `@is`/`@require` instead.
func parseFieldSetTokens(src string) ([]fieldSetToken, error) {
	p := &fieldSetTokenParser{src: src}
	toks, err := p.parseList(true)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected trailing input")
	}
	return toks, nil
}

type fieldSetTokenParser struct {
	src string
	pos int
}

func (p *fieldSetTokenParser) errorf(msg string) error {
	return &ParseError{Offset: p.pos, Message: msg, Context: contextAround(p.src, p.pos)}
}

func (p *fieldSetTokenParser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r', ',':
			p.pos++
		default:
			return
		}
	}
}

func (p *fieldSetTokenParser) parseList(top bool) ([]fieldSetToken, error) {
	var out []fieldSetToken
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			break
		}
		if !top && p.src[p.pos] == '}' {
			break
		}
		name, err := p.parseName()
		if err != nil {
			return nil, err
		}
		tok := fieldSetToken{name: name}
		p.skipSpace()
		if p.pos < len(p.src) && p.src[p.pos] == '{' {
			p.pos++
			children, err := p.parseList(false)
			if err != nil {
				return nil, err
			}
			p.skipSpace()
			if p.pos >= len(p.src) || p.src[p.pos] != '}' {
				return nil, p.errorf("expected '}'")
			}
			p.pos++
			tok.children = children
		}
		out = append(out, tok)
	}
	return out, nil
}

func (p *fieldSetTokenParser) parseName() (string, error) {
	start := p.pos
	if p.pos >= len(p.src) || !isNameStart(p.src[p.pos]) {
		return "", p.errorf("expected field name")
	}
	p.pos++
	for p.pos < len(p.src) && isNameCont(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos], nil
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameCont(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}

// fieldSetBuilder resolves field-set tokens against a concrete object
// type, interning new FieldSets into the Graph being built.
type fieldSetBuilder struct {
	g *builderGraph
}

func (b *fieldSetBuilder) build(typ *Type, toks []fieldSetToken) (FieldSetID, error) {
	fs := &FieldSet{}
	for _, tok := range toks {
		nameID := b.g.interner.Intern(tok.name)
		field, ok := b.g.graph.FieldByName(typ, nameID)
		if !ok {
			return 0, &ParseError{Message: "field set references unknown field " + tok.name}
		}
		var child FieldSetID
		if len(tok.children) > 0 {
			childTyp := b.g.graph.TypeOf(field.Type.Unwrapped().Def)
			var err error
			child, err = b.build(childTyp, tok.children)
			if err != nil {
				return 0, err
			}
		}
		fs.Entries = append(fs.Entries, FieldSetEntry{Field: field.ID, Child: child})
	}
	fs.ID = FieldSetID(len(b.g.graph.FieldSets) + 1)
	b.g.graph.FieldSets = append(b.g.graph.FieldSets, fs)
	return fs.ID, nil
}

// ParseFieldSet parses and resolves a `@key`/`@requires`/`@provides`
// field set string against typ, interning the result into g.
func ParseFieldSet(g *Graph, typ *Type, src string) (FieldSetID, error) {
	toks, err := parseFieldSetTokens(src)
	if err != nil {
		return 0, err
	}
	b := &fieldSetBuilder{g: &builderGraph{graph: g, interner: g.Strings}}
	return b.build(typ, toks)
}

// contextAround renders a one-line context window of up to 20 bytes on
// each side of pos, without a position marker. The field-selection-map
// parser in internal/fsm renders its own, differently formatted window.
func contextAround(src string, pos int) string {
	const radius = 20
	start := pos - radius
	if start < 0 {
		start = 0
	}
	end := pos + radius
	if end > len(src) {
		end = len(src)
	}
	return src[start:end]
}

// ParseError reports a field-set parse failure with byte offset and
// context; Error returns only the message. Field-selection-map errors
// use internal/fsm's own ParseError type.
type ParseError struct {
	Offset  int
	Message string
	Context string
}

func (e *ParseError) Error() string {
	return e.Message
}

// builderGraph is the mutable scratch state shared by the schema
// Builder and the fieldSetBuilder while constructing a Graph.
type builderGraph struct {
	graph    *Graph
	interner *ident.Interner
}
