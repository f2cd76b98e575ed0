package fsm

// Parse parses a field-selection-map source string into a SelectedValue
// AST. The parser is total on the defined grammar: any input either
// yields an AST or a *ParseError with a byte offset and context.
func Parse(src string) (*SelectedValue, error) {
	p := &parser{src: src}
	sv, err := p.parseSelectedValue()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected trailing input")
	}
	return sv, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(msg string) error {
	return &ParseError{Offset: p.pos, Message: msg, Source: p.src}
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

// parseSelectedValue parses Entry ('|' Entry)*. At least one Entry is
// required; an empty alternative (leading/trailing/doubled '|') fails.
func (p *parser) parseSelectedValue() (*SelectedValue, error) {
	first, err := p.parseEntry()
	if err != nil {
		return nil, err
	}
	entries := []Entry{first}
	for {
		p.skipSpace()
		if p.peek() != '|' {
			break
		}
		p.pos++
		p.skipSpace()
		if p.peek() == '|' || p.eof() {
			return nil, p.errorf("empty alternative")
		}
		next, err := p.parseEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, next)
	}
	return &SelectedValue{Entries: entries}, nil
}

// parseEntry parses Identity('.') | Object | List | Path.
func (p *parser) parseEntry() (Entry, error) {
	p.skipSpace()
	switch {
	case p.eof():
		return nil, p.errorf("expected value")
	case p.peek() == '{':
		return p.parseObject()
	case p.peek() == '[':
		return p.parseList()
	case p.peek() == '.':
		// "." alone is Identity; "." followed immediately by more input
		// that isn't a separator is not valid, since Path may not begin
		// with a bare dot.
		save := p.pos
		p.pos++
		p.skipSpace()
		if p.eof() || p.peek() == '|' || p.peek() == '}' || p.peek() == ']' {
			return Identity{}, nil
		}
		p.pos = save
		return nil, p.errorf("unexpected '.'")
	default:
		return p.parsePath()
	}
}

// parsePath parses ('<' name '>' '.')? Segment ('.' Segment)*.
func (p *parser) parsePath() (Entry, error) {
	var typeCond string
	if p.peek() == '<' {
		tc, err := p.parseTypeCondition()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != '.' {
			return nil, p.errorf("expected '.' after type condition")
		}
		p.pos++
		typeCond = tc
	}

	var segs []Segment
	for {
		p.skipSpace()
		seg, err := p.parseSegment()
		if err != nil {
			return nil, err
		}
		segs = append(segs, seg)

		p.skipSpace()
		if p.peek() != '.' {
			break
		}
		save := p.pos
		p.pos++
		p.skipSpace()
		if p.eof() || !isNameStart(p.peek()) {
			p.pos = save
			return nil, p.errorf("trailing '.' in path")
		}
	}
	return Path{TypeCondition: typeCond, Segments: segs}, nil
}

func (p *parser) parseSegment() (Segment, error) {
	name, err := p.parseName()
	if err != nil {
		return Segment{}, err
	}
	seg := Segment{Name: name}
	if p.peek() == '<' {
		tc, err := p.parseTypeCondition()
		if err != nil {
			return Segment{}, err
		}
		seg.TypeCondition = tc
	}
	return seg, nil
}

func (p *parser) parseTypeCondition() (string, error) {
	p.pos++ // consume '<'
	p.skipSpace()
	if p.peek() == '>' {
		return "", p.errorf("empty type condition")
	}
	name, err := p.parseName()
	if err != nil {
		return "", err
	}
	p.skipSpace()
	if p.peek() != '>' {
		return "", p.errorf("expected '>'")
	}
	p.pos++
	return name, nil
}

// parseObject parses '{' (Field ws)* '}'.
func (p *parser) parseObject() (Entry, error) {
	p.pos++ // consume '{'
	var fields []Field
	for {
		p.skipSpace()
		if p.peek() == '}' {
			p.pos++
			return Object{Fields: fields}, nil
		}
		if p.eof() {
			return nil, p.errorf("unterminated object")
		}
		f, err := p.parseField()
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
}

func (p *parser) parseField() (Field, error) {
	name, err := p.parseName()
	if err != nil {
		return Field{}, err
	}
	p.skipSpace()
	if p.peek() != ':' {
		return Field{Name: name}, nil
	}
	p.pos++
	p.skipSpace()
	val, err := p.parseSelectedValue()
	if err != nil {
		return Field{}, err
	}
	return Field{Name: name, Value: val}, nil
}

// parseList parses '[' Value ']'.
func (p *parser) parseList() (Entry, error) {
	p.pos++ // consume '['
	p.skipSpace()
	if p.peek() == ']' {
		return nil, p.errorf("empty list")
	}
	val, err := p.parseSelectedValue()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.peek() != ']' {
		return nil, p.errorf("expected ']'")
	}
	p.pos++
	return List{Value: val}, nil
}

func (p *parser) parseName() (string, error) {
	if p.eof() || !isNameStart(p.peek()) {
		return "", p.errorf("expected name")
	}
	start := p.pos
	p.pos++
	for !p.eof() && isNameCont(p.peek()) {
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
