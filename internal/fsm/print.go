package fsm

import "strings"

// Print renders sv back to its canonical textual form. Parsing the
// result of Print always yields an AST equal to sv (spec.md §4.1
// round-trip guarantee); whitespace is not preserved, only meaning.
func Print(sv *SelectedValue) string {
	var b strings.Builder
	printSelectedValue(&b, sv)
	return b.String()
}

func printSelectedValue(b *strings.Builder, sv *SelectedValue) {
	for i, e := range sv.Entries {
		if i > 0 {
			b.WriteByte('|')
		}
		printEntry(b, e)
	}
}

func printEntry(b *strings.Builder, e Entry) {
	switch v := e.(type) {
	case Identity:
		b.WriteByte('.')
	case Path:
		printPath(b, v)
	case Object:
		printObject(b, v)
	case List:
		b.WriteByte('[')
		printSelectedValue(b, v.Value)
		b.WriteByte(']')
	}
}

func printPath(b *strings.Builder, p Path) {
	if p.TypeCondition != "" {
		b.WriteByte('<')
		b.WriteString(p.TypeCondition)
		b.WriteString(">.")
	}
	for i, seg := range p.Segments {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg.Name)
		if seg.TypeCondition != "" {
			b.WriteByte('<')
			b.WriteString(seg.TypeCondition)
			b.WriteByte('>')
		}
	}
}

func printObject(b *strings.Builder, o Object) {
	b.WriteByte('{')
	for i, f := range o.Fields {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(f.Name)
		if f.Value != nil {
			b.WriteByte(':')
			printSelectedValue(b, f.Value)
		}
	}
	b.WriteByte('}')
}
