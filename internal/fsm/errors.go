package fsm

import "fmt"

// ParseError reports a field-selection-map parse failure with the exact
// byte offset and a one-line context window, per spec.md §4.1's
// contract.
type ParseError struct {
	Offset  int
	Message string
	Source  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("field-selection-map: %s at offset %d: %s", e.Message, e.Offset, e.context())
}

// context renders a one-line window around Offset, matching the
// contract's "one-line context on failure".
func (e *ParseError) context() string {
	const radius = 24
	start := e.Offset - radius
	if start < 0 {
		start = 0
	}
	end := e.Offset + radius
	if end > len(e.Source) {
		end = len(e.Source)
	}
	marker := e.Offset - start
	line := e.Source[start:end]
	return line[:marker] + "→" + line[marker:]
}
