package executor

import (
	"fmt"

	"github.com/graphweave/fedgate/internal/fsm"
)

// isMappingArgNames extracts the argument names named by a batched
// @lookup field's @is mapping: a single field-selection-map object
// whose field names line up with the lookup field's arguments.
func isMappingArgNames(sv *fsm.SelectedValue) ([]string, error) {
	if sv == nil || len(sv.Entries) != 1 {
		return nil, fmt.Errorf("a batched lookup field's @is mapping must be a single object naming its arguments")
	}
	obj, ok := sv.Entries[0].(fsm.Object)
	if !ok {
		return nil, fmt.Errorf("a batched lookup field's @is mapping must be an object, not %T", sv.Entries[0])
	}
	names := make([]string, len(obj.Fields))
	for i, f := range obj.Fields {
		names[i] = f.Name
	}
	return names, nil
}

// projectIsMapping evaluates a field-selection-map against a decoded
// representation, per spec.md §4.1's field-selection-map grammar:
// Identity passes the value through, Path walks dotted field access,
// Object builds a new object from named (or shorthand same-named)
// projections, and List maps a sub-mapping over every element. A
// SelectedValue with multiple entries (an alternation) returns the
// first entry that evaluates without error.
func projectIsMapping(entries []fsm.Entry, source interface{}) (interface{}, error) {
	var lastErr error
	for _, e := range entries {
		v, err := projectEntry(e, source)
		if err == nil {
			return v, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func projectEntry(e fsm.Entry, source interface{}) (interface{}, error) {
	switch v := e.(type) {
	case fsm.Identity:
		return source, nil

	case fsm.Path:
		cur := source
		for _, seg := range v.Segments {
			m, ok := cur.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("path segment %s: source is not an object", seg.Name)
			}
			cur = m[seg.Name]
		}
		return cur, nil

	case fsm.Object:
		out := make(map[string]interface{}, len(v.Fields))
		for _, f := range v.Fields {
			if f.Value == nil {
				m, ok := source.(map[string]interface{})
				if !ok {
					return nil, fmt.Errorf("object field %s: source is not an object", f.Name)
				}
				out[f.Name] = m[f.Name]
				continue
			}
			fv, err := projectIsMapping(f.Value.Entries, source)
			if err != nil {
				return nil, err
			}
			out[f.Name] = fv
		}
		return out, nil

	case fsm.List:
		arr, ok := source.([]interface{})
		if !ok {
			return nil, fmt.Errorf("list entry: source is not a list")
		}
		out := make([]interface{}, len(arr))
		for i, elem := range arr {
			ev, err := projectIsMapping(v.Value.Entries, elem)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported field-selection-map entry type %T", e)
	}
}
