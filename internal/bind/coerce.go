package bind

import (
	"github.com/samsarahq/go/oops"

	"github.com/graphweave/fedgate/internal/schema"
)

// coerceRawValue coerces a document-literal value against target,
// following the GraphQL input coercion rules spec.md §4.2 names:
// a bare value where a list is expected is wrapped as a singleton list,
// and a null against a non-null type is an error. Variable references
// are preserved symbolically (ValueVariable) rather than resolved here,
// since the same bound operation is reused across distinct variable
// shapes (spec.md §3 "Lifecycles" cacheability).
func (b *Binder) coerceRawValue(raw RawValue, target schema.TypeRef) (*schema.CoercedValue, error) {
	if raw.Kind == "Variable" {
		return &schema.CoercedValue{Kind: schema.ValueVariable, VariableRef: raw.Variable}, nil
	}

	if target.IsNonNull() {
		if raw.Kind == "Null" {
			return nil, oops.Errorf("got null for non-null type")
		}
		return b.coerceRawValue(raw, target.Unwrapped())
	}

	if raw.Kind == "Null" {
		return &schema.CoercedValue{Kind: schema.ValueNull, IsNull: true}, nil
	}

	if target.IsList() {
		elem := target.Unwrapped()
		if raw.Kind == "List" {
			out := make([]*schema.CoercedValue, 0, len(raw.List))
			for _, item := range raw.List {
				cv, err := b.coerceRawValue(item, elem)
				if err != nil {
					return nil, err
				}
				out = append(out, cv)
			}
			return &schema.CoercedValue{Kind: schema.ValueList, List: out}, nil
		}
		cv, err := b.coerceRawValue(raw, elem)
		if err != nil {
			return nil, err
		}
		return &schema.CoercedValue{Kind: schema.ValueList, List: []*schema.CoercedValue{cv}}, nil
	}

	named := b.g.TypeOf(target.Def)
	switch named.Kind {
	case schema.KindEnum:
		if raw.Kind != "Enum" && raw.Kind != "String" {
			return nil, oops.Errorf("expected enum value for %s", b.g.Strings.String(named.Name))
		}
		name, _ := raw.Scalar.(string)
		return &schema.CoercedValue{Kind: schema.ValueEnum, Scalar: name}, nil

	case schema.KindInputObject:
		if raw.Kind != "Object" {
			return nil, oops.Errorf("expected input object for %s", b.g.Strings.String(named.Name))
		}
		return b.coerceRawInputObject(raw.Object, named)

	default:
		switch raw.Kind {
		case "Int", "Float", "String", "Bool":
			return &schema.CoercedValue{Kind: schema.ValueScalar, Scalar: raw.Scalar}, nil
		default:
			return nil, oops.Errorf("expected scalar value for %s", b.g.Strings.String(named.Name))
		}
	}
}

func (b *Binder) coerceRawInputObject(fields map[string]RawValue, named *schema.Type) (*schema.CoercedValue, error) {
	out := make(map[string]*schema.CoercedValue, len(fields))
	for _, fid := range named.InputFields {
		f := b.g.FieldOf(fid)
		name := b.g.Strings.String(f.Name)
		raw, ok := fields[name]
		switch {
		case ok:
			cv, err := b.coerceRawValue(raw, f.Type)
			if err != nil {
				return nil, oops.Wrapf(err, "field %s", name)
			}
			out[name] = cv
		case f.Type.IsNonNull():
			return nil, oops.Errorf("missing required input field %s", name)
		}
	}
	for name := range fields {
		if _, ok := b.g.FieldByName(named, b.g.Strings.Intern(name)); !ok {
			return nil, oops.Errorf("unknown input field %s", name)
		}
	}
	return &schema.CoercedValue{Kind: schema.ValueObject, Object: out}, nil
}

// coerceGoValue coerces a request-supplied variable value (the untyped
// Go shape produced by decoding JSON: map[string]interface{},
// []interface{}, string, float64, bool, or nil) against target.
func coerceGoValue(v interface{}, target schema.TypeRef, g *schema.Graph) (*schema.CoercedValue, error) {
	if target.IsNonNull() {
		if v == nil {
			return nil, oops.Errorf("got null for non-null type")
		}
		return coerceGoValue(v, target.Unwrapped(), g)
	}
	if v == nil {
		return &schema.CoercedValue{Kind: schema.ValueNull, IsNull: true}, nil
	}

	if target.IsList() {
		elem := target.Unwrapped()
		if list, ok := v.([]interface{}); ok {
			out := make([]*schema.CoercedValue, 0, len(list))
			for _, item := range list {
				cv, err := coerceGoValue(item, elem, g)
				if err != nil {
					return nil, err
				}
				out = append(out, cv)
			}
			return &schema.CoercedValue{Kind: schema.ValueList, List: out}, nil
		}
		cv, err := coerceGoValue(v, elem, g)
		if err != nil {
			return nil, err
		}
		return &schema.CoercedValue{Kind: schema.ValueList, List: []*schema.CoercedValue{cv}}, nil
	}

	named := g.TypeOf(target.Def)
	switch named.Kind {
	case schema.KindEnum:
		name, ok := v.(string)
		if !ok {
			return nil, oops.Errorf("expected enum value for %s", g.Strings.String(named.Name))
		}
		return &schema.CoercedValue{Kind: schema.ValueEnum, Scalar: name}, nil

	case schema.KindInputObject:
		obj, ok := v.(map[string]interface{})
		if !ok {
			return nil, oops.Errorf("expected input object for %s", g.Strings.String(named.Name))
		}
		out := make(map[string]*schema.CoercedValue, len(obj))
		for _, fid := range named.InputFields {
			f := g.FieldOf(fid)
			name := g.Strings.String(f.Name)
			fv, present := obj[name]
			switch {
			case present:
				cv, err := coerceGoValue(fv, f.Type, g)
				if err != nil {
					return nil, oops.Wrapf(err, "field %s", name)
				}
				out[name] = cv
			case f.Type.IsNonNull():
				return nil, oops.Errorf("missing required input field %s", name)
			}
		}
		for name := range obj {
			if _, ok := g.FieldByName(named, g.Strings.Intern(name)); !ok {
				return nil, oops.Errorf("unknown input field %s", name)
			}
		}
		return &schema.CoercedValue{Kind: schema.ValueObject, Object: out}, nil

	default:
		return &schema.CoercedValue{Kind: schema.ValueScalar, Scalar: v}, nil
	}
}
