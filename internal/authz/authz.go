package authz

import (
	"context"

	"github.com/graphweave/fedgate/internal/bind"
	"github.com/graphweave/fedgate/internal/schema"
)

// Hook evaluates an @authorized directive's decision. What "authorized"
// means for a given field is application-specific, so the directive's
// static metadata and the field's resolved arguments are handed to
// application code rather than interpreted here — the same external-
// collaborator boundary spec.md §1 draws around the identity provider
// applies to the authorization decision itself. A nil Hook denies every
// @authorized field: fail closed.
//
// The directive's field-set selection (schema.Directive.AuthorizedField)
// is not resolved into Request, since it names sibling/self fields of
// the node being authorized and those aren't available until execution
// — after the point spec.md §7 requires the decision to be made. See
// DESIGN.md for this simplification.
type Hook func(ctx context.Context, req Request) bool

// Request is the per-field input to a Hook.
type Request struct {
	FieldName string
	Meta      map[string]interface{}
	Args      map[string]interface{}
}

// Error is one field that failed authorization (spec.md §7: "fields
// failing authorization are nulled and their subtree skipped"). Path is
// the response-key path from the operation root. Callers fold Error
// into the final response's error list and write an explicit null at
// Path; Enforce itself accomplishes the "skip subtree" half by removing
// the field before planning ever sees it.
type Error struct {
	Path    []string
	Message string
}

func (e Error) Error() string { return e.Message }

// Enforce walks op's selection set and removes every field identity is
// not authorized for, returning one Error per pruned field in
// encounter order. It mutates op in place: an unauthorized field is
// gone from its parent SelectionSet.Fields by the time Enforce returns,
// so the planner and executor never see it.
func Enforce(ctx context.Context, g *schema.Graph, op *bind.Operation, identity Identity, hook Hook) []Error {
	e := &enforcer{g: g, identity: identity, hook: hook, vars: op.Variables}
	if op.SelectionSet != nil {
		op.SelectionSet.Fields = e.filterSelectionSet(ctx, op.SelectionSet, nil)
	}
	return e.errors
}

type enforcer struct {
	g        *schema.Graph
	identity Identity
	hook     Hook
	vars     map[string]*schema.CoercedValue
	errors   []Error
}

func (e *enforcer) filterSelectionSet(ctx context.Context, ss *bind.SelectionSet, path []string) []*bind.Field {
	out := make([]*bind.Field, 0, len(ss.Fields))
	for _, f := range ss.Fields {
		fieldPath := append(append([]string{}, path...), e.g.Strings.String(f.ResponseKey))

		if !e.authorizeField(ctx, f) {
			e.errors = append(e.errors, Error{Path: fieldPath, Message: "not authorized to access " + e.g.Strings.String(f.ResponseKey)})
			continue
		}
		if f.SelectionSet != nil {
			f.SelectionSet.Fields = e.filterSelectionSet(ctx, f.SelectionSet, fieldPath)
		}
		out = append(out, f)
	}
	return out
}

// authorizeField reports whether every directive lifted onto f permits
// identity. A field with no AuthDirectives is always authorized.
func (e *enforcer) authorizeField(ctx context.Context, f *bind.Field) bool {
	for _, did := range f.AuthDirectives {
		d := e.g.DirectiveOf(did)
		switch d.Kind {
		case schema.DirectiveAuthenticated:
			if !e.identity.authenticated() {
				return false
			}
		case schema.DirectiveRequiresScopes:
			if !d.Scopes.Satisfies(e.identity.heldScopes(e.g)) {
				return false
			}
		case schema.DirectiveAuthorized:
			if e.hook == nil || !e.hook(ctx, e.buildRequest(f, d)) {
				return false
			}
		}
	}
	return true
}

func (e *enforcer) buildRequest(f *bind.Field, d *schema.Directive) Request {
	args := make(map[string]interface{}, len(d.AuthorizedArgs))
	for _, argName := range d.AuthorizedArgs {
		if cv, ok := f.Args[argName]; ok {
			args[e.g.Strings.String(argName)] = decodeValue(cv, e.vars)
		}
	}
	return Request{
		FieldName: e.g.Strings.String(e.g.FieldOf(f.Def).Name),
		Meta:      d.AuthorizedMeta,
		Args:      args,
	}
}

// decodeValue resolves a CoercedValue into the untyped Go shape a Hook
// can inspect, following variable references against the operation's
// already-coerced variable map.
func decodeValue(cv *schema.CoercedValue, vars map[string]*schema.CoercedValue) interface{} {
	if cv == nil {
		return nil
	}
	switch cv.Kind {
	case schema.ValueVariable:
		if resolved, ok := vars[cv.VariableRef]; ok {
			return decodeValue(resolved, vars)
		}
		return nil
	case schema.ValueNull:
		return nil
	case schema.ValueScalar, schema.ValueEnum:
		return cv.Scalar
	case schema.ValueList:
		out := make([]interface{}, len(cv.List))
		for i, item := range cv.List {
			out[i] = decodeValue(item, vars)
		}
		return out
	case schema.ValueObject:
		out := make(map[string]interface{}, len(cv.Object))
		for k, v := range cv.Object {
			out[k] = decodeValue(v, vars)
		}
		return out
	default:
		return nil
	}
}
