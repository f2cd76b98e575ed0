package main

import (
	"github.com/graphweave/fedgate/internal/executor"
	"github.com/graphweave/fedgate/internal/ident"
	"github.com/graphweave/fedgate/internal/respgraph"
)

// graphQLError is the wire shape of one entry in a response's "errors"
// array, shared by execution and authorization failures alike.
type graphQLError struct {
	Message    string                 `json:"message"`
	Path       []interface{}          `json:"path,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// httpResponse is the full GraphQL-over-HTTP response body.
type httpResponse struct {
	Data   interface{}    `json:"data"`
	Errors []graphQLError `json:"errors,omitempty"`
}

// renderValue walks a response graph node into the native Go value
// (map/slice/scalar/nil) encoding/json will serialize it as. id == 0
// is the explicit-null sentinel respgraph.Graph.SetField documents.
func renderValue(g *respgraph.Graph, strings *ident.Interner, id respgraph.NodeID) interface{} {
	if id == 0 {
		return nil
	}
	switch g.Kind(id) {
	case respgraph.KindScalar:
		return g.Scalar(id)
	case respgraph.KindList:
		elems := g.List(id)
		out := make([]interface{}, len(elems))
		for i, elemID := range elems {
			out[i] = renderValue(g, strings, elemID)
		}
		return out
	case respgraph.KindContainer:
		entries := g.Entries(id)
		out := make(map[string]interface{}, len(entries))
		for _, e := range entries {
			out[strings.String(e.Key)] = renderValue(g, strings, e.Value)
		}
		return out
	default:
		return nil
	}
}

// setNullAtPath writes an explicit null into data at path, used for
// authz.Error.Path entries: the field was removed from the operation
// entirely before planning, so it never occupied a container slot for
// renderValue to null out on its own.
func setNullAtPath(data map[string]interface{}, path []string) {
	if len(path) == 0 {
		return
	}
	cur := data
	for _, key := range path[:len(path)-1] {
		next, ok := cur[key].(map[string]interface{})
		if !ok {
			return
		}
		cur = next
	}
	cur[path[len(path)-1]] = nil
}

func toInterfacePath(path []interface{}) []interface{} {
	if path == nil {
		return nil
	}
	out := make([]interface{}, len(path))
	copy(out, path)
	return out
}

func executionErrorsToGraphQL(errs []executor.ExecutionError) []graphQLError {
	out := make([]graphQLError, 0, len(errs))
	for _, e := range errs {
		out = append(out, graphQLError{
			Message:    e.Message,
			Path:       toInterfacePath(e.Path),
			Extensions: e.Extensions,
		})
	}
	return out
}
