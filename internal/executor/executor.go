// Package executor implements the Executor (spec.md §4.6): given a
// planner.QueryPlan and its compiled shape.Tree, it dispatches one task
// per partition, deserializes each subgraph response through that
// partition's shape, and assembles the results into a respgraph.Graph.
//
// Scheduling is a partition DAG run through golang.org/x/sync/errgroup
// (already part of the teacher's dependency graph), generalizing
// graphql/batch_executor.go's WorkScheduler/WorkUnit model from
// per-field work units to per-partition work units: a partition starts
// as soon as every partition whose key projection it depends on has
// finished. A partition's failure is recorded as an ExecutionError and
// does not cancel the shared context, so sibling partitions keep
// running; only cancellation of the caller's ctx stops partitions that
// are still waiting on their parents.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/samsarahq/go/oops"

	"github.com/graphweave/fedgate/internal/dataloader"
	"github.com/graphweave/fedgate/internal/planner"
	"github.com/graphweave/fedgate/internal/respgraph"
	"github.com/graphweave/fedgate/internal/schema"
	"github.com/graphweave/fedgate/internal/shape"
	"github.com/graphweave/fedgate/internal/subgraph"
	"github.com/graphweave/fedgate/internal/telemetry"
	"github.com/graphweave/fedgate/logger"
)

// ExecutionError is one error produced while executing a query plan
// (spec.md §4.6 step 6: "each produced error carries (path, message,
// extensions)").
type ExecutionError struct {
	Path       []interface{}
	Message    string
	Extensions map[string]interface{}
}

func (e ExecutionError) Error() string { return e.Message }

// Result is the outcome of executing one query plan: the response
// graph, the operation root's node id (0 if a non-null violation
// propagated all the way up, per spec.md §4.6 step 5's "data: null"),
// and every error collected along the way.
type Result struct {
	Graph  *respgraph.Graph
	Root   respgraph.NodeID
	Errors []ExecutionError
}

// Executor runs query plans against a fixed set of subgraph clients.
type Executor struct {
	Schema  *schema.Graph
	Clients map[schema.SubgraphID]subgraph.Client

	// MaxBatchSize/Delay/CacheCapacity configure every per-resolver
	// dataloader this executor creates for the lifetime of one Execute
	// call; zero uses internal/dataloader's own defaults.
	MaxBatchSize  int
	Delay         time.Duration
	CacheCapacity int

	// Logger receives one entry per ExecutionError a partition produces.
	// Nil disables logging.
	Logger logger.Logger
}

type partitionState struct {
	partition    *planner.Partition
	ready        chan struct{}
	objectSet    respgraph.ObjectSetID
	hasObjectSet bool
}

// Execute runs plan to completion, returning a Result even when some
// partitions failed (best-effort: failures are recorded as errors and
// the affected subtrees are null-propagated rather than aborting the
// whole response).
func (e *Executor) Execute(ctx context.Context, plan *planner.QueryPlan, tree *shape.Tree) (*Result, error) {
	span, ctx := telemetry.StartSpan(ctx, telemetry.StageExecute)
	telemetry.Tag(span, "partitions", len(plan.Partitions))
	defer span.Finish()

	g := respgraph.New()
	root := g.NewContainer(0)

	states := make(map[planner.PartitionID]*partitionState, len(plan.Partitions))
	for _, p := range plan.Partitions {
		states[p.ID] = &partitionState{partition: p, ready: make(chan struct{})}
	}

	childrenByParent := map[planner.PartitionID][]planner.PartitionEdge{}
	parentsOf := map[planner.PartitionID][]planner.PartitionEdge{}
	for _, edge := range plan.Edges {
		childrenByParent[edge.Parent] = append(childrenByParent[edge.Parent], edge)
		parentsOf[edge.Child] = append(parentsOf[edge.Child], edge)
		st := states[edge.Parent]
		if !st.hasObjectSet {
			st.objectSet = g.NewObjectSet()
			st.hasObjectSet = true
		}
	}

	var errMu sync.Mutex
	var allErrors []ExecutionError
	addErrors := func(errs []ExecutionError) {
		if len(errs) == 0 {
			return
		}
		if e.Logger != nil {
			for _, execErr := range errs {
				e.Logger.Error("partition execution error", "path", execErr.Path, "message", execErr.Message)
			}
		}
		errMu.Lock()
		allErrors = append(allErrors, errs...)
		errMu.Unlock()
	}

	loaders := map[schema.ResolverID]*dataloader.Loader[string, json.RawMessage]{}
	var loaderMu sync.Mutex

	grp, gctx := errgroup.WithContext(ctx)
	for _, p := range plan.Partitions {
		p := p
		st := states[p.ID]
		grp.Go(func() error {
			defer close(st.ready)

			for _, edge := range parentsOf[p.ID] {
				select {
				case <-states[edge.Parent].ready:
				case <-gctx.Done():
					return gctx.Err()
				}
			}

			var needs map[schema.TypeID]respgraph.ObjectSetID
			if children := childrenByParent[p.ID]; len(children) > 0 {
				needs = make(map[schema.TypeID]respgraph.ObjectSetID, len(children))
				for _, edge := range children {
					needs[states[edge.Child].partition.ParentType] = st.objectSet
				}
			}

			a := &applier{g: g, schema: e.Schema, tree: tree, coll: &objectCollector{g: g, needs: needs}}

			switch {
			case p.InputKey == 0:
				addErrors(e.runRootPartition(gctx, a, p, root))
			case p.LookupField != 0:
				addErrors(e.runLookupFieldPartition(gctx, a, p, parentsOf[p.ID], states))
			default:
				addErrors(e.runEntityPartition(gctx, a, p, parentsOf[p.ID], states, loaders, &loaderMu))
			}
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		telemetry.LogError(span, err)
		return nil, err
	}

	telemetry.Tag(span, "errors", len(allErrors))
	return &Result{Graph: g, Root: root, Errors: allErrors}, nil
}

func (e *Executor) runRootPartition(ctx context.Context, a *applier, p *planner.Partition, root respgraph.NodeID) []ExecutionError {
	client, ok := e.Clients[p.Subgraph]
	if !ok {
		return []ExecutionError{{Message: fmt.Sprintf("no client configured for subgraph %s", e.Schema.SubgraphName(p.Subgraph))}}
	}

	query := renderRootQuery(e.Schema, "query", p.SelectionSet)
	resp, err := client.Execute(ctx, subgraph.Request{Subgraph: e.Schema.SubgraphName(p.Subgraph), Query: query})
	if err != nil {
		return []ExecutionError{{Message: err.Error()}}
	}

	errs := subgraphErrors(resp)
	var data map[string]interface{}
	if len(resp.Data) > 0 {
		if jerr := json.Unmarshal(resp.Data, &data); jerr != nil {
			return append(errs, ExecutionError{Message: "decoding subgraph response: " + jerr.Error()})
		}
	}
	return append(errs, a.applyInto(shape.ID(p.RootShape), root, data, nil)...)
}

func (e *Executor) runEntityPartition(
	ctx context.Context,
	a *applier,
	p *planner.Partition,
	parents []planner.PartitionEdge,
	states map[planner.PartitionID]*partitionState,
	loaders map[schema.ResolverID]*dataloader.Loader[string, json.RawMessage],
	loaderMu *sync.Mutex,
) []ExecutionError {
	if len(parents) == 0 {
		return []ExecutionError{{Message: "entity-lookup partition has no parent edge"}}
	}

	keySet := e.Schema.FieldSetOf(p.InputKey)
	if keySet.Empty() {
		return []ExecutionError{{Message: "entity-lookup partition has an empty key field set"}}
	}
	for _, entry := range keySet.Entries {
		if entry.Child != 0 {
			return []ExecutionError{{Message: "composite (nested) entity keys are not supported"}}
		}
	}

	typeName := e.Schema.Strings.String(e.Schema.TypeOf(p.ParentType).Name)

	var members []respgraph.NodeID
	for _, edge := range parents {
		members = append(members, a.g.Members(states[edge.Parent].objectSet)...)
	}
	if len(members) == 0 {
		return nil
	}

	keys := make([]string, len(members))
	for i, member := range members {
		repr := map[string]interface{}{"__typename": typeName}
		for _, entry := range keySet.Entries {
			field := e.Schema.FieldOf(entry.Field)
			value, ok := a.g.Field(member, field.Name)
			if ok && value != 0 {
				repr[e.Schema.Strings.String(field.Name)] = a.g.Scalar(value)
			}
		}
		data, err := json.Marshal(repr)
		if err != nil {
			return []ExecutionError{{Message: "encoding entity representation: " + err.Error()}}
		}
		keys[i] = string(data)
	}

	loader, err := e.resolverLoader(ctx, p, typeName, loaders, loaderMu)
	if err != nil {
		return []ExecutionError{{Message: err.Error()}}
	}

	var errs []ExecutionError
	for i, outcome := range loader.LoadMany(ctx, keys) {
		if outcome.Err != nil {
			errs = append(errs, ExecutionError{Message: outcome.Err.Error()})
			continue
		}
		if !outcome.Found {
			continue
		}
		var entity interface{}
		if jerr := json.Unmarshal(outcome.Value, &entity); jerr != nil {
			errs = append(errs, ExecutionError{Message: "decoding entity: " + jerr.Error()})
			continue
		}
		errs = append(errs, a.applyInto(shape.ID(p.RootShape), members[i], entity, nil)...)
	}
	return errs
}

// runLookupFieldPartition feeds a partition through a batched @lookup
// field (spec.md §6, §8 scenario 1) instead of the plain federation
// `_entities` call: each member's key representation is projected
// through the resolver's @is mapping into the lookup field's arguments,
// one list per argument, and sent as a single call.
func (e *Executor) runLookupFieldPartition(
	ctx context.Context,
	a *applier,
	p *planner.Partition,
	parents []planner.PartitionEdge,
	states map[planner.PartitionID]*partitionState,
) []ExecutionError {
	if len(parents) == 0 {
		return []ExecutionError{{Message: "entity-lookup partition has no parent edge"}}
	}

	resolver := &e.Schema.Resolvers[p.Resolver-1]
	if resolver.IsField == nil {
		return []ExecutionError{{Message: "batched lookup field has no parsed @is mapping"}}
	}
	argNames, err := isMappingArgNames(resolver.IsField)
	if err != nil {
		return []ExecutionError{{Message: err.Error()}}
	}

	keySet := e.Schema.FieldSetOf(p.InputKey)
	if keySet.Empty() {
		return []ExecutionError{{Message: "batched lookup partition has an empty key field set"}}
	}

	var members []respgraph.NodeID
	for _, edge := range parents {
		members = append(members, a.g.Members(states[edge.Parent].objectSet)...)
	}
	if len(members) == 0 {
		return nil
	}

	args := make(map[string][]interface{}, len(argNames))
	for _, name := range argNames {
		args[name] = make([]interface{}, 0, len(members))
	}
	for _, member := range members {
		repr := representationValue(a.g, e.Schema, member, keySet)
		projected, perr := projectIsMapping(resolver.IsField.Entries, repr)
		if perr != nil {
			return []ExecutionError{{Message: "@is projection: " + perr.Error()}}
		}
		obj, ok := projected.(map[string]interface{})
		if !ok {
			return []ExecutionError{{Message: "a batched lookup field's @is mapping must project to an object of its arguments"}}
		}
		for _, name := range argNames {
			args[name] = append(args[name], obj[name])
		}
	}

	client, ok := e.Clients[p.Subgraph]
	if !ok {
		return []ExecutionError{{Message: fmt.Sprintf("no client configured for subgraph %s", e.Schema.SubgraphName(p.Subgraph))}}
	}

	query, err := renderLookupFieldQuery(e.Schema, resolver.LookupField, argNames, p.SelectionSet)
	if err != nil {
		return []ExecutionError{{Message: err.Error()}}
	}

	variables := make(map[string]interface{}, len(argNames))
	for _, name := range argNames {
		variables[name] = args[name]
	}

	resp, err := client.Execute(ctx, subgraph.Request{
		Subgraph:  e.Schema.SubgraphName(p.Subgraph),
		Query:     query,
		Variables: variables,
	})
	if err != nil {
		return []ExecutionError{{Message: err.Error()}}
	}
	errs := subgraphErrors(resp)

	fieldName := e.Schema.Strings.String(e.Schema.FieldOf(resolver.LookupField).Name)
	var decoded map[string]json.RawMessage
	if len(resp.Data) > 0 {
		if jerr := json.Unmarshal(resp.Data, &decoded); jerr != nil {
			return append(errs, ExecutionError{Message: "decoding lookup field response: " + jerr.Error()})
		}
	}
	var rows []json.RawMessage
	if raw, ok := decoded[fieldName]; ok {
		if jerr := json.Unmarshal(raw, &rows); jerr != nil {
			return append(errs, ExecutionError{Message: "decoding lookup field rows: " + jerr.Error()})
		}
	}
	if len(rows) != len(members) {
		return append(errs, ExecutionError{Message: fmt.Sprintf("subgraph %s returned %d rows for %d batched lookups", e.Schema.SubgraphName(p.Subgraph), len(rows), len(members))})
	}

	for i, raw := range rows {
		var entity interface{}
		if jerr := json.Unmarshal(raw, &entity); jerr != nil {
			errs = append(errs, ExecutionError{Message: "decoding batched entity: " + jerr.Error()})
			continue
		}
		errs = append(errs, a.applyInto(shape.ID(p.RootShape), members[i], entity, nil)...)
	}
	return errs
}

// resolverLoader returns the shared dataloader for p.Resolver, creating
// it on first use so that concurrent partitions resolving the same
// entity lookup batch together within one window (spec.md §4.6 step 2:
// "the loader may batch across partitions if the resolver is the
// same").
func (e *Executor) resolverLoader(
	ctx context.Context,
	p *planner.Partition,
	typeName string,
	loaders map[schema.ResolverID]*dataloader.Loader[string, json.RawMessage],
	mu *sync.Mutex,
) (*dataloader.Loader[string, json.RawMessage], error) {
	mu.Lock()
	defer mu.Unlock()

	if l, ok := loaders[p.Resolver]; ok {
		return l, nil
	}

	client, ok := e.Clients[p.Subgraph]
	if !ok {
		return nil, fmt.Errorf("no client configured for subgraph %s", e.Schema.SubgraphName(p.Subgraph))
	}
	subgraphName := e.Schema.SubgraphName(p.Subgraph)
	query := renderEntitiesQuery(e.Schema, typeName, p.SelectionSet)

	l, err := dataloader.New(ctx, dataloader.Config[string, json.RawMessage]{
		Batch:         e.entityBatchFunc(client, subgraphName, query),
		MaxBatchSize:  e.MaxBatchSize,
		Delay:         e.Delay,
		CacheCapacity: e.CacheCapacity,
	})
	if err != nil {
		return nil, err
	}
	loaders[p.Resolver] = l
	return l, nil
}

// entityBatchFunc builds the dataloader.BatchFunc that turns a batch of
// representation keys into one `_entities` call.
func (e *Executor) entityBatchFunc(client subgraph.Client, subgraphName, query string) dataloader.BatchFunc[string, json.RawMessage] {
	return func(ctx context.Context, keys []string) (map[string]json.RawMessage, map[string]error, error) {
		representations := make([]interface{}, len(keys))
		for i, k := range keys {
			var m map[string]interface{}
			if err := json.Unmarshal([]byte(k), &m); err != nil {
				return nil, nil, oops.Wrapf(err, "decoding entity representation key")
			}
			representations[i] = m
		}

		resp, err := client.Execute(ctx, subgraph.Request{
			Subgraph:  subgraphName,
			Query:     query,
			Variables: map[string]interface{}{"representations": representations},
		})
		if err != nil {
			return nil, nil, err
		}
		if len(resp.Errors) > 0 {
			return nil, nil, fmt.Errorf("subgraph %s: %s", subgraphName, resp.Errors[0].Message)
		}

		var decoded struct {
			Entities []json.RawMessage `json:"_entities"`
		}
		if err := json.Unmarshal(resp.Data, &decoded); err != nil {
			return nil, nil, oops.Wrapf(err, "decoding _entities response from %s", subgraphName)
		}
		if len(decoded.Entities) != len(keys) {
			return nil, nil, fmt.Errorf("subgraph %s returned %d entities for %d keys", subgraphName, len(decoded.Entities), len(keys))
		}

		values := make(map[string]json.RawMessage, len(keys))
		for i, k := range keys {
			values[k] = decoded.Entities[i]
		}
		return values, nil, nil
	}
}

func subgraphErrors(resp subgraph.Response) []ExecutionError {
	if len(resp.Errors) == 0 {
		return nil
	}
	out := make([]ExecutionError, len(resp.Errors))
	for i, ge := range resp.Errors {
		out[i] = ExecutionError{Path: ge.Path, Message: ge.Message, Extensions: ge.Extensions}
	}
	return out
}
