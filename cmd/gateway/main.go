// Command gateway wires the federation gateway's modules into an HTTP
// process: load the subgraph manifest and composed-schema document,
// dial every subgraph, and serve POST /graphql through the
// bind -> authz -> plan -> compile -> execute -> render pipeline,
// wrapped in the response cache. Grounded on federation/http.go's
// httpHandler and federationexample/gqlgateway/main.go's startup
// sequence (dial every subgraph once, build one long-lived server),
// generalized from a single hardcoded gRPC subgraph list to a
// manifest-driven, multi-transport one.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/davecgh/go-spew/spew"
	uuid "github.com/satori/go.uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/graphweave/fedgate/cmd/gateway/graphiql"
	"github.com/graphweave/fedgate/internal/authz"
	"github.com/graphweave/fedgate/internal/bind"
	"github.com/graphweave/fedgate/internal/cache"
	"github.com/graphweave/fedgate/internal/cache/memory"
	"github.com/graphweave/fedgate/internal/cache/purge"
	"github.com/graphweave/fedgate/internal/config"
	"github.com/graphweave/fedgate/internal/executor"
	"github.com/graphweave/fedgate/internal/planner"
	"github.com/graphweave/fedgate/internal/schema"
	"github.com/graphweave/fedgate/internal/shape"
	"github.com/graphweave/fedgate/internal/subgraph"
	"github.com/graphweave/fedgate/logger"
)

func main() {
	configPath := flag.String("config", "gateway.yaml", "path to the gateway manifest")
	schemaPath := flag.String("schema", "supergraph.json", "path to the composed schema document")
	addr := flag.String("addr", ":8080", "HTTP listen address")
	debugDump := flag.Bool("debug-dump", false, "spew.Dump every execution result graph to stderr")
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("loading config failed", "error", err, "path", *configPath)
		os.Exit(1)
	}
	config.ApplyEnvOverrides(cfg)

	doc, err := loadSchemaDoc(*schemaPath)
	if err != nil {
		log.Error("loading schema document failed", "error", err, "path", *schemaPath)
		os.Exit(1)
	}

	g, err := schema.Build(doc)
	if err != nil {
		log.Error("building schema graph failed", "error", err)
		os.Exit(1)
	}

	clients, closeClients, err := buildClients(g, cfg.Subgraphs)
	if err != nil {
		log.Error("building subgraph clients failed", "error", err)
		os.Exit(1)
	}
	defer closeClients()

	mem := memory.New()
	if cfg.Cache.ShardCount > 0 {
		mem = memory.NewWithShards(cfg.Cache.ShardCount)
	}
	fanout := purge.NewFanout(mem)
	backend := &purge.BroadcastingBackend{Backend: fanout.Backend, Fanout: fanout}
	for _, peer := range cfg.Cache.Peers {
		if err := fanout.Join(peer); err != nil {
			log.Warn("joining peer gateway failed", "error", err, "peer", peer)
		}
	}
	defer fanout.Close()

	h := &gatewayHandler{
		schema:    g,
		cfg:       cfg,
		logger:    log,
		exec:      &executor.Executor{Schema: g, Clients: clients, Logger: log},
		cache:     &cache.Wrapper{Backend: backend, Logger: log},
		mux:       http.NewServeMux(),
		debugDump: *debugDump,
	}
	h.mux.HandleFunc("/graphql", h.serveGraphQL)
	h.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h.mux.Handle("/graphiql/", http.StripPrefix("/graphiql/", graphiql.Handler()))
	h.mux.Handle("/admin/purge", fanout.Handler())

	server := &http.Server{Addr: *addr, Handler: h.mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("gateway listening", "addr", *addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

// loadSchemaDoc relies on schema.Doc's fields having no json tags, so
// encoding/json's default case-insensitive field matching is enough
// to decode a supergraph document produced by whatever composition
// step ran ahead of the gateway (composition itself is out of scope,
// spec.md §1).
func loadSchemaDoc(path string) (schema.Doc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return schema.Doc{}, err
	}
	var doc schema.Doc
	if err := json.Unmarshal(data, &doc); err != nil {
		return schema.Doc{}, err
	}
	return doc, nil
}

// buildClients dials every configured subgraph and maps it to the
// schema.SubgraphID the graph interned for that name, so the executor
// can key its Clients map the same way the schema graph keys
// Field.Resolvers[i].Subgraph.
func buildClients(g *schema.Graph, subgraphs []config.SubgraphConfig) (map[schema.SubgraphID]subgraph.Client, func(), error) {
	byName := make(map[string]schema.SubgraphID, len(g.Subgraphs))
	for i, name := range g.Subgraphs {
		if i == 0 {
			continue // index 0 unused, SubgraphID is 1-based
		}
		byName[name] = schema.SubgraphID(i)
	}

	clients := make(map[schema.SubgraphID]subgraph.Client, len(subgraphs))
	var conns []*grpc.ClientConn
	closeAll := func() {
		for _, cc := range conns {
			_ = cc.Close()
		}
	}

	for _, sc := range subgraphs {
		id, ok := byName[sc.Name]
		if !ok {
			continue // manifest entry for a subgraph the schema doesn't reference
		}
		switch sc.Transport {
		case config.TransportHTTP:
			client, err := subgraph.NewHTTPClient(sc.Name, sc.URL)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			clients[id] = client
		case config.TransportGRPC:
			cc, err := grpc.Dial(sc.URL, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			conns = append(conns, cc)
			clients[id] = subgraph.NewGRPCClient(sc.Name, cc)
		}
	}
	return clients, closeAll, nil
}

type gatewayHandler struct {
	schema *schema.Graph
	cfg    *config.Config
	logger logger.Logger
	exec   *executor.Executor
	cache  *cache.Wrapper
	mux    *http.ServeMux

	// debugDump spew.Dumps every execution result graph to stderr,
	// the same ad hoc inspection federation/demo/gateway/main.go
	// reaches for around its own e.Execute call.
	debugDump bool
}

type graphQLRequestBody struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

func (h *gatewayHandler) serveGraphQL(w http.ResponseWriter, r *http.Request) {
	writeResponse := func(status int, resp httpResponse) {
		body, err := json.Marshal(resp)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}

	if r.Method != http.MethodPost {
		writeResponse(http.StatusMethodNotAllowed, httpResponse{Errors: []graphQLError{{Message: "request must be a POST"}}})
		return
	}

	var req graphQLRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("malformed request body", "error", err, "remote_addr", r.RemoteAddr)
		writeResponse(http.StatusBadRequest, httpResponse{Errors: []graphQLError{{Message: err.Error()}}})
		return
	}

	identity := identityFromRequest(r)
	if h.cfg.Auth.RequireAuthenticated && identity.Subject == "" {
		writeResponse(http.StatusUnauthorized, httpResponse{Errors: []graphQLError{{Message: "authentication required"}}})
		return
	}

	rayUUID, err := uuid.NewV4()
	if err != nil {
		writeResponse(http.StatusInternalServerError, httpResponse{Errors: []graphQLError{{Message: err.Error()}}})
		return
	}
	rayID := rayUUID.String()
	rctx := &httpRequestContext{r: r, rayID: rayID}

	variablesJSON, err := json.Marshal(req.Variables)
	if err != nil {
		writeResponse(http.StatusBadRequest, httpResponse{Errors: []graphQLError{{Message: err.Error()}}})
		return
	}

	fingerprint := fingerprintOperation(req.Query, req.OperationName)
	scopes := h.cacheScopes()
	cacheReq := toCacheRequest(cacheRequestFromHTTP(r, identity))

	result, err := h.cache.Execute(r.Context(), rctx, scopes, fingerprint, string(variablesJSON), cacheReq, func(ctx context.Context) (cache.Cacheable, error) {
		return h.run(ctx, req, identity)
	})
	if err != nil {
		writeResponse(http.StatusOK, httpResponse{Errors: []graphQLError{{Message: err.Error()}}})
		return
	}

	rendered := result.Value.(*renderedResponse)
	if result.HasStatus {
		for k, v := range result.Status.Headers() {
			w.Header().Set(k, v)
		}
	}
	w.Header().Set("X-Ray-Id", rayID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rendered.body)
}

// run executes one request through bind -> authz -> plan -> compile ->
// execute -> render, independent of whether the caller is a fresh
// miss or a background revalidation (cache.Wrapper invokes it in
// both cases).
func (h *gatewayHandler) run(ctx context.Context, req graphQLRequestBody, identity authz.Identity) (cache.Cacheable, error) {
	rawDoc, err := parseRawDocument(req.Query)
	if err != nil {
		return marshalErrorResponse(err)
	}

	op, err := bind.Bind(h.schema, rawDoc, req.OperationName, req.Variables)
	if err != nil {
		return marshalErrorResponse(err)
	}

	authzErrors := authz.Enforce(ctx, h.schema, op, identity, nil)

	plan, err := planner.NewPlanner(h.schema).Plan(op)
	if err != nil {
		return marshalErrorResponse(err)
	}

	compiler := shape.NewCompiler(h.schema)
	for _, p := range plan.Partitions {
		id, err := compiler.CompilePartition(p)
		if err != nil {
			return marshalErrorResponse(err)
		}
		p.RootShape = int(id)
	}

	result, err := h.exec.Execute(ctx, plan, compiler.Tree())
	if err != nil {
		return marshalErrorResponse(err)
	}
	if h.debugDump {
		spew.Dump(result)
	}

	data := renderValue(result.Graph, h.schema.Strings, result.Root)
	dataMap, _ := data.(map[string]interface{})
	for _, ae := range authzErrors {
		if dataMap != nil {
			setNullAtPath(dataMap, ae.Path)
		}
	}

	errs := executionErrorsToGraphQL(result.Errors)
	for _, ae := range authzErrors {
		errs = append(errs, graphQLError{Message: ae.Message, Path: pathToInterfaces(ae.Path)})
	}

	body, err := json.Marshal(httpResponse{Data: data, Errors: errs})
	if err != nil {
		return nil, err
	}

	return &renderedResponse{
		body:          body,
		maxAgeSeconds: h.cfg.Cache.MaxAgeSeconds,
		staleSeconds:  h.cfg.Cache.StaleSeconds,
		isMutation:    op.Kind == bind.OpMutation,
		hasErrors:     len(errs) > 0,
	}, nil
}

func marshalErrorResponse(err error) (cache.Cacheable, error) {
	body, merr := json.Marshal(httpResponse{Errors: []graphQLError{{Message: err.Error()}}})
	if merr != nil {
		return nil, merr
	}
	return &renderedResponse{body: body, hasErrors: true}, nil
}

func pathToInterfaces(path []string) []interface{} {
	out := make([]interface{}, len(path))
	for i, p := range path {
		out[i] = p
	}
	return out
}

func fingerprintOperation(query, opName string) string {
	h := sha256.New()
	h.Write([]byte(opName))
	h.Write([]byte{0})
	h.Write([]byte(query))
	return hex.EncodeToString(h.Sum(nil))
}

// cacheScopes decides how the response cache partitions its key space.
// An unauthenticated deployment caches publicly; one that requires
// authentication splits the cache per caller so one subject never
// observes another's cached response.
func (h *gatewayHandler) cacheScopes() []cache.ScopeDimension {
	if h.cfg.Auth.RequireAuthenticated {
		return []cache.ScopeDimension{{Kind: cache.ScopeAPIKey}}
	}
	return []cache.ScopeDimension{{Kind: cache.ScopePublic}}
}

func toCacheRequest(in cacheRequestInput) cache.Request {
	return cache.Request{APIKeyIdentity: in.apiKeyIdentity, Claims: in.claims, Headers: in.headers}
}

// httpRequestContext implements cache.RequestContext over one inbound
// HTTP request.
type httpRequestContext struct {
	r     *http.Request
	rayID string
}

func (c *httpRequestContext) RayID() string { return c.rayID }

func (c *httpRequestContext) Namespace() string {
	if ns := c.r.Header.Get("X-Namespace"); ns != "" {
		return ns
	}
	return "default"
}

func (c *httpRequestContext) CommonCacheTags() []string {
	return []string{"namespace:" + c.Namespace()}
}

func (c *httpRequestContext) Control() cache.Control {
	directive := strings.ToLower(c.r.Header.Get("Cache-Control"))
	return cache.Control{
		NoCache: strings.Contains(directive, "no-cache"),
		NoStore: strings.Contains(directive, "no-store"),
	}
}

func (c *httpRequestContext) CachingEnabled() bool { return true }

// WaitUntilPush detaches fn from the request's own cancellation, the
// same "run after the response is sent" contract
// federation/http.go's reactive.NewRerunner gives a subscription's
// background work, generalized here to a plain goroutine since this
// gateway has no reactive live-query layer.
func (c *httpRequestContext) WaitUntilPush(fn func(ctx context.Context)) {
	go fn(context.Background())
}
