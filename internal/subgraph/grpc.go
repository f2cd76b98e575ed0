package subgraph

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gogo/protobuf/proto"
	"github.com/samsarahq/go/oops"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// gogoCodec overrides grpc-go's default "proto" codec to marshal with
// gogo/protobuf instead of google.golang.org/protobuf, so the
// hand-written messages in pb.go (which satisfy gogo's classic
// proto.Message, not the newer ProtoReflect-based one) work as gRPC
// payloads without a code generator in the loop. This is the same
// override gogo-based services commonly register; it must run before
// any gRPC call on this process uses the "proto" codec.
type gogoCodec struct{}

func (gogoCodec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("subgraph: %T does not implement gogo proto.Message", v)
	}
	return proto.Marshal(m)
}

func (gogoCodec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(proto.Message)
	if !ok {
		return fmt.Errorf("subgraph: %T does not implement gogo proto.Message", v)
	}
	return proto.Unmarshal(data, m)
}

func (gogoCodec) Name() string { return "proto" }

func init() {
	encoding.RegisterCodec(gogoCodec{})
}

const executeMethod = "/fedgate.subgraph.Executor/Execute"

// ExecutorClient is the hand-written client stub a protoc-gen-go-grpc
// run would otherwise generate, matching federation/gateway.go's
// GatewayExecutorClient shape.
type ExecutorClient interface {
	Execute(ctx context.Context, in *ExecuteRequest, opts ...grpc.CallOption) (*ExecuteResponse, error)
}

type executorClient struct {
	cc *grpc.ClientConn
}

// NewExecutorClient wraps an established gRPC connection.
func NewExecutorClient(cc *grpc.ClientConn) ExecutorClient {
	return &executorClient{cc: cc}
}

func (c *executorClient) Execute(ctx context.Context, in *ExecuteRequest, opts ...grpc.CallOption) (*ExecuteResponse, error) {
	out := new(ExecuteResponse)
	if err := c.cc.Invoke(ctx, executeMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GRPCClient adapts ExecutorClient to the gateway-facing Client
// interface.
type GRPCClient struct {
	subgraph string
	client   ExecutorClient
}

// NewGRPCClient builds a GRPCClient for one subgraph over an
// already-dialed connection; dialing is the caller's responsibility
// (cmd/gateway dials each gRPC subgraph's manifest URL), not here.
func NewGRPCClient(subgraphName string, cc *grpc.ClientConn) *GRPCClient {
	return &GRPCClient{subgraph: subgraphName, client: NewExecutorClient(cc)}
}

// Execute implements Client.
func (c *GRPCClient) Execute(ctx context.Context, req Request) (Response, error) {
	variablesJSON, err := json.Marshal(req.Variables)
	if err != nil {
		return Response{}, oops.Wrapf(err, "marshaling subgraph %s variables", c.subgraph)
	}

	resp, err := c.client.Execute(ctx, &ExecuteRequest{
		Subgraph:      c.subgraph,
		Query:         req.Query,
		VariablesJson: variablesJSON,
	})
	if err != nil {
		return Response{}, oops.Wrapf(err, "executing subgraph %s request over grpc", c.subgraph)
	}

	out := Response{Data: resp.DataJson}
	if len(resp.ErrorsJson) > 0 {
		if err := json.Unmarshal(resp.ErrorsJson, &out.Errors); err != nil {
			return Response{}, oops.Wrapf(err, "decoding subgraph %s errors", c.subgraph)
		}
	}
	return out, nil
}
