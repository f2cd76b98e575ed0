package subgraph

import "github.com/gogo/protobuf/proto"

// ExecuteRequest and ExecuteResponse are hand-maintained wire messages
// for the subgraph Executor gRPC service, in the teacher's own
// hand-written thunderpb style (federation/gateway.go's
// thunderpb.ExecuteRequest/ExecuteResponse) rather than protoc-generated
// stubs: a GraphQL query and its variables travel as text/JSON payload
// fields instead of a fully-typed nested message schema, since the
// subgraph contract is "selection set in, JSON fragment + errors out"
// (SPEC_FULL.md §12), not a structured RPC API of its own.

// ExecuteRequest is what the gateway sends a gRPC subgraph.
type ExecuteRequest struct {
	Subgraph      string `protobuf:"bytes,1,opt,name=subgraph,proto3" json:"subgraph,omitempty"`
	Query         string `protobuf:"bytes,2,opt,name=query,proto3" json:"query,omitempty"`
	VariablesJson []byte `protobuf:"bytes,3,opt,name=variables_json,proto3" json:"variables_json,omitempty"`
}

func (m *ExecuteRequest) Reset()         { *m = ExecuteRequest{} }
func (m *ExecuteRequest) String() string { return proto.CompactTextString(m) }
func (*ExecuteRequest) ProtoMessage()    {}

// ExecuteResponse is what a gRPC subgraph sends back. Errors travel as
// a JSON-encoded []GraphQLError rather than a repeated message field,
// matching the single opaque JSON blob the HTTP transport already
// uses, so both transports feed the executor an identical Response.
type ExecuteResponse struct {
	DataJson   []byte `protobuf:"bytes,1,opt,name=data_json,proto3" json:"data_json,omitempty"`
	ErrorsJson []byte `protobuf:"bytes,2,opt,name=errors_json,proto3" json:"errors_json,omitempty"`
}

func (m *ExecuteResponse) Reset()         { *m = ExecuteResponse{} }
func (m *ExecuteResponse) String() string { return proto.CompactTextString(m) }
func (*ExecuteResponse) ProtoMessage()    {}

func init() {
	proto.RegisterType((*ExecuteRequest)(nil), "fedgate.subgraph.ExecuteRequest")
	proto.RegisterType((*ExecuteResponse)(nil), "fedgate.subgraph.ExecuteResponse")
}
