package rpcapi

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec implements google.golang.org/grpc/encoding.Codec, registered
// under the name "proto" so it transparently replaces gRPC's default
// protobuf codec: every message in this package is a plain Go struct with
// json tags, not a protoc-generated type, and grpc-go always looks up the
// codec named "proto" unless a CallContentSubtype overrides it.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return "proto" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
