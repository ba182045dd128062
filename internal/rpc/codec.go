package rpc

import (
	"github.com/pkg/errors"
)

// Codec marshals hermit messages for gRPC. It registers under the name
// "proto" so the content type stays application/grpc+proto and generated
// protobuf clients interoperate.
type Codec struct{}

// Name returns the codec's content subtype.
func (Codec) Name() string { return "proto" }

// Marshal encodes v, which must implement Message.
func (Codec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(Message)
	if !ok {
		return nil, errors.Errorf("rpc: cannot marshal %T", v)
	}
	return m.AppendProto(nil), nil
}

// Unmarshal decodes data into v, which must implement Message.
func (Codec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(Message)
	if !ok {
		return errors.Errorf("rpc: cannot unmarshal into %T", v)
	}
	return m.UnmarshalProto(data)
}
