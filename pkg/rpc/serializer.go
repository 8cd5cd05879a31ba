package rpc

import (
	"encoding"
	"fmt"
)

// Serializer turns messages into payload bytes and back. It has the same
// method set as grpc's encoding.Codec, so one value serves both the client
// and the grpc-go stub server.
type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// BinarySerializer serializes messages that implement
// encoding.BinaryMarshaler / encoding.BinaryUnmarshaler with protobuf wire
// encoding, such as the forecast messages.
type BinarySerializer struct{}

// Marshal implements Serializer.
func (BinarySerializer) Marshal(v any) ([]byte, error) {
	m, ok := v.(encoding.BinaryMarshaler)
	if !ok {
		return nil, fmt.Errorf("cannot marshal %T: not an encoding.BinaryMarshaler", v)
	}
	return m.MarshalBinary()
}

// Unmarshal implements Serializer.
func (BinarySerializer) Unmarshal(data []byte, v any) error {
	u, ok := v.(encoding.BinaryUnmarshaler)
	if !ok {
		return fmt.Errorf("cannot unmarshal into %T: not an encoding.BinaryUnmarshaler", v)
	}
	return u.UnmarshalBinary(data)
}

// Name implements Serializer.
func (BinarySerializer) Name() string {
	return "proto"
}
