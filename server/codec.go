package server

import (
	"github.com/waysome/waysome/message"
)

// cborCodec lets Connect carry the message wire types as CBOR instead of
// protobuf. It is selected with the application/cbor content type.
type cborCodec struct{}

func (cborCodec) Name() string { return "cbor" }

func (cborCodec) Marshal(v any) ([]byte, error) {
	return message.Marshal(v)
}

func (cborCodec) Unmarshal(data []byte, v any) error {
	return message.Unmarshal(data, v)
}
