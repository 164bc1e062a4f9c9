package handler

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// The snapshot service has no protobuf schema; messages travel as JSON under
// the "json" content subtype (application/grpc+json).
const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
