package grpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName - content-subtype, под которым зарегистрирован JSON-кодек
const codecName = "json"

// jsonCodec передает сообщения сервиса в JSON вместо protobuf
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
