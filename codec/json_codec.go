package codec

import (
	"bytes"
	"encoding/json"
)

// JSONCodec encodes values as JSON. Map keys are sorted by encoding/json,
// so equal values always encode to equal bytes. Numbers decode as
// json.Number to keep integers exact.
type JSONCodec struct{}

func NewJSONCodec() *JSONCodec {
	return new(JSONCodec)
}

// Marshal a value into a byte slice.
func (c *JSONCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal a value from a byte slice.
func (c *JSONCodec) Unmarshal(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
