package alert

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is the content subtype clients must request.
const CodecName = "json"

// jsonCodec marshals wire messages with encoding/json.
type jsonCodec struct{}

func init() { //nolint:gochecknoinits // Codecs must be registered before any server or client starts.
	encoding.RegisterCodec(jsonCodec{})
}

// Marshal encodes v as JSON.
func (jsonCodec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}

	return data, nil
}

// Unmarshal decodes JSON data into v.
func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %T: %w", v, err)
	}

	return nil
}

// Name returns the content subtype.
func (jsonCodec) Name() string { return CodecName }
