package codec

import (
	"encoding/json"
	"fmt"
)

// JSON encodes values with encoding/json. Larger payloads than Msgpack, but
// human-readable in the backend, which helps when inspecting cache rows or
// keys by hand.
type JSON struct{}

var _ Codec = JSON{}

func (JSON) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: json: %w", ErrEncode, err)
	}
	return data, nil
}

func (JSON) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: json: %w", ErrDecode, err)
	}
	return nil
}

func (JSON) Name() string { return "json" }
