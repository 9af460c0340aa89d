// Package codec defines the pluggable value serialization capability used by
// the cache façade. A codec turns typed values into the opaque bytes drivers
// store and back; drivers never interpret payloads themselves.
package codec

import "errors"

var (
	// ErrEncode marks values that cannot be represented by the codec.
	// Not retryable.
	ErrEncode = errors.New("codec: encode failed")

	// ErrDecode marks malformed or schema-mismatched payloads.
	// Not retryable.
	ErrDecode = errors.New("codec: decode failed")
)

// Codec encodes and decodes typed values. decode(encode(v)) must reconstruct
// a value observably equal to v for every supported type. Implementations
// wrap their failures with ErrEncode/ErrDecode so callers can branch with
// errors.Is.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	// Name identifies the codec in error messages.
	Name() string
}
