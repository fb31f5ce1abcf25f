package jsonable

import (
	"fmt"

	"github.com/go-json-experiment/json"
)

// Serializer is implemented by the encoders in the encoders/ subdirectories,
// which encode a value and serialize the resulting tree.
type Serializer interface {
	Encode(v any) ([]byte, error)
}

var defaultEncoder = mustNew(nil)

func mustNew(cfg *Config) *Encoder {
	e, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return e
}

// Encode converts v into a plain value tree using the default configuration.
// See [Encoder.Encode].
func Encode(v any, opts ...EncodeOption) (any, error) {
	return defaultEncoder.Encode(v, opts...)
}

// Marshal encodes v with the default configuration and returns its JSON
// text. See [Encoder.Marshal].
func Marshal(v any, opts ...EncodeOption) ([]byte, error) {
	return defaultEncoder.Marshal(v, opts...)
}

// Marshal encodes v and returns the JSON text of the resulting tree, with
// mapping keys sorted. A preserved [Set] is written as an array.
func (e *Encoder) Marshal(v any, opts ...EncodeOption) ([]byte, error) {
	tree, err := e.Encode(v, opts...)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(tree, json.Deterministic(true))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal encoded tree: %w", err)
	}
	return b, nil
}

// EncodeOutput wraps fn so that its result is encoded with e before being
// returned. A nil e uses the default configuration.
func EncodeOutput[T any](e *Encoder, fn func() (T, error), opts ...EncodeOption) func() (any, error) {
	if e == nil {
		e = defaultEncoder
	}
	return func() (any, error) {
		v, err := fn()
		if err != nil {
			return nil, err
		}
		return e.Encode(v, opts...)
	}
}
