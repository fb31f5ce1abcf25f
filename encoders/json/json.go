// Package json serializes plain value trees as JSON text.
// It uses github.com/go-json-experiment/json for serialization.
package json

import (
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/dhoelle/jsonable"
)

// Encoder implements jsonable.Serializer using JSON serialization. Mapping
// keys are always written in sorted order.
type Encoder struct {
	enc    *jsonable.Encoder
	indent string
}

var _ jsonable.Serializer = &Encoder{}

// Encode converts v into a plain value tree and serializes it to JSON bytes.
func (e *Encoder) Encode(v any) ([]byte, error) {
	tree, err := e.enc.Encode(v)
	if err != nil {
		return nil, err
	}
	opts := []json.Options{json.Deterministic(true)}
	if e.indent != "" {
		opts = append(opts, jsontext.WithIndent(e.indent))
	}
	return json.Marshal(tree, opts...)
}

// WithIndent returns a copy of e that indents nested values with indent.
func (e *Encoder) WithIndent(indent string) *Encoder {
	c := *e
	c.indent = indent
	return &c
}

// New creates a new JSON encoder. A nil enc uses the default configuration.
func New(enc *jsonable.Encoder) *Encoder {
	if enc == nil {
		enc, _ = jsonable.New(nil)
	}
	return &Encoder{enc: enc}
}
