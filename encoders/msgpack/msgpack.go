// Package msgpack serializes plain value trees as MessagePack.
// MessagePack is a binary format that is faster and more compact than JSON;
// preserved sets are written as arrays.
package msgpack

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/dhoelle/jsonable"
)

// Encoder implements jsonable.Serializer using MessagePack binary
// serialization.
type Encoder struct {
	enc *jsonable.Encoder
}

var _ jsonable.Serializer = &Encoder{}

// Encode converts v into a plain value tree and serializes it to MessagePack
// bytes. Map keys are sorted so the output is stable.
func (e *Encoder) Encode(v any) ([]byte, error) {
	tree, err := e.enc.Encode(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	menc := msgpack.NewEncoder(&buf)
	menc.SetSortMapKeys(true)
	if err := menc.Encode(tree); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// New creates a new MessagePack encoder. A nil enc uses the default
// configuration.
func New(enc *jsonable.Encoder) *Encoder {
	if enc == nil {
		enc, _ = jsonable.New(nil)
	}
	return &Encoder{enc: enc}
}
