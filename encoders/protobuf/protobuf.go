// Package protobuf serializes plain value trees as Protocol Buffers, using
// the well-known google.protobuf.Value message.
package protobuf

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dhoelle/jsonable"
)

// Encoder implements jsonable.Serializer by converting plain value trees into
// *structpb.Value messages.
type Encoder struct {
	enc *jsonable.Encoder
}

var _ jsonable.Serializer = &Encoder{}

// Encode converts v into a plain value tree and serializes it as a
// google.protobuf.Value.
func (e *Encoder) Encode(v any) ([]byte, error) {
	pv, err := e.Value(v)
	if err != nil {
		return nil, err
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(pv)
}

// Value converts v into a plain value tree and returns it as a
// *structpb.Value. Preserved sets become lists in jsonable.Set.Values order.
func (e *Encoder) Value(v any) (*structpb.Value, error) {
	tree, err := e.enc.Encode(v)
	if err != nil {
		return nil, err
	}
	return structpb.NewValue(listSets(tree))
}

// listSets replaces every jsonable.Set in tree with a list, since
// google.protobuf.Value has no set kind.
func listSets(tree any) any {
	switch t := tree.(type) {
	case jsonable.Set:
		out := t.Values()
		for i, v := range out {
			out[i] = listSets(v)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = listSets(v)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[k] = listSets(v)
		}
		return out
	default:
		return tree
	}
}

// New creates a new Protocol Buffers encoder. A nil enc uses the default
// configuration.
func New(enc *jsonable.Encoder) *Encoder {
	if enc == nil {
		enc, _ = jsonable.New(nil)
	}
	return &Encoder{enc: enc}
}
