package jsonable

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/vmihailenco/msgpack/v5"
)

// Set is the set-like node of a plain value tree. Encoders only produce it
// when set preservation is on; it is also recognised as a set-like input.
//
// Set is not a JSON type. It marshals as a JSON (or MessagePack) array in
// [Set.Values] order.
type Set map[any]struct{}

var setType = reflect.TypeFor[Set]()

// NewSet returns a Set holding vs.
func NewSet(vs ...any) Set {
	s := make(Set, len(vs))
	for _, v := range vs {
		s[v] = struct{}{}
	}
	return s
}

// Has reports whether v is in s.
func (s Set) Has(v any) bool {
	_, ok := s[v]
	return ok
}

// Values returns the members of s in a deterministic order: nil, then
// booleans, then numbers, then strings, then anything else by its printed
// form.
func (s Set) Values() []any {
	vs := make([]any, 0, len(s))
	for v := range s {
		vs = append(vs, v)
	}
	slices.SortFunc(vs, compareScalars)
	return vs
}

func (s Set) MarshalJSONV2(enc *jsontext.Encoder, opts json.Options) error {
	if err := enc.WriteToken(jsontext.ArrayStart); err != nil {
		return fmt.Errorf("failed to write array start token: %w", err)
	}
	for _, v := range s.Values() {
		if err := json.MarshalEncode(enc, v, opts); err != nil {
			return fmt.Errorf("failed to marshal set member %v: %w", v, err)
		}
	}
	if err := enc.WriteToken(jsontext.ArrayEnd); err != nil {
		return fmt.Errorf("failed to write array end token: %w", err)
	}
	return nil
}

var _ msgpack.CustomEncoder = Set{}

func (s Set) EncodeMsgpack(enc *msgpack.Encoder) error {
	vs := s.Values()
	if err := enc.EncodeArrayLen(len(vs)); err != nil {
		return err
	}
	for _, v := range vs {
		if err := enc.Encode(v); err != nil {
			return err
		}
	}
	return nil
}

// isSetLike reports Set and maps whose element type is an empty struct.
func isSetLike(t reflect.Type) bool {
	if t == setType {
		return true
	}
	return t.Kind() == reflect.Map && t.Elem().Kind() == reflect.Struct && t.Elem().NumField() == 0
}

func scalarRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}

func compareScalars(a, b any) int {
	ra, rb := scalarRank(a), scalarRank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case 0:
		return 0
	case 1:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case 2:
		if c := cmp.Compare(toFloat(a), toFloat(b)); c != 0 {
			return c
		}
	case 3:
		return cmp.Compare(a.(string), b.(string))
	}
	return cmp.Compare(fmt.Sprintf("%T:%v", a, a), fmt.Sprintf("%T:%v", b, b))
}

func toFloat(v any) float64 {
	rv := reflect.ValueOf(v)
	switch {
	case rv.CanInt():
		return float64(rv.Int())
	case rv.CanUint():
		return float64(rv.Uint())
	default:
		return rv.Float()
	}
}
