package jsonable

import (
	"encoding"
	"encoding/base64"
	"fmt"
	"reflect"
	"time"
	"unicode/utf8"
)

// DefaultTimeLayout renders times with millisecond precision, e.g.
// "2023-06-26T12:30:00.000Z" for UTC.
const DefaultTimeLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	timeType          = reflect.TypeFor[time.Time]()
	durationType      = reflect.TypeFor[time.Duration]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
	stringerType      = reflect.TypeFor[fmt.Stringer]()
)

func isTime(v reflect.Value) bool {
	return v.Type() == timeType || v.Type() == durationType
}

func (s *encodeState) encodeTime(v reflect.Value) any {
	if v.Type() == durationType {
		return time.Duration(v.Int()).Seconds()
	}
	t := v.Interface().(time.Time)
	return t.In(s.e.timeLocation).Format(s.e.timeLayout)
}

func isTextual(v reflect.Value) bool {
	return isTextualType(v.Type())
}

func isTextualType(t reflect.Type) bool {
	return hasTextMethods(t) || isBytes(t)
}

// hasTextMethods reports whether T or *T is a TextMarshaler or an error.
func hasTextMethods(t reflect.Type) bool {
	if implementsTextual(t) {
		return true
	}
	return t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface && implementsTextual(reflect.PointerTo(t))
}

func implementsTextual(t reflect.Type) bool {
	return t.Implements(textMarshalerType) || t.Implements(errorType)
}

// textualValue returns v, or a pointer to it when only *T implements the
// text methods. Values that are not addressable are copied first.
func textualValue(v reflect.Value) any {
	if implementsTextual(v.Type()) {
		return v.Interface()
	}
	if v.CanAddr() {
		return v.Addr().Interface()
	}
	c := reflect.New(v.Type())
	c.Elem().Set(v)
	return c.Interface()
}

func isBytes(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}

func (s *encodeState) encodeTextual(v reflect.Value) (any, error) {
	if !hasTextMethods(v.Type()) {
		return encodeBytes(v.Bytes()), nil
	}

	switch x := textualValue(v).(type) {
	case encoding.TextMarshaler:
		b, err := x.MarshalText()
		if err != nil {
			return nil, fmt.Errorf("jsonable: marshaling %s at %s as text: %w", v.Type(), pathString(s.path), err)
		}
		return string(b), nil
	case error:
		return x.Error(), nil
	}
	return encodeBytes(v.Bytes()), nil
}

func encodeBytes(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return base64.StdEncoding.EncodeToString(b)
}

var basicTypes = map[reflect.Kind]reflect.Type{
	reflect.Bool:    reflect.TypeFor[bool](),
	reflect.Int:     reflect.TypeFor[int](),
	reflect.Int8:    reflect.TypeFor[int8](),
	reflect.Int16:   reflect.TypeFor[int16](),
	reflect.Int32:   reflect.TypeFor[int32](),
	reflect.Int64:   reflect.TypeFor[int64](),
	reflect.Uint:    reflect.TypeFor[uint](),
	reflect.Uint8:   reflect.TypeFor[uint8](),
	reflect.Uint16:  reflect.TypeFor[uint16](),
	reflect.Uint32:  reflect.TypeFor[uint32](),
	reflect.Uint64:  reflect.TypeFor[uint64](),
	reflect.Uintptr: reflect.TypeFor[uint64](),
	reflect.Float32: reflect.TypeFor[float32](),
	reflect.Float64: reflect.TypeFor[float64](),
	reflect.String:  reflect.TypeFor[string](),
}

func isPrimitive(v reflect.Value) bool {
	_, ok := basicTypes[v.Kind()]
	return ok
}

// encodePrimitive returns builtin scalars unchanged and converts named scalar
// types to their builtin kind. NaN and infinities pass through.
func encodePrimitive(v reflect.Value) any {
	bt := basicTypes[v.Kind()]
	if v.Type() == bt {
		return v.Interface()
	}
	return v.Convert(bt).Interface()
}
