package jsonable

import (
	"maps"
	"reflect"
)

const (
	// The default mapping key for type discriminators
	defaultTypeDiscriminatorKey = "_type"

	// The default mapping key for nested values
	defaultNestedValueKey = "_value"
)

// WrapFunc wraps the encoded form of a value together with its type
// discriminator. Its result is encoded like any converter output.
type WrapFunc func(typ string, v any) any

// Discriminated returns a [Converter] that encodes values of type T in their
// default way and then wraps the result with the type discriminator typ, so
// that consumers can tell implementations of an interface apart:
//
//	enc, _ := jsonable.New(&jsonable.Config{
//	  Converters: []jsonable.Converter{
//	    jsonable.Discriminated[*url.URL]("url.URL", nil),
//	  },
//	})
//	tree, _ := enc.Encode(u)
//	// tree == map[string]any{"_type": "url.URL", "_value": map[string]any{...}}
//
// If wrap is nil, Discriminated defaults to [WrapNested].
func Discriminated[T any](typ string, wrap WrapFunc) Converter {
	if wrap == nil {
		wrap = WrapNested
	}
	return ConvertSimple(func(v T) any {
		return discriminated{typ: typ, value: v, wrap: wrap}
	})
}

// discriminated is produced by Discriminated converters. The encoder encodes
// value with converters for its own type skipped, which would otherwise
// produce another discriminated value and never terminate.
type discriminated struct {
	typ   string
	value any
	wrap  WrapFunc
}

var discriminatedType = reflect.TypeFor[discriminated]()

// WrapNested nests the encoded value underneath the "_value" key, next to the
// "_type" key.
func WrapNested(typ string, v any) any {
	return map[string]any{
		defaultTypeDiscriminatorKey: typ,
		defaultNestedValueKey:       v,
	}
}

// WrapInline wraps a value with default "inline" behavior, specifically:
//
//   - Type is stored under the "_type" key
//   - Mapping values are inlined into the same mapping as the "_type" key
//   - All other values are nested under the "_value" key
func WrapInline(typ string, v any) any {
	return ValueWrapper{InlineObjects: true}.Wrap(typ, v)
}

// ValueWrapper can be used to quickly build a custom WrapFunc with its own
// keys. Its Wrap method can be passed to [Discriminated].
type ValueWrapper struct {
	DiscriminatorKey string
	NestedValueKey   string
	InlineObjects    bool
}

func (w ValueWrapper) Wrap(typ string, v any) any {
	discriminatorKey := defaultTypeDiscriminatorKey
	if w.DiscriminatorKey != "" {
		discriminatorKey = w.DiscriminatorKey
	}

	nestedValueKey := defaultNestedValueKey
	if w.NestedValueKey != "" {
		nestedValueKey = w.NestedValueKey
	}

	if m, ok := v.(map[string]any); ok && w.InlineObjects {
		out := make(map[string]any, len(m)+1)
		maps.Copy(out, m)
		out[discriminatorKey] = typ
		return out
	}
	return map[string]any{
		discriminatorKey: typ,
		nestedValueKey:   v,
	}
}
