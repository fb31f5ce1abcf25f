package jsonable

import (
	"fmt"
	"reflect"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxDepth is the depth limit used when Config.MaxDepth is zero.
const DefaultMaxDepth = 1000

type Config struct {
	// Converters are consulted before any built-in encoding rule, in
	// registration order. See [Converter] for how they match.
	Converters []Converter

	// By default, set-like values (a [Set] or any map with an empty struct
	// element type) encode as []any, since JSON has no sets. If PreserveSet
	// is true they encode as a [Set] instead.
	PreserveSet bool

	// ExcludeNone omits record fields and mapping entries whose value is nil.
	ExcludeNone bool

	// ByAlias emits record fields under their alias when one is declared.
	ByAlias bool

	// Exclude names fields (or mapping keys) of the root value to omit.
	Exclude []string

	// By default, values that match no encoding rule are rendered as strings
	// (through fmt.Stringer when implemented). If Strict is true, Encode
	// returns an *UnencodableTypeError instead.
	Strict bool

	// MaxDepth bounds nesting, including converter re-encoding. If zero,
	// defaults to [DefaultMaxDepth].
	MaxDepth int

	// TimeLayout formats time.Time values. If empty, defaults to
	// [DefaultTimeLayout].
	TimeLayout string

	// TimeLocation is the zone times are converted to before formatting. If
	// nil, defaults to UTC.
	TimeLocation *time.Location

	// Logger receives debug logs. If nil, the package [Logger] is used.
	Logger *zap.Logger
}

// Encoder converts Go values into plain value trees. It is immutable once
// created and safe for concurrent use.
type Encoder struct {
	convs        []compiledConverter
	reg          *registry
	flags        fieldFlags
	exclude      []string
	preserveSet  bool
	strict       bool
	maxDepth     int
	timeLayout   string
	timeLocation *time.Location
	log          *zap.Logger

	// layers caches registries for records that declare converters, see
	// layerFor.
	layers sync.Map // layerKey -> declaredLayer
}

// New creates an Encoder. It returns a *ConfigurationError if a converter is
// malformed. A nil cfg is the default configuration.
func New(cfg *Config) (*Encoder, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	convs, err := compileConverters(cfg.Converters)
	if err != nil {
		return nil, err
	}

	e := &Encoder{
		convs: convs,
		reg:   newRegistry(convs),
		flags: fieldFlags{
			excludeNone: cfg.ExcludeNone,
			byAlias:     cfg.ByAlias,
		},
		exclude:      append([]string(nil), cfg.Exclude...),
		preserveSet:  cfg.PreserveSet,
		strict:       cfg.Strict,
		maxDepth:     cfg.MaxDepth,
		timeLayout:   cfg.TimeLayout,
		timeLocation: cfg.TimeLocation,
		log:          cfg.Logger,
	}
	if e.maxDepth <= 0 {
		e.maxDepth = DefaultMaxDepth
	}
	if e.timeLayout == "" {
		e.timeLayout = DefaultTimeLayout
	}
	if e.timeLocation == nil {
		e.timeLocation = time.UTC
	}
	return e, nil
}

func (e *Encoder) logger() *zap.Logger {
	if e.log != nil {
		return e.log
	}
	return Logger()
}

// Encode converts v into a plain value tree made of nil, bool, numbers,
// string, []any, map[string]any and, with set preservation, [Set].
//
// opts override the encoder's configuration for this call only. v is never
// modified. Errors returned by converters are returned unchanged.
func (e *Encoder) Encode(v any, opts ...EncodeOption) (any, error) {
	call := newCallOptions(opts)

	s := &encodeState{e: e, call: call}
	reg := e.reg
	if len(call.converters) > 0 {
		convs, err := compileConverters(call.converters)
		if err != nil {
			return nil, err
		}
		s.callConvs = convs
		reg = newRegistry(convs, e.convs)
	}

	return s.encode(reflect.ValueOf(v), frame{
		root:  true,
		flags: e.flags.override(call),
		reg:   reg,
	})
}

type encodeState struct {
	e         *Encoder
	call      *callOptions
	callConvs []compiledConverter
	path      []string

	// layers replaces Encoder.layers when the call has its own converters.
	layers sync.Map
}

func (s *encodeState) push(elem string) { s.path = append(s.path, elem) }
func (s *encodeState) pop()             { s.path = s.path[:len(s.path)-1] }

func (s *encodeState) currentPath() []string {
	return append([]string(nil), s.path...)
}

// frame is the per-value context of a traversal.
type frame struct {
	depth int

	// root is true until the traversal descends into a field, key or
	// element.
	root  bool
	flags fieldFlags

	reg      *registry
	declared []compiledConverter // record-declared converters, innermost first

	// skip disables converters for one type, see discriminated.
	skip reflect.Type
}

// same returns the frame for a value standing in for the current one, such
// as a dereferenced pointer or a converter's output.
func (f frame) same() frame {
	f.depth++
	f.skip = nil
	return f
}

// child returns the frame for a nested field, key or element.
func (f frame) child() frame {
	f = f.same()
	f.root = false
	return f
}

// rule is one step of the dispatch chain.
type rule struct {
	name  string
	match func(s *encodeState, v reflect.Value, f frame) bool
	apply func(s *encodeState, v reflect.Value, f frame) (any, error)
}

// rules is the dispatch chain, in precedence order; the first match wins.
// The last rule always matches.
var rules []rule

func init() {
	rules = []rule{
		{"null", matchNull, func(*encodeState, reflect.Value, frame) (any, error) { return nil, nil }},
		{"discriminated", matchDiscriminated, (*encodeState).encodeDiscriminated},
		{"exact converter", matchConverter(true), (*encodeState).applyConverter},
		{"ancestor converter", matchConverter(false), (*encodeState).applyConverter},
		{"time", matchValue(isTime), func(s *encodeState, v reflect.Value, _ frame) (any, error) { return s.encodeTime(v), nil }},
		{"textual", matchValue(isTextual), func(s *encodeState, v reflect.Value, _ frame) (any, error) { return s.encodeTextual(v) }},
		{"primitive", matchValue(isPrimitive), func(_ *encodeState, v reflect.Value, _ frame) (any, error) { return encodePrimitive(v), nil }},
		{"pointer", matchKind(reflect.Pointer), (*encodeState).encodePointer},
		{"record", matchValue(isRecord), (*encodeState).encodeRecord},
		{"set", matchValue(func(v reflect.Value) bool { return isSetLike(v.Type()) }), (*encodeState).encodeSet},
		{"mapping", matchKind(reflect.Map), (*encodeState).encodeMap},
		{"sequence", matchKind(reflect.Slice, reflect.Array), (*encodeState).encodeSequence},
		{"fallback", func(*encodeState, reflect.Value, frame) bool { return true }, (*encodeState).encodeFallback},
	}
}

func (s *encodeState) encode(v reflect.Value, f frame) (any, error) {
	for v.IsValid() && v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}

	if f.depth > s.e.maxDepth {
		typ := "<nil>"
		if v.IsValid() {
			typ = v.Type().String()
		}
		return nil, &RecursionLimitError{Path: s.currentPath(), Type: typ, Limit: s.e.maxDepth}
	}

	for _, r := range rules {
		if r.match(s, v, f) {
			return r.apply(s, v, f)
		}
	}
	panic("unreachable: fallback rule did not match")
}

func matchValue(pred func(reflect.Value) bool) func(*encodeState, reflect.Value, frame) bool {
	return func(_ *encodeState, v reflect.Value, _ frame) bool { return pred(v) }
}

func matchKind(kinds ...reflect.Kind) func(*encodeState, reflect.Value, frame) bool {
	return func(_ *encodeState, v reflect.Value, _ frame) bool {
		for _, k := range kinds {
			if v.Kind() == k {
				return true
			}
		}
		return false
	}
}

func matchNull(_ *encodeState, v reflect.Value, _ frame) bool {
	return isNone(v)
}

// isNone reports nil values: untyped nil and nil pointers, interfaces, maps,
// slices, funcs and chans.
func isNone(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

func matchDiscriminated(_ *encodeState, v reflect.Value, _ frame) bool {
	return v.Type() == discriminatedType
}

func (s *encodeState) encodeDiscriminated(v reflect.Value, f frame) (any, error) {
	d := v.Interface().(discriminated)

	inner := f.same()
	inner.skip = reflect.TypeOf(d.value)
	encoded, err := s.encode(reflect.ValueOf(d.value), inner)
	if err != nil {
		return nil, err
	}
	return s.encode(reflect.ValueOf(d.wrap(d.typ, encoded)), f.same())
}

func matchConverter(exact bool) func(*encodeState, reflect.Value, frame) bool {
	return func(s *encodeState, v reflect.Value, f frame) bool {
		if v.Type() == f.skip {
			return false
		}
		res := f.reg.lookup(v.Type())
		if res.conv == nil || (res.distance == 0) != exact {
			return false
		}
		_, ok := res.target(v)
		return ok
	}
}

func (s *encodeState) applyConverter(v reflect.Value, f frame) (any, error) {
	res := f.reg.lookup(v.Type())
	target, _ := res.target(v)

	if res.distance > 0 {
		s.e.logger().Debug("applying ancestor converter",
			zap.Stringer("type", v.Type()),
			zap.Stringer("converter_type", res.conv.typ),
			zap.Int("distance", res.distance))
	}

	out, err := res.conv.call(target)
	if err != nil {
		return nil, err
	}

	// Output of the converter's own input type is encoded without
	// converters for that type, so that e.g. a string -> string converter
	// is applied once.
	next := f.same()
	if ot := reflect.TypeOf(out); ot != nil && (ot == v.Type() || ot == target.Type()) {
		next.skip = ot
	}
	return s.encode(reflect.ValueOf(out), next)
}

func (s *encodeState) encodePointer(v reflect.Value, f frame) (any, error) {
	next := f.same()
	if f.skip != nil && f.skip.Kind() == reflect.Pointer {
		next.skip = f.skip.Elem()
	}
	return s.encode(v.Elem(), next)
}

func (s *encodeState) encodeRecord(v reflect.Value, f frame) (any, error) {
	declared := recordRules(v)
	fr := mergeRules(f.flags, declared, s.call, s.e.exclude, f.root)

	childFrame := f.child()
	if len(declared.Converters) > 0 {
		layer, err := s.layerFor(v.Type(), declared, f)
		if err != nil {
			return nil, err
		}
		childFrame.declared = layer.declared
		childFrame.reg = layer.reg
	}

	fields := recordFields(v)
	out := make(map[string]any, len(fields))
	for _, field := range fields {
		if fr.skip(field.Name, field.Alias) {
			continue
		}
		fv := reflect.ValueOf(field.Value)
		if fr.excludeNone && isNone(fv) {
			continue
		}
		if fr.excludeUnset && field.Unset {
			continue
		}
		if fr.excludeDefaults && (!fv.IsValid() || fv.IsZero()) {
			continue
		}

		key := field.Name
		if fr.byAlias && field.Alias != "" {
			key = field.Alias
		}

		s.push(key)
		encoded, err := s.encode(fv, childFrame)
		s.pop()
		if err != nil {
			return nil, err
		}
		out[key] = encoded
	}
	return out, nil
}

type layerKey struct {
	parent *registry
	typ    reflect.Type
}

type declaredLayer struct {
	declared []compiledConverter
	reg      *registry
}

// layerFor returns the registry for the descendants of a record of
// type t that declares converters. Layers are cached per record type and
// enclosing registry, so resolutions stay memoised across instances. The
// declared converters of a type are read once.
func (s *encodeState) layerFor(t reflect.Type, declared Rules, f frame) (declaredLayer, error) {
	cache := &s.e.layers
	if s.callConvs != nil {
		cache = &s.layers
	}

	key := layerKey{parent: f.reg, typ: t}
	if l, ok := cache.Load(key); ok {
		return l.(declaredLayer), nil
	}

	convs, err := compileConverters(declared.Converters)
	if err != nil {
		return declaredLayer{}, err
	}
	l := declaredLayer{declared: append(convs, f.declared...)}
	l.reg = newRegistry(s.callConvs, l.declared, s.e.convs)

	actual, _ := cache.LoadOrStore(key, l)
	return actual.(declaredLayer), nil
}

func (s *encodeState) encodeMap(v reflect.Value, f frame) (any, error) {
	fr := fieldRules{fieldFlags: f.flags}
	if f.root {
		fr = mergeRules(f.flags, Rules{}, s.call, s.e.exclude, true)
	}

	childFrame := f.child()
	out := make(map[string]any, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		key, err := s.encodeKey(iter.Key(), childFrame)
		if err != nil {
			return nil, err
		}
		if fr.skip(key) {
			continue
		}
		val := iter.Value()
		if fr.excludeNone && isNone(unwrap(val)) {
			continue
		}

		s.push(key)
		encoded, err := s.encode(val, childFrame)
		s.pop()
		if err != nil {
			return nil, err
		}
		out[key] = encoded
	}
	return out, nil
}

// encodeKey reduces a mapping key to a string. Keys are encoded like any
// other value first, so keys with converters or text marshalers work; the
// result must be a scalar.
func (s *encodeState) encodeKey(k reflect.Value, f frame) (string, error) {
	if k.Kind() == reflect.String && !isTextualType(k.Type()) && f.reg.lookup(k.Type()).conv == nil {
		return k.String(), nil
	}

	encoded, err := s.encode(k, f)
	if err != nil {
		return "", err
	}
	if key, ok := scalarKey(encoded); ok {
		return key, nil
	}
	return "", &UnencodableKeyError{
		Path:    s.currentPath(),
		KeyType: k.Type().String(),
		Got:     fmt.Sprintf("%T", encoded),
	}
}

func scalarKey(v any) (string, bool) {
	if v == nil {
		return "null", true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 32), true
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64), true
	}
	return "", false
}

func unwrap(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	return v
}

func (s *encodeState) encodeSet(v reflect.Value, f frame) (any, error) {
	childFrame := f.child()
	iter := v.MapRange()

	if !s.e.preserveSet {
		out := make([]any, 0, v.Len())
		for iter.Next() {
			encoded, err := s.encode(iter.Key(), childFrame)
			if err != nil {
				return nil, err
			}
			out = append(out, encoded)
		}
		return out, nil
	}

	out := make(Set, v.Len())
	for iter.Next() {
		encoded, err := s.encode(iter.Key(), childFrame)
		if err != nil {
			return nil, err
		}
		if encoded != nil && !reflect.TypeOf(encoded).Comparable() {
			return nil, &UnencodableKeyError{
				Path:    s.currentPath(),
				KeyType: iter.Key().Type().String(),
				Got:     fmt.Sprintf("%T", encoded),
			}
		}
		out[encoded] = struct{}{}
	}
	return out, nil
}

func (s *encodeState) encodeSequence(v reflect.Value, f frame) (any, error) {
	childFrame := f.child()
	out := make([]any, v.Len())
	for i := range out {
		s.push(strconv.Itoa(i))
		encoded, err := s.encode(v.Index(i), childFrame)
		s.pop()
		if err != nil {
			return nil, err
		}
		out[i] = encoded
	}
	return out, nil
}

func (s *encodeState) encodeFallback(v reflect.Value, _ frame) (any, error) {
	if s.e.strict {
		return nil, &UnencodableTypeError{Path: s.currentPath(), Type: v.Type().String()}
	}

	s.e.logger().Debug("encoding unrecognized type as string",
		zap.Stringer("type", v.Type()),
		zap.String("path", pathString(s.path)))

	if v.Type().Implements(stringerType) {
		return v.Interface().(fmt.Stringer).String(), nil
	}
	return fmt.Sprint(v.Interface()), nil
}
