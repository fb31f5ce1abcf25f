package jsonable

import (
	"fmt"
	"reflect"
	"sync"
)

// Converter registers a conversion function for values of Type.
//
// Func must be a function taking one argument that values of Type are
// assignable to, and returning either a single value or a value and an
// error. Whatever it returns is encoded in turn, so a converter may return a
// partially converted value. Output of the converter's own input type is
// encoded with converters for that type skipped, so a converter that returns
// its input unchanged is applied once. Converters that return each other's
// types recurse until the encoder's depth limit is reached.
//
// Converters match values of exactly Type first. Failing that, the nearest
// "ancestor" wins:
//
//   - the pointed-to type, for pointer values
//   - interface types the value implements
//   - types embedded in a struct value, the shallowest first
//
// Ties go to the converter registered first.
type Converter struct {
	Type reflect.Type
	Func any

	call func(reflect.Value) (any, error)
}

// ConvertFunc returns a [Converter] for values of type T.
func ConvertFunc[T any](fn func(T) (any, error)) Converter {
	c := Converter{Type: reflect.TypeFor[T](), Func: fn}
	if fn != nil {
		c.call = func(v reflect.Value) (any, error) {
			return fn(v.Interface().(T))
		}
	}
	return c
}

// ConvertSimple returns a [Converter] for values of type T whose function
// cannot fail.
func ConvertSimple[T any](fn func(T) any) Converter {
	c := Converter{Type: reflect.TypeFor[T](), Func: fn}
	if fn != nil {
		c.call = func(v reflect.Value) (any, error) {
			return fn(v.Interface().(T)), nil
		}
	}
	return c
}

// ConverterOf returns a [Converter] for values of type t. fn is checked when
// the converter is registered.
func ConverterOf(t reflect.Type, fn any) Converter {
	return Converter{Type: t, Func: fn}
}

var errorType = reflect.TypeFor[error]()

type compiledConverter struct {
	typ   reflect.Type
	call  func(reflect.Value) (any, error)
	order int
}

func compileConverters(convs []Converter) ([]compiledConverter, error) {
	out := make([]compiledConverter, 0, len(convs))
	for i, c := range convs {
		cc, err := compileConverter(i, c)
		if err != nil {
			return nil, err
		}
		out = append(out, cc)
	}
	return out, nil
}

func compileConverter(i int, c Converter) (compiledConverter, error) {
	if c.Type == nil {
		return compiledConverter{}, &ConfigurationError{Index: i, Detail: "type is nil"}
	}
	cerr := func(format string, args ...any) error {
		return &ConfigurationError{Index: i, Type: c.Type.String(), Detail: fmt.Sprintf(format, args...)}
	}

	if c.Func == nil {
		return compiledConverter{}, cerr("function is nil")
	}
	fv := reflect.ValueOf(c.Func)
	if fv.Kind() != reflect.Func {
		return compiledConverter{}, cerr("%T is not a function", c.Func)
	}
	if fv.IsNil() {
		return compiledConverter{}, cerr("function is nil")
	}
	if c.call != nil {
		return compiledConverter{typ: c.Type, call: c.call}, nil
	}

	ft := fv.Type()
	if ft.NumIn() != 1 || ft.IsVariadic() {
		return compiledConverter{}, cerr("function must take exactly one argument, %s takes %d", ft, ft.NumIn())
	}
	if !c.Type.AssignableTo(ft.In(0)) {
		return compiledConverter{}, cerr("%s is not assignable to argument of %s", c.Type, ft)
	}
	switch {
	case ft.NumOut() == 1:
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
	default:
		return compiledConverter{}, cerr("function must return (any) or (any, error), %s does not", ft)
	}

	call := func(v reflect.Value) (any, error) {
		out := fv.Call([]reflect.Value{v})
		var err error
		if len(out) == 2 && !out[1].IsNil() {
			err = out[1].Interface().(error)
		}
		return out[0].Interface(), err
	}
	return compiledConverter{typ: c.Type, call: call}, nil
}

// registry resolves converters for concrete types. Layers are given highest
// precedence first; resolutions are memoised per concrete type.
type registry struct {
	convs []compiledConverter
	exact map[reflect.Type]int
	memo  sync.Map // reflect.Type -> resolution
}

func newRegistry(layers ...[]compiledConverter) *registry {
	r := &registry{exact: map[reflect.Type]int{}}
	for _, layer := range layers {
		for _, c := range layer {
			c.order = len(r.convs)
			r.convs = append(r.convs, c)
			if _, ok := r.exact[c.typ]; !ok {
				r.exact[c.typ] = c.order
			}
		}
	}
	return r
}

// resolution describes how a converter applies to a concrete type.
type resolution struct {
	conv     *compiledConverter
	distance int
	deref    bool  // apply to the pointed-to value
	index    []int // apply to the embedded field at this index path
}

func (r *registry) lookup(t reflect.Type) resolution {
	if r == nil || len(r.convs) == 0 {
		return resolution{}
	}
	if cached, ok := r.memo.Load(t); ok {
		return cached.(resolution)
	}
	res := r.resolve(t)
	r.memo.Store(t, res)
	return res
}

func (r *registry) resolve(t reflect.Type) resolution {
	if i, ok := r.exact[t]; ok {
		return resolution{conv: &r.convs[i]}
	}

	var best resolution
	consider := func(c resolution) {
		if best.conv == nil ||
			c.distance < best.distance ||
			(c.distance == best.distance && c.conv.order < best.conv.order) {
			best = c
		}
	}

	for i := range r.convs {
		c := &r.convs[i]
		switch {
		case c.typ.Kind() == reflect.Interface && t.Implements(c.typ):
			consider(resolution{conv: c, distance: 1})
		case t.Kind() == reflect.Pointer && t.Elem() == c.typ:
			consider(resolution{conv: c, distance: 1, deref: true})
		}
	}

	st, base := t, 1
	if st.Kind() == reflect.Pointer {
		st, base = st.Elem(), 2
	}
	if st.Kind() == reflect.Struct {
		visited := map[reflect.Type]bool{st: true}
		walkEmbedded(st, nil, base, visited, func(ft reflect.Type, index []int, depth int) {
			for i := range r.convs {
				c := &r.convs[i]
				if ft == c.typ || (ft.Kind() == reflect.Pointer && ft.Elem() == c.typ) {
					consider(resolution{conv: c, distance: depth, index: index})
				}
			}
		})
	}
	return best
}

func walkEmbedded(st reflect.Type, prefix []int, depth int, visited map[reflect.Type]bool, visit func(reflect.Type, []int, int)) {
	for i := 0; i < st.NumField(); i++ {
		sf := st.Field(i)
		if !sf.Anonymous || !sf.IsExported() {
			continue
		}
		index := append(append([]int(nil), prefix...), i)
		visit(sf.Type, index, depth)

		ft := sf.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct && !visited[ft] {
			visited[ft] = true
			walkEmbedded(ft, index, depth+1, visited, visit)
		}
	}
}

// target returns the value the converter should receive, or false when the
// resolution does not apply to this particular value (e.g. a nil embedded
// pointer).
func (res resolution) target(v reflect.Value) (reflect.Value, bool) {
	switch {
	case res.deref:
		return v.Elem(), true
	case res.index != nil:
		if v.Kind() == reflect.Pointer {
			v = v.Elem()
		}
		f, err := v.FieldByIndexErr(res.index)
		if err != nil {
			return reflect.Value{}, false
		}
		if f.Kind() == reflect.Pointer {
			if f.IsNil() {
				return reflect.Value{}, false
			}
			if f.Type() != res.conv.typ {
				f = f.Elem()
			}
		}
		return f, true
	default:
		return v, true
	}
}
