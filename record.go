package jsonable

import (
	"reflect"
	"strings"
	"sync"
)

// Field is one field of a structured record.
type Field struct {
	Name  string
	Alias string
	Value any

	// Unset reports that the field was never explicitly set, so
	// [ExcludeUnset] may omit it.
	Unset bool
}

// Record is implemented by types that enumerate their own fields, in
// declaration order. Types that don't implement it are introspected with
// reflection when they are structs.
type Record interface {
	JSONFields() []Field
}

var (
	recordType  = reflect.TypeFor[Record]()
	ruleSetType = reflect.TypeFor[RuleSet]()
)

// structField describes an exported struct field, including fields promoted
// from embedded structs.
type structField struct {
	name  string
	alias string
	index []int
	depth int
}

var structFieldCache sync.Map // reflect.Type -> []structField

// structFields returns the encodable fields of struct type t in declaration
// order.
//
// Field names follow the json struct tag when present; "-" skips the field.
// The alias tag supplies an alias. Exported embedded structs without a tag
// name are flattened into the outer struct, and a shallower field shadows a
// deeper one with the same name.
func structFields(t reflect.Type) []structField {
	if cached, ok := structFieldCache.Load(t); ok {
		return cached.([]structField)
	}

	var all []structField
	collectFields(t, nil, 0, map[reflect.Type]bool{t: true}, &all)

	shallowest := map[string]int{}
	for _, f := range all {
		if d, ok := shallowest[f.name]; !ok || f.depth < d {
			shallowest[f.name] = f.depth
		}
	}
	fields := make([]structField, 0, len(all))
	seen := map[string]bool{}
	for _, f := range all {
		if f.depth != shallowest[f.name] || seen[f.name] {
			continue
		}
		seen[f.name] = true
		fields = append(fields, f)
	}

	structFieldCache.Store(t, fields)
	return fields
}

func collectFields(t reflect.Type, prefix []int, depth int, visited map[reflect.Type]bool, out *[]structField) {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, skip := tagName(sf.Tag.Get("json"))
		if skip {
			continue
		}
		index := append(append([]int(nil), prefix...), i)

		if sf.Anonymous && name == "" {
			ft := sf.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct && !visited[ft] && !isBuiltinStruct(ft) {
				visited[ft] = true
				collectFields(ft, index, depth+1, visited, out)
				delete(visited, ft)
				continue
			}
		}

		if name == "" {
			name = sf.Name
		}
		*out = append(*out, structField{
			name:  name,
			alias: sf.Tag.Get("alias"),
			index: index,
			depth: depth,
		})
	}
}

// tagName returns the name portion of a json struct tag.
func tagName(tag string) (name string, skip bool) {
	if tag == "-" {
		return "", true
	}
	name, _, _ = strings.Cut(tag, ",")
	return name, false
}

// isBuiltinStruct reports struct types that have a dedicated encoding rule
// and must not be flattened when embedded.
func isBuiltinStruct(t reflect.Type) bool {
	return t == timeType
}

// recordFields returns the fields of a record value, preferring the Record
// interface over reflection.
func recordFields(v reflect.Value) []Field {
	if r, ok := asInterface[Record](v, recordType); ok {
		return r.JSONFields()
	}

	sfs := structFields(v.Type())
	fields := make([]Field, 0, len(sfs))
	for _, sf := range sfs {
		fv, err := v.FieldByIndexErr(sf.index)
		if err != nil {
			// promoted through a nil embedded pointer
			continue
		}
		fields = append(fields, Field{
			Name:  sf.name,
			Alias: sf.alias,
			Value: fv.Interface(),
		})
	}
	return fields
}

func recordRules(v reflect.Value) Rules {
	if rs, ok := asInterface[RuleSet](v, ruleSetType); ok {
		return rs.JSONRules()
	}
	return Rules{}
}

func isRecord(v reflect.Value) bool {
	if v.Kind() == reflect.Struct {
		return true
	}
	_, ok := asInterface[Record](v, recordType)
	return ok
}

// asInterface returns v as an I, also trying its address so that pointer
// receivers are found for addressable values.
func asInterface[I any](v reflect.Value, it reflect.Type) (I, bool) {
	var zero I
	if v.Type().Implements(it) {
		i, ok := v.Interface().(I)
		return i, ok
	}
	if v.CanAddr() && v.Addr().Type().Implements(it) {
		i, ok := v.Addr().Interface().(I)
		return i, ok
	}
	return zero, false
}
