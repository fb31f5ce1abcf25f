package jsonable

import (
	"fmt"
	"strings"
)

// ConfigurationError is the error returned by [New] when a converter cannot
// be registered, e.g. because its function does not take exactly one
// argument of the registered type.
type ConfigurationError struct {
	// Index of the offending converter in registration order.
	Index  int
	Type   string
	Detail string
}

func (e *ConfigurationError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("jsonable: converter %d: %s", e.Index, e.Detail)
	}
	return fmt.Sprintf("jsonable: converter %d for %s: %s", e.Index, e.Type, e.Detail)
}

// UnencodableKeyError is the error returned when a mapping key does not reduce
// to a plain scalar, or when a set element is not comparable.
type UnencodableKeyError struct {
	Path    []string
	KeyType string
	Got     string
}

func (e *UnencodableKeyError) Error() string {
	return fmt.Sprintf("jsonable: key of type %s at %s encodes to %s, want a scalar",
		e.KeyType, pathString(e.Path), e.Got)
}

// UnencodableTypeError is the error returned in strict mode when a value
// matches no encoding rule.
type UnencodableTypeError struct {
	Path []string
	Type string
}

func (e *UnencodableTypeError) Error() string {
	return fmt.Sprintf("jsonable: no encoding rule for %s at %s", e.Type, pathString(e.Path))
}

// RecursionLimitError is the error returned when encoding descends deeper than
// the configured maximum depth. It usually means a cyclic value or a converter
// that returns its own input.
type RecursionLimitError struct {
	Path  []string
	Type  string
	Limit int
}

func (e *RecursionLimitError) Error() string {
	return fmt.Sprintf("jsonable: depth limit %d exceeded at %s (type %s)",
		e.Limit, pathString(e.Path), e.Type)
}

func pathString(path []string) string {
	if len(path) == 0 {
		return "<root>"
	}
	return strings.Join(path, ".")
}
