// Package convert implements the string<->value conversion every setting
// needs: a registry keyed by reflect.Type, so the factory can resolve a
// converter for any declared setting type instead of hard-coding one
// switch statement per caller.
package convert

import (
	"fmt"
	"reflect"
	"strconv"
	"sync"
)

// Converter stringifies and parses values of one Go type for storage as a
// default or override. User schemas may supply their own via the
// nfig-converter struct tag; NFig resolves a built-in one otherwise.
type Converter interface {
	// Stringify renders v (of the converter's declared type) as a string.
	Stringify(v reflect.Value) (string, error)
	// Parse renders s back into a reflect.Value of the converter's declared
	// type.
	Parse(s string) (reflect.Value, error)
	// TypeName is used for SettingMetadata.ConverterTypeName.
	TypeName() string
}

// Registry resolves built-in converters by reflect.Type, and records
// explicit per-type overrides registered at startup (e.g. a custom
// duration or decimal converter).
type Registry struct {
	mu     sync.Mutex
	byType map[reflect.Type]Converter
}

// NewRegistry builds a registry pre-populated with the converters every
// NFig-compatible schema gets for free: bool, every built-in integer width,
// float32/float64, string, and any integer-backed enum type (resolved
// lazily in Resolve, since Go has no closed "enum" kind).
func NewRegistry() *Registry {
	r := &Registry{byType: make(map[reflect.Type]Converter)}
	for _, c := range builtins() {
		r.byType[c.goType] = c
	}
	return r
}

// Register installs a converter for t, overriding any built-in.
func (r *Registry) Register(t reflect.Type, c Converter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byType[t] = c
}

// Resolve returns the converter for t: an explicitly registered one, a
// built-in for t's exact type, or — for any named integer, string, or bool
// type not already registered — a converter bound to t's underlying kind,
// covering integer-backed enum types.
func (r *Registry) Resolve(t reflect.Type) (Converter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byType[t]; ok {
		return c, nil
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		c := newIntEnumConverter(t)
		r.byType[t] = c
		return c, nil
	case reflect.String:
		c := newStringNamedConverter(t)
		r.byType[t] = c
		return c, nil
	case reflect.Bool:
		c := newBoolNamedConverter(t)
		r.byType[t] = c
		return c, nil
	}
	return nil, fmt.Errorf("convert: no converter registered for type %s", t)
}

type builtinConverter struct {
	goType   reflect.Type
	name     string
	stringFn func(reflect.Value) (string, error)
	parseFn  func(string) (reflect.Value, error)
}

func (c *builtinConverter) Stringify(v reflect.Value) (string, error) { return c.stringFn(v) }
func (c *builtinConverter) Parse(s string) (reflect.Value, error)     { return c.parseFn(s) }
func (c *builtinConverter) TypeName() string                          { return c.name }

func builtins() []*builtinConverter {
	return []*builtinConverter{
		boolConverter(),
		intConverter[int8](8),
		intConverter[int16](16),
		intConverter[int32](32),
		intConverter[int64](64),
		intConverter[int](64),
		uintConverter[uint8](8),
		uintConverter[uint16](16),
		uintConverter[uint32](32),
		uintConverter[uint64](64),
		uintConverter[uint](64),
		floatConverter[float32](32),
		floatConverter[float64](64),
		stringConverter(),
	}
}

func boolConverter() *builtinConverter {
	return &builtinConverter{
		goType: reflect.TypeOf(bool(false)),
		name:   "bool",
		stringFn: func(v reflect.Value) (string, error) {
			return strconv.FormatBool(v.Bool()), nil
		},
		parseFn: func(s string) (reflect.Value, error) {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(b), nil
		},
	}
}

func intConverter[T ~int | ~int8 | ~int16 | ~int32 | ~int64](bits int) *builtinConverter {
	var zero T
	t := reflect.TypeOf(zero)
	return &builtinConverter{
		goType: t,
		name:   t.Kind().String(),
		stringFn: func(v reflect.Value) (string, error) {
			return strconv.FormatInt(v.Int(), 10), nil
		},
		parseFn: func(s string) (reflect.Value, error) {
			n, err := strconv.ParseInt(s, 10, bits)
			if err != nil {
				return reflect.Value{}, err
			}
			rv := reflect.New(t).Elem()
			rv.SetInt(n)
			return rv, nil
		},
	}
}

func uintConverter[T ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64](bits int) *builtinConverter {
	var zero T
	t := reflect.TypeOf(zero)
	return &builtinConverter{
		goType: t,
		name:   t.Kind().String(),
		stringFn: func(v reflect.Value) (string, error) {
			return strconv.FormatUint(v.Uint(), 10), nil
		},
		parseFn: func(s string) (reflect.Value, error) {
			n, err := strconv.ParseUint(s, 10, bits)
			if err != nil {
				return reflect.Value{}, err
			}
			rv := reflect.New(t).Elem()
			rv.SetUint(n)
			return rv, nil
		},
	}
}

func floatConverter[T ~float32 | ~float64](bits int) *builtinConverter {
	var zero T
	t := reflect.TypeOf(zero)
	return &builtinConverter{
		goType: t,
		name:   t.Kind().String(),
		stringFn: func(v reflect.Value) (string, error) {
			return strconv.FormatFloat(v.Float(), 'g', -1, bits), nil
		},
		parseFn: func(s string) (reflect.Value, error) {
			f, err := strconv.ParseFloat(s, bits)
			if err != nil {
				return reflect.Value{}, err
			}
			rv := reflect.New(t).Elem()
			rv.SetFloat(f)
			return rv, nil
		},
	}
}

func stringConverter() *builtinConverter {
	return &builtinConverter{
		goType: reflect.TypeOf(""),
		name:   "string",
		stringFn: func(v reflect.Value) (string, error) {
			return v.String(), nil
		},
		parseFn: func(s string) (reflect.Value, error) {
			return reflect.ValueOf(s), nil
		},
	}
}

// newIntEnumConverter builds a converter for a named integer type (the Go
// stand-in for "enum backed by an integer"): it stringifies/parses the
// underlying integer value directly.
func newIntEnumConverter(t reflect.Type) Converter {
	return &builtinConverter{
		goType: t,
		name:   t.String(),
		stringFn: func(v reflect.Value) (string, error) {
			if isSignedKind(t.Kind()) {
				return strconv.FormatInt(v.Int(), 10), nil
			}
			return strconv.FormatUint(v.Uint(), 10), nil
		},
		parseFn: func(s string) (reflect.Value, error) {
			rv := reflect.New(t).Elem()
			if isSignedKind(t.Kind()) {
				n, err := strconv.ParseInt(s, 10, 64)
				if err != nil {
					return reflect.Value{}, err
				}
				rv.SetInt(n)
			} else {
				n, err := strconv.ParseUint(s, 10, 64)
				if err != nil {
					return reflect.Value{}, err
				}
				rv.SetUint(n)
			}
			return rv, nil
		},
	}
}

// newStringNamedConverter handles named string types (e.g. a Tier-like
// enum declared as `type Environment string`).
func newStringNamedConverter(t reflect.Type) Converter {
	return &builtinConverter{
		goType: t,
		name:   t.String(),
		stringFn: func(v reflect.Value) (string, error) { return v.String(), nil },
		parseFn: func(s string) (reflect.Value, error) {
			rv := reflect.New(t).Elem()
			rv.SetString(s)
			return rv, nil
		},
	}
}

func newBoolNamedConverter(t reflect.Type) Converter {
	return &builtinConverter{
		goType: t,
		name:   t.String(),
		stringFn: func(v reflect.Value) (string, error) { return strconv.FormatBool(v.Bool()), nil },
		parseFn: func(s string) (reflect.Value, error) {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return reflect.Value{}, err
			}
			rv := reflect.New(t).Elem()
			rv.SetBool(b)
			return rv, nil
		},
	}
}

func isSignedKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	default:
		return false
	}
}
