// Package schema walks a Go struct describing a settings tree and turns it
// into the flat list of Setting descriptors the factory compiles against.
//
// Settings are declared with struct tags plus one escape-hatch interface
// (DefaultsProvider) for the one shape a single tag string can't hold: an
// arbitrary number of per-(subApp, tier, dataCenter) default alternates.
//
// Supported tags on a leaf field:
//
//	nfig:"Name"             required; the setting's name, composed under
//	                        any enclosing groups with "." separators
//	nfig-default:"7"        the root default's string form (required unless
//	                        the field is also tagged nfig-encrypted)
//	nfig-encrypted          marks the setting as encrypted; its root default
//	                        is the zero value of the declared type
//	nfig-restart            change requires a process restart
//	nfig-noinline           forbid inlining the active default into the
//	                        compiled initializer (the @DoNotInlineValues
//	                        equivalent)
//	nfig-converter:"name"   resolve the converter by name from the
//	                        Options.Converters map passed to Compile, instead
//	                        of the built-in converter for the field's Go type
//	nfig-description:"..."  human-readable description
//
// A nested struct field tagged `nfig:"group"` is a group: its leaves'
// names are prefixed with the group's Go field name and a ".". A
// nfig-converter tag on the group field itself is inherited by any
// descendant leaf that declares none of its own, one step below an
// explicit field-level tag and above the registry's built-in converter.
package schema

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/getnfig/nfig/convert"
	"github.com/getnfig/nfig/nfigerr"
	"github.com/getnfig/nfig/tier"
)

// Setting describes one leaf of a compiled schema.
type Setting struct {
	Name                  string
	GoType                reflect.Type
	FieldPath             []int
	Encrypted             bool
	ChangeRequiresRestart bool
	AllowInline           bool
	Description           string
	ConverterName         string
	Converter             convert.Converter
	RootDefault           string // stringified; for encrypted settings, ciphertext or empty meaning "zero value"
}

// DefaultSpec is one declared (value, subApp?, tier, dataCenter,
// allowsOverrides) alternate, supplied either via the root nfig-default tag
// (which always produces the (none, any, any) root default) or via
// DefaultsProvider.ExtraDefaults for every other scope.
type DefaultSpec struct {
	Name            string
	Value           string
	SubAppID        *int
	Tier            tier.Tier
	DataCenter      tier.DataCenter
	AllowsOverrides bool
}

// DefaultsProvider is the escape hatch a schema type implements to declare
// per-(subApp, tier, dataCenter) default alternates beyond the single root
// default a struct tag can express.
type DefaultsProvider interface {
	ExtraDefaults() []DefaultSpec
}

// Schema is a compiled schema: every leaf setting plus a name index.
type Schema struct {
	RootType      reflect.Type
	Settings      []Setting
	ExtraDefaults []DefaultSpec
	byName        map[string]int
}

// ByName returns the Setting for name and whether it exists.
func (s *Schema) ByName(name string) (Setting, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Setting{}, false
	}
	return s.Settings[i], true
}

// Options configures Compile.
type Options struct {
	// Converters resolves names used by nfig-converter tags to a concrete
	// Converter.
	Converters map[string]convert.Converter
	// Registry supplies built-in converters for fields with no explicit
	// nfig-converter tag. Defaults to convert.NewRegistry() if nil.
	Registry *convert.Registry
}

// Compile walks schemaType (which must be a struct type, typically obtained
// via reflect.TypeOf((*MySchema)(nil)).Elem()) and produces a Schema.
// Schema errors (duplicate names, missing converters, illegal encrypted
// defaults) are returned, not panicked — the factory treats them as fatal
// at construction time.
func Compile(schemaType reflect.Type, opts Options) (*Schema, error) {
	if schemaType.Kind() == reflect.Ptr {
		schemaType = schemaType.Elem()
	}
	if schemaType.Kind() != reflect.Struct {
		return nil, &nfigerr.SchemaError{Setting: schemaType.String(), Reason: "schema root must be a struct"}
	}
	if opts.Registry == nil {
		opts.Registry = convert.NewRegistry()
	}

	w := &walker{opts: opts, byName: make(map[string]int)}
	if err := w.walk(schemaType, nil, "", ""); err != nil {
		return nil, err
	}

	extra, err := extraDefaults(schemaType, w.byName)
	if err != nil {
		return nil, err
	}

	return &Schema{RootType: schemaType, Settings: w.settings, ExtraDefaults: extra, byName: w.byName}, nil
}

// extraDefaults instantiates a zero value of schemaType and, if it (or its
// pointer) implements DefaultsProvider, collects the per-(subApp, tier,
// dataCenter) alternates the struct-tag grammar can't express.
func extraDefaults(schemaType reflect.Type, byName map[string]int) ([]DefaultSpec, error) {
	zero := reflect.New(schemaType)
	provider, ok := zero.Interface().(DefaultsProvider)
	if !ok {
		return nil, nil
	}
	specs := provider.ExtraDefaults()
	for _, spec := range specs {
		if _, known := byName[spec.Name]; !known {
			return nil, &nfigerr.SchemaError{Setting: spec.Name, Reason: "ExtraDefaults names a setting with no matching nfig-tagged field"}
		}
	}
	return specs, nil
}

type walker struct {
	opts     Options
	settings []Setting
	byName   map[string]int
}

// walk recurses through t's fields, threading ancestorConverter — the
// nearest enclosing nfig:"group" field's own nfig-converter tag, if any —
// down to leaf() so it can fall back to a group-declared converter before
// the registry. Resolution order: explicit field tag, then nearest
// ancestor group tag, then the built-in registry.
func (w *walker) walk(t reflect.Type, path []int, prefix, ancestorConverter string) error {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag, hasTag := field.Tag.Lookup("nfig")
		if !hasTag {
			continue
		}

		fieldPath := append(append([]int(nil), path...), i)

		if tag == "group" {
			ft := field.Type
			if ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() != reflect.Struct {
				return &nfigerr.SchemaError{Setting: field.Name, Reason: "nfig:\"group\" field must be a struct"}
			}
			groupPrefix := joinName(prefix, field.Name)
			groupConverter := ancestorConverter
			if named := field.Tag.Get("nfig-converter"); named != "" {
				groupConverter = named
			}
			if err := w.walk(ft, fieldPath, groupPrefix, groupConverter); err != nil {
				return err
			}
			continue
		}

		leafName := tag
		if leafName == "" {
			leafName = field.Name
		}
		name := joinName(prefix, leafName)

		if _, dup := w.byName[name]; dup {
			return &nfigerr.SchemaError{Setting: name, Reason: "duplicate setting name"}
		}

		setting, err := w.leaf(field, fieldPath, name, ancestorConverter)
		if err != nil {
			return err
		}

		w.byName[name] = len(w.settings)
		w.settings = append(w.settings, setting)
	}
	return nil
}

func (w *walker) leaf(field reflect.StructField, fieldPath []int, name, ancestorConverter string) (Setting, error) {
	encrypted := hasBoolTag(field, "nfig-encrypted")
	restart := hasBoolTag(field, "nfig-restart")
	noInline := hasBoolTag(field, "nfig-noinline")
	converterName := field.Tag.Get("nfig-converter")
	description := field.Tag.Get("nfig-description")
	rawDefault, hasDefault := field.Tag.Lookup("nfig-default")

	if !hasDefault && !encrypted {
		return Setting{}, &nfigerr.SchemaError{Setting: name, Reason: "missing nfig-default tag (required unless nfig-encrypted)"}
	}
	if hasDefault && encrypted {
		return Setting{}, &nfigerr.SchemaError{Setting: name, Reason: "encrypted settings may not declare a plaintext nfig-default; additional ciphertext defaults must use DefaultsProvider"}
	}

	// Explicit field tag, then the nearest enclosing group's tag, then the
	// type's built-in converter.
	resolvedName := converterName
	if resolvedName == "" {
		resolvedName = ancestorConverter
	}

	var conv convert.Converter
	var err error
	if resolvedName != "" {
		conv, err = w.resolveNamedConverter(resolvedName)
	} else {
		conv, err = w.opts.Registry.Resolve(field.Type)
	}
	if err != nil {
		return Setting{}, &nfigerr.SchemaError{Setting: name, Reason: fmt.Sprintf("no converter available: %v", err)}
	}

	rootDefault := rawDefault
	if encrypted {
		// Encrypted settings always root-default to the zero value of the
		// declared type; the empty stored string is the marker for it, so
		// the factory never tries to decrypt a value that was never
		// ciphertext.
		rootDefault = ""
	} else if _, err := conv.Parse(rawDefault); err != nil {
		return Setting{}, &nfigerr.InvalidDefaultValueError{Name: name, Value: rawDefault, Err: err}
	}

	return Setting{
		Name:                  name,
		GoType:                field.Type,
		FieldPath:             fieldPath,
		Encrypted:             encrypted,
		ChangeRequiresRestart: restart,
		AllowInline:           !noInline && isInlinable(field.Type),
		Description:           description,
		ConverterName:         resolvedName,
		Converter:             conv,
		RootDefault:           rootDefault,
	}, nil
}

func (w *walker) resolveNamedConverter(name string) (convert.Converter, error) {
	if w.opts.Converters != nil {
		if c, ok := w.opts.Converters[name]; ok {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no converter registered under name %q", name)
}

func isInlinable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func hasBoolTag(field reflect.StructField, key string) bool {
	v, ok := field.Tag.Lookup(key)
	return ok && v != "false"
}

func joinName(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return strings.Join([]string{prefix, segment}, ".")
}
