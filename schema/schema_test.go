package schema_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getnfig/nfig/convert"
	"github.com/getnfig/nfig/nfigerr"
	"github.com/getnfig/nfig/schema"
)

type dbGroup struct {
	Host    string `nfig:"Host" nfig-default:"localhost"`
	Timeout int32  `nfig:"Timeout" nfig-default:"30" nfig-restart:"true"`
}

type testSchema struct {
	Enabled  bool    `nfig:"Enabled" nfig-default:"true"`
	APIKey   string  `nfig:"APIKey" nfig-encrypted:"true"`
	Ignored  string  // no nfig tag: not a setting
	Database dbGroup `nfig:"group"`
}

func TestCompileWalksLeavesAndGroups(t *testing.T) {
	s, err := schema.Compile(reflect.TypeOf(testSchema{}), schema.Options{})
	require.NoError(t, err)
	require.Len(t, s.Settings, 4)

	enabled, ok := s.ByName("Enabled")
	require.True(t, ok)
	assert.Equal(t, "true", enabled.RootDefault)
	assert.False(t, enabled.Encrypted)

	apiKey, ok := s.ByName("APIKey")
	require.True(t, ok)
	assert.True(t, apiKey.Encrypted)
	assert.Equal(t, "", apiKey.RootDefault) // zero value of string

	host, ok := s.ByName("Database.Host")
	require.True(t, ok)
	assert.Equal(t, "localhost", host.RootDefault)

	timeout, ok := s.ByName("Database.Timeout")
	require.True(t, ok)
	assert.True(t, timeout.ChangeRequiresRestart)

	_, ok = s.ByName("Ignored")
	assert.False(t, ok)
}

type missingDefault struct {
	Foo int `nfig:"Foo"`
}

func TestCompileRequiresDefaultUnlessEncrypted(t *testing.T) {
	_, err := schema.Compile(reflect.TypeOf(missingDefault{}), schema.Options{})
	require.Error(t, err)
	var schemaErr *nfigerr.SchemaError
	assert.True(t, errors.As(err, &schemaErr))
}

type encryptedWithDefault struct {
	Foo string `nfig:"Foo" nfig-encrypted:"true" nfig-default:"oops"`
}

func TestCompileRejectsPlaintextDefaultOnEncrypted(t *testing.T) {
	_, err := schema.Compile(reflect.TypeOf(encryptedWithDefault{}), schema.Options{})
	assert.Error(t, err)
}

type duplicateNames struct {
	A int `nfig:"Same" nfig-default:"1"`
	B int `nfig:"Same" nfig-default:"2"`
}

func TestCompileRejectsDuplicateNames(t *testing.T) {
	_, err := schema.Compile(reflect.TypeOf(duplicateNames{}), schema.Options{})
	assert.Error(t, err)
}

type badDefault struct {
	N int `nfig:"N" nfig-default:"not-a-number"`
}

func TestCompileValidatesDefaultParses(t *testing.T) {
	_, err := schema.Compile(reflect.TypeOf(badDefault{}), schema.Options{})
	require.Error(t, err)
	var invalidErr *nfigerr.InvalidDefaultValueError
	assert.True(t, errors.As(err, &invalidErr))
}

type namedConverter struct {
	Mode int `nfig:"Mode" nfig-default:"1" nfig-converter:"custom-mode"`
}

type stubConverter struct{}

func (stubConverter) Stringify(v reflect.Value) (string, error) { return "stub", nil }
func (stubConverter) Parse(string) (reflect.Value, error)       { return reflect.ValueOf(1), nil }
func (stubConverter) TypeName() string                          { return "stub" }

func TestCompileResolvesNamedConverter(t *testing.T) {
	s, err := schema.Compile(reflect.TypeOf(namedConverter{}), schema.Options{
		Converters: map[string]convert.Converter{"custom-mode": stubConverter{}},
	})
	require.NoError(t, err)
	setting, ok := s.ByName("Mode")
	require.True(t, ok)
	assert.Equal(t, "custom-mode", setting.ConverterName)
}

func TestCompileMissingNamedConverterFails(t *testing.T) {
	_, err := schema.Compile(reflect.TypeOf(namedConverter{}), schema.Options{})
	assert.Error(t, err)
}

type convertedGroup struct {
	Mode     int `nfig:"Mode" nfig-default:"1"`
	Override int `nfig:"Override" nfig-default:"2" nfig-converter:"other-mode"`
}

type groupConverterSchema struct {
	Group convertedGroup `nfig:"group" nfig-converter:"custom-mode"`
}

func TestCompileInheritsConverterFromAncestorGroup(t *testing.T) {
	s, err := schema.Compile(reflect.TypeOf(groupConverterSchema{}), schema.Options{
		Converters: map[string]convert.Converter{
			"custom-mode": stubConverter{},
			"other-mode":  stubConverter{},
		},
	})
	require.NoError(t, err)

	mode, ok := s.ByName("Group.Mode")
	require.True(t, ok)
	assert.Equal(t, "custom-mode", mode.ConverterName, "leaf with no tag of its own should inherit the group's converter")

	override, ok := s.ByName("Group.Override")
	require.True(t, ok)
	assert.Equal(t, "other-mode", override.ConverterName, "a leaf's own nfig-converter tag must win over the ancestor group's")
}

func TestCompileMissingInheritedConverterFails(t *testing.T) {
	_, err := schema.Compile(reflect.TypeOf(groupConverterSchema{}), schema.Options{
		Converters: map[string]convert.Converter{"other-mode": stubConverter{}},
	})
	assert.Error(t, err)
}

type noInline struct {
	Big string `nfig:"Big" nfig-default:"x" nfig-noinline:"true"`
}

func TestCompileHonorsNoInline(t *testing.T) {
	s, err := schema.Compile(reflect.TypeOf(noInline{}), schema.Options{})
	require.NoError(t, err)
	setting, ok := s.ByName("Big")
	require.True(t, ok)
	assert.False(t, setting.AllowInline)
}
