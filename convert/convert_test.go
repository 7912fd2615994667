package convert_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getnfig/nfig/convert"
)

func TestBuiltinRoundTrip(t *testing.T) {
	r := convert.NewRegistry()

	cases := []any{
		true, int8(1), int16(2), int32(3), int64(4), int(5),
		uint8(1), uint16(2), uint32(3), uint64(4), uint(5),
		float32(1.5), float64(2.5), "hello",
	}

	for _, v := range cases {
		rv := reflect.ValueOf(v)
		c, err := r.Resolve(rv.Type())
		require.NoError(t, err, "resolve %T", v)

		s, err := c.Stringify(rv)
		require.NoError(t, err)

		parsed, err := c.Parse(s)
		require.NoError(t, err)
		assert.Equal(t, rv.Interface(), parsed.Interface())
	}
}

type myEnum int32

func TestIntEnumConverter(t *testing.T) {
	r := convert.NewRegistry()
	c, err := r.Resolve(reflect.TypeOf(myEnum(0)))
	require.NoError(t, err)

	s, err := c.Stringify(reflect.ValueOf(myEnum(3)))
	require.NoError(t, err)
	assert.Equal(t, "3", s)

	parsed, err := c.Parse("3")
	require.NoError(t, err)
	assert.Equal(t, myEnum(3), parsed.Interface())
}

func TestParseErrors(t *testing.T) {
	r := convert.NewRegistry()
	c, err := r.Resolve(reflect.TypeOf(int(0)))
	require.NoError(t, err)

	_, err = c.Parse("not-a-number")
	assert.Error(t, err)
}
