package values_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getnfig/nfig/values"
)

func TestBySettingSetAndGet(t *testing.T) {
	b := values.NewBySetting[int]()
	b.Set("Zebra", 1)
	b.Set("Alpha", 2)
	b.Set("Alpha", 3) // replace, should not duplicate the key

	v, ok := b.Get("Alpha")
	require.True(t, ok)
	assert.Equal(t, 3, v)

	assert.Equal(t, []string{"Alpha", "Zebra"}, b.Keys())
	assert.Equal(t, 2, b.Len())

	_, ok = b.Get("Missing")
	assert.False(t, ok)
}

func TestBySettingMarshalJSONOrdersKeysAlphabetically(t *testing.T) {
	b := values.NewBySetting[string]()
	b.Set("Zebra", "z")
	b.Set("Alpha", "a")
	b.Set("Mango", "m")

	out, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, `{"Alpha":"a","Mango":"m","Zebra":"z"}`, string(out))
}

func TestBySettingUnmarshalJSONPreservesDocumentOrder(t *testing.T) {
	b := values.NewBySetting[int]()
	require.NoError(t, json.Unmarshal([]byte(`{"Zebra":1,"Alpha":2,"Mango":3}`), b))

	assert.Equal(t, []string{"Zebra", "Alpha", "Mango"}, b.Keys())
	v, ok := b.Get("Mango")
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestBySettingUnmarshalJSONRejectsNonObject(t *testing.T) {
	b := values.NewBySetting[int]()
	err := json.Unmarshal([]byte(`[1,2,3]`), b)
	assert.Error(t, err)
}

func TestListBySettingHoldsSlices(t *testing.T) {
	lb := values.NewBySetting[[]values.DefaultValue]()
	lb.Set("Rate", []values.DefaultValue{{Name: "Rate", StringValue: "1"}})

	v, ok := lb.Get("Rate")
	require.True(t, ok)
	require.Len(t, v, 1)
	assert.Equal(t, "1", v[0].StringValue)
}
