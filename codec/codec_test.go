package codec_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getnfig/nfig/codec"
	"github.com/getnfig/nfig/tier"
	"github.com/getnfig/nfig/values"
)

func TestOverrideKeyRoundTrip(t *testing.T) {
	id := 7
	k := values.NewOverrideKey("Rate", &id, tier.DataCenter(2))
	raw := codec.EncodeOverrideKey(k)
	assert.Equal(t, "2,7;Rate", raw)

	parsed, err := codec.DecodeOverrideKey(raw)
	require.NoError(t, err)
	assert.Equal(t, k, parsed)
}

func TestOverrideKeyRoundTripNoSubApp(t *testing.T) {
	k := values.NewOverrideKey("Rate", nil, tier.DataCenter(0))
	raw := codec.EncodeOverrideKey(k)
	assert.Equal(t, "0,;Rate", raw)

	parsed, err := codec.DecodeOverrideKey(raw)
	require.NoError(t, err)
	assert.Equal(t, k, parsed)
	assert.False(t, parsed.HasSubApp)
}

func TestOverrideValueRoundTrip(t *testing.T) {
	exp := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	raw := codec.EncodeOverrideValue("10", &exp)

	value, gotExp, err := codec.DecodeOverrideValue("Rate", raw)
	require.NoError(t, err)
	assert.Equal(t, "10", value)
	require.NotNil(t, gotExp)
	assert.True(t, exp.Equal(*gotExp))
}

func TestOverrideValueRoundTripNoExpiration(t *testing.T) {
	raw := codec.EncodeOverrideValue("10", nil)
	assert.Equal(t, ";10", raw)

	value, gotExp, err := codec.DecodeOverrideValue("Rate", raw)
	require.NoError(t, err)
	assert.Equal(t, "10", value)
	assert.Nil(t, gotExp)
}

func TestEncodeDecodeOverride(t *testing.T) {
	id := 7
	o := values.OverrideValue{Name: "Rate", StringValue: "10", SubAppID: &id, DataCenter: tier.DataCenter(2)}
	key, value := codec.EncodeOverride(o)

	decoded, err := codec.DecodeOverride(key, value)
	require.NoError(t, err)
	assert.Equal(t, o.Name, decoded.Name)
	assert.Equal(t, o.StringValue, decoded.StringValue)
	assert.Equal(t, *o.SubAppID, *decoded.SubAppID)
	assert.Equal(t, o.DataCenter, decoded.DataCenter)
}

func TestDecodeOverrideKeyMalformed(t *testing.T) {
	_, err := codec.DecodeOverrideKey("no-semicolon-here")
	assert.Error(t, err)

	_, err = codec.DecodeOverrideKey("badcomma;Name")
	assert.Error(t, err)
}

func TestLogEventRoundTrip(t *testing.T) {
	app := "myapp"
	commit := "c1"
	name := "Rate"
	value := "10"
	user := "alice"

	e := codec.LogEvent{
		Type:         codec.EventSetOverride,
		AppName:      &app,
		Commit:       &commit,
		Timestamp:    1234567890,
		SettingName:  &name,
		SettingValue: &value,
		DataCenter:   3,
		User:         &user,
	}

	raw, err := e.Marshal()
	require.NoError(t, err)

	decoded, err := codec.UnmarshalLogEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, e.Type, decoded.Type)
	assert.Equal(t, *e.AppName, *decoded.AppName)
	assert.Equal(t, *e.Commit, *decoded.Commit)
	assert.Equal(t, e.Timestamp, decoded.Timestamp)
	assert.Equal(t, *e.SettingName, *decoded.SettingName)
	assert.Equal(t, *e.SettingValue, *decoded.SettingValue)
	assert.Nil(t, decoded.RestoredCommit)
	assert.Equal(t, e.DataCenter, decoded.DataCenter)
	assert.Equal(t, *e.User, *decoded.User)
}

func TestLogEventRoundTripAllNil(t *testing.T) {
	e := codec.LogEvent{Type: codec.EventRestoreSnapshot, Timestamp: 42, DataCenter: 0}

	raw, err := e.Marshal()
	require.NoError(t, err)

	decoded, err := codec.UnmarshalLogEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, e.Type, decoded.Type)
	assert.Nil(t, decoded.AppName)
	assert.Nil(t, decoded.Commit)
	assert.Nil(t, decoded.SettingName)
	assert.Nil(t, decoded.SettingValue)
	assert.Nil(t, decoded.RestoredCommit)
	assert.Nil(t, decoded.User)
	assert.Equal(t, int64(42), decoded.Timestamp)
}

func TestUnmarshalLogEventRejectsBadVersion(t *testing.T) {
	_, err := codec.UnmarshalLogEvent([]byte{0x02, 0x01})
	assert.Error(t, err)
}
