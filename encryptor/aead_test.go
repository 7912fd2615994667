package encryptor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getnfig/nfig/encryptor"
)

func TestAEADRoundTrip(t *testing.T) {
	enc, err := encryptor.NewAEAD("correct horse battery staple", "nfig-test-salt")
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt("hello world")
	require.NoError(t, err)
	assert.NotEqual(t, "hello world", ciphertext)

	plaintext, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "hello world", plaintext)
}

func TestAEADEmptyInput(t *testing.T) {
	enc, err := encryptor.NewAEAD("passphrase", "salt")
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, ciphertext)

	plaintext, err := enc.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, plaintext)
}

func TestAEADSatisfiesRoundTripSelfTest(t *testing.T) {
	enc, err := encryptor.NewAEAD("passphrase", "salt")
	require.NoError(t, err)
	assert.NoError(t, encryptor.RoundTrip(enc, "probe-value-123"))
}

func TestAEADRejectsEmptyPassphrase(t *testing.T) {
	_, err := encryptor.NewAEAD("", "salt")
	assert.Error(t, err)
}
