package nfigerr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/getnfig/nfig/nfigerr"
)

func TestSchemaErrorMessageAndIs(t *testing.T) {
	err := &nfigerr.SchemaError{Setting: "Rate", Reason: "no settable field"}
	assert.Contains(t, err.Error(), "Rate")
	assert.Contains(t, err.Error(), "no settable field")
	assert.True(t, errors.Is(err, &nfigerr.SchemaError{}))
	assert.False(t, errors.Is(err, &nfigerr.AppBindingError{}))
}

func TestInvalidDefaultValueErrorUnwraps(t *testing.T) {
	inner := errors.New("strconv failed")
	err := &nfigerr.InvalidDefaultValueError{Name: "Rate", Value: "abc", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "abc")
}

func TestInvalidOverrideValuesErrorAggregatesMessages(t *testing.T) {
	err := &nfigerr.InvalidOverrideValuesError{
		Errors: []*nfigerr.InvalidOverrideValueError{
			{Name: "A", Value: "x", Err: errors.New("bad")},
			{Name: "B", Value: "y", Err: errors.New("also bad")},
		},
	}
	msg := err.Error()
	assert.Contains(t, msg, "2 invalid override values")
	assert.Contains(t, msg, "A")
	assert.Contains(t, msg, "B")
}

func TestInvalidOverrideValuesErrorSingleUsesChildMessage(t *testing.T) {
	child := &nfigerr.InvalidOverrideValueError{Name: "A", Value: "x", Err: errors.New("bad")}
	err := &nfigerr.InvalidOverrideValuesError{Errors: []*nfigerr.InvalidOverrideValueError{child}}
	assert.Equal(t, child.Error(), err.Error())
}

func TestBackendErrorUnwrapAndIs(t *testing.T) {
	inner := errors.New("connection reset")
	err := &nfigerr.BackendError{Op: "SetOverride", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.True(t, errors.Is(err, &nfigerr.BackendError{}))
}

func TestEncryptorErrorFormatsWithAndWithoutWrappedErr(t *testing.T) {
	withErr := &nfigerr.EncryptorError{Reason: "round-trip failed", Err: errors.New("boom")}
	assert.Contains(t, withErr.Error(), "boom")

	withoutErr := &nfigerr.EncryptorError{Reason: "no encryptor registered"}
	assert.Equal(t, "nfig: encryptor error: no encryptor registered", withoutErr.Error())
	assert.Nil(t, withoutErr.Unwrap())
}

func TestSettingNotFoundErrorMessage(t *testing.T) {
	err := &nfigerr.SettingNotFoundError{Name: "Missing"}
	assert.Equal(t, fmt.Sprintf("nfig: no such setting %q", "Missing"), err.Error())
	assert.True(t, errors.Is(err, &nfigerr.SettingNotFoundError{}))
}

func TestAppBindingErrorMessage(t *testing.T) {
	err := &nfigerr.AppBindingError{AppName: "myapp", Reason: "settings type mismatch"}
	assert.Contains(t, err.Error(), "myapp")
	assert.Contains(t, err.Error(), "settings type mismatch")
}
