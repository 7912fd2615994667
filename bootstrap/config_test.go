package bootstrap

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, ":3552", cfg.ListenAddr)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadReadsEnvOverrides(t *testing.T) {
	t.Setenv("NFIG_LISTEN_ADDR", ":9999")
	t.Setenv("NFIG_BACKEND", "SQL")
	t.Setenv("NFIG_LOG_LEVEL", "DEBUG")

	cfg := Load()
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, BackendSQL, cfg.Backend)
	assert.Equal(t, "debug", cfg.LogLevel) // toLower option normalizes
}

func TestLoadResolvesSecretFromFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/secret"
	require.NoError(t, os.WriteFile(path, []byte("file-secret\n"), 0o600))
	t.Setenv("NFIG_ADMIN_SECRET_FILE", path)

	cfg := Load()
	assert.Equal(t, "file-secret", cfg.AdminSecret)
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := &Config{Backend: "carrier-pigeon"}
	assert.Error(t, cfg.Validate())
}

func TestValidateAcceptsKnownBackends(t *testing.T) {
	for _, kind := range []BackendKind{BackendMemory, BackendFile} {
		cfg := &Config{Backend: kind}
		assert.NoError(t, cfg.Validate())
	}
	cfg := &Config{Backend: BackendSQL, SQLDriver: "sqlite"}
	assert.NoError(t, cfg.Validate())
}

func TestOriginsSplitsAndTrims(t *testing.T) {
	cfg := &Config{AllowedOrigins: " https://a.example , https://b.example "}
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Origins())

	cfg2 := &Config{}
	assert.Nil(t, cfg2.Origins())
}
