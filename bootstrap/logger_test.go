package bootstrap

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeFilterHandlerDropsNestedTimeAttr(t *testing.T) {
	var buf bytes.Buffer
	// Drop the handler's own record timestamp (a KindTime attr) so the only
	// possible "time" key left is the nested string attr under test.
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				return slog.Attr{}
			}
			return a
		},
	})
	logger := slog.New(&timeFilterHandler{Handler: inner})

	logger.Info("request", "time", "2026-07-31T00:00:00Z", "status", 200)

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	_, hasTime := out["time"]
	assert.False(t, hasTime, "nested time attribute should be stripped")
	assert.Equal(t, float64(200), out["status"])
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, parseLevel("not-a-level"))
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
}
