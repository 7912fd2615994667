package bootstrap

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// SetupLogger builds nfigd's process-wide slog.Logger: a colorized
// lmittmann/tint handler for interactive use, or slog.NewJSONHandler when
// LogJSON is set, wrapped to strip the redundant nested "time" attribute
// slog-gin's request-logging group otherwise duplicates.
func SetupLogger(cfg *Config) *slog.Logger {
	level := parseLevel(cfg.LogLevel)

	var handler slog.Handler
	if cfg.LogJSON {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(os.Stdout, &tint.Options{Level: level, TimeFormat: time.Kitchen})
	}

	logger := slog.New(&timeFilterHandler{Handler: handler})
	slog.SetDefault(logger)
	return logger
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// timeFilterHandler drops a nested "time" attribute from grouped records —
// slog-gin's request-logging group otherwise repeats the record's own
// timestamp inside its attrs, which reads as noise in the tint output.
type timeFilterHandler struct {
	slog.Handler
}

func (h *timeFilterHandler) Handle(ctx context.Context, r slog.Record) error {
	filtered := slog.Record{Time: r.Time, Message: r.Message, Level: r.Level, PC: r.PC}
	r.Attrs(func(a slog.Attr) bool {
		if a.Key != "time" {
			filtered.AddAttrs(a)
		}
		return true
	})
	return h.Handler.Handle(ctx, filtered)
}

func (h *timeFilterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &timeFilterHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *timeFilterHandler) WithGroup(name string) slog.Handler {
	return &timeFilterHandler{Handler: h.Handler.WithGroup(name)}
}
