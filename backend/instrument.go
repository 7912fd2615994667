package backend

import (
	"context"
	"log/slog"
	"time"

	"github.com/getnfig/nfig/values"
)

// Instrument wraps a Backend so every call is logged with its operation
// name, duration, and error.
func Instrument(b Backend, logger *slog.Logger) Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &instrumented{b: b, log: logger}
}

type instrumented struct {
	b   Backend
	log *slog.Logger
}

func (i *instrumented) call(ctx context.Context, op, appName string, fn func() error) error {
	start := time.Now()
	err := fn()
	attrs := []any{"op", op, "app", appName, "duration", time.Since(start)}
	if err != nil {
		i.log.ErrorContext(ctx, "nfig backend call failed", append(attrs, "error", err)...)
	} else {
		i.log.DebugContext(ctx, "nfig backend call", attrs...)
	}
	return err
}

func (i *instrumented) GetAppNames(ctx context.Context) (names []string, err error) {
	err = i.call(ctx, "GetAppNames", "", func() error {
		names, err = i.b.GetAppNames(ctx)
		return err
	})
	return names, err
}

func (i *instrumented) GetCurrentCommit(ctx context.Context, appName string) (commit values.Commit, err error) {
	err = i.call(ctx, "GetCurrentCommit", appName, func() error {
		commit, err = i.b.GetCurrentCommit(ctx, appName)
		return err
	})
	return commit, err
}

func (i *instrumented) GetSnapshot(ctx context.Context, appName string) (snap values.OverridesSnapshot, err error) {
	err = i.call(ctx, "GetSnapshot", appName, func() error {
		snap, err = i.b.GetSnapshot(ctx, appName)
		return err
	})
	return snap, err
}

func (i *instrumented) SetOverride(ctx context.Context, appName string, override values.OverrideValue, user string, expectedCommit values.Commit) (snap values.OverridesSnapshot, ok bool, err error) {
	err = i.call(ctx, "SetOverride", appName, func() error {
		snap, ok, err = i.b.SetOverride(ctx, appName, override, user, expectedCommit)
		return err
	})
	return snap, ok, err
}

func (i *instrumented) ClearOverride(ctx context.Context, appName string, key values.OverrideKey, user string, expectedCommit values.Commit) (snap values.OverridesSnapshot, ok bool, err error) {
	err = i.call(ctx, "ClearOverride", appName, func() error {
		snap, ok, err = i.b.ClearOverride(ctx, appName, key, user, expectedCommit)
		return err
	})
	return snap, ok, err
}

func (i *instrumented) RestoreSnapshot(ctx context.Context, appName string, snapshot values.OverridesSnapshot, user string) (snap values.OverridesSnapshot, err error) {
	err = i.call(ctx, "RestoreSnapshot", appName, func() error {
		snap, err = i.b.RestoreSnapshot(ctx, appName, snapshot, user)
		return err
	})
	return snap, err
}

func (i *instrumented) UpdateSubApps(ctx context.Context, appName string, subApps []values.SubAppMetadata) error {
	return i.call(ctx, "UpdateSubApps", appName, func() error {
		return i.b.UpdateSubApps(ctx, appName, subApps)
	})
}

func (i *instrumented) SetMetadata(ctx context.Context, appName string, metadata *values.BySetting[values.SettingMetadata]) error {
	return i.call(ctx, "SetMetadata", appName, func() error {
		return i.b.SetMetadata(ctx, appName, metadata)
	})
}

func (i *instrumented) GetSubApps(ctx context.Context, appName string) (out []values.SubAppMetadata, err error) {
	err = i.call(ctx, "GetSubApps", appName, func() error {
		out, err = i.b.GetSubApps(ctx, appName)
		return err
	})
	return out, err
}

func (i *instrumented) GetSettingsMetadata(ctx context.Context, appName string) (out *values.BySetting[values.SettingMetadata], err error) {
	err = i.call(ctx, "GetSettingsMetadata", appName, func() error {
		out, err = i.b.GetSettingsMetadata(ctx, appName)
		return err
	})
	return out, err
}

func (i *instrumented) GetDefaults(ctx context.Context, appName string, subAppID *int) (out []values.DefaultValue, err error) {
	err = i.call(ctx, "GetDefaults", appName, func() error {
		out, err = i.b.GetDefaults(ctx, appName, subAppID)
		return err
	})
	return out, err
}
