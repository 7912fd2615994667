// Package backend defines the pluggable persistence contract NFig stores
// overrides and metadata through. Three reference implementations ship in
// backend/memory, backend/sqlbackend, and backend/filebackend.
//
// Every method takes a context.Context and may block; a caller that wants
// non-blocking behavior calls it from its own goroutine, so there is no
// separate Async* method set.
package backend

import (
	"context"

	"github.com/getnfig/nfig/values"
)

// Backend is a thin, blocking key/value store with one primitive per
// operation. expectedCommit is a compare-and-set guard: a value different
// from the backend's current commit for that app must fail with a zero
// snapshot and a nil error — a commit mismatch is never an error value.
type Backend interface {
	// GetAppNames lists every app name the backend currently holds state
	// for.
	GetAppNames(ctx context.Context) ([]string, error)

	// GetCurrentCommit returns the current commit for appName, or
	// values.InitialCommit for an app the backend has never seen.
	GetCurrentCommit(ctx context.Context, appName string) (values.Commit, error)

	// GetSnapshot returns the current override snapshot for appName. For an
	// app the backend has never seen, it returns an empty snapshot at
	// values.InitialCommit rather than an error.
	GetSnapshot(ctx context.Context, appName string) (values.OverridesSnapshot, error)

	// SetOverride writes one override, replacing any existing override at
	// the same (settingName, subAppId, dataCenter) key. If expectedCommit is
	// non-empty, the write is a compare-and-set against the backend's
	// current commit: a mismatch returns (zero snapshot, false, nil) — no
	// error, no snapshot. user is an optional attribution string for the
	// mutation log.
	SetOverride(ctx context.Context, appName string, override values.OverrideValue, user string, expectedCommit values.Commit) (values.OverridesSnapshot, bool, error)

	// ClearOverride removes the override at the given key. Whether clearing
	// an override that does not exist still bumps the commit is
	// backend-defined — see each implementation's doc comment.
	ClearOverride(ctx context.Context, appName string, key values.OverrideKey, user string, expectedCommit values.Commit) (values.OverridesSnapshot, bool, error)

	// RestoreSnapshot atomically replaces appName's entire override set and
	// always succeeds (no CAS — restore is the canonical "force to this
	// state" operation).
	RestoreSnapshot(ctx context.Context, appName string, snapshot values.OverridesSnapshot, user string) (values.OverridesSnapshot, error)

	// UpdateSubApps publishes per-sub-app default metadata, used by the
	// orphan sweep and by admin tooling that has no compiled schema.
	UpdateSubApps(ctx context.Context, appName string, subApps []values.SubAppMetadata) error

	// SetMetadata publishes schema metadata for every setting in appName.
	SetMetadata(ctx context.Context, appName string, metadata *values.BySetting[values.SettingMetadata]) error

	// GetSubApps returns the published sub-app metadata for appName, or nil
	// if none has been published.
	GetSubApps(ctx context.Context, appName string) ([]values.SubAppMetadata, error)

	// GetSettingsMetadata returns the published schema metadata for
	// appName, or nil if none has been published.
	GetSettingsMetadata(ctx context.Context, appName string) (*values.BySetting[values.SettingMetadata], error)

	// GetDefaults returns the published defaults for appName, optionally
	// scoped to one sub-app (nil means root).
	GetDefaults(ctx context.Context, appName string, subAppID *int) ([]values.DefaultValue, error)
}

// PushSource is implemented by backends that can notify of changes without
// being polled. Notify signals are per-app,
// idempotent, and carry no payload beyond "something changed" — callers
// refetch via GetSnapshot to learn what.
type PushSource interface {
	// Subscribe registers fn to be called (possibly from another goroutine)
	// whenever appName's override set changes. The returned func
	// unsubscribes.
	Subscribe(appName string, fn func()) (unsubscribe func())
}
