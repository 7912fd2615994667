package store

import (
	"context"
	"time"

	"github.com/getnfig/nfig/codec"
	"github.com/getnfig/nfig/nfigerr"
	"github.com/getnfig/nfig/values"
)

// AdminClient is the type-independent façade over one app's overrides and
// metadata. Unlike AppClient, it never needs a compiled schema to exist —
// CanValidate/IsValidForSetting degrade gracefully when none has been
// bound yet.
type AdminClient struct {
	store   *Store
	appName string
}

// GetAdminClient returns appName's AdminClient. Idempotent; independent of
// any settings type, so it may be used without ever instantiating an
// AppClient.
func GetAdminClient(s *Store, appName string) *AdminClient {
	s.entry(appName) // ensure the entry exists so metadata lookups resolve
	return &AdminClient{store: s, appName: appName}
}

// SubscribeRaw registers cb to be called with appName's raw override
// snapshot whenever it changes, delivering once synchronously before
// returning. Unlike Subscribe, it needs no compiled schema — the surface
// pubsub and httpapi use to push commit changes to clients that only know
// an app name, not its settings type.
func (a *AdminClient) SubscribeRaw(ctx context.Context, cb func(values.OverridesSnapshot)) (unsubscribe func(), err error) {
	e := a.store.entry(a.appName)
	wrapped := func(_ error, snap any, _ values.Commit) { cb(snap.(values.OverridesSnapshot)) }
	sub := e.rawSubs.add(wrapped)

	snap, fetchErr := a.store.getSnapshot(ctx, a.appName)
	if fetchErr != nil {
		return func() { e.rawSubs.remove(sub.id) }, fetchErr
	}
	e.rawSubs.dispatch(func() {
		sub.lastCommit = snap.Commit
		sub.delivered = true
		sub.fn(nil, snap, snap.Commit)
	})

	return func() { e.rawSubs.remove(sub.id) }, nil
}

// GetSubApps returns appName's published sub-app metadata.
func (a *AdminClient) GetSubApps(ctx context.Context) ([]values.SubAppMetadata, error) {
	return a.store.backend.GetSubApps(ctx, a.appName)
}

// GetSettingsMetadata returns appName's published per-setting metadata, for
// admin tools that never compiled a schema of their own.
func (a *AdminClient) GetSettingsMetadata(ctx context.Context) (*values.BySetting[values.SettingMetadata], error) {
	return a.store.backend.GetSettingsMetadata(ctx, a.appName)
}

// GetCurrentCommit returns appName's current commit.
func (a *AdminClient) GetCurrentCommit(ctx context.Context) (values.Commit, error) {
	return a.store.GetCurrentCommit(ctx, a.appName)
}

// GetSnapshot returns appName's current override snapshot, via the store's
// cache.
func (a *AdminClient) GetSnapshot(ctx context.Context) (values.OverridesSnapshot, error) {
	return a.store.getSnapshot(ctx, a.appName)
}

// SetOverride writes one override. A non-empty expectedCommit makes the
// write a compare-and-set; ok is false (with a zero snapshot and nil
// error) on a commit mismatch. On success the mutation is logged and
// subscribers are notified.
func (a *AdminClient) SetOverride(ctx context.Context, override values.OverrideValue, user string, expectedCommit values.Commit) (values.OverridesSnapshot, bool, error) {
	if enc := a.store.encryptorFor(a.appName); enc != nil && a.requiresEncryption(override.Name) {
		ciphertext, err := enc.Encrypt(override.StringValue)
		if err != nil {
			return values.OverridesSnapshot{}, false, &nfigerr.EncryptorError{Reason: "encrypting override value", Err: err}
		}
		override.StringValue = ciphertext
	}

	snap, ok, err := a.store.backend.SetOverride(ctx, a.appName, override, user, expectedCommit)
	if err != nil {
		return values.OverridesSnapshot{}, false, &nfigerr.BackendError{Op: "SetOverride", Err: err}
	}
	if !ok {
		return values.OverridesSnapshot{}, false, nil
	}

	a.store.logMutation(codec.LogEvent{
		Type:        codec.EventSetOverride,
		AppName:     &a.appName,
		Commit:      stringPtr(string(snap.Commit)),
		Timestamp:   time.Now().UnixNano(),
		SettingName: &override.Name,
		SettingValue: &override.StringValue,
		DataCenter:  uint32(override.DataCenter),
		User:        nonEmptyPtr(user),
	})
	a.store.cacheSnapshot(a.appName, snap)
	a.store.checkForUpdatesAndNotify(ctx, a.appName)
	return snap, true, nil
}

// ClearOverride removes the override at key. Whether clearing an absent
// override still bumps the commit is backend-defined; see each backend's
// doc comment.
func (a *AdminClient) ClearOverride(ctx context.Context, key values.OverrideKey, user string, expectedCommit values.Commit) (values.OverridesSnapshot, bool, error) {
	snap, ok, err := a.store.backend.ClearOverride(ctx, a.appName, key, user, expectedCommit)
	if err != nil {
		return values.OverridesSnapshot{}, false, &nfigerr.BackendError{Op: "ClearOverride", Err: err}
	}
	if !ok {
		return values.OverridesSnapshot{}, false, nil
	}

	a.store.logMutation(codec.LogEvent{
		Type:        codec.EventClearOverride,
		AppName:     &a.appName,
		Commit:      stringPtr(string(snap.Commit)),
		Timestamp:   time.Now().UnixNano(),
		SettingName: &key.Name,
		DataCenter:  uint32(key.DataCenter),
		User:        nonEmptyPtr(user),
	})
	a.store.cacheSnapshot(a.appName, snap)
	a.store.checkForUpdatesAndNotify(ctx, a.appName)
	return snap, true, nil
}

// RestoreSnapshot atomically replaces appName's entire override set; there
// is no CAS, since restore is the canonical "force to this state"
// operation.
func (a *AdminClient) RestoreSnapshot(ctx context.Context, snapshot values.OverridesSnapshot, user string) (values.OverridesSnapshot, error) {
	snap, err := a.store.backend.RestoreSnapshot(ctx, a.appName, snapshot, user)
	if err != nil {
		return values.OverridesSnapshot{}, &nfigerr.BackendError{Op: "RestoreSnapshot", Err: err}
	}

	a.store.logMutation(codec.LogEvent{
		Type:           codec.EventRestoreSnapshot,
		AppName:        &a.appName,
		Commit:         stringPtr(string(snap.Commit)),
		Timestamp:      time.Now().UnixNano(),
		RestoredCommit: stringPtr(string(snapshot.Commit)),
		User:           nonEmptyPtr(user),
	})
	a.store.cacheSnapshot(a.appName, snap)
	a.store.checkForUpdatesAndNotify(ctx, a.appName)
	return snap, nil
}

// Encrypt and Decrypt delegate to appName's registered encryptor.
func (a *AdminClient) Encrypt(plaintext string) (string, error) {
	enc := a.store.encryptorFor(a.appName)
	if enc == nil {
		return "", &nfigerr.EncryptorError{Reason: "no encryptor registered for app " + a.appName}
	}
	return enc.Encrypt(plaintext)
}

func (a *AdminClient) Decrypt(ciphertext string) (string, error) {
	enc := a.store.encryptorFor(a.appName)
	if enc == nil {
		return "", &nfigerr.EncryptorError{Reason: "no encryptor registered for app " + a.appName}
	}
	return enc.Decrypt(ciphertext)
}

// CanValidate reports whether name's converter is known in this process:
// a schema for this app has been compiled here and declares name. Published
// metadata is not consulted, so it returns false until an AppClient binds a
// schema in this process.
func (a *AdminClient) CanValidate(name string) bool {
	e := a.store.entry(a.appName)
	e.mu.Lock()
	f := e.factory
	e.mu.Unlock()
	return f != nil && f.SettingExists(name)
}

func (a *AdminClient) requiresEncryption(name string) bool {
	e := a.store.entry(a.appName)
	e.mu.Lock()
	f := e.factory
	e.mu.Unlock()
	if f == nil {
		return false
	}
	st, ok := f.Schema().ByName(name)
	return ok && st.Encrypted
}

// IsValidForSetting best-effort parse-checks value against name's
// converter, if known in this process; otherwise it accepts the string and
// lets the eventual consumer error on load.
func (a *AdminClient) IsValidForSetting(name, value string) (bool, error) {
	e := a.store.entry(a.appName)
	e.mu.Lock()
	f := e.factory
	e.mu.Unlock()
	if f == nil {
		return true, nil
	}
	st, ok := f.Schema().ByName(name)
	if !ok {
		return true, nil
	}
	_, err := st.Converter.Parse(value)
	return err == nil, nil
}

func (s *Store) cacheSnapshot(appName string, snap values.OverridesSnapshot) {
	e := s.entry(appName)
	e.mu.Lock()
	e.snapshot = snap
	e.hasSnapshot = true
	e.mu.Unlock()
}

// logMutation records a mutation event via slog. A future audit backend
// can consume codec.LogEvent.Marshal() for durable storage; the reference
// backends log inline instead of persisting a separate journal.
func (s *Store) logMutation(e codec.LogEvent) {
	attrs := []any{"type", e.Type, "timestamp", e.Timestamp}
	if e.AppName != nil {
		attrs = append(attrs, "app", *e.AppName)
	}
	if e.Commit != nil {
		attrs = append(attrs, "commit", *e.Commit)
	}
	if e.SettingName != nil {
		attrs = append(attrs, "setting", *e.SettingName)
	}
	if e.RestoredCommit != nil {
		attrs = append(attrs, "restoredCommit", *e.RestoredCommit)
	}
	if e.User != nil {
		attrs = append(attrs, "user", *e.User)
	}
	s.log.Info("nfig: mutation", attrs...)
}

func stringPtr(s string) *string { return &s }

func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
