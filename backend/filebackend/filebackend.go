// Package filebackend is a flat-file Backend for single-host and
// development use: each app's overrides, sub-app metadata, and schema
// metadata live in one JSON snapshot file, writers take an exclusive
// gofrs/flock lock for compare-and-set, and an fsnotify.Watcher on the
// directory drives push notification to any Store that wired this backend
// as a backend.PushSource.
package filebackend

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"

	"github.com/getnfig/nfig/backend"
	"github.com/getnfig/nfig/tier"
	"github.com/getnfig/nfig/values"
)

// FileBackend is a Backend and backend.PushSource backed by one JSON file
// per app under BaseDir. The zero value is not usable; construct with New.
type FileBackend struct {
	baseDir string
	log     *slog.Logger

	watcher *fsnotify.Watcher

	subMu sync.Mutex
	subs  map[string][]func()
}

// Options configures New.
type Options struct {
	Logger *slog.Logger
}

// New constructs a FileBackend rooted at baseDir, creating it if absent,
// and starts a directory watcher for push notification.
func New(baseDir string, opts Options) (*FileBackend, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(baseDir); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	fb := &FileBackend{
		baseDir: baseDir,
		log:     logger,
		watcher: watcher,
		subs:    make(map[string][]func()),
	}
	go fb.watchLoop()
	return fb, nil
}

// Close stops the directory watcher. Safe to call once.
func (f *FileBackend) Close() error {
	return f.watcher.Close()
}

func (f *FileBackend) watchLoop() {
	for {
		select {
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			base := filepath.Base(ev.Name)
			if !strings.HasSuffix(base, ".json") {
				continue
			}
			appName := strings.TrimSuffix(base, ".json")
			f.notify(appName)
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.log.Error("nfig filebackend: watcher error", "error", err)
		}
	}
}

// Subscribe registers fn to run whenever appName's file changes, including
// changes made by another process sharing baseDir.
func (f *FileBackend) Subscribe(appName string, fn func()) (unsubscribe func()) {
	f.subMu.Lock()
	defer f.subMu.Unlock()
	f.subs[appName] = append(f.subs[appName], fn)
	idx := len(f.subs[appName]) - 1
	return func() {
		f.subMu.Lock()
		defer f.subMu.Unlock()
		fns := f.subs[appName]
		if idx < len(fns) {
			fns[idx] = nil
		}
	}
}

func (f *FileBackend) notify(appName string) {
	f.subMu.Lock()
	fns := append([]func(){}, f.subs[appName]...)
	f.subMu.Unlock()
	for _, fn := range fns {
		if fn != nil {
			go fn()
		}
	}
}

// diskState is the full persisted shape of one app's file.
type diskState struct {
	Commit    values.Commit                                 `json:"commit"`
	Overrides []diskOverride                                `json:"overrides"`
	SubApps   []values.SubAppMetadata                        `json:"subApps,omitempty"`
	Metadata  *values.BySetting[values.SettingMetadata]      `json:"metadata,omitempty"`
}

// diskOverride mirrors values.OverrideValue with a plain *int SubAppID,
// since encoding/json already round-trips that shape natively.
type diskOverride struct {
	Name           string     `json:"name"`
	StringValue    string     `json:"value"`
	SubAppID       *int       `json:"subAppId,omitempty"`
	DataCenter     int32      `json:"dataCenter"`
	ExpirationTime *string    `json:"expirationTime,omitempty"`
}

func (f *FileBackend) path(appName string) string {
	return filepath.Join(f.baseDir, appName+".json")
}

func (f *FileBackend) lockPath(appName string) string {
	return filepath.Join(f.baseDir, appName+".lock")
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func newDiskState() diskState {
	return diskState{Commit: values.InitialCommit}
}

func (f *FileBackend) read(appName string) (diskState, error) {
	data, err := os.ReadFile(f.path(appName))
	if os.IsNotExist(err) {
		return newDiskState(), nil
	}
	if err != nil {
		return diskState{}, err
	}
	var st diskState
	if err := json.Unmarshal(data, &st); err != nil {
		return diskState{}, err
	}
	return st, nil
}

// write atomically replaces appName's file: write to a temp file in the
// same directory, then rename, so concurrent readers never observe a
// partially-written document.
func (f *FileBackend) write(appName string, st diskState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path(appName) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path(appName))
}

func (f *FileBackend) withLock(appName string, fn func() error) error {
	lock := flock.New(f.lockPath(appName))
	if err := lock.Lock(); err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()
	return fn()
}

func toOverrideValue(d diskOverride) (values.OverrideValue, error) {
	o := values.OverrideValue{
		Name:        d.Name,
		StringValue: d.StringValue,
		SubAppID:    d.SubAppID,
		DataCenter:  tier.DataCenter(d.DataCenter),
	}
	if d.ExpirationTime != nil {
		t, err := parseTime(*d.ExpirationTime)
		if err != nil {
			return values.OverrideValue{}, err
		}
		o.ExpirationTime = &t
	}
	return o, nil
}

func fromOverrideValue(o values.OverrideValue) diskOverride {
	d := diskOverride{
		Name:        o.Name,
		StringValue: o.StringValue,
		SubAppID:    o.SubAppID,
		DataCenter:  int32(o.DataCenter),
	}
	if o.ExpirationTime != nil {
		s := formatTime(*o.ExpirationTime)
		d.ExpirationTime = &s
	}
	return d
}

func snapshotOf(appName string, st diskState) values.OverridesSnapshot {
	overrides := make([]values.OverrideValue, 0, len(st.Overrides))
	for _, d := range st.Overrides {
		o, err := toOverrideValue(d)
		if err != nil {
			continue
		}
		overrides = append(overrides, o)
	}
	return values.OverridesSnapshot{AppName: appName, Commit: st.Commit, Overrides: overrides}
}

func overrideKeyOf(d diskOverride) values.OverrideKey {
	return values.NewOverrideKey(d.Name, d.SubAppID, tier.DataCenter(d.DataCenter))
}

var _ backend.Backend = (*FileBackend)(nil)
var _ backend.PushSource = (*FileBackend)(nil)

func (f *FileBackend) GetAppNames(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.baseDir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name, ok := strings.CutSuffix(e.Name(), ".json"); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

func (f *FileBackend) GetCurrentCommit(_ context.Context, appName string) (values.Commit, error) {
	st, err := f.read(appName)
	if err != nil {
		return "", err
	}
	return st.Commit, nil
}

func (f *FileBackend) GetSnapshot(_ context.Context, appName string) (values.OverridesSnapshot, error) {
	st, err := f.read(appName)
	if err != nil {
		return values.OverridesSnapshot{}, err
	}
	return snapshotOf(appName, st), nil
}

func (f *FileBackend) SetOverride(_ context.Context, appName string, override values.OverrideValue, user string, expectedCommit values.Commit) (values.OverridesSnapshot, bool, error) {
	var snap values.OverridesSnapshot
	var ok bool
	err := f.withLock(appName, func() error {
		st, err := f.read(appName)
		if err != nil {
			return err
		}
		if expectedCommit != "" && expectedCommit != st.Commit {
			return nil
		}
		key := override.Key()
		replaced := false
		for i, d := range st.Overrides {
			if overrideKeyOf(d) == key {
				st.Overrides[i] = fromOverrideValue(override)
				replaced = true
				break
			}
		}
		if !replaced {
			st.Overrides = append(st.Overrides, fromOverrideValue(override))
		}
		commit, cErr := values.NewCommit()
		if cErr != nil {
			return cErr
		}
		st.Commit = commit
		if wErr := f.write(appName, st); wErr != nil {
			return wErr
		}
		snap = snapshotOf(appName, st)
		ok = true
		return nil
	})
	return snap, ok, err
}

// ClearOverride only bumps the commit when the key was actually present
// (backend/memory makes the other choice and always bumps): rewriting an
// otherwise-identical file would spuriously wake every fsnotify-driven
// subscriber.
func (f *FileBackend) ClearOverride(_ context.Context, appName string, key values.OverrideKey, user string, expectedCommit values.Commit) (values.OverridesSnapshot, bool, error) {
	var snap values.OverridesSnapshot
	var ok bool
	err := f.withLock(appName, func() error {
		st, err := f.read(appName)
		if err != nil {
			return err
		}
		if expectedCommit != "" && expectedCommit != st.Commit {
			return nil
		}
		idx := -1
		for i, d := range st.Overrides {
			if overrideKeyOf(d) == key {
				idx = i
				break
			}
		}
		if idx < 0 {
			snap = snapshotOf(appName, st)
			ok = true
			return nil
		}
		st.Overrides = append(st.Overrides[:idx], st.Overrides[idx+1:]...)
		commit, cErr := values.NewCommit()
		if cErr != nil {
			return cErr
		}
		st.Commit = commit
		if wErr := f.write(appName, st); wErr != nil {
			return wErr
		}
		snap = snapshotOf(appName, st)
		ok = true
		return nil
	})
	return snap, ok, err
}

func (f *FileBackend) RestoreSnapshot(_ context.Context, appName string, snapshot values.OverridesSnapshot, user string) (values.OverridesSnapshot, error) {
	var snap values.OverridesSnapshot
	err := f.withLock(appName, func() error {
		st, err := f.read(appName)
		if err != nil {
			return err
		}
		st.Overrides = make([]diskOverride, 0, len(snapshot.Overrides))
		for _, o := range snapshot.Overrides {
			st.Overrides = append(st.Overrides, fromOverrideValue(o))
		}
		commit, cErr := values.NewCommit()
		if cErr != nil {
			return cErr
		}
		st.Commit = commit
		if wErr := f.write(appName, st); wErr != nil {
			return wErr
		}
		snap = snapshotOf(appName, st)
		return nil
	})
	return snap, err
}

func (f *FileBackend) UpdateSubApps(_ context.Context, appName string, subApps []values.SubAppMetadata) error {
	return f.withLock(appName, func() error {
		st, err := f.read(appName)
		if err != nil {
			return err
		}
		st.SubApps = subApps
		return f.write(appName, st)
	})
}

func (f *FileBackend) SetMetadata(_ context.Context, appName string, metadata *values.BySetting[values.SettingMetadata]) error {
	return f.withLock(appName, func() error {
		st, err := f.read(appName)
		if err != nil {
			return err
		}
		st.Metadata = metadata
		return f.write(appName, st)
	})
}

func (f *FileBackend) GetSubApps(_ context.Context, appName string) ([]values.SubAppMetadata, error) {
	st, err := f.read(appName)
	if err != nil {
		return nil, err
	}
	return st.SubApps, nil
}

func (f *FileBackend) GetSettingsMetadata(_ context.Context, appName string) (*values.BySetting[values.SettingMetadata], error) {
	st, err := f.read(appName)
	if err != nil {
		return nil, err
	}
	return st.Metadata, nil
}

func (f *FileBackend) GetDefaults(_ context.Context, appName string, subAppID *int) ([]values.DefaultValue, error) {
	st, err := f.read(appName)
	if err != nil {
		return nil, err
	}
	for _, sa := range st.SubApps {
		if sameSubApp(sa.SubAppID, subAppID) {
			var out []values.DefaultValue
			for _, ds := range sa.DefaultsBySetting {
				out = append(out, ds...)
			}
			return out, nil
		}
	}
	return nil, nil
}

func sameSubApp(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}


