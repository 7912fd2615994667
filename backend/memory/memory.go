// Package memory is the reference in-memory Backend: a single mutex-guarded
// map, no persistence, no pub/sub beyond in-process Subscribe callbacks.
// It is the default for tests and single-process use.
package memory

import (
	"context"
	"sync"

	"github.com/getnfig/nfig/backend"
	"github.com/getnfig/nfig/values"
)

// Memory is a Backend and backend.PushSource. The zero value is not usable;
// construct with New.
type Memory struct {
	mu   sync.Mutex
	apps map[string]*appState

	subMu sync.Mutex
	subs  map[string][]func()
}

type appState struct {
	commit    values.Commit
	overrides map[values.OverrideKey]values.OverrideValue
	subApps   []values.SubAppMetadata
	metadata  *values.BySetting[values.SettingMetadata]
}

func newAppState() *appState {
	return &appState{
		commit:    values.Commit(values.InitialCommit),
		overrides: make(map[values.OverrideKey]values.OverrideValue),
	}
}

// New constructs an empty Memory backend.
func New() *Memory {
	return &Memory{
		apps: make(map[string]*appState),
		subs: make(map[string][]func()),
	}
}

func (m *Memory) state(appName string) *appState {
	st, ok := m.apps[appName]
	if !ok {
		st = newAppState()
		m.apps[appName] = st
	}
	return st
}

func (m *Memory) GetAppNames(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.apps))
	for name := range m.apps {
		names = append(names, name)
	}
	return names, nil
}

func (m *Memory) GetCurrentCommit(_ context.Context, appName string) (values.Commit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.apps[appName]
	if !ok {
		return values.Commit(values.InitialCommit), nil
	}
	return st.commit, nil
}

func (m *Memory) GetSnapshot(_ context.Context, appName string) (values.OverridesSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.state(appName)
	return snapshotOf(appName, st), nil
}

func snapshotOf(appName string, st *appState) values.OverridesSnapshot {
	overrides := make([]values.OverrideValue, 0, len(st.overrides))
	for _, o := range st.overrides {
		overrides = append(overrides, o)
	}
	return values.OverridesSnapshot{AppName: appName, Commit: st.commit, Overrides: overrides}
}

// SetOverride is a compare-and-set: an empty expectedCommit always
// succeeds; a non-empty one must equal the current commit.
func (m *Memory) SetOverride(_ context.Context, appName string, override values.OverrideValue, user string, expectedCommit values.Commit) (values.OverridesSnapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.state(appName)
	if expectedCommit != "" && expectedCommit != st.commit {
		return values.OverridesSnapshot{}, false, nil
	}
	st.overrides[override.Key()] = override
	commit, err := values.NewCommit()
	if err != nil {
		return values.OverridesSnapshot{}, false, err
	}
	st.commit = commit
	snap := snapshotOf(appName, st)
	m.notify(appName)
	return snap, true, nil
}

// ClearOverride always bumps the commit, even when the key was absent.
// Whether a no-op clear bumps the commit is backend-defined;
// backend/filebackend documents the other choice.
func (m *Memory) ClearOverride(_ context.Context, appName string, key values.OverrideKey, user string, expectedCommit values.Commit) (values.OverridesSnapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.state(appName)
	if expectedCommit != "" && expectedCommit != st.commit {
		return values.OverridesSnapshot{}, false, nil
	}
	delete(st.overrides, key)
	commit, err := values.NewCommit()
	if err != nil {
		return values.OverridesSnapshot{}, false, err
	}
	st.commit = commit
	snap := snapshotOf(appName, st)
	m.notify(appName)
	return snap, true, nil
}

func (m *Memory) RestoreSnapshot(_ context.Context, appName string, snapshot values.OverridesSnapshot, user string) (values.OverridesSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.state(appName)
	st.overrides = make(map[values.OverrideKey]values.OverrideValue, len(snapshot.Overrides))
	for _, o := range snapshot.Overrides {
		st.overrides[o.Key()] = o
	}
	commit, err := values.NewCommit()
	if err != nil {
		return values.OverridesSnapshot{}, err
	}
	st.commit = commit
	snap := snapshotOf(appName, st)
	m.notify(appName)
	return snap, nil
}

func (m *Memory) UpdateSubApps(_ context.Context, appName string, subApps []values.SubAppMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.state(appName)
	st.subApps = subApps
	return nil
}

func (m *Memory) SetMetadata(_ context.Context, appName string, metadata *values.BySetting[values.SettingMetadata]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.state(appName)
	st.metadata = metadata
	return nil
}

func (m *Memory) GetSubApps(_ context.Context, appName string) ([]values.SubAppMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.apps[appName]
	if !ok {
		return nil, nil
	}
	return st.subApps, nil
}

func (m *Memory) GetSettingsMetadata(_ context.Context, appName string) (*values.BySetting[values.SettingMetadata], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.apps[appName]
	if !ok {
		return nil, nil
	}
	return st.metadata, nil
}

func (m *Memory) GetDefaults(_ context.Context, appName string, subAppID *int) ([]values.DefaultValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.apps[appName]
	if !ok {
		return nil, nil
	}
	for _, sa := range st.subApps {
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

// Subscribe registers fn to run whenever appName's overrides change via
// this Memory instance (this backend has no cross-process push; Subscribe
// only observes mutations made through this same instance).
func (m *Memory) Subscribe(appName string, fn func()) (unsubscribe func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.subs[appName] = append(m.subs[appName], fn)
	idx := len(m.subs[appName]) - 1
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		fns := m.subs[appName]
		if idx < len(fns) {
			fns[idx] = nil
		}
	}
}

// notify fires appName's registered callbacks on their own goroutines, so a
// callback that calls back into this Memory instance (e.g. the store's
// push-triggered checkForUpdatesAndNotify re-reading the commit it just
// wrote) never reenters the mutation call that's still holding m.mu.
func (m *Memory) notify(appName string) {
	m.subMu.Lock()
	fns := append([]func(){}, m.subs[appName]...)
	m.subMu.Unlock()
	for _, fn := range fns {
		if fn != nil {
			go fn()
		}
	}
}

var _ backend.Backend = (*Memory)(nil)
var _ backend.PushSource = (*Memory)(nil)
