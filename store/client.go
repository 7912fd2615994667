package store

import (
	"context"
	"reflect"
	"sort"

	"github.com/getnfig/nfig/factory"
	"github.com/getnfig/nfig/nfigerr"
	"github.com/getnfig/nfig/schema"
	"github.com/getnfig/nfig/tier"
	"github.com/getnfig/nfig/values"
)

// AppClient is the public, typed surface over one app's settings: reading
// hydrated settings objects, subscribing to change notification, and
// registering sub-apps. Obtained via GetAppClient[T]; thin façade pinned to
// (store, appName).
type AppClient[T any] struct {
	store   *Store
	appName string
	f       *factory.Factory[T]
}

// GetAppClient returns appName's AppClient, compiling and binding schema T
// on first call (idempotent thereafter). A later call for the same appName
// with a different T fails with an AppBindingError.
func GetAppClient[T any](ctx context.Context, s *Store, appName string, schemaOpts schema.Options) (*AppClient[T], error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	e := s.entry(appName)
	if err := e.pinSettingsType(t); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.factory != nil {
		existing := e.factory.(typedFactory[T])
		e.mu.Unlock()
		return &AppClient[T]{store: s, appName: appName, f: existing.f}, nil
	}
	e.mu.Unlock()

	compiled, err := schema.Compile(t, schemaOpts)
	if err != nil {
		return nil, err
	}
	f, err := factory.New[T](compiled, factory.Options{
		Tier:       s.tier,
		DataCenter: s.dataCenter,
		Encryptor:  s.encryptorFor(appName),
	})
	if err != nil {
		return nil, err
	}

	rootDefaults, err := f.RegisterRootApp()
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.factory != nil {
		// Lost a race with a concurrent GetAppClient[T] call; the winner's
		// factory is equivalent (same schema, same options), reuse it.
		existing := e.factory.(typedFactory[T])
		e.mu.Unlock()
		return &AppClient[T]{store: s, appName: appName, f: existing.f}, nil
	}
	e.factory = typedFactory[T]{f}
	e.rootDefaults = rootDefaults
	e.mu.Unlock()

	if err := s.publishRootMetadata(ctx, appName, compiled, rootDefaults); err != nil {
		return nil, err
	}

	return &AppClient[T]{store: s, appName: appName, f: f}, nil
}

func (s *Store) publishRootMetadata(ctx context.Context, appName string, compiled *schema.Schema, rootDefaults []values.DefaultValue) error {
	meta := values.NewBySetting[values.SettingMetadata]()
	for _, st := range compiled.Settings {
		meta.Set(st.Name, values.SettingMetadata{
			Name:                  st.Name,
			Description:           st.Description,
			TypeName:              st.GoType.String(),
			IsEncrypted:           st.Encrypted,
			IsEnum:                st.GoType.Kind() != reflect.String && st.GoType.Name() != st.GoType.Kind().String() && isIntegerKind(st.GoType),
			ConverterTypeName:     st.Converter.TypeName(),
			IsDefaultConverter:    st.ConverterName == "",
			ChangeRequiresRestart: st.ChangeRequiresRestart,
		})
	}
	if err := s.backend.SetMetadata(ctx, appName, meta); err != nil {
		return err
	}
	return s.backend.UpdateSubApps(ctx, appName, []values.SubAppMetadata{
		{AppName: appName, SubAppID: nil, SubAppName: "", DefaultsBySetting: groupByName(rootDefaults)},
	})
}

func isIntegerKind(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}

func groupByName(defaults []values.DefaultValue) map[string][]values.DefaultValue {
	out := make(map[string][]values.DefaultValue)
	for _, d := range defaults {
		out[d.Name] = append(out[d.Name], d)
	}
	return out
}

// RegisterSubApps registers every (id, name) pair with the factory and
// publishes the merged per-sub-app metadata to the backend. Registering an
// id already registered under a different name is fatal.
func (c *AppClient[T]) RegisterSubApps(ctx context.Context, subApps []SubAppSpec) error {
	e := c.store.entry(c.appName)
	e.mu.Lock()
	rootDefaults := e.rootDefaults
	e.mu.Unlock()
	metas := make([]values.SubAppMetadata, 0, len(subApps)+1)
	metas = append(metas, values.SubAppMetadata{AppName: c.appName, SubAppID: nil, SubAppName: "", DefaultsBySetting: groupByName(rootDefaults)})

	for _, sa := range subApps {
		defaults, err := c.f.RegisterSubApp(sa.ID, sa.Name)
		if err != nil {
			return err
		}
		e.mu.Lock()
		e.subAppNames[sa.ID] = sa.Name
		e.mu.Unlock()
		id := sa.ID
		metas = append(metas, values.SubAppMetadata{AppName: c.appName, SubAppID: &id, SubAppName: sa.Name, DefaultsBySetting: groupByName(defaults)})
	}

	sort.Slice(metas, func(i, j int) bool {
		if metas[i].SubAppID == nil {
			return true
		}
		if metas[j].SubAppID == nil {
			return false
		}
		return *metas[i].SubAppID < *metas[j].SubAppID
	})
	return c.store.backend.UpdateSubApps(ctx, c.appName, metas)
}

// SubAppSpec is one (id, name) pair passed to RegisterSubApps.
type SubAppSpec struct {
	ID   int
	Name string
}

// GetSettings materializes subAppID's settings object (nil for root)
// against the store's currently cached snapshot, fetching it if the cache
// is stale. The returned value is stamped with appName, commit, subAppId,
// subAppName, tier, and dataCenter via Materialized.
func (c *AppClient[T]) GetSettings(ctx context.Context, subAppID *int) (*Materialized[T], error) {
	snap, err := c.store.getSnapshot(ctx, c.appName)
	if err != nil {
		return nil, err
	}
	settings, applyErr := c.f.TryGetSettings(subAppID, snap)
	m := &Materialized[T]{
		Settings:   settings,
		AppName:    c.appName,
		Commit:     snap.Commit,
		SubAppID:   subAppID,
		Tier:       c.store.tier,
		DataCenter: c.store.dataCenter,
	}
	if subAppID != nil {
		e := c.store.entry(c.appName)
		e.mu.Lock()
		m.SubAppName = e.subAppNames[*subAppID]
		e.mu.Unlock()
	}
	return m, applyErr
}

// Materialized wraps a hydrated settings object with the scope it was
// produced for: appName, commit, subAppId, subAppName, tier, dataCenter.
type Materialized[T any] struct {
	Settings   *T
	AppName    string
	Commit     values.Commit
	SubAppID   *int
	SubAppName string
	Tier       tier.Tier
	DataCenter tier.DataCenter
}

// IsCurrent reports whether m.Commit still matches the store's cached
// commit for its app. A stale settings object should be re-fetched.
func (c *AppClient[T]) IsCurrent(m *Materialized[T]) (bool, error) {
	if m.AppName != c.appName {
		return false, &nfigerr.AppBindingError{AppName: m.AppName, Reason: "IsCurrent called with a Materialized value from a different app"}
	}
	commit, err := c.store.GetCurrentCommit(context.Background(), c.appName)
	if err != nil {
		return false, err
	}
	return commit == m.Commit, nil
}

// GetCurrentCommit returns appName's current commit.
func (c *AppClient[T]) GetCurrentCommit(ctx context.Context) (values.Commit, error) {
	return c.store.GetCurrentCommit(ctx, c.appName)
}

// SettingExists, GetSettingType, and GetSettingValue are reflective
// introspection helpers mirroring the factory's.
func (c *AppClient[T]) SettingExists(name string) bool { return c.f.SettingExists(name) }

func (c *AppClient[T]) GetSettingType(name string) (reflect.Type, bool) { return c.f.GetSettingType(name) }

func (c *AppClient[T]) GetSettingValue(settings *T, name string) (any, error) {
	return c.f.GetSettingValue(settings, name)
}
