// Package values holds the plain data model shared by the factory and store
// packages: declared defaults, runtime overrides, sub-apps, snapshots, and
// the metadata published to a backend so other processes can validate
// overrides without loading the schema themselves.
package values

import (
	"strconv"
	"time"

	"github.com/getnfig/nfig/tier"
)

// SubApp identifies a tenant under an app. A nil SubAppID denotes the root
// app.
type SubApp struct {
	ID   *int
	Name string
}

// IsRoot reports whether s is the root (sub-app-less) registration.
func (s SubApp) IsRoot() bool { return s.ID == nil }

// DefaultValue is one compile-time-declared alternative for a setting,
// scoped by an optional sub-app, a tier, and a data center.
type DefaultValue struct {
	Name           string
	StringValue    string
	SubAppID       *int
	Tier           tier.Tier
	DataCenter     tier.DataCenter
	AllowsOverrides bool
}

// IsRootDefault reports whether d is the always-present (none, any, any)
// default every setting must carry.
func (d DefaultValue) IsRootDefault() bool {
	return d.SubAppID == nil && d.Tier.IsAny() && d.DataCenter.IsAny()
}

// OverrideValue is one runtime-declared override. Overrides always apply to
// the current tier implicitly; tier is not part of an override's identity.
type OverrideValue struct {
	Name           string
	StringValue    string
	SubAppID       *int
	DataCenter     tier.DataCenter
	ExpirationTime *time.Time
}

// IsExpired reports whether o has an expiration time at or before now.
func (o OverrideValue) IsExpired(now time.Time) bool {
	return o.ExpirationTime != nil && !o.ExpirationTime.After(now)
}

// Key returns the storage-key triple overrides are keyed by: a fresh Set at
// the same key triple replaces any prior override there.
func (o OverrideValue) Key() OverrideKey {
	return OverrideKey{Name: o.Name, SubAppID: subAppIDValue(o.SubAppID), HasSubApp: o.SubAppID != nil, DataCenter: o.DataCenter}
}

// OverrideKey is the flattened, comparable identity of an OverrideValue,
// usable as a map key.
type OverrideKey struct {
	Name       string
	SubAppID   int // 0 with HasSubApp=false means "no sub-app"
	HasSubApp  bool
	DataCenter tier.DataCenter
}

func subAppIDValue(id *int) int {
	if id == nil {
		return 0
	}
	return *id
}

// NewOverrideKey builds an OverrideKey explicitly, for callers that don't
// have an OverrideValue handy (e.g. the codec package when parsing).
func NewOverrideKey(name string, subAppID *int, dc tier.DataCenter) OverrideKey {
	return OverrideKey{Name: name, SubAppID: subAppIDValue(subAppID), HasSubApp: subAppID != nil, DataCenter: dc}
}

// IsTrue parses the override's string value as a bool, defaulting to false.
func (o OverrideValue) IsTrue() bool {
	ok, _ := strconv.ParseBool(o.StringValue)
	return ok
}

// OverridesSnapshot is an immutable, point-in-time view of one app's
// overrides, tagged with the commit that produced it.
type OverridesSnapshot struct {
	AppName   string
	Commit    Commit
	Overrides []OverrideValue
}

// ByKey indexes the snapshot's overrides by their storage key for O(1)
// lookup during override application.
func (s OverridesSnapshot) ByKey() map[OverrideKey]OverrideValue {
	out := make(map[OverrideKey]OverrideValue, len(s.Overrides))
	for _, o := range s.Overrides {
		out[o.Key()] = o
	}
	return out
}

// ByName groups the snapshot's overrides by setting name, the shape the
// factory walks one setting at a time against.
func (s OverridesSnapshot) ByName() map[string][]OverrideValue {
	out := make(map[string][]OverrideValue)
	for _, o := range s.Overrides {
		out[o.Name] = append(out[o.Name], o)
	}
	return out
}

// SettingMetadata is schema information about one setting, published to the
// backend so any process (including an admin tool with no compiled schema)
// can introspect and validate without loading the declaring type.
type SettingMetadata struct {
	Name                  string
	Description           string
	TypeName              string
	IsEncrypted           bool
	IsEnum                bool
	ConverterTypeName     string
	IsDefaultConverter    bool
	ChangeRequiresRestart bool
}

// SubAppMetadata is the published defaults-by-setting for one sub-app
// registration, used for admin introspection. (The orphan sweep checks
// override names against the published SettingMetadata instead.)
type SubAppMetadata struct {
	AppName         string
	SubAppID        *int
	SubAppName      string
	DefaultsBySetting map[string][]DefaultValue
}
