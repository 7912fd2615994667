package store

import (
	"reflect"

	"github.com/getnfig/nfig/factory"
	"github.com/getnfig/nfig/schema"
	"github.com/getnfig/nfig/values"
)

// factoryIface is the type-erased subset of factory.Factory[T] the store
// needs for operations that don't know T at the call site: subscription
// synthesis, admin introspection, and metadata publishing. AppClient[T]
// instead holds its *factory.Factory[T] directly, so typed callers never
// pay a type assertion.
type factoryIface interface {
	RegisterRootApp() ([]values.DefaultValue, error)
	RegisterSubApp(id int, name string) ([]values.DefaultValue, error)
	TryGetSettingsAny(subAppID *int, snapshot values.OverridesSnapshot) (any, error)
	SettingExists(name string) bool
	GetSettingType(name string) (reflect.Type, bool)
	GetSettingValueAny(settings any, name string) (any, error)
	Schema() *schema.Schema
}

type typedFactory[T any] struct {
	f *factory.Factory[T]
}

func (a typedFactory[T]) RegisterRootApp() ([]values.DefaultValue, error) { return a.f.RegisterRootApp() }

func (a typedFactory[T]) RegisterSubApp(id int, name string) ([]values.DefaultValue, error) {
	return a.f.RegisterSubApp(id, name)
}

func (a typedFactory[T]) TryGetSettingsAny(subAppID *int, snapshot values.OverridesSnapshot) (any, error) {
	return a.f.TryGetSettings(subAppID, snapshot)
}

func (a typedFactory[T]) SettingExists(name string) bool { return a.f.SettingExists(name) }

func (a typedFactory[T]) GetSettingType(name string) (reflect.Type, bool) {
	return a.f.GetSettingType(name)
}

func (a typedFactory[T]) GetSettingValueAny(settings any, name string) (any, error) {
	return a.f.GetSettingValue(settings.(*T), name)
}

func (a typedFactory[T]) Schema() *schema.Schema { return a.f.Schema() }
