// Package store is the coordination layer: it owns per-app state (metadata,
// defaults per sub-app, the latest overrides snapshot, encryptor), hands
// out AppClients and AdminClients, maintains a commit-tagged snapshot
// cache, and drives subscription notification and background polling
// against a pluggable Backend.
package store

import (
	"context"
	"log/slog"
	"reflect"
	"sync"

	"github.com/cenkalti/backoff/v5"
	"github.com/robfig/cron/v3"

	"github.com/getnfig/nfig/backend"
	"github.com/getnfig/nfig/encryptor"
	"github.com/getnfig/nfig/nfigerr"
	"github.com/getnfig/nfig/schema"
	"github.com/getnfig/nfig/tier"
	"github.com/getnfig/nfig/values"
)

// Options configures New.
type Options struct {
	Tier       tier.Tier
	DataCenter tier.DataCenter
	Names      tier.Names
	Logger     *slog.Logger

	// OnBackgroundError receives errors from background polling and
	// push-triggered notification, so a failing backend never unwinds into
	// user code.
	OnBackgroundError func(error)

	// RetryBackend, if true, wraps cold-cache snapshot fetches with a
	// cenkalti/backoff/v5 exponential retry before surfacing a
	// BackendError. Off by default.
	RetryBackend bool
}

// Store coordinates one backend connection for a fixed (tier, dataCenter).
// The zero value is not usable; construct with New.
type Store struct {
	backend     backend.Backend
	pushSource  backend.PushSource
	tier        tier.Tier
	dataCenter  tier.DataCenter
	names       tier.Names
	log         *slog.Logger
	onBgError   func(error)
	retry       bool

	encMu sync.Mutex
	encs  map[string]encryptor.Encryptor

	mu   sync.Mutex
	apps map[string]*appEntry

	cronMu  sync.Mutex
	cron    *cron.Cron
	pollIDs map[string]cron.EntryID
}

// New constructs a Store over b. b is wrapped with backend.Instrument using
// opts.Logger so every call is logged.
func New(b backend.Backend, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	onBgError := opts.OnBackgroundError
	if onBgError == nil {
		onBgError = func(err error) { logger.Error("nfig: background error", "error", err) }
	}
	pushSource, _ := b.(backend.PushSource)
	return &Store{
		backend:    backend.Instrument(b, logger),
		pushSource: pushSource,
		tier:       opts.Tier,
		dataCenter: opts.DataCenter,
		names:      opts.Names,
		log:        logger,
		onBgError:  onBgError,
		retry:      opts.RetryBackend,
		encs:       make(map[string]encryptor.Encryptor),
		apps:       make(map[string]*appEntry),
		pollIDs:    make(map[string]cron.EntryID),
	}
}

// Tier and DataCenter are this Store's fixed deployment scope.
func (s *Store) Tier() tier.Tier             { return s.tier }
func (s *Store) DataCenter() tier.DataCenter { return s.dataCenter }
func (s *Store) Names() tier.Names           { return s.names }

// GetAppNames returns every app name the backend currently knows about,
// for admin-surface discovery (httpapi's app listing).
func (s *Store) GetAppNames(ctx context.Context) ([]string, error) {
	names, err := s.backend.GetAppNames(ctx)
	if err != nil {
		return nil, &nfigerr.BackendError{Op: "GetAppNames", Err: err}
	}
	return names, nil
}

// SetEncryptor registers the Encryptor appName's encrypted settings use. It
// must precede any GetAppClient call that binds a schema with encrypted
// settings, and may not be replaced once set.
func (s *Store) SetEncryptor(appName string, enc encryptor.Encryptor) error {
	s.encMu.Lock()
	defer s.encMu.Unlock()
	if _, exists := s.encs[appName]; exists {
		return &nfigerr.AppBindingError{AppName: appName, Reason: "encryptor already set; replacement is forbidden"}
	}
	s.encs[appName] = enc
	return nil
}

func (s *Store) encryptorFor(appName string) encryptor.Encryptor {
	s.encMu.Lock()
	defer s.encMu.Unlock()
	return s.encs[appName]
}

// entry returns appName's entry, creating it on first access: apps are
// lazily registered on first GetAppClient/GetAdminClient call.
func (s *Store) entry(appName string) *appEntry {
	s.mu.Lock()
	e, ok := s.apps[appName]
	if !ok {
		e = newAppEntry(appName)
		s.apps[appName] = e
	}
	s.mu.Unlock()

	if s.pushSource != nil {
		s.wirePush(appName, e)
	}
	return e
}

// wirePush subscribes once to the backend's push signal for appName,
// routing it to checkForUpdatesAndNotify so push-driven backends reach the
// same notify path polling does.
func (s *Store) wirePush(appName string, e *appEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pushWired {
		return
	}
	e.pushWired = true
	e.pushUnsub = s.pushSource.Subscribe(appName, func() {
		s.checkForUpdatesAndNotify(context.Background(), appName)
	})
}

// pinSettingsType records T as appName's bound settings type on first
// GetAppClient[T] call; a later call with a different T is an
// AppBindingError. First binding wins, permanently.
func (e *appEntry) pinSettingsType(t reflect.Type) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.settingsType == nil {
		e.settingsType = t
		return nil
	}
	if e.settingsType != t {
		return &nfigerr.AppBindingError{AppName: e.name, Reason: "GetAppClient called with a settings type different from the first binding"}
	}
	return nil
}

// retryFetch wraps fn with exponential backoff when s.retry is set,
// otherwise calls fn once. Used around cold-cache snapshot fetches, the
// only place the hot GetSettings path touches blocking backend I/O.
func (s *Store) retryFetch(ctx context.Context, fn func() (values.OverridesSnapshot, error)) (values.OverridesSnapshot, error) {
	if !s.retry {
		snap, err := fn()
		if err != nil {
			return values.OverridesSnapshot{}, &nfigerr.BackendError{Op: "GetSnapshot", Err: err}
		}
		return snap, nil
	}
	snap, err := backoff.Retry(ctx, func() (values.OverridesSnapshot, error) {
		s, err := fn()
		if err != nil {
			return values.OverridesSnapshot{}, err
		}
		return s, nil
	}, backoff.WithMaxTries(5))
	if err != nil {
		return values.OverridesSnapshot{}, &nfigerr.BackendError{Op: "GetSnapshot", Err: err}
	}
	return snap, nil
}

// SchemaOptions lets callers customize schema.Compile per app (e.g.
// named converters); most callers pass schema.Options{}.
type SchemaOptions = schema.Options
