package store

import (
	"context"

	"github.com/getnfig/nfig/values"
)

// Subscribe registers cb to be called whenever the root settings object
// changes, delivering once synchronously before returning. The returned
// unsubscribe func reports how many callbacks it removed (0 or 1) and may
// be called safely from within cb itself.
func (c *AppClient[T]) Subscribe(ctx context.Context, cb func(error, *Materialized[T])) (unsubscribe func() int, err error) {
	e := c.store.entry(c.appName)
	wrapped := func(applyErr error, settings any, commit values.Commit) {
		cb(applyErr, c.wrapRoot(e, settings, commit, nil))
	}
	sub := e.rootSubs.add(wrapped)

	snap, fetchErr := c.store.getSnapshot(ctx, c.appName)
	if fetchErr != nil {
		return func() int { return e.rootSubs.remove(sub.id) }, fetchErr
	}
	e.rootSubs.dispatch(func() { c.store.deliverRoot(e, sub, snap) })

	return func() int { return e.rootSubs.remove(sub.id) }, nil
}

// SubscribeToSubApps registers cb to be called with every registered
// sub-app's settings object whenever any of them change, delivering once
// synchronously before returning.
func (c *AppClient[T]) SubscribeToSubApps(ctx context.Context, cb func(error, map[int]*Materialized[T])) (unsubscribe func() int, err error) {
	e := c.store.entry(c.appName)
	wrapped := func(applyErr error, settingsBySubApp any, commit values.Commit) {
		raw := settingsBySubApp.(map[int]any)
		out := make(map[int]*Materialized[T], len(raw))
		for id, settings := range raw {
			sid := id
			out[id] = c.wrapRoot(e, settings, commit, &sid)
		}
		cb(applyErr, out)
	}
	sub := e.subAppSubs.add(wrapped)

	snap, fetchErr := c.store.getSnapshot(ctx, c.appName)
	if fetchErr != nil {
		return func() int { return e.subAppSubs.remove(sub.id) }, fetchErr
	}
	e.subAppSubs.dispatch(func() { c.store.deliverSubApps(e, sub, snap, typedFactory[T]{c.f}) })

	return func() int { return e.subAppSubs.remove(sub.id) }, nil
}

// UnsubscribeAll removes every root and sub-app subscription this client's
// app currently holds, returning the number removed — the counterpart of
// passing a nil callback to an unsubscribe call.
func (c *AppClient[T]) UnsubscribeAll() int {
	e := c.store.entry(c.appName)
	return e.rootSubs.remove(0) + e.subAppSubs.remove(0)
}

func (c *AppClient[T]) wrapRoot(e *appEntry, settings any, commit values.Commit, subAppID *int) *Materialized[T] {
	m := &Materialized[T]{
		AppName:    c.appName,
		Commit:     commit,
		SubAppID:   subAppID,
		Tier:       c.store.tier,
		DataCenter: c.store.dataCenter,
	}
	if settings != nil {
		m.Settings = settings.(*T)
	}
	if subAppID != nil {
		e.mu.Lock()
		m.SubAppName = e.subAppNames[*subAppID]
		e.mu.Unlock()
	}
	return m
}

// deliverRoot synthesizes and delivers the root settings object to one
// subscription, updating its last-notified commit. Skipped entirely if no
// AppClient has bound a factory to this entry yet.
func (s *Store) deliverRoot(e *appEntry, sub *subEntry, snap values.OverridesSnapshot) {
	e.mu.Lock()
	f := e.factory
	e.mu.Unlock()
	if f == nil {
		return
	}
	settings, applyErr := f.TryGetSettingsAny(nil, snap)
	sub.lastCommit = snap.Commit
	sub.delivered = true
	sub.fn(applyErr, settings, snap.Commit)
}

// deliverSubApps synthesizes and delivers every registered sub-app's
// settings object to one sub-app subscription, as a single map. f is the
// caller's typed factoryIface, used directly so the first subscribe call
// doesn't race e.factory being set.
func (s *Store) deliverSubApps(e *appEntry, sub *subEntry, snap values.OverridesSnapshot, f factoryIface) {
	e.mu.Lock()
	ids := make([]int, 0, len(e.subAppNames))
	for id := range e.subAppNames {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	result := make(map[int]any, len(ids))
	var firstErr error
	for _, id := range ids {
		sid := id
		settings, err := f.TryGetSettingsAny(&sid, snap)
		result[id] = settings
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	sub.lastCommit = snap.Commit
	sub.delivered = true
	sub.fn(firstErr, result, snap.Commit)
}

// checkForUpdatesAndNotify refetches appName's snapshot and delivers to
// every subscription whose last-notified commit differs.
// A snapshot fetch failure is reported via onBgError rather than
// delivered to subscribers, to avoid a notification storm while the
// backend is unavailable.
func (s *Store) checkForUpdatesAndNotify(ctx context.Context, appName string) {
	e := s.entry(appName)
	snap, err := s.getSnapshot(ctx, appName)
	if err != nil {
		s.onBgError(err)
		return
	}

	e.rawSubs.dispatch(func() {
		for _, sub := range e.rawSubs.snapshot() {
			if sub.delivered && sub.lastCommit == snap.Commit {
				continue
			}
			sub.lastCommit = snap.Commit
			sub.delivered = true
			sub.fn(nil, snap, snap.Commit)
		}
	})

	e.mu.Lock()
	f := e.factory
	e.mu.Unlock()
	if f == nil {
		return
	}

	e.rootSubs.dispatch(func() {
		for _, sub := range e.rootSubs.snapshot() {
			if sub.delivered && sub.lastCommit == snap.Commit {
				continue
			}
			s.deliverRoot(e, sub, snap)
		}
	})
	e.subAppSubs.dispatch(func() {
		for _, sub := range e.subAppSubs.snapshot() {
			if sub.delivered && sub.lastCommit == snap.Commit {
				continue
			}
			s.deliverSubApps(e, sub, snap, f)
		}
	})
}
