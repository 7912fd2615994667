package store

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/getnfig/nfig/values"
)

// appEntry is the per-app state: the pinned settings type, the compiled
// factory behind it, the snapshot cache, and the subscription lists. One
// dedicated mutex (mu) protects snapshot, factory, and the published-once
// flags, held across cache-check + backend-fetch + cache-write — coarser
// than the registry's lookup-only lock, so concurrent cold readers
// collapse onto one backend fetch.
type appEntry struct {
	name string

	mu           sync.Mutex
	settingsType reflect.Type
	factory      factoryIface

	hasSnapshot  bool
	snapshot     values.OverridesSnapshot
	orphanSwept  bool
	rootDefaults []values.DefaultValue
	subAppNames  map[int]string

	rootSubs   subList
	subAppSubs subList
	rawSubs    subList

	pushWired bool
	pushUnsub func()
}

func newAppEntry(name string) *appEntry {
	return &appEntry{name: name, subAppNames: make(map[int]string)}
}

// subEntry is one subscription's state: a stable id for unsubscription, the
// commit last delivered to this subscriber, and the callback. fn's second
// argument is a *T for a root subscription or a map[int]any (sub-app id ->
// *T) for a sub-app subscription; the AppClient wrapper that installed fn
// knows which.
type subEntry struct {
	id         int
	lastCommit values.Commit
	delivered  bool
	fn         func(error, any, values.Commit)
}

// subList is a subscription list whose callbacks are invoked while
// effectively "holding the list," but the list itself is a lock-free
// copy-on-write slice so that a callback may unsubscribe itself without
// deadlocking on a non-reentrant mutex. dispatchMu still serializes
// concurrent notify passes over this list, so two notifications never
// interleave their callback invocations.
type subList struct {
	dispatchMu sync.Mutex
	subs       atomic.Pointer[[]*subEntry]
	nextID     atomic.Int64
}

func (l *subList) add(fn func(error, any, values.Commit)) *subEntry {
	s := &subEntry{id: int(l.nextID.Add(1)), fn: fn}
	for {
		old := l.subs.Load()
		var oldSlice []*subEntry
		if old != nil {
			oldSlice = *old
		}
		next := append(append([]*subEntry{}, oldSlice...), s)
		if l.subs.CompareAndSwap(old, &next) {
			return s
		}
	}
}

// remove drops every subscription matching id (id == 0 removes all).
// It returns the number removed.
func (l *subList) remove(id int) int {
	for {
		old := l.subs.Load()
		if old == nil {
			return 0
		}
		oldSlice := *old
		removed := 0
		next := make([]*subEntry, 0, len(oldSlice))
		for _, s := range oldSlice {
			if id == 0 || s.id == id {
				removed++
				continue
			}
			next = append(next, s)
		}
		if removed == 0 {
			return 0
		}
		if l.subs.CompareAndSwap(old, &next) {
			return removed
		}
	}
}

// dispatch runs fn with dispatchMu held, serializing concurrent notify
// passes over this list (e.g. a synchronous store-triggered notify racing
// an async push-triggered one) so two passes never both decide to deliver
// the same not-yet-updated commit to the same subscriber. fn must not call
// add/remove reentrantly from the same goroutine holding this lock — only
// a callback invoked BY fn may do that, via the lock-free subs slice.
func (l *subList) dispatch(fn func()) {
	l.dispatchMu.Lock()
	defer l.dispatchMu.Unlock()
	fn()
}

func (l *subList) snapshot() []*subEntry {
	p := l.subs.Load()
	if p == nil {
		return nil
	}
	return *p
}

func (l *subList) len() int { return len(l.snapshot()) }
