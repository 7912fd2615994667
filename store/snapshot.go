package store

import (
	"context"

	"github.com/getnfig/nfig/nfigerr"
	"github.com/getnfig/nfig/values"
)

// getSnapshot returns appName's cached OverridesSnapshot, refetching from
// the backend when the cache is missing or stale. The entry's mutex is
// held across the commit check, the backend fetch, and the cache write, so
// concurrent cold readers collapse onto one backend call rather than each
// racing their own fetch.
func (s *Store) getSnapshot(ctx context.Context, appName string) (values.OverridesSnapshot, error) {
	e := s.entry(appName)
	e.mu.Lock()

	if e.hasSnapshot {
		current, err := s.backend.GetCurrentCommit(ctx, appName)
		if err != nil {
			e.mu.Unlock()
			return values.OverridesSnapshot{}, &nfigerr.BackendError{Op: "GetCurrentCommit", Err: err}
		}
		if current == e.snapshot.Commit {
			snap := e.snapshot
			e.mu.Unlock()
			return snap, nil
		}
	}

	snap, err := s.retryFetch(ctx, func() (values.OverridesSnapshot, error) {
		return s.backend.GetSnapshot(ctx, appName)
	})
	if err != nil {
		e.mu.Unlock()
		return values.OverridesSnapshot{}, err
	}

	e.snapshot = snap
	e.hasSnapshot = true
	needsSweep := !e.orphanSwept
	e.orphanSwept = true
	e.mu.Unlock()

	if needsSweep {
		s.sweepOrphans(ctx, appName, snap)
	}
	return snap, nil
}

// sweepOrphans deletes overrides whose setting name is not in appName's
// published schema metadata, once per app per process.
// Best-effort: failures are reported to OnBackgroundError
// rather than surfaced to the caller of getSnapshot, since the sweep is
// opportunistic cleanup, not part of the read path's contract.
func (s *Store) sweepOrphans(ctx context.Context, appName string, snap values.OverridesSnapshot) {
	meta, err := s.backend.GetSettingsMetadata(ctx, appName)
	if err != nil {
		s.onBgError(&nfigerr.BackendError{Op: "GetSettingsMetadata", Err: err})
		return
	}
	if meta == nil {
		return
	}
	for _, o := range snap.Overrides {
		if _, ok := meta.Get(o.Name); ok {
			continue
		}
		if _, _, err := s.backend.ClearOverride(ctx, appName, o.Key(), "orphan-sweep", ""); err != nil {
			s.onBgError(&nfigerr.BackendError{Op: "ClearOverride(orphan)", Err: err})
		}
	}
}

// GetCurrentCommit returns appName's current commit directly from the
// backend, bypassing the snapshot cache.
func (s *Store) GetCurrentCommit(ctx context.Context, appName string) (values.Commit, error) {
	commit, err := s.backend.GetCurrentCommit(ctx, appName)
	if err != nil {
		return "", &nfigerr.BackendError{Op: "GetCurrentCommit", Err: err}
	}
	return commit, nil
}
