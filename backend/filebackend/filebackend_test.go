package filebackend_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getnfig/nfig/backend/filebackend"
	"github.com/getnfig/nfig/tier"
	"github.com/getnfig/nfig/values"
)

func newBackend(t *testing.T) *filebackend.FileBackend {
	t.Helper()
	fb, err := filebackend.New(t.TempDir(), filebackend.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = fb.Close() })
	return fb
}

func TestUnknownAppReturnsInitialCommitSnapshot(t *testing.T) {
	fb := newBackend(t)
	ctx := context.Background()

	commit, err := fb.GetCurrentCommit(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, values.Commit(values.InitialCommit), commit)

	snap, err := fb.GetSnapshot(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, snap.Overrides)
}

func TestSetOverridePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	fb1, err := filebackend.New(dir, filebackend.Options{})
	require.NoError(t, err)
	defer fb1.Close()

	override := values.OverrideValue{Name: "Rate", StringValue: "10", DataCenter: tier.DataCenter(1)}
	snap1, ok, err := fb1.SetOverride(ctx, "app", override, "u", "")
	require.NoError(t, err)
	require.True(t, ok)

	fb2, err := filebackend.New(dir, filebackend.Options{})
	require.NoError(t, err)
	defer fb2.Close()

	snap2, err := fb2.GetSnapshot(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, snap1.Commit, snap2.Commit)
	require.Len(t, snap2.Overrides, 1)
	assert.Equal(t, "10", snap2.Overrides[0].StringValue)
}

func TestSetOverrideCASFailsOnStaleCommit(t *testing.T) {
	fb := newBackend(t)
	ctx := context.Background()

	override := values.OverrideValue{Name: "Rate", StringValue: "1"}
	snap1, ok, err := fb.SetOverride(ctx, "app", override, "u", "")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = fb.SetOverride(ctx, "app", override, "u", "stale-commit")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = fb.SetOverride(ctx, "app", override, "u", snap1.Commit)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPushNotificationFiresOnWrite(t *testing.T) {
	fb := newBackend(t)
	ctx := context.Background()

	notified := make(chan struct{}, 1)
	unsub := fb.Subscribe("app", func() {
		select {
		case notified <- struct{}{}:
		default:
		}
	})
	defer unsub()

	_, ok, err := fb.SetOverride(ctx, "app", values.OverrideValue{Name: "X", StringValue: "1"}, "u", "")
	require.NoError(t, err)
	require.True(t, ok)

	select {
	case <-notified:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a push notification after SetOverride")
	}
}

func TestRestoreSnapshotReplacesOverrides(t *testing.T) {
	fb := newBackend(t)
	ctx := context.Background()

	_, ok, err := fb.SetOverride(ctx, "app", values.OverrideValue{Name: "A", StringValue: "1"}, "u", "")
	require.NoError(t, err)
	require.True(t, ok)

	restored := values.OverridesSnapshot{
		Overrides: []values.OverrideValue{{Name: "B", StringValue: "2"}},
	}
	snap, err := fb.RestoreSnapshot(ctx, "app", restored, "u")
	require.NoError(t, err)
	require.Len(t, snap.Overrides, 1)
	assert.Equal(t, "B", snap.Overrides[0].Name)
}
