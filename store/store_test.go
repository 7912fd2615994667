package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getnfig/nfig/backend/memory"
	"github.com/getnfig/nfig/nfigerr"
	"github.com/getnfig/nfig/schema"
	"github.com/getnfig/nfig/store"
	"github.com/getnfig/nfig/values"
)

type widgetSchema struct {
	Name string `nfig:"Name" nfig-default:"widget"`
}

type otherSchema struct {
	Count int `nfig:"Count" nfig-default:"1"`
}

func newStore() (*memory.Memory, *store.Store) {
	b := memory.New()
	return b, store.New(b, store.Options{})
}

func TestGetAppClientReadsDefaultAndPublishesMetadata(t *testing.T) {
	ctx := context.Background()
	b, s := newStore()

	c, err := store.GetAppClient[widgetSchema](ctx, s, "app1", schema.Options{})
	require.NoError(t, err)

	settings, err := c.GetSettings(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "widget", settings.Settings.Name)
	assert.Equal(t, "app1", settings.AppName)

	meta, err := b.GetSettingsMetadata(ctx, "app1")
	require.NoError(t, err)
	require.NotNil(t, meta)
	_, ok := meta.Get("Name")
	assert.True(t, ok)
}

func TestGetAppClientTypeMismatchIsFatal(t *testing.T) {
	ctx := context.Background()
	_, s := newStore()

	_, err := store.GetAppClient[widgetSchema](ctx, s, "app1", schema.Options{})
	require.NoError(t, err)

	_, err = store.GetAppClient[otherSchema](ctx, s, "app1", schema.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, &nfigerr.AppBindingError{})
}

func TestAdminSetOverrideIsVisibleToAppClient(t *testing.T) {
	ctx := context.Background()
	_, s := newStore()

	c, err := store.GetAppClient[widgetSchema](ctx, s, "app1", schema.Options{})
	require.NoError(t, err)
	admin := store.GetAdminClient(s, "app1")

	_, ok, err := admin.SetOverride(ctx, values.OverrideValue{Name: "Name", StringValue: "gadget"}, "tester", "")
	require.NoError(t, err)
	require.True(t, ok)

	settings, err := c.GetSettings(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "gadget", settings.Settings.Name)
}

func TestAdminSetOverrideCASRejectsStaleCommit(t *testing.T) {
	ctx := context.Background()
	_, s := newStore()
	admin := store.GetAdminClient(s, "app1")

	_, ok, err := admin.SetOverride(ctx, values.OverrideValue{Name: "Name", StringValue: "v1"}, "tester", values.Commit("not-the-current-commit"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSubscribeDeliversInitiallyAndOnChange(t *testing.T) {
	ctx := context.Background()
	_, s := newStore()

	c, err := store.GetAppClient[widgetSchema](ctx, s, "app1", schema.Options{})
	require.NoError(t, err)
	admin := store.GetAdminClient(s, "app1")

	var deliveries []string
	unsubscribe, err := c.Subscribe(ctx, func(err error, m *store.Materialized[widgetSchema]) {
		require.NoError(t, err)
		deliveries = append(deliveries, m.Settings.Name)
	})
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, "widget", deliveries[0])

	_, ok, err := admin.SetOverride(ctx, values.OverrideValue{Name: "Name", StringValue: "gadget"}, "tester", "")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, deliveries, 2)
	assert.Equal(t, "gadget", deliveries[1])

	removed := unsubscribe()
	assert.Equal(t, 1, removed)

	_, ok, err = admin.SetOverride(ctx, values.OverrideValue{Name: "Name", StringValue: "thingamajig"}, "tester", "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, deliveries, 2, "no delivery after unsubscribe")
}

func TestSubscribeSelfUnsubscribe(t *testing.T) {
	ctx := context.Background()
	_, s := newStore()
	admin := store.GetAdminClient(s, "app1")

	c, err := store.GetAppClient[widgetSchema](ctx, s, "app1", schema.Options{})
	require.NoError(t, err)

	var unsubscribe func() int
	calls := 0
	unsubscribe, err = c.Subscribe(ctx, func(err error, m *store.Materialized[widgetSchema]) {
		calls++
		if calls == 2 {
			// Self-unsubscribe from within the callback: valid once the
			// initial synchronous delivery has completed and unsubscribe
			// has been assigned.
			unsubscribe()
		}
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	_, ok, err := admin.SetOverride(ctx, values.OverrideValue{Name: "Name", StringValue: "gadget"}, "tester", "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, calls)

	_, ok, err = admin.SetOverride(ctx, values.OverrideValue{Name: "Name", StringValue: "thingamajig"}, "tester", "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, calls, "self-unsubscribed during second delivery; no third delivery")
}

func TestAdminValidation(t *testing.T) {
	ctx := context.Background()
	_, s := newStore()
	admin := store.GetAdminClient(s, "app1")

	ok, err := admin.IsValidForSetting("Name", "anything")
	require.NoError(t, err)
	assert.True(t, ok, "unknown schema: best-effort accept")

	_, err = store.GetAppClient[widgetSchema](ctx, s, "app1", schema.Options{})
	require.NoError(t, err)

	assert.True(t, admin.CanValidate("Name"))
	assert.False(t, admin.CanValidate("Nope"))
}

func TestOrphanSweepRemovesUnknownOverrideOnFirstFetch(t *testing.T) {
	ctx := context.Background()
	b, s := newStore()

	_, err := store.GetAppClient[widgetSchema](ctx, s, "app1", schema.Options{})
	require.NoError(t, err)

	// Write an override that has no matching setting, bypassing the admin
	// client's validation path.
	_, _, err = b.SetOverride(ctx, "app1", values.OverrideValue{Name: "Ghost", StringValue: "x"}, "", "")
	require.NoError(t, err)

	admin := store.GetAdminClient(s, "app1")
	_, err = admin.GetSnapshot(ctx)
	require.NoError(t, err)

	snap, err := b.GetSnapshot(ctx, "app1")
	require.NoError(t, err)
	for _, o := range snap.Overrides {
		assert.NotEqual(t, "Ghost", o.Name)
	}
}

func TestConcurrentSetOverrideSameCommitExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	_, s := newStore()
	admin := store.GetAdminClient(s, "app1")

	c0, err := admin.GetCurrentCommit(ctx)
	require.NoError(t, err)

	results := make(chan bool, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o := values.OverrideValue{Name: "Name", StringValue: fmt.Sprintf("writer-%d", i)}
			_, ok, err := admin.SetOverride(ctx, o, "tester", c0)
			require.NoError(t, err)
			results <- ok
		}(i)
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins, "two CAS writes against the same commit: exactly one succeeds")
}

func TestConcurrentGetSettingsDuringMutations(t *testing.T) {
	ctx := context.Background()
	_, s := newStore()

	c, err := store.GetAppClient[widgetSchema](ctx, s, "app1", schema.Options{})
	require.NoError(t, err)
	admin := store.GetAdminClient(s, "app1")

	const writers, readers, reads = 2, 4, 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < reads; i++ {
				o := values.OverrideValue{Name: "Name", StringValue: fmt.Sprintf("w%d-%d", w, i)}
				_, _, err := admin.SetOverride(ctx, o, "tester", "")
				require.NoError(t, err)
			}
		}(w)
	}
	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < reads; i++ {
				m, err := c.GetSettings(ctx, nil)
				require.NoError(t, err)
				require.NotNil(t, m.Settings)
				assert.NotEmpty(t, m.Commit, "every settings object carries the commit of the snapshot that produced it")
				assert.NotEmpty(t, m.Settings.Name)
			}
		}()
	}
	wg.Wait()
}
