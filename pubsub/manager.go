package pubsub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/getnfig/nfig/store"
	"github.com/getnfig/nfig/values"
)

// Manager lazily creates and tears down one Hub per app, feeding each from
// that app's AdminClient.SubscribeRaw so every websocket client connected
// to an app sees the same broadcast stream instead of each holding its own
// store subscription.
type Manager struct {
	s   *store.Store
	log *slog.Logger

	mu   sync.Mutex
	hubs map[string]*managedHub
}

type managedHub struct {
	hub    *Hub
	cancel context.CancelFunc
	unsub  func()
}

// NewManager builds a Manager over s.
func NewManager(s *store.Store, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{s: s, log: log, hubs: make(map[string]*managedHub)}
}

// HubFor returns appName's Hub, creating it (and its upstream
// AdminClient.SubscribeRaw feed) on first use. The feed is torn down
// automatically once the hub's last client disconnects.
func (m *Manager) HubFor(appName string) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.hubs[appName]; ok {
		return existing.hub
	}

	ctx, cancel := context.WithCancel(context.Background())
	mh := &managedHub{hub: NewHub(), cancel: cancel}
	m.hubs[appName] = mh

	go mh.hub.Run(ctx)

	admin := store.GetAdminClient(m.s, appName)
	unsub, err := admin.SubscribeRaw(ctx, func(snap values.OverridesSnapshot) {
		b, err := json.Marshal(snap)
		if err != nil {
			m.log.Error("nfig: pubsub: marshaling snapshot", "app", appName, "error", err)
			return
		}
		mh.hub.Broadcast(b)
	})
	if err != nil {
		m.log.Error("nfig: pubsub: subscribing to raw snapshot", "app", appName, "error", err)
	}
	mh.unsub = unsub

	mh.hub.SetOnEmpty(func() {
		m.mu.Lock()
		delete(m.hubs, appName)
		m.mu.Unlock()
		if mh.unsub != nil {
			mh.unsub()
		}
		mh.cancel()
	})

	return mh.hub
}
