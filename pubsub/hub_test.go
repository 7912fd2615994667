package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	written chan []byte
	closed  chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{written: make(chan []byte, 8), closed: make(chan struct{})}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case c.written <- append([]byte{}, data...):
	default:
	}
	return nil
}
func (c *fakeConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, context.Canceled
}
func (c *fakeConn) SetReadDeadline(time.Time) error     { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error    { return nil }
func (c *fakeConn) SetPongHandler(func(string) error)   {}
func (c *fakeConn) SetReadLimit(int64)                  {}
func (c *fakeConn) Close() error                         { close(c.closed); return nil }

func TestHubBroadcastsToRegisteredClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub()
	go h.Run(ctx)

	conn := newFakeConn()
	client := h.Register(conn)
	go client.WritePump(1, 9)

	h.Broadcast([]byte(`{"commit":"abc"}`))

	select {
	case msg := <-conn.written:
		assert.Equal(t, `{"commit":"abc"}`, string(msg))
	case <-time.After(time.Second):
		t.Fatal("expected broadcast message to reach the client")
	}

	h.Unregister(client)
}

func TestHubOnEmptyFiresAfterLastClientLeaves(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub()
	go h.Run(ctx)

	emptied := make(chan struct{}, 1)
	h.SetOnEmpty(func() { emptied <- struct{}{} })

	client := h.Register(newFakeConn())
	h.Unregister(client)

	select {
	case <-emptied:
	case <-time.After(time.Second):
		t.Fatal("expected SetOnEmpty callback after last client unregistered")
	}
}

func TestHubRunStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub()
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Run to return after context cancellation")
	}
}

func TestManagerHubForIsIdempotentPerApp(t *testing.T) {
	m := &Manager{hubs: make(map[string]*managedHub)}
	mh := &managedHub{hub: NewHub()}
	m.hubs["app"] = mh
	require.Same(t, mh.hub, m.HubFor("app"))
}
