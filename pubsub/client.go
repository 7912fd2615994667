package pubsub

import (
	"time"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// wsConn is the subset of *websocket.Conn the hub needs, so this package
// doesn't force gorilla/websocket on callers that only want Hub/Broadcast
// for non-websocket transports (e.g. tests).
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	SetReadLimit(limit int64)
	Close() error
}

// Client is one connected websocket subscriber.
type Client struct {
	conn wsConn
	send chan []byte
}

// WritePump forwards broadcast messages to the underlying connection and
// sends periodic pings, refreshing the write deadline before every write.
// Returns when send is closed (by Hub.Unregister) or a write fails.
func (c *Client) WritePump(textMessageType int, pingMessageType int) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(closeMessageType, nil)
				return
			}
			if err := c.conn.WriteMessage(textMessageType, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(pingMessageType, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump discards inbound messages (this hub is publish-only) but keeps
// the read deadline/pong handler alive so idle connections get reaped, and
// returns once the peer disconnects.
func (c *Client) ReadPump() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

const closeMessageType = 8 // websocket.CloseMessage
