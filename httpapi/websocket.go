package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// nfig's admin websocket is same-host-only, so CheckOrigin simply accepts
// everything once the caller has already passed requireAuth.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 32 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// subscribeWS upgrades to a websocket and streams appName's override
// snapshot as JSON every time its commit changes, backed by the shared
// per-app pubsub.Hub.
func (h *handlers) subscribeWS(c *gin.Context) {
	appName := c.Param("app")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.opts.Logger.Warn("nfig: httpapi: websocket upgrade failed", "app", appName, "error", err)
		return
	}

	hub := h.pubsub.HubFor(appName)
	client := hub.Register(conn)
	go client.WritePump(websocket.TextMessage, websocket.PingMessage)
	client.ReadPump()
	hub.Unregister(client)
}
