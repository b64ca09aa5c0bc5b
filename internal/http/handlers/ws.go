package handlers

import (
	"log/slog"
	"net/http"

	"tasksync/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WS upgrades notify endpoint connections. An empty allowedOrigin accepts
// any origin.
func WS(hub *ws.Hub, allowedOrigin string, sendBuffer int, log *slog.Logger) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}

	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn("ws upgrade error", "error", err, "remote", c.ClientIP())
			return
		}

		client := ws.NewClient(conn, hub, sendBuffer, log)
		log.Info("client connected", "client_id", client.ID, "remote", c.ClientIP())

		go client.Run()
	}
}
