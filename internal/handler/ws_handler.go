/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

The room and username are not part of the handshake: a connection binds itself later with a
join-room event. A valid token query parameter pins the username the connection may join as.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"tempchat/internal/app/chat"
	"tempchat/internal/pkg/auth/jwt"
	"tempchat/internal/pkg/logx"
)

// HandleWebSocket upgrades the request and runs the connection until it closes.
func HandleWebSocket(manager *chat.Manager, upgrader websocket.Upgrader, readLimit int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := ""
		if payload := jwt.GetPayloadFromContext(r); payload != nil {
			identity = payload.Username
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := chat.NewClient(conn, readLimit)
		session := manager.Attach(client, identity)

		go client.WritePump()

		logx.Info("WebSocket connection established", "conn_id", client.ID(), "identity", identity)

		client.ReadPump(r.Context(), manager, session)
	}
}
