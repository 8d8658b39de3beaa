package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/tmkelly/choreboard/internal/auth"
)

// HandleWebSocket returns an HTTP handler that upgrades connections to
// WebSocket and runs them as Hub clients. It is registered behind the
// identity middleware, so the requesting user is always known.
func HandleWebSocket(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // allow connections from any origin (household LAN)
		})
		if err != nil {
			hub.logger.Warn("websocket accept", "user", userID, "error", err)
			return
		}

		client := NewClient(hub, conn, userID)
		client.Run(r.Context())
	}
}
