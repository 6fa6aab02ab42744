package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/famtasks/internal/auth"
)

// HandleWebSocket returns an HTTP handler that upgrades authenticated
// connections to WebSocket and runs them as clients of the caller's family.
func HandleWebSocket(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		familyID := auth.FamilyID(r.Context())
		if familyID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // token auth, origin is not checked
		})
		if err != nil {
			hub.logger.Warn("accept websocket", "error", err)
			return
		}

		hub.logger.Debug("client connected", "family_id", familyID)
		client := NewClient(hub, familyID, conn)
		client.Run(r.Context())
		hub.logger.Debug("client disconnected", "family_id", familyID)
	}
}
