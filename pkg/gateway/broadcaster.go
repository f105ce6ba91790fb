package gateway

import (
	"encoding/json"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// NotificationBroadcaster sends JSON-RPC notifications to every socket client
type NotificationBroadcaster struct {
	clients *ClientRegistry
	logger  zerolog.Logger
}

// NewNotificationBroadcaster creates a new broadcaster
func NewNotificationBroadcaster(clients *ClientRegistry, logger zerolog.Logger) *NotificationBroadcaster {
	return &NotificationBroadcaster{
		clients: clients,
		logger:  logger,
	}
}

// Notify sends method with params to all connected clients and returns
// how many writes succeeded.
func (b *NotificationBroadcaster) Notify(method string, params any) int {
	data, err := json.Marshal(RPCNotification{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		b.logger.Error().Err(err).Str("method", method).Msg("Failed to marshal notification")
		return 0
	}

	clients := b.clients.Snapshot()
	if len(clients) == 0 {
		b.logger.Debug().Str("method", method).Msg("No clients to notify")
		return 0
	}

	sent := 0
	for _, client := range clients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			b.logger.Warn().
				Err(err).
				Str("clientId", client.ID).
				Str("method", method).
				Msg("Failed to notify client")
			continue
		}
		sent++
	}

	b.logger.Debug().
		Str("method", method).
		Int("success", sent).
		Int("failed", len(clients)-sent).
		Msg("Notification broadcast complete")

	return sent
}
