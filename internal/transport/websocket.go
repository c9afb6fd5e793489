package transport

import (
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"

	"github.com/rachmataditiya/odoo-mcp-server/pkg/logging"
)

// handleWebSocket bridges one bidirectional WebSocket connection into
// server.MCPServer.HandleMessage: one inbound text frame carries exactly one
// JSON-RPC request or notification, and any response it produces is written
// back as one outbound text frame.
func (m *Manager) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		logging.Warn("Transport", "websocket accept failed: %v", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			logging.Debug("Transport", "websocket connection closed: %v", err)
			return
		}

		response := m.session.MCPServer().HandleMessage(ctx, data)
		if response == nil {
			continue
		}
		payload, err := json.Marshal(response)
		if err != nil {
			logging.Error("Transport", err, "failed to marshal websocket response")
			continue
		}
		if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
			logging.Debug("Transport", "websocket write failed: %v", err)
			return
		}
	}
}
