package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/server"
)

// ClientNotifier pushes node status frames to connected editor clients so
// the canvas can light up nodes while a run progresses.
type ClientNotifier struct {
	mcpServer *server.MCPServer
	sessions  *SessionRegistry
}

// NewClientNotifier creates a notifier that pushes via the MCP session.
func NewClientNotifier(mcpServer *server.MCPServer, sessions *SessionRegistry) *ClientNotifier {
	return &ClientNotifier{mcpServer: mcpServer, sessions: sessions}
}

// Notify sends a notification to the client's session.
// Best-effort: returns nil if the client is not connected.
func (n *ClientNotifier) Notify(_ context.Context, clientID string, payload map[string]any) error {
	sessionID, ok := n.sessions.SessionFor(clientID)
	if !ok {
		return nil // client not connected, best-effort
	}
	err := n.mcpServer.SendNotificationToSpecificClient(sessionID, "notifications/message", payload)
	if errors.Is(err, server.ErrSessionNotFound) {
		// Session expired between lookup and send, not an error.
		n.sessions.Remove(sessionID)
		return nil
	}
	return err
}
