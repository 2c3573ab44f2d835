package transport

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WebSocketTransport implements Transport over WebSocket connections,
// dialing on demand and caching connections by peer address — adapted
// directly from cmd/server's WebSocketTransport and bridge.WebSocketAdapter.
type WebSocketTransport struct {
	mu          sync.RWMutex
	connections map[string]*websocket.Conn
	logger      zerolog.Logger
	handler     Handler
	upgrader    websocket.Upgrader
}

// NewWebSocketTransport creates a transport with no connections yet open.
func NewWebSocketTransport(logger zerolog.Logger) *WebSocketTransport {
	return &WebSocketTransport{
		connections: make(map[string]*websocket.Conn),
		logger:      logger.With().Str("component", "transport").Logger(),
		upgrader:    websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Send dials addr (treated as a ws:// endpoint) on first use, caching the
// connection for subsequent sends.
func (t *WebSocketTransport) Send(ctx context.Context, addr string, data []byte) error {
	t.mu.RLock()
	conn, exists := t.connections[addr]
	t.mu.RUnlock()

	if !exists {
		var err error
		conn, _, err = websocket.DefaultDialer.DialContext(ctx, "ws://"+addr+"/gossip", nil)
		if err != nil {
			return err
		}
		t.mu.Lock()
		t.connections[addr] = conn
		t.mu.Unlock()
	}

	return conn.WriteMessage(websocket.TextMessage, data)
}

func (t *WebSocketTransport) SetHandler(handler Handler) {
	t.handler = handler
}

func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for addr, conn := range t.connections {
		conn.Close()
		delete(t.connections, addr)
	}
	return nil
}

// SetConnection registers an already-upgraded inbound connection under
// peerAddr, for incoming connections where the peer dialed us first.
func (t *WebSocketTransport) SetConnection(peerAddr string, conn *websocket.Conn) {
	t.mu.Lock()
	t.connections[peerAddr] = conn
	t.mu.Unlock()
}

// UpgradeHandler returns an http.HandlerFunc suitable for mounting at
// "/gossip": it upgrades the connection, optionally caches it under
// peerAddr (non-empty when the dialing peer identifies itself via a query
// parameter), and feeds every inbound frame to the installed Handler.
func (t *WebSocketTransport) UpgradeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := t.upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.logger.Error().Err(err).Msg("websocket upgrade failed")
			return
		}
		defer conn.Close()

		peerAddr := r.URL.Query().Get("peer")
		if peerAddr != "" {
			t.SetConnection(peerAddr, conn)
		}

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if t.handler != nil {
				t.handler(peerAddr, data)
			}
		}
	}
}
