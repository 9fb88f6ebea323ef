package wire

import (
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The server binds to loopback; origin filtering happens upstream.
		return true
	},
}

// WebSocketTransport carries protocol messages over a websocket connection,
// one JSON message per websocket text frame.
type WebSocketTransport struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewWebSocketTransport wraps an established websocket connection.
func NewWebSocketTransport(conn *websocket.Conn) *WebSocketTransport {
	return &WebSocketTransport{conn: conn}
}

func (t *WebSocketTransport) ReadLine() ([]byte, error) {
	for {
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, err
		}
		if msgType != websocket.TextMessage || len(data) == 0 {
			continue
		}
		return data, nil
	}
}

func (t *WebSocketTransport) WriteLine(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *WebSocketTransport) Close() error {
	return t.conn.Close()
}

// SessionFactory builds a fresh Server for each accepted connection. Sessions
// are independent; nothing is shared between them.
type SessionFactory func(t Transport) (*Server, error)

// WebSocketHandler upgrades HTTP requests to websocket sessions, running one
// protocol server per connection until the peer disconnects.
func WebSocketHandler(factory SessionFactory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("websocket upgrade failed", "error", err)
			return
		}

		transport := NewWebSocketTransport(conn)
		srv, err := factory(transport)
		if err != nil {
			slog.Error("session setup failed", "error", err)
			conn.Close()
			return
		}

		slog.Info("session connected", "remote", r.RemoteAddr, "session", srv.SessionID())
		if err := srv.Run(r.Context()); err != nil {
			slog.Error("session ended with error", "session", srv.SessionID(), "error", err)
		} else {
			slog.Info("session disconnected", "session", srv.SessionID())
		}
	}
}
