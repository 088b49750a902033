// Package socket provides an interface for managing socket.
package socket

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// WebSocket wraps the gorilla/websocket connection.
type WebSocket struct {
	conn *websocket.Conn
}

// New creates a new WebSocket connection by upgrading the HTTP request.
func New(w http.ResponseWriter, r *http.Request) (*WebSocket, error) {
	ug := websocket.Upgrader{
		CheckOrigin: func(_ *http.Request) bool {
			return true
		},
	}

	conn, err := ug.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return &WebSocket{
		conn: conn,
	}, nil
}

// Dial creates a new WebSocket connection to the given URL.
func Dial(url string) (*WebSocket, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return &WebSocket{
		conn: conn,
	}, nil
}

// Close closes the WebSocket connection.
func (s *WebSocket) Close() error {
	return s.conn.Close()
}

// WriteJSON sends a JSON message to the WebSocket connection.
func (s *WebSocket) WriteJSON(data any) error {
	return s.conn.WriteJSON(data)
}

// ReadJSON reads a JSON message from the WebSocket connection and
// unmarshals it into the provided variable.
func (s *WebSocket) ReadJSON(v any) error {
	return s.conn.ReadJSON(v)
}
