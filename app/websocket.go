package app

import (
	"net/http"
	"sync"

	"github.com/fasthttp/websocket"
)

// WebSocket wraps a fasthttp/websocket connection with write locking, since
// replies, replays and broadcasts to the same client come from different
// goroutines.
type WebSocket struct {
	conn    *websocket.Conn
	mutex   sync.Mutex
	Request *http.Request // original request

	// remote is the resolved client address, preferring forwarded-for
	// headers over the socket peer.
	remote string
}

// RealRemote returns the resolved client address.
func (ws *WebSocket) RealRemote() string { return ws.remote }

// WriteJSON writes an object as JSON to the websocket.
func (ws *WebSocket) WriteJSON(a any) error {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()
	return ws.conn.WriteJSON(a)
}

// WriteMessage writes a message with a given websocket type specifier.
func (ws *WebSocket) WriteMessage(t int, b []byte) error {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()
	return ws.conn.WriteMessage(t, b)
}
