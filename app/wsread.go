package app

import (
	"context"
	"net/http"
	"time"

	"github.com/fasthttp/websocket"
)

type readParams struct {
	c    context.Context
	kill func()
	ws   *WebSocket
	conn *websocket.Conn
	r    *http.Request
}

// websocketReadMessages is the per-connection read loop. Frames are handed
// to the processor synchronously, so one connection's messages are handled
// strictly in arrival order while other connections proceed in parallel.
func (rl *Relay) websocketReadMessages(p readParams) {
	defer p.kill()
	p.conn.SetReadLimit(rl.MaxMessageSize)
	chk.E(p.conn.SetReadDeadline(time.Now().Add(rl.PongWait)))
	p.conn.SetPongHandler(func(string) (err error) {
		err = p.conn.SetReadDeadline(time.Now().Add(rl.PongWait))
		chk.E(err)
		return
	})
	for _, onConnect := range rl.OnConnect {
		onConnect(p.c)
	}
	for {
		var err error
		var typ int
		var message []byte
		typ, message, err = p.conn.ReadMessage()
		if log.D.Chk(err) {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseNormalClosure,    // 1000
				websocket.CloseGoingAway,        // 1001
				websocket.CloseNoStatusReceived, // 1005
				websocket.CloseAbnormalClosure,  // 1006
			) {
				log.E.F("unexpected close error from %s: %v",
					p.ws.RealRemote(), err)
			}
			return
		}
		if typ == websocket.PingMessage {
			chk.E(p.ws.WriteMessage(websocket.PongMessage, nil))
			continue
		}
		log.T.F("receiving message from %s: %s", p.ws.RealRemote(),
			string(message))
		rl.wsProcessMessage(p.c, p.ws, message)
	}
}
