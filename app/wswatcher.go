package app

import (
	"context"
	"strings"
	"time"

	"github.com/fasthttp/websocket"
)

type watcherParams struct {
	c    context.Context
	kill func()
	t    *time.Ticker
	ws   *WebSocket
}

// websocketWatcher keeps the connection alive with periodic pings and tears
// it down when either the connection context or the relay context ends.
func (rl *Relay) websocketWatcher(p watcherParams) {
	var err error
	defer p.kill()
	for {
		select {
		case <-rl.Ctx.Done():
			return
		case <-p.c.Done():
			return
		case <-p.t.C:
			if err = p.ws.WriteMessage(websocket.PingMessage,
				nil); log.T.Chk(err) {
				if !strings.HasSuffix(err.Error(),
					"use of closed network connection") {
					log.T.F("error writing ping: %v; closing websocket", err)
				}
				return
			}
		}
	}
}
