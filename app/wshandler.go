package app

import (
	"context"
	"net/http"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/sebest/xff"
)

// HandleWebsocket upgrades the connection and starts the two goroutines that
// own it: the read loop and the ping watcher. Everything a connection holds
// is torn down through the kill func, which both goroutines defer.
func (rl *Relay) HandleWebsocket(w http.ResponseWriter, r *http.Request) {
	var err error
	var conn *websocket.Conn
	conn, err = rl.upgrader.Upgrade(w, r, nil)
	if chk.E(err) {
		log.E.F("failed to upgrade websocket: %v", err)
		return
	}
	// resolve the client address through any reverse proxy headers; with no
	// upstream this is the socket peer address
	rr := xff.GetRemoteAddr(r)
	if !rl.whitelisted(rr) {
		log.T.F("denying connection from '%s'", rr)
		chk.E(conn.Close())
		return
	}
	log.T.Ln("inbound connection from", rr)
	rl.clients.Store(conn, struct{}{})
	ticker := time.NewTicker(rl.PingPeriod)
	ws := &WebSocket{
		conn:    conn,
		Request: r,
		remote:  rr,
	}
	c, cancel := context.WithCancel(
		context.WithValue(rl.Ctx, wsKey, ws),
	)
	kill := func() {
		log.T.Ln("disconnecting websocket", rr)
		for _, onDisconnect := range rl.OnDisconnect {
			onDisconnect(c)
		}
		ticker.Stop()
		cancel()
		if _, ok := rl.clients.Load(conn); ok {
			chk.E(conn.Close())
			rl.clients.Delete(conn)
			RemoveListener(ws)
		}
	}
	go rl.websocketReadMessages(readParams{c, kill, ws, conn, r})
	go rl.websocketWatcher(watcherParams{c, kill, ticker, ws})
}
