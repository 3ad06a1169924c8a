package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/rs/cors"
)

// Start creates an http server and starts listening on the given address.
// Each chan in started is closed once the listener is bound.
func (rl *Relay) Start(addr string, started ...chan bool) (err error) {
	var ln net.Listener
	if ln, err = net.Listen("tcp", addr); chk.E(err) {
		return
	}
	rl.Addr = ln.Addr().String()
	rl.httpServer = &http.Server{
		Handler:     cors.Default().Handler(rl),
		Addr:        addr,
		IdleTimeout: 30 * time.Second,
	}
	log.I.Ln("listening on", rl.Addr)
	// notify callers that we're ready
	for _, s := range started {
		close(s)
	}
	if err = rl.httpServer.Serve(ln); errors.Is(err, http.ErrServerClosed) {
		return nil
	} else if chk.E(err) {
		return
	}
	return
}

// Shutdown stops the http server and sends a websocket close control message
// to all connected clients.
func (rl *Relay) Shutdown(c context.Context) {
	chk.E(rl.httpServer.Shutdown(c))
	rl.clients.Range(func(conn *websocket.Conn, _ struct{}) bool {
		chk.E(conn.WriteControl(websocket.CloseMessage, nil,
			time.Now().Add(time.Second)))
		chk.E(conn.Close())
		rl.clients.Delete(conn)
		return true
	})
}
