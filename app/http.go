package app

import (
	"net/http"
)

// Router returns the relay's mux, for serving anything next to the
// websocket endpoint.
func (rl *Relay) Router() *http.ServeMux { return rl.serveMux }

// ServeHTTP implements the http.Handler interface.
//
// This is the main entry of the relay; websocket upgrades launch
// HandleWebsocket, which runs the message handling loop.
func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-rl.Ctx.Done():
		log.W.Ln("shutting down")
		return
	default:
	}
	if r.Header.Get("Upgrade") == "websocket" {
		rl.HandleWebsocket(w, r)
	} else {
		rl.serveMux.ServeHTTP(w, r)
	}
}
