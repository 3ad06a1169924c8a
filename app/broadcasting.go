package app

import (
	"github.com/nbd-wtf/go-nostr"
)

// BroadcastEvent emits an event to all listeners whose filters match it.
// Only events newly accepted on the live EVENT path come through here;
// stored-event replay happens once, synchronously, in response to a REQ.
func (rl *Relay) BroadcastEvent(ev *nostr.Event) {
	listeners.Range(func(ws *WebSocket, subs ListenerMap) bool {
		subs.Range(func(id string, listener *Listener) bool {
			if !listener.filters.Match(ev) {
				return true
			}
			log.T.F("sending event %s (kind %d) to subscriber %s sub %s",
				ev.ID, ev.Kind, ws.RealRemote(), id)
			subId := id
			chk.E(ws.WriteJSON(nostr.EventEnvelope{
				SubscriptionID: &subId,
				Event:          *ev,
			}))
			return true
		})
		return true
	})
}
