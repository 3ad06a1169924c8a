package app

import (
	"context"

	"github.com/nbd-wtf/go-nostr"
)

// handleDeleteRequest runs a kind-5 event through the store's deletion
// processing and reports the per-target outcomes in the OK reason. The
// deletion event itself is broadcast (but never stored) when the deletion
// took effect, so subscribers to the deletion kind observe it.
func (rl *Relay) handleDeleteRequest(c context.Context, ws *WebSocket,
	ev *nostr.Event) {

	if rl.ProcessDelete == nil {
		chk.E(ws.WriteJSON(nostr.OKEnvelope{
			EventID: ev.ID,
			OK:      false,
			Reason:  "error: this relay does not accept deletions",
		}))
		return
	}
	summary, ok, err := rl.ProcessDelete(c, ev)
	if err != nil {
		chk.E(ws.WriteJSON(nostr.OKEnvelope{
			EventID: ev.ID,
			OK:      false,
			Reason:  err.Error(),
		}))
		return
	}
	log.D.F("deletion request %s from %s: %s", ev.ID, ev.PubKey, summary)
	chk.E(ws.WriteJSON(nostr.OKEnvelope{
		EventID: ev.ID,
		OK:      ok,
		Reason:  summary,
	}))
	if ok {
		rl.BroadcastEvent(ev)
	}
}
