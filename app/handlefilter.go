package app

import (
	"context"

	"github.com/nbd-wtf/go-nostr"
)

// filtersHaveAcceptedKind reports whether at least one filter names at least
// one kind this relay stores. Filters that leave kinds unconstrained do not
// count; the relay only feeds subscriptions that ask for its domain.
func (rl *Relay) filtersHaveAcceptedKind(ff nostr.Filters) bool {
	for i := range ff {
		for _, k := range ff[i].Kinds {
			if rl.KindAccepted(k) {
				return true
			}
		}
	}
	return false
}

// handleFilter replays stored events matching one filter, skipping ids in
// seen and recording what it sends there. The caller sends EOSE after every
// filter of the subscription has been replayed.
func (rl *Relay) handleFilter(c context.Context, id string, ws *WebSocket,
	f nostr.Filter, seen map[string]struct{}) {

	// run the functions to query events (generally just one, but we
	// might be fetching stuff from multiple places)
	for _, query := range rl.QueryEvents {
		var err error
		var ch chan *nostr.Event
		if ch, err = query(c, f); chk.E(err) {
			chk.E(ws.WriteJSON(nostr.NoticeEnvelope(err.Error())))
			continue
		}
		for ev := range ch {
			if ev == nil {
				continue
			}
			if _, dup := seen[ev.ID]; dup {
				continue
			}
			seen[ev.ID] = struct{}{}
			chk.E(ws.WriteJSON(nostr.EventEnvelope{
				SubscriptionID: &id,
				Event:          *ev,
			}))
		}
	}
}
