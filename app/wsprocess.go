package app

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/minio/sha256-simd"
	"github.com/nbd-wtf/go-nostr"
)

// wsProcessMessage dispatches one inbound frame. Malformed frames and
// unknown envelope shapes are dropped without a reply; the connection stays
// open.
func (rl *Relay) wsProcessMessage(c context.Context, ws *WebSocket, msg []byte) {
	if len(msg) == 0 {
		return
	}
	envelope := nostr.ParseMessage(msg)
	if envelope == nil {
		log.T.F("dropping unparseable message from %s", ws.RealRemote())
		return
	}
	switch env := envelope.(type) {
	case *nostr.EventEnvelope:
		rl.handleEventMessage(c, ws, &env.Event)
	case *nostr.ReqEnvelope:
		rl.handleReqMessage(c, ws, env)
	case *nostr.CloseEnvelope:
		RemoveListenerId(ws, string(*env))
	default:
		// AUTH, COUNT and anything else this relay does not speak
		log.T.F("ignoring %s envelope from %s", envelope.Label(),
			ws.RealRemote())
	}
}

func (rl *Relay) handleEventMessage(c context.Context, ws *WebSocket, ev *nostr.Event) {
	// check id
	hash := sha256.Sum256(ev.Serialize())
	id := hex.EncodeToString(hash[:])
	if id != ev.ID {
		chk.E(ws.WriteJSON(nostr.OKEnvelope{
			EventID: ev.ID,
			OK:      false,
			Reason:  "invalid: id is computed incorrectly",
		}))
		return
	}
	// check signature
	var ok bool
	var err error
	if ok, err = ev.CheckSignature(); chk.E(err) {
		chk.E(ws.WriteJSON(nostr.OKEnvelope{
			EventID: ev.ID,
			OK:      false,
			Reason:  "error: failed to verify signature: " + err.Error(),
		}))
		return
	} else if !ok {
		log.D.Ln("invalid signature on", ev.ID, "from", ws.RealRemote())
		chk.E(ws.WriteJSON(nostr.OKEnvelope{
			EventID: ev.ID,
			OK:      false,
			Reason:  "invalid: signature is invalid",
		}))
		return
	}
	if ev.Kind == nostr.KindDeletion {
		rl.handleDeleteRequest(c, ws, ev)
		return
	}
	err = rl.AddEvent(c, ev)
	var reason string
	ok = true
	if err != nil {
		reason = err.Error()
		// resubmitting an identical live event is not an error, the
		// desired end state already holds
		ok = strings.HasPrefix(reason, "duplicate")
	}
	chk.E(ws.WriteJSON(nostr.OKEnvelope{
		EventID: ev.ID,
		OK:      ok,
		Reason:  reason,
	}))
}

func (rl *Relay) handleReqMessage(c context.Context, ws *WebSocket, env *nostr.ReqEnvelope) {
	if !rl.filtersHaveAcceptedKind(env.Filters) {
		// a subscription this relay can never feed is ignored rather
		// than rejected: immediate EOSE, no registration
		chk.E(ws.WriteJSON(nostr.EOSEEnvelope(env.SubscriptionID)))
		return
	}
	reqCtx, cancel := context.WithCancelCause(c)
	reqCtx = context.WithValue(reqCtx, subscriptionIdKey, env.SubscriptionID)
	// register before scanning: a concurrently published event may be
	// delivered twice, but can never fall in a gap between replay and
	// registration
	SetListener(env.SubscriptionID, ws, env.Filters, cancel)
	// replayed ids are shared across the subscription's filters so an event
	// matching several of them is sent once
	seen := make(map[string]struct{})
	for i := range env.Filters {
		rl.handleFilter(reqCtx, env.SubscriptionID, ws, env.Filters[i], seen)
	}
	chk.E(ws.WriteJSON(nostr.EOSEEnvelope(env.SubscriptionID)))
}
