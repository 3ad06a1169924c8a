package app

import (
	"context"
	"errors"

	"github.com/fiatjaf/eventstore"
	"github.com/nbd-wtf/go-nostr"
)

// AddEvent sends an event through the normal add pipeline, as if it was
// received from a websocket: reject policies, storage, then broadcast to
// matching subscriptions. The event must already be validated. Any returned
// error carries a category-prefixed reason fit for an OK frame.
func (rl *Relay) AddEvent(c context.Context, ev *nostr.Event) (err error) {
	if ev == nil {
		err = errors.New("error: event is nil")
		log.E.Ln(err)
		return
	}
	for _, rej := range rl.RejectEvent {
		if reject, msg := rej(c, ev); reject {
			if msg == "" {
				msg = "no reason"
			}
			err = errors.New(nostr.NormalizeOKMessage(msg, "blocked"))
			log.D.Ln(ev.ID, err)
			return
		}
	}
	for _, store := range rl.StoreEvent {
		if saveErr := store(c, ev); saveErr != nil {
			switch {
			case errors.Is(saveErr, eventstore.ErrDupEvent):
				return saveErr
			default:
				err = errors.New(nostr.NormalizeOKMessage(
					saveErr.Error(), "error"))
				log.D.Ln(ev.ID, err)
				return
			}
		}
	}
	rl.BroadcastEvent(ev)
	return nil
}
