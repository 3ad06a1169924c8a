package app

import (
	"context"
	"fmt"

	"github.com/nbd-wtf/go-nostr"
	"github.com/puzpuzpuz/xsync/v2"
)

// Listener is one live subscription: the filters it carries and the cancel
// for its replay context.
type Listener struct {
	filters nostr.Filters
	cancel  context.CancelCauseFunc
}

type ListenerMap = *xsync.MapOf[string, *Listener]

var listeners = xsync.NewTypedMapOf[*WebSocket,
	ListenerMap](PointerHasher[WebSocket])

// SetListener upserts a subscription. A repeated REQ with the same id from
// the same connection replaces the previous filters.
func SetListener(id string, ws *WebSocket, f nostr.Filters,
	c context.CancelCauseFunc) {

	subs, _ := listeners.LoadOrCompute(ws, func() ListenerMap {
		return xsync.NewMapOf[*Listener]()
	})
	subs.Store(id, &Listener{filters: f, cancel: c})
}

// RemoveListenerId removes a specific subscription id from listeners for a
// given ws client and cancels its specific context
func RemoveListenerId(ws *WebSocket, id string) {
	if subs, ok := listeners.Load(ws); ok {
		if listener, ok := subs.LoadAndDelete(id); ok {
			listener.cancel(fmt.Errorf("subscription closed by client"))
		}
		if subs.Size() == 0 {
			listeners.Delete(ws)
		}
	}
}

// RemoveListener removes a WebSocket conn from listeners (no need to cancel
// contexts as they are all inherited from the main connection context)
func RemoveListener(ws *WebSocket) { listeners.Delete(ws) }

// GetListeningFilters returns the deduplicated set of filters across all
// live subscriptions.
func GetListeningFilters() (respFilters nostr.Filters) {
	respFilters = make(nostr.Filters, 0, listeners.Size()*2)
	listeners.Range(func(_ *WebSocket, subs ListenerMap) bool {
		subs.Range(func(_ string, listener *Listener) bool {
			for _, listenerFilter := range listener.filters {
				for _, respFilter := range respFilters {
					if nostr.FilterEqual(listenerFilter, respFilter) {
						goto next
					}
				}
				respFilters = append(respFilters, listenerFilter)
			next:
				continue
			}
			return true
		})
		return true
	})
	return
}
