package app

import (
	"context"
	"hash/maphash"
	"net"
	"os"
	"unsafe"

	"github.com/sebest/xff"

	"github.com/tracktide/trackstr/pkg/slog"
)

type contextKey int

const (
	wsKey contextKey = iota
	subscriptionIdKey
)

var log, chk = slog.New(os.Stderr)

// GetConnection returns the WebSocket carried by a connection context.
func GetConnection(c context.Context) *WebSocket {
	v, ok := c.Value(wsKey).(*WebSocket)
	if !ok {
		return nil
	}
	return v
}

// GetIP returns the best guess at the client's real address.
func GetIP(c context.Context) string {
	ws := GetConnection(c)
	if ws == nil {
		return ""
	}
	return xff.GetRemoteAddr(ws.Request)
}

// GetSubscriptionID returns the subscription id a REQ context was created
// for.
func GetSubscriptionID(c context.Context) string {
	id, _ := c.Value(subscriptionIdKey).(string)
	return id
}

func PointerHasher[V any](_ maphash.Seed, k *V) uint64 {
	return uint64(uintptr(unsafe.Pointer(k)))
}

// whitelisted checks the client IP against the allow-list. The resolved
// remote carries a port on direct connections, so compare by host.
func (rl *Relay) whitelisted(remote string) bool {
	if len(rl.Whitelist) == 0 {
		return true
	}
	host := remote
	if h, _, err := net.SplitHostPort(remote); err == nil {
		host = h
	}
	for i := range rl.Whitelist {
		if rl.Whitelist[i] == host {
			return true
		}
	}
	return false
}
