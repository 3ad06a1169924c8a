package app

import (
	"context"
	"net/http"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/nbd-wtf/go-nostr"
	"github.com/puzpuzpuz/xsync/v2"
)

var Version = "v0.1.0"
var Software = "https://github.com/tracktide/trackstr"

const (
	WriteWait             = 10 * time.Second
	PongWait              = 60 * time.Second
	PingPeriod            = 30 * time.Second
	ReadBufferSize        = 4096
	WriteBufferSize       = 4096
	MaxMessageSize  int64 = 512000
)

// function types used in the relay state
type (
	RejectEvent   func(c context.Context, ev *nostr.Event) (reject bool, msg string)
	StoreEvent    func(c context.Context, ev *nostr.Event) error
	QueryEvents   func(c context.Context, f nostr.Filter) (chan *nostr.Event, error)
	ProcessDelete func(c context.Context, ev *nostr.Event) (summary string, ok bool, err error)
	KindAccepted  func(kind int) bool
	Hook          func(c context.Context)
)

// Relay is the relay state: the storage functions wired in from main, the
// set of connected clients and the HTTP machinery. All subscription state
// lives in listener.go.
type Relay struct {
	// Ctx is the process context; when it is done the relay stops
	// accepting connections.
	Ctx context.Context

	ServiceURL string

	RejectEvent   []RejectEvent
	StoreEvent    []StoreEvent
	QueryEvents   []QueryEvents
	ProcessDelete ProcessDelete
	KindAccepted  KindAccepted
	OnConnect     []Hook
	OnDisconnect  []Hook

	// Whitelist, when non-empty, permits only connections from these
	// addresses.
	Whitelist []string

	// for establishing websockets
	upgrader websocket.Upgrader

	// keep a connection reference to all connected clients for Shutdown
	clients *xsync.MapOf[*websocket.Conn, struct{}]

	Addr       string
	serveMux   *http.ServeMux
	httpServer *http.Server

	// websocket options
	WriteWait      time.Duration // Time allowed to write a message to the peer.
	PongWait       time.Duration // Time allowed to read the next pong message from the peer.
	PingPeriod     time.Duration // Send pings to peer with this period. Must be less than PongWait.
	MaxMessageSize int64         // Maximum message size allowed from peer.
}

func NewRelay(c context.Context) (rl *Relay) {
	rl = &Relay{
		Ctx: c,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  ReadBufferSize,
			WriteBufferSize: WriteBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: xsync.NewTypedMapOf[*websocket.Conn,
			struct{}](PointerHasher[websocket.Conn]),
		serveMux:       &http.ServeMux{},
		WriteWait:      WriteWait,
		PongWait:       PongWait,
		PingPeriod:     PingPeriod,
		MaxMessageSize: MaxMessageSize,
		KindAccepted:   func(int) bool { return true },
	}
	return
}
