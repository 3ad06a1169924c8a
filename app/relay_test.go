package app_test

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/frand"

	"github.com/tracktide/trackstr/app"
	"github.com/tracktide/trackstr/pkg/memstore"
)

const contentKind = 4100

func startTestRelay(t *testing.T, opts ...func(*app.Relay)) (rl *app.Relay, url string) {
	t.Helper()
	db := memstore.New(contentKind)
	c, cancel := context.WithCancel(context.Background())
	rl = app.NewRelay(c)
	rl.KindAccepted = db.KindAccepted
	rl.RejectEvent = append(rl.RejectEvent,
		app.RestrictToSpecifiedKinds(contentKind),
		app.PreventLargeTags(1024),
	)
	rl.StoreEvent = append(rl.StoreEvent, db.SaveEvent)
	rl.QueryEvents = append(rl.QueryEvents, db.QueryEvents)
	rl.ProcessDelete = db.ProcessDelete
	for _, opt := range opts {
		opt(rl)
	}
	started := make(chan bool)
	go rl.Start("127.0.0.1:0", started)
	<-started
	t.Cleanup(func() {
		cancel()
		rl.Shutdown(context.Background())
	})
	return rl, "ws://" + rl.Addr
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) nostr.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	env := nostr.ParseMessage(msg)
	require.NotNil(t, env, "unparseable frame: %s", msg)
	return env
}

func readOK(t *testing.T, conn *websocket.Conn) *nostr.OKEnvelope {
	t.Helper()
	env, ok := readEnvelope(t, conn).(*nostr.OKEnvelope)
	require.True(t, ok, "expected an OK frame")
	return env
}

func publish(t *testing.T, conn *websocket.Conn, ev *nostr.Event) *nostr.OKEnvelope {
	t.Helper()
	require.NoError(t, conn.WriteJSON(&nostr.EventEnvelope{Event: *ev}))
	res := readOK(t, conn)
	require.Equal(t, ev.ID, res.EventID)
	return res
}

func newSignedEvent(t *testing.T, sk string, kind int,
	tags nostr.Tags) *nostr.Event {

	t.Helper()
	ev := &nostr.Event{
		CreatedAt: nostr.Now(),
		Kind:      kind,
		Tags:      tags,
		Content:   hex.EncodeToString(frand.Bytes(16)),
	}
	require.NoError(t, ev.Sign(sk))
	return ev
}

func TestPublishAndReplay(t *testing.T) {
	_, url := startTestRelay(t)
	conn := dial(t, url)
	sk := nostr.GeneratePrivateKey()

	ev := newSignedEvent(t, sk, contentKind, nil)
	res := publish(t, conn, ev)
	assert.True(t, res.OK)
	assert.Empty(t, res.Reason)

	// resubmitting the identical event succeeds with a duplicate notice
	res = publish(t, conn, ev)
	assert.True(t, res.OK)
	assert.Contains(t, res.Reason, "duplicate")

	// a matching subscription replays the stored event, then EOSE
	require.NoError(t, conn.WriteJSON(nostr.ReqEnvelope{
		SubscriptionID: "replay",
		Filters:        nostr.Filters{{Kinds: []int{contentKind}}},
	}))
	env, ok := readEnvelope(t, conn).(*nostr.EventEnvelope)
	require.True(t, ok, "expected the stored event first")
	assert.Equal(t, ev.ID, env.Event.ID)
	require.Equal(t, "replay", *env.SubscriptionID)
	_, ok = readEnvelope(t, conn).(*nostr.EOSEEnvelope)
	require.True(t, ok, "expected EOSE after the replay")

	require.NoError(t, conn.WriteJSON(nostr.CloseEnvelope("replay")))
}

func TestUnsupportedKind(t *testing.T) {
	_, url := startTestRelay(t)
	conn := dial(t, url)
	sk := nostr.GeneratePrivateKey()

	ev := newSignedEvent(t, sk, 1, nil)
	res := publish(t, conn, ev)
	assert.False(t, res.OK)
	assert.Equal(t, "blocked: event kind not allowed", res.Reason)

	// a subscription this relay can never feed gets an immediate EOSE
	require.NoError(t, conn.WriteJSON(nostr.ReqEnvelope{
		SubscriptionID: "never",
		Filters:        nostr.Filters{{Kinds: []int{1}}},
	}))
	_, ok := readEnvelope(t, conn).(*nostr.EOSEEnvelope)
	require.True(t, ok)
}

func TestInvalidEventsRejected(t *testing.T) {
	_, url := startTestRelay(t)
	conn := dial(t, url)
	sk := nostr.GeneratePrivateKey()

	// wrong id
	ev := newSignedEvent(t, sk, contentKind, nil)
	ev.ID = "0000000000000000000000000000000000000000000000000000000000000000"
	require.NoError(t, conn.WriteJSON(&nostr.EventEnvelope{Event: *ev}))
	res := readOK(t, conn)
	assert.False(t, res.OK)
	assert.Equal(t, "invalid: id is computed incorrectly", res.Reason)

	// correct id, stale signature
	ev = newSignedEvent(t, sk, contentKind, nil)
	ev.Content = "tampered"
	ev.ID = ev.GetID()
	require.NoError(t, conn.WriteJSON(&nostr.EventEnvelope{Event: *ev}))
	res = readOK(t, conn)
	assert.False(t, res.OK)
	assert.Equal(t, "invalid: signature is invalid", res.Reason)
}

func TestLiveBroadcastAndDeletion(t *testing.T) {
	_, url := startTestRelay(t)
	sub := dial(t, url)
	pub := dial(t, url)
	sk := nostr.GeneratePrivateKey()

	require.NoError(t, sub.WriteJSON(nostr.ReqEnvelope{
		SubscriptionID: "live",
		Filters:        nostr.Filters{{Kinds: []int{contentKind}}},
	}))
	_, ok := readEnvelope(t, sub).(*nostr.EOSEEnvelope)
	require.True(t, ok, "expected EOSE on an empty store")

	// a publish on another connection reaches the subscriber
	ev := newSignedEvent(t, sk, contentKind, nil)
	res := publish(t, pub, ev)
	require.True(t, res.OK)
	env, ok := readEnvelope(t, sub).(*nostr.EventEnvelope)
	require.True(t, ok, "expected the live event")
	assert.Equal(t, ev.ID, env.Event.ID)

	// the owner deletes it
	del := newSignedEvent(t, sk, nostr.KindDeletion, nostr.Tags{{"e", ev.ID}})
	res = publish(t, pub, del)
	assert.True(t, res.OK)
	assert.Contains(t, res.Reason, "deleted: "+ev.ID)

	// the deleted event can never be resubmitted
	res = publish(t, pub, ev)
	assert.False(t, res.OK)
	assert.Equal(t, "blocked: previously deleted", res.Reason)

	// a fresh subscription replays nothing
	require.NoError(t, pub.WriteJSON(nostr.ReqEnvelope{
		SubscriptionID: "after",
		Filters:        nostr.Filters{{Kinds: []int{contentKind}}},
	}))
	_, ok = readEnvelope(t, pub).(*nostr.EOSEEnvelope)
	require.True(t, ok, "expected EOSE with no events")
}

func TestDeletionByNonOwner(t *testing.T) {
	_, url := startTestRelay(t)
	conn := dial(t, url)
	skA := nostr.GeneratePrivateKey()
	skB := nostr.GeneratePrivateKey()

	ev := newSignedEvent(t, skA, contentKind, nil)
	require.True(t, publish(t, conn, ev).OK)

	del := newSignedEvent(t, skB, nostr.KindDeletion, nostr.Tags{{"e", ev.ID}})
	res := publish(t, conn, del)
	assert.False(t, res.OK)
	assert.Contains(t, res.Reason, "unauthorized: "+ev.ID)

	// the event is still served
	require.NoError(t, conn.WriteJSON(nostr.ReqEnvelope{
		SubscriptionID: "still",
		Filters:        nostr.Filters{{IDs: []string{ev.ID}}, {Kinds: []int{contentKind}}},
	}))
	env, ok := readEnvelope(t, conn).(*nostr.EventEnvelope)
	require.True(t, ok)
	assert.Equal(t, ev.ID, env.Event.ID)
}

func TestMalformedFrameIgnored(t *testing.T) {
	_, url := startTestRelay(t)
	conn := dial(t, url)
	sk := nostr.GeneratePrivateKey()

	// garbage is dropped without a reply and without closing the connection
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte("this is not an envelope")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`["UNKNOWN","shape"]`)))

	ev := newSignedEvent(t, sk, contentKind, nil)
	res := publish(t, conn, ev)
	assert.True(t, res.OK)
}

func TestWhitelist(t *testing.T) {
	// a whitelisted client connecting directly (remote is ip:port) gets in
	_, url := startTestRelay(t, func(rl *app.Relay) {
		rl.Whitelist = []string{"127.0.0.1"}
	})
	conn := dial(t, url)
	sk := nostr.GeneratePrivateKey()
	ev := newSignedEvent(t, sk, contentKind, nil)
	res := publish(t, conn, ev)
	assert.True(t, res.OK)

	// a client not on the list is dropped at upgrade
	_, url = startTestRelay(t, func(rl *app.Relay) {
		rl.Whitelist = []string{"192.0.2.1"}
	})
	denied := dial(t, url)
	require.NoError(t, denied.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := denied.ReadMessage()
	assert.Error(t, err)
}

func TestOverlappingFiltersReplayOnce(t *testing.T) {
	_, url := startTestRelay(t)
	conn := dial(t, url)
	sk := nostr.GeneratePrivateKey()

	ev := newSignedEvent(t, sk, contentKind, nil)
	require.True(t, publish(t, conn, ev).OK)

	// both filters match the same stored event; it is replayed once
	require.NoError(t, conn.WriteJSON(nostr.ReqEnvelope{
		SubscriptionID: "overlap",
		Filters: nostr.Filters{
			{IDs: []string{ev.ID}},
			{Kinds: []int{contentKind}},
		},
	}))
	env, ok := readEnvelope(t, conn).(*nostr.EventEnvelope)
	require.True(t, ok, "expected the stored event first")
	assert.Equal(t, ev.ID, env.Event.ID)
	_, ok = readEnvelope(t, conn).(*nostr.EOSEEnvelope)
	require.True(t, ok, "expected EOSE immediately after the single replay")
}

func TestCloseStopsDelivery(t *testing.T) {
	_, url := startTestRelay(t)
	sub := dial(t, url)
	pub := dial(t, url)
	sk := nostr.GeneratePrivateKey()

	require.NoError(t, sub.WriteJSON(nostr.ReqEnvelope{
		SubscriptionID: "brief",
		Filters:        nostr.Filters{{Kinds: []int{contentKind}}},
	}))
	_, ok := readEnvelope(t, sub).(*nostr.EOSEEnvelope)
	require.True(t, ok)
	require.NoError(t, sub.WriteJSON(nostr.CloseEnvelope("brief")))

	// give the close frame time to be processed before publishing
	time.Sleep(100 * time.Millisecond)
	ev := newSignedEvent(t, sk, contentKind, nil)
	require.True(t, publish(t, pub, ev).OK)

	require.NoError(t, sub.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := sub.ReadMessage()
	assert.Error(t, err, "no frames should arrive after CLOSE")
}
