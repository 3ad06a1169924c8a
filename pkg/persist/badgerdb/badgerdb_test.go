package badgerdb_test

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/frand"

	"github.com/tracktide/trackstr/pkg/memstore"
	"github.com/tracktide/trackstr/pkg/persist/badgerdb"
)

const contentKind = 4100

func newSignedEvent(t *testing.T, sk string) *nostr.Event {
	t.Helper()
	ev := &nostr.Event{
		CreatedAt: nostr.Now(),
		Kind:      contentKind,
		Content:   hex.EncodeToString(frand.Bytes(16)),
	}
	require.NoError(t, ev.Sign(sk))
	return ev
}

func TestRestartDurability(t *testing.T) {
	c := context.Background()
	dir := t.TempDir()
	sk := nostr.GeneratePrivateKey()

	back := &badgerdb.BadgerBackend{Path: dir}
	require.NoError(t, back.Init())
	db := memstore.New(contentKind)
	require.NoError(t, db.UsePersistence(back))

	keep := newSignedEvent(t, sk)
	drop := newSignedEvent(t, sk)
	require.NoError(t, db.SaveEvent(c, keep))
	require.NoError(t, db.SaveEvent(c, drop))
	require.Equal(t, memstore.Deleted, db.Delete(drop.PubKey, drop.ID))
	db.Close()

	back = &badgerdb.BadgerBackend{Path: dir}
	require.NoError(t, back.Init())
	db = memstore.New(contentKind)
	require.NoError(t, db.UsePersistence(back))
	assert.Equal(t, 1, db.Len())
	assert.True(t, db.Tombstoned(drop.ID))
	assert.ErrorIs(t, db.SaveEvent(c, drop), memstore.ErrTombstoned)
	got := db.Iterate()
	require.Len(t, got, 1)
	assert.Equal(t, keep.ID, got[0].ID)
	db.Close()
}

func TestTombstoneDropsStoredCopy(t *testing.T) {
	dir := t.TempDir()
	sk := nostr.GeneratePrivateKey()
	ev := newSignedEvent(t, sk)

	back := &badgerdb.BadgerBackend{Path: dir}
	require.NoError(t, back.Init())
	require.NoError(t, back.PutEvent(ev))
	require.NoError(t, back.PutTombstone(ev.ID))
	events, tombstones, err := back.Load()
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, []string{ev.ID}, tombstones)
	back.Close()
}
