// Package badgerdb persists the event store in a badger database. Live
// events are stored under ev| keys as their JSON encoding and tombstones
// under ts| keys, so loading can read the tombstone set first and skip any
// event key that should already be gone.
package badgerdb

import (
	"encoding/json"
	"errors"
	"os"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/nbd-wtf/go-nostr"

	"github.com/tracktide/trackstr/pkg/persist"
	"github.com/tracktide/trackstr/pkg/slog"
)

var log, chk = slog.New(os.Stderr)

var (
	eventPrefix     = []byte("ev|")
	tombstonePrefix = []byte("ts|")
)

var _ persist.Backend = (*BadgerBackend)(nil)

// BadgerBackend stores relay state at Path. Set Path, then call Init.
type BadgerBackend struct {
	Path string

	db *badger.DB
}

func (b *BadgerBackend) Init() (err error) {
	if b.Path == "" {
		return errors.New("badgerdb: no path configured")
	}
	opts := badger.DefaultOptions(b.Path).WithLogger(nil)
	b.db, err = badger.Open(opts)
	return
}

func (b *BadgerBackend) Close() {
	if b.db != nil {
		chk.E(b.db.Close())
		b.db = nil
	}
}

func eventKey(id string) []byte     { return append(eventPrefix[:3:3], id...) }
func tombstoneKey(id string) []byte { return append(tombstonePrefix[:3:3], id...) }

func (b *BadgerBackend) PutEvent(ev *nostr.Event) (err error) {
	var j []byte
	if j, err = json.Marshal(ev); chk.E(err) {
		return
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(eventKey(ev.ID), j)
	})
}

func (b *BadgerBackend) PutTombstone(id string) error {
	return b.db.Update(func(txn *badger.Txn) (err error) {
		if err = txn.Delete(eventKey(id)); err != nil {
			return
		}
		return txn.Set(tombstoneKey(id), nil)
	})
}

func (b *BadgerBackend) Load() (events []*nostr.Event, tombstones []string, err error) {
	tombstoned := make(map[string]struct{})
	err = b.db.View(func(txn *badger.Txn) (err error) {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: tombstonePrefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			id := string(it.Item().Key()[len(tombstonePrefix):])
			tombstones = append(tombstones, id)
			tombstoned[id] = struct{}{}
		}
		return
	})
	if chk.E(err) {
		return
	}
	err = b.db.View(func(txn *badger.Txn) (err error) {
		opts := badger.IteratorOptions{Prefix: eventPrefix,
			PrefetchValues: true, PrefetchSize: 100}
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id := string(item.Key()[len(eventPrefix):])
			if _, dead := tombstoned[id]; dead {
				continue
			}
			var j []byte
			if j, err = item.ValueCopy(nil); chk.E(err) {
				return
			}
			ev := &nostr.Event{}
			if err = json.Unmarshal(j, ev); err != nil {
				// keep going; one bad record must not block startup
				log.E.F("skipping corrupt event record %s: %v", id, err)
				err = nil
				continue
			}
			events = append(events, ev)
		}
		return
	})
	return
}

func (b *BadgerBackend) Flush(events []*nostr.Event, tombstones []string) (err error) {
	if err = b.db.DropPrefix(eventPrefix, tombstonePrefix); chk.E(err) {
		return
	}
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, ev := range events {
		var j []byte
		if j, err = json.Marshal(ev); chk.E(err) {
			return
		}
		if err = wb.Set(eventKey(ev.ID), j); chk.E(err) {
			return
		}
	}
	for _, id := range tombstones {
		if err = wb.Set(tombstoneKey(id), nil); chk.E(err) {
			return
		}
	}
	return wb.Flush()
}
