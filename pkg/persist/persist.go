// Package persist defines the durable write-through backend used by the
// in-memory event store. Implementations live in the subpackages flatfile and
// badgerdb.
package persist

import "github.com/nbd-wtf/go-nostr"

// Backend is a durable record of the store's live events and tombstones. The
// store calls Put* on every accepted mutation and Flush on shutdown. A
// backend failure must never be fatal to the caller; in-memory state stays
// authoritative for the running process.
type Backend interface {
	Init() error
	Close()

	// PutEvent records a newly accepted live event.
	PutEvent(ev *nostr.Event) error

	// PutTombstone records that id has been deleted and drops any stored
	// copy of the event. Tombstones are permanent.
	PutTombstone(id string) error

	// Load returns the backend's contents. Tombstoned ids must never
	// appear among the returned events, so a crash-consistent restart
	// cannot resurrect a deleted event.
	Load() (events []*nostr.Event, tombstones []string, err error)

	// Flush rewrites the backend from a full snapshot.
	Flush(events []*nostr.Event, tombstones []string) error
}
