// Package memstore is the relay's event store: a mutex-guarded in-memory map
// of live events plus a permanent tombstone set recording deleted event ids.
// An id in the tombstone set can never re-enter the live set, even across
// restarts when a persistence backend is attached.
package memstore

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/fiatjaf/eventstore"
	"github.com/nbd-wtf/go-nostr"
	"golang.org/x/exp/slices"

	"github.com/tracktide/trackstr/pkg/persist"
	"github.com/tracktide/trackstr/pkg/slog"
)

var log, chk = slog.New(os.Stderr)

// KindDeletion is the universal tombstone-request kind (NIP-09).
const KindDeletion = 5

var (
	ErrKindNotAllowed = errors.New("blocked: event kind not allowed")
	ErrTombstoned     = errors.New("blocked: previously deleted")
)

var _ eventstore.Store = (*MemStore)(nil)

// DeleteOutcome is the per-target result of a deletion request.
type DeleteOutcome int

const (
	Deleted DeleteOutcome = iota
	AlreadyDeleted
	Unauthorized
	NotFound
)

func (o DeleteOutcome) String() string {
	switch o {
	case Deleted:
		return "deleted"
	case AlreadyDeleted:
		return "already deleted"
	case Unauthorized:
		return "unauthorized"
	case NotFound:
		return "not found"
	}
	return "unknown"
}

// MemStore holds the live event set and the tombstone set behind a single
// mutex. Accepted kinds are fixed at construction; kind 5 is always among
// them.
type MemStore struct {
	mx         sync.Mutex
	events     map[string]*nostr.Event
	tombstones map[string]struct{}
	kinds      map[int]struct{}
	back       persist.Backend

	// MaxLimit caps the number of events one query returns.
	MaxLimit int
}

// New returns a store accepting the given content kinds plus kind 5.
func New(acceptedKinds ...int) *MemStore {
	b := &MemStore{
		events:     make(map[string]*nostr.Event),
		tombstones: make(map[string]struct{}),
		kinds:      make(map[int]struct{}),
		MaxLimit:   500,
	}
	for _, k := range acceptedKinds {
		b.kinds[k] = struct{}{}
	}
	b.kinds[KindDeletion] = struct{}{}
	return b
}

func (b *MemStore) Init() error { return nil }

// Close flushes the persistence backend, if any, and releases it.
func (b *MemStore) Close() {
	b.mx.Lock()
	back := b.back
	events, tombstones := b.snapshot()
	b.mx.Unlock()
	if back == nil {
		return
	}
	chk.E(back.Flush(events, tombstones))
	back.Close()
}

// UsePersistence attaches a durable backend and reloads prior state from it.
// Tombstones load first; any persisted event whose id is tombstoned is
// discarded.
func (b *MemStore) UsePersistence(back persist.Backend) (err error) {
	var events []*nostr.Event
	var tombstones []string
	if events, tombstones, err = back.Load(); chk.E(err) {
		return
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	for _, id := range tombstones {
		b.tombstones[id] = struct{}{}
	}
	var skipped int
	for _, ev := range events {
		if _, dead := b.tombstones[ev.ID]; dead {
			skipped++
			continue
		}
		if _, ok := b.kinds[ev.Kind]; !ok {
			skipped++
			continue
		}
		b.events[ev.ID] = ev
	}
	log.I.F("loaded %d events and %d tombstones (%d skipped)",
		len(b.events), len(b.tombstones), skipped)
	b.back = back
	return nil
}

// KindAccepted reports whether the relay stores events of kind k.
func (b *MemStore) KindAccepted(k int) bool {
	_, ok := b.kinds[k]
	return ok
}

// SaveEvent admits an event to the live set. It fails with
// ErrKindNotAllowed for kinds outside the accepted set, ErrTombstoned for
// previously deleted ids, and eventstore.ErrDupEvent when the identical id
// is already live. The write-through to the persistence backend is not
// allowed to fail the save.
func (b *MemStore) SaveEvent(c context.Context, ev *nostr.Event) error {
	if _, ok := b.kinds[ev.Kind]; !ok || ev.Kind == KindDeletion {
		return ErrKindNotAllowed
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	if _, dead := b.tombstones[ev.ID]; dead {
		return ErrTombstoned
	}
	if _, exists := b.events[ev.ID]; exists {
		return eventstore.ErrDupEvent
	}
	b.events[ev.ID] = ev
	if b.back != nil {
		chk.E(b.back.PutEvent(ev))
	}
	return nil
}

// DeleteEvent removes an event and tombstones its id, trusting the caller to
// have authorized the deletion. Part of the eventstore.Store contract.
func (b *MemStore) DeleteEvent(c context.Context, ev *nostr.Event) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.remove(ev.ID)
	return nil
}

// remove must be called with the mutex held.
func (b *MemStore) remove(id string) {
	delete(b.events, id)
	b.tombstones[id] = struct{}{}
	if b.back != nil {
		chk.E(b.back.PutTombstone(id))
	}
}

// Delete applies one owner-authorized deletion. Only the publisher of the
// stored event may delete it; an id already tombstoned reports
// AlreadyDeleted, which callers treat as the desired end state.
func (b *MemStore) Delete(requesterPubkey, id string) DeleteOutcome {
	b.mx.Lock()
	defer b.mx.Unlock()
	target, live := b.events[id]
	if !live {
		if _, dead := b.tombstones[id]; dead {
			return AlreadyDeleted
		}
		return NotFound
	}
	if target.PubKey != requesterPubkey {
		return Unauthorized
	}
	b.remove(id)
	return Deleted
}

// ProcessDelete applies a kind-5 deletion event: every event id named in an
// "e" tag is deleted under the deleting event's own pubkey. The returned
// summary enumerates per-target outcomes; ok is true when at least one
// target ended up deleted (now or previously). An event naming no targets is
// itself invalid.
func (b *MemStore) ProcessDelete(c context.Context, ev *nostr.Event) (summary string, ok bool, err error) {
	if ev.Kind != KindDeletion {
		err = errors.New("invalid: not a deletion event")
		return
	}
	var targets []string
	for _, t := range ev.Tags {
		if len(t) >= 2 && t[0] == "e" && t[1] != "" {
			targets = append(targets, t[1])
		}
	}
	if len(targets) == 0 {
		err = errors.New("invalid: deletion must reference at least one event")
		return
	}
	parts := make([]string, 0, len(targets))
	for _, id := range targets {
		outcome := b.Delete(ev.PubKey, id)
		if outcome == Deleted || outcome == AlreadyDeleted {
			ok = true
		}
		parts = append(parts, outcome.String()+": "+id)
	}
	summary = "results: " + strings.Join(parts, ", ")
	return
}

// QueryEvents streams live events matching the filter over a channel, newest
// first, closing it when done. Tombstoned events are gone from the live set
// and can never match.
func (b *MemStore) QueryEvents(c context.Context, f nostr.Filter) (chan *nostr.Event, error) {
	limit := f.Limit
	if limit <= 0 || limit > b.MaxLimit {
		limit = b.MaxLimit
	}
	snapshot := b.Iterate()
	ch := make(chan *nostr.Event)
	go func() {
		defer close(ch)
		var count int
		for _, ev := range snapshot {
			if count == limit {
				break
			}
			if !f.Matches(ev) {
				continue
			}
			select {
			case ch <- ev:
				count++
			case <-c.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Iterate returns a fresh snapshot of the live set, newest first.
func (b *MemStore) Iterate() []*nostr.Event {
	b.mx.Lock()
	events, _ := b.snapshot()
	b.mx.Unlock()
	return events
}

// Len returns the number of live events.
func (b *MemStore) Len() int {
	b.mx.Lock()
	defer b.mx.Unlock()
	return len(b.events)
}

// Tombstoned reports whether id has been deleted.
func (b *MemStore) Tombstoned(id string) bool {
	b.mx.Lock()
	defer b.mx.Unlock()
	_, dead := b.tombstones[id]
	return dead
}

// Flush writes the full state through to the persistence backend.
func (b *MemStore) Flush() error {
	b.mx.Lock()
	back := b.back
	events, tombstones := b.snapshot()
	b.mx.Unlock()
	if back == nil {
		return nil
	}
	return back.Flush(events, tombstones)
}

// snapshot must be called with the mutex held.
func (b *MemStore) snapshot() (events []*nostr.Event, tombstones []string) {
	events = make([]*nostr.Event, 0, len(b.events))
	for _, ev := range b.events {
		events = append(events, ev)
	}
	slices.SortFunc(events, eventComparator)
	tombstones = make([]string, 0, len(b.tombstones))
	for id := range b.tombstones {
		tombstones = append(tombstones, id)
	}
	slices.Sort(tombstones)
	return
}

// eventComparator orders newest first, with the id as tie-breaker.
func eventComparator(a, b *nostr.Event) int {
	if c := int(b.CreatedAt) - int(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(b.ID, a.ID)
}
