// Package flatfile persists the event store as two files in a profile
// directory: an append-only events.jsonl holding one event per line, and a
// tombstones.json holding the deleted-id set. Tombstones load before events,
// so an event whose deletion was recorded but whose line is still present in
// events.jsonl stays dead after a restart.
package flatfile

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/nbd-wtf/go-nostr"

	"github.com/tracktide/trackstr/pkg/persist"
	"github.com/tracktide/trackstr/pkg/slog"
)

var log, chk = slog.New(os.Stderr)

const (
	eventsFile     = "events.jsonl"
	tombstonesFile = "tombstones.json"
	corruptSuffix  = ".corrupt"

	// generous single-line cap for scanning events.jsonl
	maxLineSize = 512 * 1024
)

var _ persist.Backend = (*FlatFileBackend)(nil)

// FlatFileBackend writes events and tombstones to Path. The zero value is
// not usable; set Path and call Init.
type FlatFileBackend struct {
	Path string

	mx         sync.Mutex
	eventsFh   *os.File
	tombstones map[string]struct{}
}

func (b *FlatFileBackend) Init() (err error) {
	if b.Path == "" {
		return errors.New("flatfile: no path configured")
	}
	if err = os.MkdirAll(b.Path, 0700); chk.E(err) {
		return
	}
	b.tombstones = make(map[string]struct{})
	b.eventsFh, err = os.OpenFile(b.eventsPath(),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	return
}

func (b *FlatFileBackend) Close() {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.eventsFh != nil {
		chk.E(b.eventsFh.Close())
		b.eventsFh = nil
	}
}

func (b *FlatFileBackend) eventsPath() string {
	return filepath.Join(b.Path, eventsFile)
}

func (b *FlatFileBackend) tombstonesPath() string {
	return filepath.Join(b.Path, tombstonesFile)
}

// PutEvent appends one line to events.jsonl.
func (b *FlatFileBackend) PutEvent(ev *nostr.Event) (err error) {
	var j []byte
	if j, err = json.Marshal(ev); chk.E(err) {
		return
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.eventsFh == nil {
		return errors.New("flatfile: backend is closed")
	}
	if _, err = b.eventsFh.Write(append(j, '\n')); chk.E(err) {
		return
	}
	return b.eventsFh.Sync()
}

// PutTombstone records the id and rewrites tombstones.json. The event's line
// in events.jsonl is left in place; Load skips it, and Flush compacts it
// away.
func (b *FlatFileBackend) PutTombstone(id string) (err error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.tombstones[id] = struct{}{}
	return b.writeTombstones()
}

// writeTombstones must be called with the mutex held.
func (b *FlatFileBackend) writeTombstones() (err error) {
	ids := make([]string, 0, len(b.tombstones))
	for id := range b.tombstones {
		ids = append(ids, id)
	}
	var j []byte
	if j, err = json.Marshal(ids); chk.E(err) {
		return
	}
	tmp := b.tombstonesPath() + ".tmp"
	if err = os.WriteFile(tmp, j, 0600); chk.E(err) {
		return
	}
	return os.Rename(tmp, b.tombstonesPath())
}

// Load reads tombstones first, then events, skipping tombstoned ids and any
// duplicate lines (later lines win nothing; first occurrence is kept). A
// file that fails to parse is preserved under a .corrupt name and treated as
// empty rather than failing startup.
func (b *FlatFileBackend) Load() (events []*nostr.Event, tombstones []string, err error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	tombstones = b.loadTombstones()
	for _, id := range tombstones {
		b.tombstones[id] = struct{}{}
	}
	events = b.loadEvents()
	return
}

func (b *FlatFileBackend) loadTombstones() (ids []string) {
	j, err := os.ReadFile(b.tombstonesPath())
	if err != nil {
		// nothing persisted yet
		return
	}
	if err = json.Unmarshal(j, &ids); err != nil {
		log.E.F("corrupt tombstone file %s: %v", b.tombstonesPath(), err)
		b.quarantine(b.tombstonesPath())
		return nil
	}
	return
}

func (b *FlatFileBackend) loadEvents() (events []*nostr.Event) {
	fh, err := os.Open(b.eventsPath())
	if err != nil {
		return
	}
	defer fh.Close()
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, maxLineSize), maxLineSize)
	var line int
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		ev := &nostr.Event{}
		if err = json.Unmarshal(raw, ev); err != nil {
			log.E.F("corrupt event file %s line %d: %v",
				b.eventsPath(), line, err)
			b.quarantineEvents()
			return nil
		}
		if _, dead := b.tombstones[ev.ID]; dead {
			continue
		}
		if _, dup := seen[ev.ID]; dup {
			continue
		}
		seen[ev.ID] = struct{}{}
		events = append(events, ev)
	}
	if err = scanner.Err(); err != nil {
		log.E.F("corrupt event file %s: %v", b.eventsPath(), err)
		b.quarantineEvents()
		return nil
	}
	return
}

// quarantine moves a corrupt file aside and reinitializes that store to
// empty, keeping the bad data for inspection.
func (b *FlatFileBackend) quarantine(path string) {
	chk.E(os.Rename(path, path+corruptSuffix))
}

func (b *FlatFileBackend) quarantineEvents() {
	if b.eventsFh != nil {
		chk.E(b.eventsFh.Close())
	}
	b.quarantine(b.eventsPath())
	var err error
	b.eventsFh, err = os.OpenFile(b.eventsPath(),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	chk.E(err)
}

// Flush compacts events.jsonl down to the given snapshot and rewrites the
// tombstone set.
func (b *FlatFileBackend) Flush(events []*nostr.Event, tombstones []string) (err error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.tombstones = make(map[string]struct{}, len(tombstones))
	for _, id := range tombstones {
		b.tombstones[id] = struct{}{}
	}
	if err = b.writeTombstones(); chk.E(err) {
		return
	}
	tmp := b.eventsPath() + ".tmp"
	var fh *os.File
	if fh, err = os.OpenFile(tmp,
		os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); chk.E(err) {
		return
	}
	w := bufio.NewWriter(fh)
	for _, ev := range events {
		var j []byte
		if j, err = json.Marshal(ev); chk.E(err) {
			fh.Close()
			return
		}
		w.Write(j)
		w.WriteByte('\n')
	}
	if err = w.Flush(); chk.E(err) {
		fh.Close()
		return
	}
	if err = fh.Close(); chk.E(err) {
		return
	}
	if b.eventsFh != nil {
		chk.E(b.eventsFh.Close())
	}
	if err = os.Rename(tmp, b.eventsPath()); chk.E(err) {
		return
	}
	b.eventsFh, err = os.OpenFile(b.eventsPath(),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	return
}
