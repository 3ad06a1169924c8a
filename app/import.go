package app

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"

	"github.com/minio/sha256-simd"
	"github.com/nbd-wtf/go-nostr"
)

// Import reads a collection of JSON events from stdin or from one or more
// files, line structured, re-validating every event exactly as if it had
// arrived on a websocket.
func (rl *Relay) Import(files []string) {
	log.D.Ln("running import subcommand on these files:", files)
	if len(files) == 0 {
		rl.importFrom(os.Stdin)
		return
	}
	for i := range files {
		fh, err := os.OpenFile(files[i], os.O_RDONLY, 0644)
		if chk.D(err) {
			continue
		}
		rl.importFrom(fh)
		chk.D(fh.Close())
	}
}

func (rl *Relay) importFrom(r io.Reader) {
	var err error
	var count, skipped int
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, rl.MaxMessageSize), int(rl.MaxMessageSize))
	for scanner.Scan() {
		b := scanner.Bytes()
		if len(b) == 0 {
			continue
		}
		ev := &nostr.Event{}
		if err = json.Unmarshal(b, ev); chk.D(err) {
			skipped++
			continue
		}
		hash := sha256.Sum256(ev.Serialize())
		if hex.EncodeToString(hash[:]) != ev.ID {
			log.D.F("id mismatch on %s, skipping", ev.ID)
			skipped++
			continue
		}
		var ok bool
		if ok, err = ev.CheckSignature(); chk.E(err) || !ok {
			log.D.F("invalid signature on %s, skipping", ev.ID)
			skipped++
			continue
		}
		if ev.Kind == nostr.KindDeletion {
			if rl.ProcessDelete != nil {
				_, _, err = rl.ProcessDelete(context.Background(), ev)
				chk.D(err)
			}
		} else {
			if err = rl.AddEvent(context.Background(), ev); chk.D(err) {
				skipped++
				continue
			}
		}
		count++
	}
	chk.E(scanner.Err())
	log.I.F("imported %d events (%d skipped)", count, skipped)
}
