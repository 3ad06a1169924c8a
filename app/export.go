package app

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/nbd-wtf/go-nostr"
)

// Export prints the JSON of all live events, one per line, to stdout or to a
// file.
func (rl *Relay) Export(events []*nostr.Event, filename string) {
	log.D.Ln("running export subcommand")
	var fh *os.File
	var err error
	if filename != "" {
		fh, err = os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_TRUNC,
			0644)
		if chk.F(err) {
			os.Exit(1)
		}
		defer fh.Close()
	} else {
		fh = os.Stdout
	}
	w := bufio.NewWriter(fh)
	defer w.Flush()
	for _, ev := range events {
		var j []byte
		if j, err = json.Marshal(ev); chk.E(err) {
			continue
		}
		w.Write(j)
		w.WriteByte('\n')
	}
	log.I.F("exported %d events", len(events))
}
