package app

import (
	"context"

	"github.com/nbd-wtf/go-nostr"
	"golang.org/x/exp/slices"
)

// RestrictToSpecifiedKinds returns a RejectEvent that rejects any event with
// a kind different than the specified ones.
func RestrictToSpecifiedKinds(kinds ...int) RejectEvent {
	slices.Sort(kinds)
	return func(c context.Context, ev *nostr.Event) (reject bool, msg string) {
		if _, allowed := slices.BinarySearch(kinds, ev.Kind); allowed {
			return false, ""
		}
		return true, "event kind not allowed"
	}
}

// PreventLargeTags rejects events that have indexable tag values greater
// than maxTagValueLen.
func PreventLargeTags(maxTagValueLen int) RejectEvent {
	return func(c context.Context, ev *nostr.Event) (reject bool, msg string) {
		for _, tag := range ev.Tags {
			if len(tag) > 1 && len(tag[0]) == 1 {
				if len(tag[1]) > maxTagValueLen {
					return true, "event contains too large tags"
				}
			}
		}
		return false, ""
	}
}
