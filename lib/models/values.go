package models

import (
	"crypto/md5"
	"fmt"
)

// Verbosity policies controlling how much of an item's body is retained.
const (
	VerbosityFull     = "full"
	VerbosityLinkOnly = "link_only"
	VerbosityTruncate = "truncate"
)

const (
	EntryStatusActive    = "active"
	EntryStatusCancelled = "cancelled"
)

// Feed document formats accepted by the ingest engine.
const (
	FeedTypeRSS  = "rss"
	FeedTypeAtom = "atom"
	FeedTypeICal = "ical"
)

// DigestIdentity derives a stable entry identity from item fields when the
// source supplies no usable id of its own.
func DigestIdentity(parts ...string) string {
	h := md5.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
