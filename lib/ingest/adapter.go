package ingest

import (
	"time"

	"github.com/veldt/feedgest/lib/models"
)

// formatAdapter is the per-format identity policy. The merge engine is
// written once against this contract and dispatches on the document's
// format tag.
type formatAdapter interface {
	// identity resolves the primary dedup key for an item.
	identity(item Item) (string, error)

	// fallback returns the secondary lookup clause used when no entry
	// matches the resolved identity.
	fallback(item Item) (query string, args []any)
}

var adapters = map[string]formatAdapter{
	models.FeedTypeRSS:  rssAdapter{},
	models.FeedTypeAtom: atomAdapter{},
	models.FeedTypeICal: icalAdapter{},
}

type rssAdapter struct{}

func (rssAdapter) identity(item Item) (string, error) {
	if item.GUID != "" {
		return item.GUID, nil
	}
	return titleDayIdentity(item), nil
}

func (rssAdapter) fallback(item Item) (string, []any) {
	return "url = ?", []any{item.Link}
}

type atomAdapter struct{}

func (atomAdapter) identity(item Item) (string, error) {
	if item.GUID != "" {
		return item.GUID, nil
	}
	return titleDayIdentity(item), nil
}

func (atomAdapter) fallback(item Item) (string, []any) {
	return "url = ?", []any{item.Link}
}

type icalAdapter struct{}

func (icalAdapter) identity(item Item) (string, error) {
	if item.Title == "" && item.Link == "" {
		return "", ErrNoIdentity
	}
	parts := []string{item.Title, item.Link}
	if item.Start != nil {
		// Start time keeps recurring events apart across occurrences.
		parts = append(parts, item.Start.UTC().Format(time.RFC3339))
	}
	return models.DigestIdentity(parts...), nil
}

func (icalAdapter) fallback(item Item) (string, []any) {
	return "title = ? AND url = ?", []any{item.Title, item.Link}
}

// titleDayIdentity hashes title plus the published date at day granularity.
// Two items with the same title on the same calendar day intentionally
// collide; feeds that jitter timestamps between polls still dedup.
func titleDayIdentity(item Item) string {
	day := ""
	if item.Published != nil {
		day = item.Published.UTC().Format("2006-01-02")
	}
	return models.DigestIdentity(item.Title, day)
}
