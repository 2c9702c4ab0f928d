package ingest

import (
	"regexp"

	"github.com/veldt/feedgest/lib/models"
)

// admit decides whether a new item may create an entry. Filters gate the
// create path only; entries that already exist are refreshed no matter what
// the current policy says.
func (ing *Ingester) admit(feed *models.Feed, item Item) bool {
	if !ing.matches(feed.HeaderMatch, item.Title) {
		return false
	}
	if !ing.matches(feed.BodyMatch, item.Description) {
		return false
	}
	return ing.admitDate(feed, item)
}

// matches applies an optional case-insensitive pattern. An unset pattern
// admits everything; so does one that fails to compile, since suppressing
// legitimate entries over a bad pattern is the worse failure mode.
func (ing *Ingester) matches(pattern, text string) bool {
	if pattern == "" {
		return true
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		ing.log.Sugar().Warnf("skipping unparsable match pattern %q: %v", pattern, err)
		return true
	}
	return re.MatchString(text)
}

// admitDate rejects items strictly older than the subscription itself.
// Unknown dates fail open: the cutoff exists to exclude stale history, not
// to punish malformed timestamps.
func (ing *Ingester) admitDate(feed *models.Feed, item Item) bool {
	if item.Published == nil {
		return true
	}
	return !item.Published.Before(feed.CreatedAt)
}
