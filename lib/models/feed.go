package models

import (
	"database/sql"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Feed is a subscription to one external syndication source. The URL and
// relationships are fixed at creation; verbosity and the match patterns may
// change over the feed's lifetime without affecting entries already merged.
type Feed struct {
	gorm.Model
	UserID      uint
	ContextType string `gorm:"index:idx_context"` // "" when the feed has no owning context
	ContextID   uint   `gorm:"index:idx_context"`

	URL      string
	Title    string
	ImageURL string
	FeedType string // rss | atom | ical

	Verbosity   string // full | link_only | truncate
	HeaderMatch string // optional regex gating new-entry admission by title
	BodyMatch   string // optional regex gating new-entry admission by body

	ConsecutiveFailures int
	RefreshAt           time.Time
	LastPollTime        sql.NullTime

	User    User
	Entries []Entry `gorm:"constraint:OnDelete:CASCADE"`
}

type Feeds []Feed

func (f *Feed) BeforeCreate(tx *gorm.DB) error {
	if f.Verbosity == "" {
		f.Verbosity = VerbosityFull
	}
	if f.RefreshAt.IsZero() {
		f.RefreshAt = time.Now().UTC()
	}
	return nil
}

// DisplayName falls back to the first three URL segments when the source
// never supplied a channel title.
func (f *Feed) DisplayName() string {
	if f.Title != "" {
		return f.Title
	}
	segments := strings.SplitN(f.URL, "/", 4)
	if len(segments) > 3 {
		segments = segments[:3]
	}
	return strings.Join(segments, "/") + " feed"
}
