package models

import (
	"time"

	"gorm.io/gorm"
)

// Entry is one deduplicated item merged out of a feed document. UUID is the
// resolved identity, unique within the owning feed.
type Entry struct {
	gorm.Model
	FeedID uint   `gorm:"uniqueIndex:idx_feed_uuid"`
	UUID   string `gorm:"uniqueIndex:idx_feed_uuid"`
	UserID uint

	Title      string
	Message    string
	URL        string
	SourceName string
	SourceURL  string
	PostedAt   time.Time

	// Calendar events only.
	StartAt *time.Time
	EndAt   *time.Time
	Status  string

	// Atom only.
	AuthorName  string
	AuthorURL   string
	AuthorEmail string
}

type Entries []*Entry

func (e *Entry) BeforeCreate(tx *gorm.DB) error {
	if e.Status == "" {
		e.Status = EntryStatusActive
	}
	return nil
}

func (e *Entry) Active() bool {
	return e.Status == EntryStatusActive
}
