package models

import (
	"time"

	"gorm.io/gorm"
)

// Course is a feed-owning context that aggregates newly ingested entries
// into announcements.
type Course struct {
	gorm.Model
	Name string

	Announcements []Announcement
}

type Announcement struct {
	gorm.Model
	CourseID uint
	FeedID   uint
	Title    string
	Message  string
	PostedAt time.Time
}
