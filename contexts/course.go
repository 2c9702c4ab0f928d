package contexts

import (
	"context"
	"fmt"

	"github.com/veldt/feedgest/lib/models"
)

// courseContext turns each batch of freshly ingested entries into course
// announcements.
type courseContext struct {
	base
}

func (c *courseContext) AddAggregateEntries(ctx context.Context, entries models.Entries, feed *models.Feed) error {
	course := models.Course{}
	tx := c.db.First(&course, feed.ContextID)
	if err := tx.Error; err != nil {
		return fmt.Errorf("load course %d: %w", feed.ContextID, err)
	}

	announcements := make([]models.Announcement, 0, len(entries))
	for _, entry := range entries {
		announcements = append(announcements, models.Announcement{
			CourseID: course.ID,
			FeedID:   feed.ID,
			Title:    entry.Title,
			Message:  entry.Message,
			PostedAt: entry.PostedAt,
		})
	}

	tx = c.db.Create(&announcements)
	if err := tx.Error; err != nil {
		return fmt.Errorf("create announcements: %w", err)
	}
	c.log.Sugar().Infof("Posted %d announcements to course %d (%s)", len(announcements), course.ID, course.Name)
	return nil
}
