package ingest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/veldt/feedgest/lib/models"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestIngester(t *testing.T) *Ingester {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.sqlite")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Feed{},
		&models.Entry{},
		&models.Course{},
		&models.Announcement{},
	))

	return &Ingester{log: zap.NewNop(), db: db, contexts: ContextRegistry{}}
}

func newTestFeed(t *testing.T, ing *Ingester, mutate func(*models.Feed)) *models.Feed {
	t.Helper()

	feed := &models.Feed{
		UserID:   1,
		URL:      "https://example.com/feed.xml",
		FeedType: models.FeedTypeRSS,
	}
	if mutate != nil {
		mutate(feed)
	}
	require.NoError(t, ing.db.Create(feed).Error)
	return feed
}

// backdateFeed moves the subscription's creation time into the past so the
// date-cutoff filter admits historically dated fixtures.
func backdateFeed(t *testing.T, ing *Ingester, feed *models.Feed, to time.Time) {
	t.Helper()
	require.NoError(t, ing.db.Model(feed).Update("created_at", to).Error)
	feed.CreatedAt = to
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func countEntries(t *testing.T, ing *Ingester, feedID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, ing.db.Model(&models.Entry{}).Where("feed_id = ?", feedID).Count(&n).Error)
	return n
}

func TestIngestIsIdempotent(t *testing.T) {
	ing := newTestIngester(t)
	feed := newTestFeed(t, ing, nil)

	now := time.Now().UTC()
	doc := &Document{
		Format: models.FeedTypeRSS,
		Title:  "Example News",
		Link:   "https://example.com",
		Items: []Item{
			{Title: "First", Link: "https://example.com/1", GUID: "guid-1", Description: "one", Published: timePtr(now)},
			{Title: "Second", Link: "https://example.com/2", GUID: "guid-2", Description: "two", Published: timePtr(now)},
		},
	}

	first, failures := ing.Ingest(context.Background(), feed, doc)
	require.Empty(t, failures)
	require.Len(t, first, 2)

	second, failures := ing.Ingest(context.Background(), feed, doc)
	require.Empty(t, failures)
	require.Len(t, second, 2)

	require.EqualValues(t, 2, countEntries(t, ing, feed.ID))
	for i := range first {
		require.Equal(t, first[i].ID, second[i].ID)
		require.Equal(t, first[i].Message, second[i].Message)
	}
}

func TestDerivedIdentityIsDeterministic(t *testing.T) {
	ing := newTestIngester(t)
	feed := newTestFeed(t, ing, nil)
	backdateFeed(t, ing, feed, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))

	morning := time.Date(2024, 2, 2, 9, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 2, 2, 21, 30, 0, 0, time.UTC)

	doc := &Document{
		Format: models.FeedTypeRSS,
		Items: []Item{
			{Title: "World", Link: "https://example.com/world", Description: "original", Published: timePtr(morning)},
		},
	}
	entries, failures := ing.Ingest(context.Background(), feed, doc)
	require.Empty(t, failures)
	require.Len(t, entries, 1)
	require.Equal(t, "86b0a8982e41e47bd86286231eac9661", entries[0].UUID) // md5("World2024-02-02")
	originalMessage := entries[0].Message
	require.NotEmpty(t, originalMessage)

	// Same title and calendar day with a different time and body collides
	// by design; structural fields refresh, the message does not.
	doc.Items[0].Published = timePtr(evening)
	doc.Items[0].Description = "rewritten"
	doc.Items[0].Link = "https://example.com/world-moved"

	entries, failures = ing.Ingest(context.Background(), feed, doc)
	require.Empty(t, failures)
	require.Len(t, entries, 1)
	require.EqualValues(t, 1, countEntries(t, ing, feed.ID))
	require.Equal(t, "https://example.com/world-moved", entries[0].URL)
	require.Equal(t, originalMessage, entries[0].Message)
}

func TestFiltersGateOnlyTheCreatePath(t *testing.T) {
	ing := newTestIngester(t)
	feed := newTestFeed(t, ing, func(f *models.Feed) {
		f.HeaderMatch = "^News"
	})
	backdateFeed(t, ing, feed, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))

	published := time.Date(2024, 2, 2, 12, 0, 0, 0, time.UTC)
	doc := &Document{
		Format: models.FeedTypeRSS,
		Items: []Item{
			{Title: "Sports Update", Link: "https://example.com/sports", Description: "scores", Published: timePtr(published)},
		},
	}

	entries, failures := ing.Ingest(context.Background(), feed, doc)
	require.Empty(t, failures)
	require.Empty(t, entries)
	require.EqualValues(t, 0, countEntries(t, ing, feed.ID))

	// An entry that predates the filter policy keeps getting refreshed even
	// though its item no longer matches.
	seeded := &models.Entry{
		FeedID:  feed.ID,
		UUID:    models.DigestIdentity("Sports Update", "2024-02-02"),
		Title:   "Sports Update",
		URL:     "https://example.com/sports",
		Message: "seeded message",
	}
	require.NoError(t, ing.db.Create(seeded).Error)

	doc.Items[0].Link = "https://example.com/sports-recap"
	entries, failures = ing.Ingest(context.Background(), feed, doc)
	require.Empty(t, failures)
	require.Len(t, entries, 1)
	require.Equal(t, seeded.ID, entries[0].ID)
	require.Equal(t, "https://example.com/sports-recap", entries[0].URL)
	require.Equal(t, "seeded message", entries[0].Message)
}

func TestDateCutoffFailsOpen(t *testing.T) {
	ing := newTestIngester(t)
	feed := newTestFeed(t, ing, nil)

	stale := time.Now().UTC().Add(-10 * 24 * time.Hour)
	doc := &Document{
		Format: models.FeedTypeRSS,
		Items: []Item{
			{Title: "Stale", Link: "https://example.com/stale", GUID: "stale", Published: timePtr(stale)},
			{Title: "Undated", Link: "https://example.com/undated", GUID: "undated"},
		},
	}

	entries, failures := ing.Ingest(context.Background(), feed, doc)
	require.Empty(t, failures)
	require.Len(t, entries, 1)
	require.Equal(t, "Undated", entries[0].Title)
}

func TestCalendarCancellationIsIdempotent(t *testing.T) {
	ing := newTestIngester(t)
	feed := newTestFeed(t, ing, func(f *models.Feed) {
		f.FeedType = models.FeedTypeICal
	})

	start := time.Date(2030, 5, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	doc := &Document{
		Format: models.FeedTypeICal,
		Items: []Item{
			{Title: "Standup", Link: "https://example.com/events/1", Description: "daily sync", Status: "CONFIRMED", Start: timePtr(start), End: timePtr(end)},
		},
	}

	entries, failures := ing.Ingest(context.Background(), feed, doc)
	require.Empty(t, failures)
	require.Len(t, entries, 1)
	require.Equal(t, models.EntryStatusActive, entries[0].Status)
	require.Equal(t, start, entries[0].StartAt.UTC())

	doc.Items[0].Status = "CANCELLED"
	entries, failures = ing.Ingest(context.Background(), feed, doc)
	require.Empty(t, failures)
	require.Len(t, entries, 1)
	require.Equal(t, models.EntryStatusCancelled, entries[0].Status)

	// Repeating the cancelled item is a no-op, not an error.
	entries, failures = ing.Ingest(context.Background(), feed, doc)
	require.Empty(t, failures)
	require.Len(t, entries, 1)
	require.Equal(t, models.EntryStatusCancelled, entries[0].Status)
	require.EqualValues(t, 1, countEntries(t, ing, feed.ID))
}

func TestFeedsDoNotCrossContaminate(t *testing.T) {
	ing := newTestIngester(t)
	feedA := newTestFeed(t, ing, nil)
	feedB := newTestFeed(t, ing, func(f *models.Feed) {
		f.URL = "https://other.example.com/feed.xml"
	})

	now := time.Now().UTC()
	doc := &Document{
		Format: models.FeedTypeRSS,
		Items: []Item{
			{Title: "Shared headline", Link: "https://example.com/shared", GUID: "shared", Published: timePtr(now)},
		},
	}

	entriesA, failures := ing.Ingest(context.Background(), feedA, doc)
	require.Empty(t, failures)
	require.Len(t, entriesA, 1)

	entriesB, failures := ing.Ingest(context.Background(), feedB, doc)
	require.Empty(t, failures)
	require.Len(t, entriesB, 1)

	require.NotEqual(t, entriesA[0].ID, entriesB[0].ID)
	require.EqualValues(t, 1, countEntries(t, ing, feedA.ID))
	require.EqualValues(t, 1, countEntries(t, ing, feedB.ID))
}

func TestUnresolvableIdentityIsReportedPerItem(t *testing.T) {
	ing := newTestIngester(t)
	feed := newTestFeed(t, ing, func(f *models.Feed) {
		f.FeedType = models.FeedTypeICal
	})

	doc := &Document{
		Format: models.FeedTypeICal,
		Items: []Item{
			{Description: "event with neither summary nor url"},
			{Title: "Valid event", Link: "https://example.com/events/2"},
		},
	}

	entries, failures := ing.Ingest(context.Background(), feed, doc)
	require.Len(t, failures, 1)
	require.Equal(t, 0, failures[0].Index)
	require.ErrorIs(t, failures[0], ErrNoIdentity)

	// The failure does not abort the rest of the document.
	require.Len(t, entries, 1)
	require.Equal(t, "Valid event", entries[0].Title)
}

func TestUnknownFormatIsRejected(t *testing.T) {
	ing := newTestIngester(t)
	feed := newTestFeed(t, ing, nil)

	entries, failures := ing.Ingest(context.Background(), feed, &Document{Format: "opml"})
	require.Empty(t, entries)
	require.Len(t, failures, 1)
	require.ErrorIs(t, failures[0], ErrUnknownFormat)
}

func TestLinkOnlyMessageStillCarriesTheArticleLink(t *testing.T) {
	ing := newTestIngester(t)
	feed := newTestFeed(t, ing, func(f *models.Feed) {
		f.Verbosity = models.VerbosityLinkOnly
	})

	now := time.Now().UTC()
	doc := &Document{
		Format: models.FeedTypeRSS,
		Items: []Item{
			{Title: "Linked", Link: "https://example.com/linked", GUID: "linked", Description: "full text here", Published: timePtr(now)},
		},
	}

	entries, failures := ing.Ingest(context.Background(), feed, doc)
	require.Empty(t, failures)
	require.Len(t, entries, 1)
	require.Equal(t, "<a href='https://example.com/linked'>Original article</a><br/><br/>", entries[0].Message)
}

type stubNotifier struct {
	calls   int
	entries models.Entries
	feed    *models.Feed
}

func (s *stubNotifier) AddAggregateEntries(ctx context.Context, entries models.Entries, feed *models.Feed) error {
	s.calls++
	s.entries = entries
	s.feed = feed
	return nil
}

func TestAggregateNotificationIsACapabilityCheck(t *testing.T) {
	ing := newTestIngester(t)
	stub := &stubNotifier{}
	ing.contexts = ContextRegistry{"course": stub}

	now := time.Now().UTC()
	doc := &Document{
		Format: models.FeedTypeRSS,
		Items: []Item{
			{Title: "Notice", Link: "https://example.com/notice", GUID: "notice", Published: timePtr(now)},
		},
	}

	course := newTestFeed(t, ing, func(f *models.Feed) {
		f.ContextType = "course"
		f.ContextID = 42
	})
	entries, failures := ing.Ingest(context.Background(), course, doc)
	require.Empty(t, failures)
	require.Equal(t, 1, stub.calls)
	require.Equal(t, entries, stub.entries)
	require.Equal(t, course.ID, stub.feed.ID)

	// A context type without the capability is silently skipped.
	group := newTestFeed(t, ing, func(f *models.Feed) {
		f.URL = "https://example.com/group.xml"
		f.ContextType = "group"
		f.ContextID = 7
	})
	_, failures = ing.Ingest(context.Background(), group, doc)
	require.Empty(t, failures)
	require.Equal(t, 1, stub.calls)
}
