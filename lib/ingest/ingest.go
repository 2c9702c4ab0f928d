package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/veldt/feedgest/lib/models"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ingester merges parsed feed documents into a feed's entry collection
// without creating duplicates across polls.
//
// One Ingest call is synchronous and processes its document in order.
// Concurrent calls against the same feed must be serialized by the caller
// (lib/poller holds a per-feed lock); the unique index on (feed_id, uuid)
// backstops that at the storage layer. Calls against distinct feeds need no
// coordination.
type Ingester struct {
	log      *zap.Logger
	db       *gorm.DB
	contexts ContextRegistry
}

func NewIngester(lc fx.Lifecycle, log *zap.Logger, db *gorm.DB, contexts ContextRegistry) *Ingester {
	return &Ingester{log, db, contexts}
}

// Ingest merges every item of doc into feed and returns the entries that
// were created or refreshed, in document order. Items rejected by the
// filter policy are simply absent. Items that fail (unresolvable identity,
// storage errors) are reported in the second return value without aborting
// the rest of the document.
func (ing *Ingester) Ingest(ctx context.Context, feed *models.Feed, doc *Document) (models.Entries, []*ItemError) {
	adapter, ok := adapters[doc.Format]
	if !ok {
		return nil, []*ItemError{{Index: -1, Err: fmt.Errorf("%w: %q", ErrUnknownFormat, doc.Format)}}
	}

	entries := models.Entries{}
	var failures []*ItemError

	for i, item := range doc.Items {
		entry, err := ing.mergeItem(ctx, feed, doc, adapter, item)
		if err != nil {
			failures = append(failures, &ItemError{Index: i, Title: item.Title, Err: err})
			continue
		}
		if entry == nil {
			continue // rejected by filter policy
		}
		entries = append(entries, entry)
	}

	ing.notifyContext(ctx, feed, entries)
	return entries, failures
}

func (ing *Ingester) mergeItem(ctx context.Context, feed *models.Feed, doc *Document, adapter formatAdapter, item Item) (*models.Entry, error) {
	uuid, err := adapter.identity(item)
	if err != nil {
		return nil, err
	}

	existing, err := ing.findExisting(feed, adapter, item, uuid)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		return ing.refreshEntry(ctx, feed, doc, item, existing)
	}

	if !ing.admit(feed, item) {
		return nil, nil
	}
	return ing.createEntry(ctx, feed, doc, item, uuid)
}

// findExisting looks an item up by its resolved identity first, then by the
// format's fallback key. A miss on both is not an error.
func (ing *Ingester) findExisting(feed *models.Feed, adapter formatAdapter, item Item, uuid string) (*models.Entry, error) {
	entry := &models.Entry{}
	tx := ing.db.Where("feed_id = ?", feed.ID).Where("uuid = ?", uuid).First(entry)
	if tx.Error == nil {
		return entry, nil
	}
	if !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup entry by identity: %w", tx.Error)
	}

	query, args := adapter.fallback(item)
	entry = &models.Entry{}
	tx = ing.db.Where("feed_id = ?", feed.ID).Where(query, args...).First(entry)
	if tx.Error == nil {
		return entry, nil
	}
	if !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup entry by fallback key: %w", tx.Error)
	}
	return nil, nil
}

// refreshEntry is the update path: structural fields are overwritten, the
// message is recomputed only while it is still empty, and filters do not
// apply. An entry admitted before the current filter policy was set stays
// up to date even when its item no longer matches.
func (ing *Ingester) refreshEntry(ctx context.Context, feed *models.Feed, doc *Document, item Item, entry *models.Entry) (*models.Entry, error) {
	updates := map[string]any{
		"title": item.Title,
		"url":   item.Link,
	}
	entry.Title, entry.URL = item.Title, item.Link

	if entry.Message == "" {
		entry.Message = ing.composeMessage(feed, item)
		updates["message"] = entry.Message
	}

	if item.Author != nil {
		entry.AuthorName, entry.AuthorURL, entry.AuthorEmail = item.Author.Name, item.Author.URI, item.Author.Email
		updates["author_name"] = item.Author.Name
		updates["author_url"] = item.Author.URI
		updates["author_email"] = item.Author.Email
	}

	if doc.Format == models.FeedTypeICal {
		entry.StartAt, entry.EndAt = item.Start, item.End
		updates["start_at"] = item.Start
		updates["end_at"] = item.End
		if cancelled(item) && entry.Active() {
			entry.Status = models.EntryStatusCancelled
			updates["status"] = entry.Status
		}
	}

	tx := ing.db.Model(&models.Entry{}).Where("id = ?", entry.ID).Updates(updates)
	if err := tx.Error; err != nil {
		return nil, fmt.Errorf("refresh entry: %w", err)
	}
	return entry, nil
}

// createEntry is the create path, reached only after the filter policy
// admitted the item.
func (ing *Ingester) createEntry(ctx context.Context, feed *models.Feed, doc *Document, item Item, uuid string) (*models.Entry, error) {
	postedAt := time.Now().UTC()
	if item.Published != nil {
		postedAt = *item.Published
	}

	entry := &models.Entry{
		FeedID:     feed.ID,
		UserID:     feed.UserID,
		UUID:       uuid,
		Title:      item.Title,
		Message:    ing.composeMessage(feed, item),
		URL:        item.Link,
		SourceName: doc.Title,
		SourceURL:  doc.Link,
		PostedAt:   postedAt,
	}
	if entry.SourceName == "" {
		entry.SourceName = feed.DisplayName()
	}
	if entry.SourceURL == "" {
		entry.SourceURL = feed.URL
	}
	if item.Author != nil {
		entry.AuthorName, entry.AuthorURL, entry.AuthorEmail = item.Author.Name, item.Author.URI, item.Author.Email
	}
	if doc.Format == models.FeedTypeICal {
		entry.StartAt, entry.EndAt = item.Start, item.End
		if cancelled(item) {
			entry.Status = models.EntryStatusCancelled
		}
	}

	tx := ing.db.Clauses(clause.Returning{}).Create(entry)
	if err := tx.Error; err != nil {
		return nil, fmt.Errorf("create entry: %w", err)
	}
	return entry, nil
}

// composeMessage prepends the original-article link to the rendered body.
// Items without body text fall back to their title.
func (ing *Ingester) composeMessage(feed *models.Feed, item Item) string {
	body := item.Description
	if body == "" {
		body = item.Title
	}
	return fmt.Sprintf("<a href='%s'>Original article</a><br/><br/>%s", item.Link, Render(feed.Verbosity, body))
}

func cancelled(item Item) bool {
	return strings.EqualFold(item.Status, models.EntryStatusCancelled)
}
