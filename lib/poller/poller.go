package poller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/antchfx/htmlquery"
	ics "github.com/arran4/golang-ical"
	"github.com/carlmjohnson/requests"
	"github.com/mmcdole/gofeed"
	"github.com/veldt/feedgest/lib/htmltext"
	"github.com/veldt/feedgest/lib/ingest"
	"github.com/veldt/feedgest/lib/models"
	"github.com/veldt/feedgest/senders"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxConsecutiveFailures benches a feed until an operator intervenes.
const maxConsecutiveFailures = 5

func NewPoller(lc fx.Lifecycle, log *zap.Logger, db *gorm.DB, transport http.RoundTripper, ingester *ingest.Ingester, senders senders.Registry) *Poller {
	wakeupInterval := 15 * time.Minute // interval to check for pollable feeds
	pollInterval := 1 * time.Hour      // poll each feed every hour
	failureBackoff := 2 * time.Hour    // failed feeds wait longer before retrying

	concurrency := 5

	poller := Poller{
		db, log, transport, ingester, senders,
		newKeyedMutex(), concurrency, NewAlarmClock(wakeupInterval),
		pollInterval, failureBackoff,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go poller.Start(ctx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Sugar().Info("Trying to stop poller")
			poller.Stop()
			return nil
		},
	})

	return &poller
}

type Poller struct {
	db        *gorm.DB
	log       *zap.Logger
	transport http.RoundTripper
	ingester  *ingest.Ingester
	senders   senders.Registry

	feedLocks   *keyedMutex
	concurrency int
	alarmClock  *alarmClock

	pollInterval   time.Duration // we only poll a feed when its refresh_at has passed
	failureBackoff time.Duration // refresh_at pushback after a failed poll
}

func (p *Poller) Start(ctx context.Context) {
	c := p.alarmClock.Start(ctx)

	go func() {
		for wakeup := range c {
			p.handleWakeup(wakeup)
		}
	}()
}

func (p *Poller) Stop() {
	p.alarmClock.Stop()
	p.log.Sugar().Info("Poller stopped")
}

func (p *Poller) handleWakeup(wakeup time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	p.pollFeeds(ctx, wakeup)
}

func (p *Poller) pollFeeds(ctx context.Context, batchStartTime time.Time) {
	metrics := &pollMetrics{}

	var feeds models.Feeds
	tx := p.db.
		Where("consecutive_failures < ?", maxConsecutiveFailures).
		Where("refresh_at < ?", batchStartTime).
		FindInBatches(&feeds, p.concurrency, func(tx *gorm.DB, batch int) error {
			batchMetrics, errs := p.pollBatch(ctx, feeds)
			if len(errs) > 0 {
				p.log.Sugar().Warnf("poll: batch errors: %+v", errs)
			}

			metrics.totalSelected += len(feeds)
			metrics.Add(batchMetrics)
			return nil
		})
	if err := tx.Error; err != nil {
		p.log.Sugar().Errorf("Failed to fetch pollable feeds, err: %v", err)
		return
	}

	if metrics.totalSelected > 0 {
		args := make([]any, 0)
		if metrics.errored != 0 {
			args = append(args, "errored", metrics.errored)
		}
		if metrics.created != 0 {
			args = append(args, "created", metrics.created)
		}
		if metrics.updated != 0 {
			args = append(args, "updated", metrics.updated)
		}
		if metrics.itemFailures != 0 {
			args = append(args, "item_failures", metrics.itemFailures)
		}

		p.log.Sugar().Infow(
			fmt.Sprintf("Polled %d feeds", metrics.totalSelected),
			args...,
		)
	}

	elapsed := time.Now().UTC().Sub(batchStartTime)
	p.log.Sugar().Infow("Poll run completed", "elapsed_msecs", int(elapsed.Milliseconds()))
}

func (p *Poller) pollBatch(ctx context.Context, batch models.Feeds) (*pollMetrics, []error) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var metrics = &pollMetrics{}

	errs := make([]error, 0)
	for i := range batch {
		feed := &batch[i]
		wg.Add(1)

		go func() {
			defer wg.Done()
			m, err := p.PollFeed(ctx, feed)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
			}
			metrics.Add(m)
		}()
	}

	wg.Wait()
	return metrics, errs
}

// PollFeed fetches, parses and ingests one feed. The per-feed lock
// serializes overlapping polls of a single feed; the ingest engine assumes
// the caller provides that isolation.
func (p *Poller) PollFeed(ctx context.Context, feed *models.Feed) (*pollMetrics, error) {
	p.feedLocks.Lock(feed.ID)
	defer p.feedLocks.Unlock(feed.ID)

	pollStart := time.Now().UTC()

	doc, err := p.FetchDocument(ctx, feed)
	if err != nil {
		p.recordFailure(feed, pollStart)
		return &pollMetrics{errored: 1}, fmt.Errorf("poll feed %d (%s): %w", feed.ID, feed.URL, err)
	}

	entries, failures := p.ingester.Ingest(ctx, feed, doc)
	for _, failure := range failures {
		p.log.Sugar().Warnw("Failed to merge item", "feed_id", feed.ID, "err", failure)
	}

	metrics := &pollMetrics{itemFailures: len(failures)}
	var created models.Entries
	for _, entry := range entries {
		if entry.CreatedAt.Before(pollStart) {
			metrics.updated++
		} else {
			metrics.created++
			created = append(created, entry)
		}
	}

	if err := p.recordSuccess(feed, doc, pollStart); err != nil {
		return metrics, err
	}

	if len(created) > 0 {
		p.sendDigest(ctx, feed, created)
	}
	return metrics, nil
}

// FetchDocument retrieves and parses the feed's source document. Calendar
// subscriptions parse as iCalendar; everything else goes through gofeed,
// which tags the document rss or atom itself.
func (p *Poller) FetchDocument(ctx context.Context, feed *models.Feed) (*ingest.Document, error) {
	var body string
	err := requests.URL(feed.URL).
		Transport(p.transport).
		ToString(&body).
		Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", feed.URL, err)
	}

	if feed.FeedType == models.FeedTypeICal {
		cal, err := ics.ParseCalendar(strings.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("parse calendar: %w", err)
		}
		return ingest.FromCalendar(cal), nil
	}

	parsed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return ingest.FromParsedFeed(parsed), nil
}

func (p *Poller) recordFailure(feed *models.Feed, pollStart time.Time) {
	tx := p.db.Model(feed).Updates(map[string]any{
		"consecutive_failures": gorm.Expr("consecutive_failures + 1"),
		"refresh_at":           pollStart.Add(p.failureBackoff),
		"last_poll_time":       pollStart,
	})
	if err := tx.Error; err != nil {
		p.log.Sugar().Errorf("Failed to record poll failure for feed %d: %v", feed.ID, err)
	}
}

func (p *Poller) recordSuccess(feed *models.Feed, doc *ingest.Document, pollStart time.Time) error {
	updates := map[string]any{
		"consecutive_failures": 0,
		"refresh_at":           pollStart.Add(p.pollInterval),
		"last_poll_time":       pollStart,
		"feed_type":            doc.Format,
	}
	if doc.Title != "" {
		updates["title"] = doc.Title
	}
	if imageURL := p.feedImageURL(feed, doc); imageURL != "" {
		updates["image_url"] = imageURL
	}

	tx := p.db.Model(feed).Updates(updates)
	if err := tx.Error; err != nil {
		return fmt.Errorf("record poll success for feed %d: %w", feed.ID, err)
	}
	return nil
}

// feedImageURL keeps the feed's display image fresh: the channel's own
// image wins, otherwise the channel page's opengraph metadata.
func (p *Poller) feedImageURL(feed *models.Feed, doc *ingest.Document) string {
	if doc.ImageURL != "" {
		return doc.ImageURL
	}
	if feed.ImageURL != "" || doc.Link == "" {
		return ""
	}

	var page string
	err := requests.URL(doc.Link).
		Transport(p.transport).
		ToString(&page).
		Fetch(context.Background())
	if err != nil {
		return ""
	}
	parsed, err := htmlquery.Parse(strings.NewReader(page))
	if err != nil {
		return ""
	}
	return htmltext.ExtractImageURL(parsed)
}

func (p *Poller) sendDigest(ctx context.Context, feed *models.Feed, created models.Entries) {
	notifier := models.Notifier{}
	tx := p.db.Where("user_id = ?", feed.UserID).Where("verified = ?", true).First(&notifier)
	if err := tx.Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			p.log.Sugar().Errorf("Failed to look up notifier for user %d: %v", feed.UserID, err)
		}
		return
	}

	sender, ok := p.senders[notifier.Platform]
	if !ok {
		p.log.Sugar().Warnf("Unsupported notifier platform: %s", notifier.Platform)
		return
	}

	id, err := sender.SendDigest(ctx, &notifier, feed, created)
	if err != nil {
		p.log.Sugar().Infow("Failed to send digest", "err", err)
	} else {
		p.log.Sugar().Infow("Sent digest for feed "+feed.DisplayName(), "message_id", id)
	}
}
