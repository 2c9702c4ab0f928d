package lib

import (
	"context"
	"fmt"
	"net/url"
	"regexp"

	"github.com/veldt/feedgest/config"
	"github.com/veldt/feedgest/lib/models"
	"github.com/veldt/feedgest/lib/poller"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type createFeed struct {
	cfg    *config.Config
	log    *zap.Logger
	db     *gorm.DB
	poller *poller.Poller
}

// NewFeedParams captures the subscription form. ContextType is empty for
// feeds owned by the user alone.
type NewFeedParams struct {
	URL         string
	FeedType    string
	Verbosity   string
	HeaderMatch string
	BodyMatch   string
	ContextType string
	ContextID   uint
}

func (svc *createFeed) CreateFeed(ctx context.Context, userID uint, params NewFeedParams) (*models.Feed, error) {
	if err := svc.validate(params); err != nil {
		return nil, err
	}

	feed := &models.Feed{
		UserID:      userID,
		URL:         params.URL,
		FeedType:    params.FeedType,
		Verbosity:   params.Verbosity,
		HeaderMatch: params.HeaderMatch,
		BodyMatch:   params.BodyMatch,
		ContextType: params.ContextType,
		ContextID:   params.ContextID,
	}
	tx := svc.db.Clauses(clause.Returning{}).Create(feed)
	if err := tx.Error; err != nil {
		return nil, err
	}

	// First poll happens inline so the subscriber sees entries right away.
	// A failed first poll keeps the subscription; the scheduler retries it.
	if _, err := svc.poller.PollFeed(ctx, feed); err != nil {
		svc.log.Sugar().Infow("First poll failed", "feed_id", feed.ID, "err", err)
	}

	svc.log.Sugar().Infof("Created feed id:%v url:%s", feed.ID, feed.URL)
	return feed, nil
}

func (svc *createFeed) validate(params NewFeedParams) error {
	parsed, err := url.ParseRequestURI(params.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("invalid feed url: %q", params.URL)
	}

	switch params.Verbosity {
	case "", models.VerbosityFull, models.VerbosityLinkOnly, models.VerbosityTruncate:
	default:
		return fmt.Errorf("invalid verbosity: %q", params.Verbosity)
	}

	switch params.FeedType {
	case "", models.FeedTypeRSS, models.FeedTypeAtom, models.FeedTypeICal:
	default:
		return fmt.Errorf("invalid feed type: %q", params.FeedType)
	}

	for _, pattern := range []string{params.HeaderMatch, params.BodyMatch} {
		if pattern == "" {
			continue
		}
		if _, err := regexp.Compile("(?i)" + pattern); err != nil {
			return fmt.Errorf("invalid match pattern %q: %w", pattern, err)
		}
	}
	return nil
}
