package lib

import (
	"context"
	"errors"
	"fmt"

	"github.com/veldt/feedgest/config"
	"github.com/veldt/feedgest/lib/ingest"
	"github.com/veldt/feedgest/lib/models"
	"github.com/veldt/feedgest/lib/poller"
	"github.com/veldt/feedgest/senders"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *gorm.DB
	senders senders.Registry

	poller *poller.Poller
	*onboardUser
	*createFeed
}

func NewService(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, db *gorm.DB, poller *poller.Poller, senders senders.Registry) *Service {
	return &Service{
		cfg, log, db, senders,
		poller,
		&onboardUser{cfg, log, db, senders},
		&createFeed{cfg, log, db, poller},
	}
}

func (svc *Service) VerifyNotifier(ctx context.Context, nonce string) (bool, error) {
	confirm := models.NotifierConfirmation{}
	tx := svc.db.Where("nonce = ?", nonce).First(&confirm)
	if err := tx.Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}

	tx = svc.db.Model(&models.Notifier{}).Where("id = ?", confirm.NotifierID).Update("verified", true)
	if err := tx.Error; err != nil {
		return false, err
	}

	return true, nil
}

func (svc *Service) FindFeed(ctx context.Context, userID, feedID uint) (*models.Feed, error) {
	feed := &models.Feed{}
	tx := svc.db.
		Where("user_id = ?", userID).
		Where("id = ?", feedID).
		First(feed)
	if err := tx.Error; err != nil {
		return nil, err
	}
	return feed, nil
}

func (svc *Service) ListEntries(ctx context.Context, userID, feedID uint) (models.Entries, error) {
	if _, err := svc.FindFeed(ctx, userID, feedID); err != nil {
		return nil, err
	}

	entries := models.Entries{}
	tx := svc.db.
		Where("feed_id = ?", feedID).
		Order("posted_at desc").
		Find(&entries)
	if err := tx.Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteFeed removes a subscription and every entry merged under it.
func (svc *Service) DeleteFeed(ctx context.Context, userID, feedID uint) error {
	feed, err := svc.FindFeed(ctx, userID, feedID)
	if err != nil {
		return err
	}

	return svc.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("feed_id = ?", feed.ID).Delete(&models.Entry{}).Error; err != nil {
			return fmt.Errorf("delete entries of feed %d: %w", feed.ID, err)
		}
		if err := tx.Delete(feed).Error; err != nil {
			return fmt.Errorf("delete feed %d: %w", feed.ID, err)
		}
		return nil
	})
}

// PreviewDescription renders a body under a verbosity policy without
// touching any feed, for subscription-form previews.
func (svc *Service) PreviewDescription(ctx context.Context, verbosity, text string) string {
	return ingest.Render(verbosity, text)
}
