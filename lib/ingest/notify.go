package ingest

import (
	"context"

	"github.com/veldt/feedgest/lib/models"
)

// AggregateNotifier is the optional capability a feed-owning context may
// declare to receive the batch of entries produced by one ingest call.
type AggregateNotifier interface {
	AddAggregateEntries(ctx context.Context, entries models.Entries, feed *models.Feed) error
}

// ContextRegistry maps context type tags to their notifier. Context types
// absent from the registry simply don't participate; that is the capability
// check, not an error.
type ContextRegistry map[string]AggregateNotifier

func (ing *Ingester) notifyContext(ctx context.Context, feed *models.Feed, entries models.Entries) {
	if feed.ContextType == "" || len(entries) == 0 {
		return
	}
	notifier, ok := ing.contexts[feed.ContextType]
	if !ok {
		return
	}
	if err := notifier.AddAggregateEntries(ctx, entries, feed); err != nil {
		ing.log.Sugar().Errorw("Failed to notify feed context", "context_type", feed.ContextType, "err", err)
	}
}
