package processor

import (
	"context"

	"github.com/pauljones0/slickdeals-discord-bot/internal/models"
	"github.com/pauljones0/slickdeals-discord-bot/internal/scraper"
)

// DealStore abstracts the storage layer for deal data.
type DealStore interface {
	GetDeal(ctx context.Context, source, postID string) (*models.DealRecord, error)
	InsertDeal(ctx context.Context, source string, deal models.DealRecord) error
	UpdateDealContent(ctx context.Context, source string, deal models.DealRecord) error
}

// DealPublisher abstracts the publication workflow.
type DealPublisher interface {
	Publish(ctx context.Context, ext scraper.Extractor, deal models.DealRecord) (models.NotificationEntry, error)
	Propagate(ctx context.Context, ext scraper.Extractor, deal models.DealRecord) int
}
