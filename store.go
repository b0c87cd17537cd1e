package linkbender

import (
	"context"
	"time"

	"github.com/docutag/linkbender/models"
)

// Store is the scrape record and tag ledger persistence the service runs on.
// Lookups return nil, nil when nothing matches.
type Store interface {
	InsertRecord(ctx context.Context, record *models.ScrapeRecord) error
	LatestByURL(ctx context.Context, url string) (*models.ScrapeRecord, error)
	GetByID(ctx context.Context, id string) (*models.ScrapeRecord, error)
	ListRecords(ctx context.Context, limit int) ([]*models.ScrapeRecord, error)
	FindByTags(ctx context.Context, tags []string, limit int) ([]*models.ScrapeRecord, error)
	Count(ctx context.Context) (int, error)

	RecordTag(ctx context.Context, name string, at time.Time) (created bool, err error)
	ListTags(ctx context.Context) ([]models.TagEntry, error)

	Ping(ctx context.Context) error
	Close() error
}
