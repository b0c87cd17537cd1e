// Package mongodb stores scrape records and the tag ledger in MongoDB.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/docutag/linkbender/models"
)

// Collection names
const (
	ScrapesCollection = "scrapes"
	TagsCollection    = "tags"
)

// Config contains MongoDB connection settings
type Config struct {
	URI      string
	Database string
	Username string
	Password string
}

// Store is a MongoDB-backed scrape store
type Store struct {
	client  *mongo.Client
	scrapes *mongo.Collection
	tags    *mongo.Collection
}

// New connects, pings and ensures indexes
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Database == "" {
		return nil, errors.New("mongodb database name is required")
	}

	clientOptions := options.Client().ApplyURI(cfg.URI)
	if cfg.Username != "" && cfg.Password != "" {
		clientOptions.SetAuth(options.Credential{
			Username: cfg.Username,
			Password: cfg.Password,
		})
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &Store{
		client:  client,
		scrapes: db.Collection(ScrapesCollection),
		tags:    db.Collection(TagsCollection),
	}

	if err := s.ensureIndexes(connectCtx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.scrapes.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "url", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "tags", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create scrape indexes: %w", err)
	}

	_, err = s.tags.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create tag index: %w", err)
	}
	return nil
}

// Close disconnects the client
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// InsertRecord appends a scrape record
func (s *Store) InsertRecord(ctx context.Context, record *models.ScrapeRecord) error {
	if _, err := s.scrapes.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// LatestByURL returns the newest record for a URL, or nil if none exists
func (s *Store) LatestByURL(ctx context.Context, url string) (*models.ScrapeRecord, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	return s.findOne(ctx, bson.M{"url": url}, opts)
}

// GetByID retrieves a record by ID, or nil if none exists
func (s *Store) GetByID(ctx context.Context, id string) (*models.ScrapeRecord, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// ListRecords returns records newest first. A limit of zero or less returns all of them.
func (s *Store) ListRecords(ctx context.Context, limit int) ([]*models.ScrapeRecord, error) {
	return s.find(ctx, bson.M{}, limit)
}

// FindByTags returns the newest records carrying any of the given tags
func (s *Store) FindByTags(ctx context.Context, searchTags []string, limit int) ([]*models.ScrapeRecord, error) {
	if len(searchTags) == 0 {
		return []*models.ScrapeRecord{}, nil
	}

	normalized := make([]string, 0, len(searchTags))
	for _, tag := range searchTags {
		normalized = append(normalized, strings.ToLower(strings.TrimSpace(tag)))
	}
	return s.find(ctx, bson.M{"tags": bson.M{"$in": normalized}}, limit)
}

// Count returns the number of scrape records
func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.scrapes.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return int(n), nil
}

// RecordTag upserts a tag, incrementing its count. It reports whether the
// upsert created the document.
func (s *Store) RecordTag(ctx context.Context, name string, at time.Time) (bool, error) {
	result, err := s.tags.UpdateOne(ctx,
		bson.M{"name": name},
		bson.M{
			"$inc":         bson.M{"count": 1},
			"$setOnInsert": bson.M{"created_at": at.UTC()},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("failed to record tag %s: %w", name, err)
	}
	return result.UpsertedCount == 1, nil
}

// ListTags returns every ledger entry, most used first
func (s *Store) ListTags(ctx context.Context) ([]models.TagEntry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "count", Value: -1}, {Key: "name", Value: 1}}).
		SetProjection(bson.M{"_id": 0})

	cursor, err := s.tags.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer cursor.Close(ctx)

	entries := []models.TagEntry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	return entries, nil
}

func (s *Store) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*models.ScrapeRecord, error) {
	var record models.ScrapeRecord
	err := s.scrapes.FindOne(ctx, filter, opts...).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query record: %w", err)
	}
	if record.Tags == nil {
		record.Tags = []string{}
	}
	return &record, nil
}

func (s *Store) find(ctx context.Context, filter bson.M, limit int) ([]*models.ScrapeRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.scrapes.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer cursor.Close(ctx)

	records := []*models.ScrapeRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	for _, r := range records {
		if r.Tags == nil {
			r.Tags = []string{}
		}
	}
	return records, nil
}
