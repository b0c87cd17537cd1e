package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/docutag/linkbender/models"
	"github.com/docutag/linkbender/tags"
)

// Supported SQL drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DB wraps the database connection and provides data access methods
type DB struct {
	conn   *sql.DB
	driver string
}

// Config contains database configuration
type Config struct {
	Driver string // postgres or sqlite
	DSN    string // connection string or SQLite file path
}

// New creates a new database connection and applies pending migrations
func New(config Config) (*DB, error) {
	db, err := Open(config)
	if err != nil {
		return nil, err
	}

	if err := Migrate(db.conn, db.driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Open connects without touching the schema
func Open(config Config) (*DB, error) {
	driver := config.Driver
	if driver == "" {
		driver = DriverPostgres
	}
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	conn, err := sql.Open(driver, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pool
	if driver == DriverSQLite {
		// SQLite allows a single writer
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	return &DB{conn: conn, driver: driver}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// DB returns the underlying database connection for metrics collection
func (db *DB) DB() *sql.DB {
	return db.conn
}

// Driver reports which SQL dialect the connection speaks
func (db *DB) Driver() string {
	return db.driver
}

// Ping verifies the connection is alive
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// InsertRecord appends a scrape record. Records are never updated in place;
// a re-scrape of the same URL adds a newer row.
func (db *DB) InsertRecord(ctx context.Context, record *models.ScrapeRecord) error {
	recordTags := record.Tags
	if recordTags == nil {
		recordTags = []string{}
	}
	tagsJSON, err := json.Marshal(recordTags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	var prefsJSON sql.NullString
	if record.Preferences != nil {
		b, err := json.Marshal(record.Preferences)
		if err != nil {
			return fmt.Errorf("failed to marshal preferences: %w", err)
		}
		prefsJSON = sql.NullString{String: string(b), Valid: true}
	}

	query := `
		INSERT INTO scrape_records (id, url, summary, tags, grade, badge, preferences, content, archive_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = db.conn.ExecContext(ctx, db.rebind(query),
		record.ID,
		record.URL,
		record.Summary,
		string(tagsJSON),
		record.Grade,
		record.Badge,
		prefsJSON,
		record.Content,
		record.ArchiveKey,
		record.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}

	return nil
}

const recordColumns = "id, url, summary, tags, grade, badge, preferences, content, archive_key, created_at"

// LatestByURL returns the newest record for a normalized URL, or nil if none exists
func (db *DB) LatestByURL(ctx context.Context, url string) (*models.ScrapeRecord, error) {
	query := "SELECT " + recordColumns + " FROM scrape_records WHERE url = ? ORDER BY seq DESC LIMIT 1"

	record, err := scanRecord(db.conn.QueryRowContext(ctx, db.rebind(query), url))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query record: %w", err)
	}
	return record, nil
}

// GetByID retrieves a record by ID, or nil if none exists
func (db *DB) GetByID(ctx context.Context, id string) (*models.ScrapeRecord, error) {
	query := "SELECT " + recordColumns + " FROM scrape_records WHERE id = ?"

	record, err := scanRecord(db.conn.QueryRowContext(ctx, db.rebind(query), id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query record: %w", err)
	}
	return record, nil
}

// ListRecords returns records newest first. A limit of zero or less returns all of them.
func (db *DB) ListRecords(ctx context.Context, limit int) ([]*models.ScrapeRecord, error) {
	query := "SELECT " + recordColumns + " FROM scrape_records ORDER BY seq DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return db.queryRecords(ctx, query, args...)
}

// FindByTags returns the newest records carrying any of the given tags
func (db *DB) FindByTags(ctx context.Context, searchTags []string, limit int) ([]*models.ScrapeRecord, error) {
	wanted := tags.Dedup(searchTags)
	if len(wanted) == 0 {
		return []*models.ScrapeRecord{}, nil
	}

	query := "SELECT " + recordColumns + " FROM scrape_records WHERE " + db.tagMatch(len(wanted)) + " ORDER BY seq DESC"
	args := make([]any, 0, len(wanted)+1)
	for _, tag := range wanted {
		args = append(args, tag)
	}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return db.queryRecords(ctx, query, args...)
}

// tagMatch is a predicate that holds when the record's JSON tag array
// contains any of n bound values
func (db *DB) tagMatch(n int) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
	if db.driver == DriverPostgres {
		return "EXISTS (SELECT 1 FROM jsonb_array_elements_text(scrape_records.tags::jsonb) AS t(value) WHERE t.value IN (" + placeholders + "))"
	}
	return "EXISTS (SELECT 1 FROM json_each(scrape_records.tags) WHERE json_each.value IN (" + placeholders + "))"
}

// Count returns the total number of scrape records
func (db *DB) Count(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM scrape_records").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// RecordTag creates a tag with count 1 or increments an existing one.
// It reports whether the tag was created by this call.
func (db *DB) RecordTag(ctx context.Context, name string, at time.Time) (bool, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		db.rebind("INSERT INTO tags (name, count, created_at) VALUES (?, 1, ?) ON CONFLICT(name) DO NOTHING"),
		name, at.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert tag %s: %w", name, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	created := rows == 1
	if !created {
		if _, err := tx.ExecContext(ctx, db.rebind("UPDATE tags SET count = count + 1 WHERE name = ?"), name); err != nil {
			return false, fmt.Errorf("failed to increment tag %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return created, nil
}

// ListTags returns every ledger entry, most used first
func (db *DB) ListTags(ctx context.Context) ([]models.TagEntry, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT name, count, created_at FROM tags ORDER BY count DESC, name")
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	entries := []models.TagEntry{}
	for rows.Next() {
		var entry models.TagEntry
		if err := rows.Scan(&entry.Name, &entry.Count, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return entries, nil
}

func (db *DB) queryRecords(ctx context.Context, query string, args ...any) ([]*models.ScrapeRecord, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	results := []*models.ScrapeRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return results, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.ScrapeRecord, error) {
	var (
		record     models.ScrapeRecord
		tagsJSON   string
		prefsJSON  sql.NullString
		archiveKey sql.NullString
	)

	err := row.Scan(
		&record.ID,
		&record.URL,
		&record.Summary,
		&tagsJSON,
		&record.Grade,
		&record.Badge,
		&prefsJSON,
		&record.Content,
		&archiveKey,
		&record.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	if tagsJSON != "" && tagsJSON != "null" {
		if err := json.Unmarshal([]byte(tagsJSON), &record.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	if record.Tags == nil {
		record.Tags = []string{}
	}

	if prefsJSON.Valid && prefsJSON.String != "" {
		var prefs models.Preferences
		if err := json.Unmarshal([]byte(prefsJSON.String), &prefs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal preferences: %w", err)
		}
		record.Preferences = &prefs
	}
	if archiveKey.Valid {
		record.ArchiveKey = archiveKey.String
	}

	return &record, nil
}

// rebind rewrites ? placeholders as $n for PostgreSQL
func (db *DB) rebind(query string) string {
	return rebind(db.driver, query)
}

func rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
