package db

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/docutag/linkbender/models"
)

// setupTestDB opens a migrated SQLite database in a temp dir
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(Config{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	return db
}

func newRecord(id, url string, tags ...string) *models.ScrapeRecord {
	return &models.ScrapeRecord{
		ID:        id,
		URL:       url,
		Summary:   "summary of " + id,
		Tags:      tags,
		Grade:     "7",
		Badge:     "silver",
		Timestamp: time.Now(),
		Content:   "content of " + id,
	}
}

func TestNewUnsupportedDriver(t *testing.T) {
	if _, err := New(Config{Driver: "oracle", DSN: "x"}); err == nil {
		t.Error("Expected error for unsupported driver")
	}
}

func TestInsertAndLatestByURL(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	first := newRecord("rec-1", "https://example.com/a", "go")
	if err := db.InsertRecord(ctx, first); err != nil {
		t.Fatalf("InsertRecord failed: %v", err)
	}

	second := newRecord("rec-2", "https://example.com/a", "go", "web")
	second.Preferences = &models.Preferences{Length: models.LengthShort, Style: models.StyleTechnical}
	second.ArchiveKey = "example-com-a.txt"
	if err := db.InsertRecord(ctx, second); err != nil {
		t.Fatalf("InsertRecord failed: %v", err)
	}

	got, err := db.LatestByURL(ctx, "https://example.com/a")
	if err != nil {
		t.Fatalf("LatestByURL failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected record, got nil")
	}
	if got.ID != "rec-2" {
		t.Errorf("Expected newest record rec-2, got %s", got.ID)
	}
	if len(got.Tags) != 2 || got.Tags[1] != "web" {
		t.Errorf("Unexpected tags: %v", got.Tags)
	}
	if got.Preferences == nil || got.Preferences.Style != models.StyleTechnical {
		t.Errorf("Expected preferences to round trip, got %+v", got.Preferences)
	}
	if got.ArchiveKey != "example-com-a.txt" {
		t.Errorf("ArchiveKey = %q", got.ArchiveKey)
	}
	if got.Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}
}

func TestLatestByURLNotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	got, err := db.LatestByURL(context.Background(), "https://missing.example.com")
	if err != nil {
		t.Fatalf("LatestByURL failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for missing URL, got %+v", got)
	}
}

func TestGetByID(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	if err := db.InsertRecord(ctx, newRecord("rec-1", "https://example.com/a")); err != nil {
		t.Fatalf("InsertRecord failed: %v", err)
	}

	got, err := db.GetByID(ctx, "rec-1")
	if err != nil || got == nil {
		t.Fatalf("GetByID = %v, %v", got, err)
	}
	if got.Tags == nil {
		t.Error("Expected empty tag slice, got nil")
	}

	missing, err := db.GetByID(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("GetByID(missing) = %v, %v", missing, err)
	}
}

func TestListRecordsNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := db.InsertRecord(ctx, newRecord(id, "https://example.com/"+id)); err != nil {
			t.Fatalf("InsertRecord failed: %v", err)
		}
	}

	all, err := db.ListRecords(ctx, 0)
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(all))
	}
	if all[0].ID != "c" || all[2].ID != "a" {
		t.Errorf("Expected newest first, got %s..%s", all[0].ID, all[2].ID)
	}

	limited, err := db.ListRecords(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Expected 2 records, got %d", len(limited))
	}
}

func TestFindByTags(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	records := []*models.ScrapeRecord{
		newRecord("untagged", "https://example.com/0"),
		newRecord("go-1", "https://example.com/1", "go", "programming"),
		newRecord("py-1", "https://example.com/2", "python"),
		newRecord("go-2", "https://example.com/3", "go"),
		newRecord("web-1", "https://example.com/4", "web", "golang"),
	}
	for _, r := range records {
		if err := db.InsertRecord(ctx, r); err != nil {
			t.Fatalf("InsertRecord failed: %v", err)
		}
	}

	tests := []struct {
		name    string
		tags    []string
		limit   int
		wantIDs []string
	}{
		{name: "single tag", tags: []string{"go"}, wantIDs: []string{"go-2", "go-1"}},
		{name: "any of several", tags: []string{"python", "web"}, wantIDs: []string{"web-1", "py-1"}},
		{name: "exact membership only", tags: []string{"gol"}, wantIDs: []string{}},
		{name: "case insensitive input", tags: []string{" GO "}, wantIDs: []string{"go-2", "go-1"}},
		{name: "limit", tags: []string{"go", "python"}, limit: 2, wantIDs: []string{"go-2", "py-1"}},
		{name: "no tags", tags: nil, wantIDs: []string{}},
		{name: "blank tags only", tags: []string{" ", ""}, wantIDs: []string{}},
		{name: "repeated input tags", tags: []string{"go", "GO", "go "}, wantIDs: []string{"go-2", "go-1"}},
		{name: "tag names are not patterns", tags: []string{"%"}, wantIDs: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.FindByTags(ctx, tt.tags, tt.limit)
			if err != nil {
				t.Fatalf("FindByTags failed: %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("Expected %d results, got %d", len(tt.wantIDs), len(got))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("Result[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestCount(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	count, err := db.Count(ctx)
	if err != nil || count != 0 {
		t.Fatalf("Count = %d, %v", count, err)
	}

	if err := db.InsertRecord(ctx, newRecord("rec-1", "https://example.com/a")); err != nil {
		t.Fatalf("InsertRecord failed: %v", err)
	}

	count, err = db.Count(ctx)
	if err != nil || count != 1 {
		t.Errorf("Count = %d, %v", count, err)
	}
}

func TestRecordTag(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	now := time.Now()

	created, err := db.RecordTag(ctx, "go", now)
	if err != nil {
		t.Fatalf("RecordTag failed: %v", err)
	}
	if !created {
		t.Error("Expected first RecordTag to create the tag")
	}

	created, err = db.RecordTag(ctx, "go", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("RecordTag failed: %v", err)
	}
	if created {
		t.Error("Expected second RecordTag to increment, not create")
	}

	if _, err := db.RecordTag(ctx, "web", now); err != nil {
		t.Fatalf("RecordTag failed: %v", err)
	}

	entries, err := db.ListTags(ctx)
	if err != nil {
		t.Fatalf("ListTags failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 tags, got %d", len(entries))
	}
	if entries[0].Name != "go" || entries[0].Count != 2 {
		t.Errorf("Expected go with count 2 first, got %+v", entries[0])
	}
	if entries[0].CreatedAt.Sub(now.UTC()).Abs() > time.Second {
		t.Errorf("created_at changed on increment: %v", entries[0].CreatedAt)
	}
	if entries[1].Name != "web" || entries[1].Count != 1 {
		t.Errorf("Expected web with count 1, got %+v", entries[1])
	}
}

func TestRecordTagConcurrent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	const workers = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := db.RecordTag(ctx, "shared", time.Now())
			if err != nil {
				t.Errorf("RecordTag failed: %v", err)
				return
			}
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("Expected exactly one creation, got %d", created)
	}

	entries, err := db.ListTags(ctx)
	if err != nil {
		t.Fatalf("ListTags failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Count != workers {
		t.Errorf("Expected count %d, got %+v", workers, entries)
	}
}

func TestMigrationStatusAndRollback(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	status, err := GetMigrationStatus(db.DB(), DriverSQLite)
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}
	for _, s := range status {
		if !s.Applied {
			t.Errorf("Migration %d (%s) not applied", s.Version, s.Name)
		}
	}

	if err := Rollback(db.DB(), DriverSQLite); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	status, err = GetMigrationStatus(db.DB(), DriverSQLite)
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}
	last := status[len(status)-1]
	if last.Applied {
		t.Errorf("Expected migration %d to be rolled back", last.Version)
	}

	if err := Migrate(db.DB(), DriverSQLite); err != nil {
		t.Fatalf("Re-running Migrate failed: %v", err)
	}
}

func TestRebind(t *testing.T) {
	query := "SELECT * FROM t WHERE a = ? AND b = ?"

	if got := rebind(DriverPostgres, query); got != "SELECT * FROM t WHERE a = $1 AND b = $2" {
		t.Errorf("rebind(postgres) = %q", got)
	}
	if got := rebind(DriverSQLite, query); got != query {
		t.Errorf("rebind(sqlite) = %q", got)
	}
}

func TestOpenDoesNotMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.db")

	db, err := Open(Config{Driver: DriverSQLite, DSN: path})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	status, err := GetMigrationStatus(db.DB(), db.Driver())
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}
	for _, s := range status {
		if s.Applied {
			t.Errorf("Migration %d applied on a fresh connection", s.Version)
		}
	}

	if err := Rollback(db.DB(), db.Driver()); err == nil {
		t.Error("Expected rollback to fail with nothing applied")
	}
}
