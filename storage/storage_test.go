package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	s, err := New(Config{BasePath: t.TempDir()})
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	s.now = func() time.Time { return time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestSaveAndReadText(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	key, err := s.SaveText(ctx, "example-com-article", "full page text")
	if err != nil {
		t.Fatalf("SaveText failed: %v", err)
	}
	if key != "content/2024/03/example-com-article.txt" {
		t.Errorf("key = %q", key)
	}

	text, err := s.ReadText(ctx, key)
	if err != nil {
		t.Fatalf("ReadText failed: %v", err)
	}
	if text != "full page text" {
		t.Errorf("text = %q", text)
	}
}

func TestSaveTextUniqueKeys(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	first, err := s.SaveText(ctx, "page", "v1")
	if err != nil {
		t.Fatalf("SaveText failed: %v", err)
	}
	second, err := s.SaveText(ctx, "page", "v2")
	if err != nil {
		t.Fatalf("SaveText failed: %v", err)
	}

	if first == second {
		t.Fatalf("Expected distinct keys, both %q", first)
	}
	if !strings.HasSuffix(second, "page-1.txt") {
		t.Errorf("second key = %q, want page-1.txt suffix", second)
	}

	text, _ := s.ReadText(ctx, first)
	if text != "v1" {
		t.Errorf("first archive overwritten: %q", text)
	}
}

func TestReadTextMissing(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.ReadText(context.Background(), "content/2024/03/missing.txt")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestReadTextRejectsTraversal(t *testing.T) {
	s := newTestStorage(t)

	for _, key := range []string{"../outside.txt", "/etc/passwd", ""} {
		if _, err := s.ReadText(context.Background(), key); err == nil || errors.Is(err, ErrNotFound) {
			t.Errorf("ReadText(%q) = %v, want invalid key error", key, err)
		}
	}
}

func TestDelete(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	key, err := s.SaveText(ctx, "page", "text")
	if err != nil {
		t.Fatalf("SaveText failed: %v", err)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.config.BasePath, key)); !os.IsNotExist(err) {
		t.Error("Expected file to be removed")
	}

	// Deleting twice is not an error
	if err := s.Delete(ctx, key); err != nil {
		t.Errorf("Second Delete failed: %v", err)
	}
}

// TestNewS3Storage tests creating S3 storage with valid config
func TestNewS3Storage(t *testing.T) {
	config := S3Config{
		Endpoint:        "http://localhost:9000",
		Region:          "us-east-1",
		Bucket:          "test-bucket",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		UsePathStyle:    true,
	}

	storage, err := NewS3Storage(context.Background(), config)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	if storage == nil {
		t.Fatal("Expected storage to be non-nil")
	}
}

func TestNewS3StorageValidation(t *testing.T) {
	valid := S3Config{
		Region:          "us-east-1",
		Bucket:          "test-bucket",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
	}

	tests := []struct {
		name   string
		mutate func(*S3Config)
	}{
		{"missing bucket", func(c *S3Config) { c.Bucket = "" }},
		{"missing region", func(c *S3Config) { c.Region = "" }},
		{"missing access key", func(c *S3Config) { c.AccessKeyID = "" }},
		{"missing secret", func(c *S3Config) { c.SecretAccessKey = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if _, err := NewS3Storage(context.Background(), cfg); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}
