// Package storage archives the full extracted text of each scrape, either
// on the local filesystem or in an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Archive backends
const (
	BackendNone       = "none"
	BackendFilesystem = "filesystem"
	BackendS3         = "s3"
)

// ErrNotFound is returned when a key has no archived content
var ErrNotFound = errors.New("archived content not found")

// Archive stores and retrieves extracted page text
type Archive interface {
	SaveText(ctx context.Context, slug, text string) (key string, err error)
	ReadText(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Config contains storage configuration
type Config struct {
	BasePath string // Base directory for all stored files
}

// DefaultConfig returns default storage configuration
func DefaultConfig() Config {
	return Config{
		BasePath: "./storage",
	}
}

// Storage handles filesystem storage operations
type Storage struct {
	config Config
	now    func() time.Time
}

// New creates a new Storage instance
func New(config Config) (*Storage, error) {
	// Create base directory if it doesn't exist
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory: %w", err)
	}

	return &Storage{
		config: config,
		now:    time.Now,
	}, nil
}

// contentKey builds content/YYYY/MM/slug.txt
func contentKey(now time.Time, slug string) string {
	return path.Join("content", fmt.Sprintf("%04d", now.Year()), fmt.Sprintf("%02d", int(now.Month())), slug+".txt")
}

// SaveText writes text under a dated directory.
// Returns the key relative to the base storage directory.
func (s *Storage) SaveText(ctx context.Context, slug, text string) (string, error) {
	key := contentKey(s.now(), slug)
	dirPath := filepath.Join(s.config.BasePath, filepath.FromSlash(path.Dir(key)))

	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create content directory: %w", err)
	}

	// Re-scrapes of the same page get a numbered suffix
	base := strings.TrimSuffix(key, ".txt")
	for counter := 1; fileExists(s.GetFullPath(key)); counter++ {
		key = fmt.Sprintf("%s-%d.txt", base, counter)
	}

	if err := os.WriteFile(s.GetFullPath(key), []byte(text), 0644); err != nil {
		return "", fmt.Errorf("failed to write content file: %w", err)
	}

	return key, nil
}

// ReadText reads archived text from the filesystem
func (s *Storage) ReadText(ctx context.Context, key string) (string, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(fullPath)
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read content file: %w", err)
	}

	return string(data), nil
}

// Delete removes archived text from the filesystem
func (s *Storage) Delete(ctx context.Context, key string) error {
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete content file: %w", err)
	}

	return nil
}

// GetFullPath returns the full filesystem path for a key
func (s *Storage) GetFullPath(key string) string {
	return filepath.Join(s.config.BasePath, filepath.FromSlash(key))
}

// resolve rejects keys that would escape the base directory
func (s *Storage) resolve(key string) (string, error) {
	if key == "" || !filepath.IsLocal(filepath.FromSlash(key)) {
		return "", fmt.Errorf("invalid content key %q", key)
	}
	return s.GetFullPath(key), nil
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
