// Package tags maintains the tag-frequency ledger: how many annotation
// events each tag has appeared in, and when it was first seen.
package tags

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docutag/linkbender/models"
)

// Store is the persistence the ledger needs
type Store interface {
	RecordTag(ctx context.Context, name string, at time.Time) (created bool, err error)
	ListTags(ctx context.Context) ([]models.TagEntry, error)
}

// Ledger records tag occurrences
type Ledger struct {
	store Store
	now   func() time.Time
}

// New creates a ledger on top of store
func New(store Store) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// Normalize lowercases and trims a tag
func Normalize(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// Dedup normalizes tags, dropping empties and repeats while keeping first-seen order
func Dedup(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = Normalize(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

// Record counts one annotation event. Each distinct tag is created with
// count 1 or incremented by one; the tags that did not exist before are
// returned in input order.
func (l *Ledger) Record(ctx context.Context, tags []string) ([]string, error) {
	now := l.now()
	newTags := []string{}

	for _, tag := range Dedup(tags) {
		created, err := l.store.RecordTag(ctx, tag, now)
		if err != nil {
			return newTags, fmt.Errorf("failed to record tag %q: %w", tag, err)
		}
		if created {
			newTags = append(newTags, tag)
		}
	}

	return newTags, nil
}

// List returns every ledger entry
func (l *Ledger) List(ctx context.Context) ([]models.TagEntry, error) {
	return l.store.ListTags(ctx)
}

// Related returns up to limit distinct tags drawn from records, in order of
// first appearance, excluding the tags that were searched for
func Related(records []*models.ScrapeRecord, searched []string, limit int) []string {
	exclude := make(map[string]bool, len(searched))
	for _, tag := range searched {
		exclude[Normalize(tag)] = true
	}

	var all []string
	for _, r := range records {
		all = append(all, r.Tags...)
	}

	related := []string{}
	for _, tag := range Dedup(all) {
		if exclude[tag] {
			continue
		}
		related = append(related, tag)
		if limit > 0 && len(related) == limit {
			break
		}
	}
	return related
}
