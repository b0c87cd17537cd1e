package models

import "time"

const (
	// ContentSnapshotLen is how much extracted text a ScrapeRecord keeps
	ContentSnapshotLen = 1000
	// TextPreviewLen is how much extracted text a ScrapeResult echoes back
	TextPreviewLen = 500
	// ListPreviewLen is how much content listing and search endpoints return per record
	ListPreviewLen = 200
)

// TimestampLayout formats scrape times in user-facing messages
const TimestampLayout = "2006-01-02 15:04:05"

// Status values used in response payloads
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ScrapeRecord is one annotated scrape of a normalized URL
type ScrapeRecord struct {
	ID          string       `json:"id" bson:"_id"`
	URL         string       `json:"url" bson:"url"`
	Summary     string       `json:"summary" bson:"summary"`
	Tags        []string     `json:"tags" bson:"tags"`
	Grade       string       `json:"grade" bson:"grade"`
	Badge       string       `json:"badge" bson:"badge"`
	Preferences *Preferences `json:"preferences,omitempty" bson:"preferences,omitempty"`
	Timestamp   time.Time    `json:"timestamp" bson:"timestamp"`
	Content     string       `json:"content" bson:"content"`
	ArchiveKey  string       `json:"archive_key,omitempty" bson:"archive_key,omitempty"`
}

// Annotation returns the summary/tags/grade/badge part of the record
func (r *ScrapeRecord) Annotation() Annotation {
	return Annotation{
		Summary: r.Summary,
		Tags:    r.Tags,
		Grade:   r.Grade,
		Badge:   r.Badge,
	}
}

// Preview returns a copy of the record with content cut to n characters
func (r *ScrapeRecord) Preview(n int) *ScrapeRecord {
	cp := *r
	cp.Content = Truncate(r.Content, n)
	return &cp
}

// TagEntry is a ledger entry counting how many annotations referenced a tag
type TagEntry struct {
	Name      string    `json:"name" bson:"name"`
	Count     int64     `json:"count" bson:"count"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Annotation is the structured summary produced from page text
type Annotation struct {
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
	Grade   string   `json:"grade"`
	Badge   string   `json:"badge"`
}

// ErrorAnnotation is the degraded annotation returned alongside every error payload
func ErrorAnnotation(summary string) Annotation {
	return Annotation{
		Summary: summary,
		Tags:    []string{"error"},
		Grade:   "0",
		Badge:   "none",
	}
}

// ScrapeResult is the payload returned by scrape and custom-summary requests
type ScrapeResult struct {
	Status      string       `json:"status"`
	URL         string       `json:"url,omitempty"`
	Text        string       `json:"text"`
	Response    Annotation   `json:"response"`
	NewTags     []string     `json:"new_tags"`
	Cached      bool         `json:"cached"`
	Error       string       `json:"error,omitempty"`
	Message     string       `json:"message,omitempty"`
	Preferences *Preferences `json:"preferences,omitempty"`
}

// CheckResult reports whether a URL was scraped before
type CheckResult struct {
	Exists  bool   `json:"exists"`
	Message string `json:"message,omitempty"`
}

// SearchResult is the payload of a tag search
type SearchResult struct {
	Status       string          `json:"status"`
	Results      []*ScrapeRecord `json:"results"`
	Count        int             `json:"count"`
	SearchedTags []string        `json:"searched_tags"`
	RelatedTags  []string        `json:"related_tags"`
}

// Truncate cuts s to at most n runes
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
