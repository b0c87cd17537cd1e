package models

import (
	"encoding/json"
	"testing"
	"time"
)

// TestScrapeRecordJSONSerialization verifies that optional fields are omitted when unset
func TestScrapeRecordJSONSerialization(t *testing.T) {
	record := &ScrapeRecord{
		ID:        "rec-1",
		URL:       "https://example.com/a",
		Summary:   "A page",
		Tags:      []string{"go"},
		Grade:     "7",
		Badge:     "silver",
		Timestamp: time.Now().UTC(),
		Content:   "text",
	}

	jsonBytes, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("Failed to marshal record: %v", err)
	}

	var unmarshaled map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &unmarshaled); err != nil {
		t.Fatalf("Failed to unmarshal JSON: %v", err)
	}

	if _, exists := unmarshaled["preferences"]; exists {
		t.Error("preferences should be omitted when nil")
	}
	if _, exists := unmarshaled["archive_key"]; exists {
		t.Error("archive_key should be omitted when empty")
	}

	record.Preferences = &Preferences{Length: LengthShort, Style: StyleTechnical}
	jsonBytes, err = json.Marshal(record)
	if err != nil {
		t.Fatalf("Failed to marshal record with preferences: %v", err)
	}

	unmarshaled = nil
	if err := json.Unmarshal(jsonBytes, &unmarshaled); err != nil {
		t.Fatalf("Failed to unmarshal JSON: %v", err)
	}
	prefs, ok := unmarshaled["preferences"].(map[string]interface{})
	if !ok {
		t.Fatalf("preferences missing from JSON: %s", jsonBytes)
	}
	if prefs["length"] != LengthShort || prefs["style"] != StyleTechnical {
		t.Errorf("preferences = %v, want short/technical", prefs)
	}
}

func TestPreferencesValidate(t *testing.T) {
	tests := []struct {
		name    string
		prefs   Preferences
		wantErr bool
	}{
		{"defaults", DefaultPreferences(), false},
		{"short bullet points", Preferences{Length: LengthShort, Style: StyleBulletPoints}, false},
		{"detailed technical", Preferences{Length: LengthDetailed, Style: StyleTechnical}, false},
		{"unknown length", Preferences{Length: "epic", Style: StyleTechnical}, true},
		{"unknown style", Preferences{Length: LengthShort, Style: "tenglish"}, true},
		{"empty", Preferences{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.prefs.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"hello", 0, ""},
		{"héllo wörld", 4, "héll"},
	}

	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestErrorAnnotation(t *testing.T) {
	a := ErrorAnnotation("Failed to fetch URL")
	if a.Grade != "0" || a.Badge != "none" {
		t.Errorf("grade/badge = %q/%q, want 0/none", a.Grade, a.Badge)
	}
	if len(a.Tags) != 1 || a.Tags[0] != "error" {
		t.Errorf("tags = %v, want [error]", a.Tags)
	}
}
