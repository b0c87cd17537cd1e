package annotate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/docutag/linkbender/models"
	"github.com/docutag/linkbender/tags"
)

// Defaults substituted for fields the model left out
const (
	DefaultSummary = "No summary available"
	DefaultGrade   = "error"
	DefaultBadge   = "error"
)

// ErrMalformed marks model output that is not a JSON object
var ErrMalformed = errors.New("malformed annotation")

// MalformedError carries the offending model output
type MalformedError struct {
	Raw    string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMalformed, e.Reason)
}

// Unwrap lets errors.Is match ErrMalformed
func (e *MalformedError) Unwrap() error {
	return ErrMalformed
}

// Raw is what an annotation provider handed back: either an already
// structured mapping or free text expected to contain JSON.
type Raw struct {
	Fields map[string]any
	Text   string
}

// String renders the raw response for logging and error payloads
func (r Raw) String() string {
	if r.Fields != nil {
		b, err := json.Marshal(r.Fields)
		if err == nil {
			return string(b)
		}
	}
	return r.Text
}

// Normalize coerces a provider response into a fixed-shape Annotation.
// Missing fields get defaults; a response that is not a JSON object
// yields a *MalformedError.
func Normalize(raw Raw) (models.Annotation, error) {
	candidate := raw.Fields
	if candidate == nil {
		cleaned := StripFences(raw.Text)

		var decoded any
		if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
			return models.Annotation{}, &MalformedError{Raw: raw.Text, Reason: err.Error()}
		}

		obj, ok := decoded.(map[string]any)
		if !ok {
			return models.Annotation{}, &MalformedError{Raw: raw.Text, Reason: "response is not a JSON object"}
		}
		candidate = obj
	}

	annotation := models.Annotation{
		Summary: stringField(candidate, "summary", DefaultSummary),
		Grade:   stringField(candidate, "grade", DefaultGrade),
		Badge:   stringField(candidate, "badge", DefaultBadge),
		Tags:    tagsField(candidate),
	}
	return annotation, nil
}

// StripFences removes markdown code fence markers and surrounding whitespace
func StripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func stringField(m map[string]any, key, fallback string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return fallback
	}
	return stringify(v)
}

func tagsField(m map[string]any) []string {
	v, ok := m["tags"]
	if !ok || v == nil {
		return []string{"error"}
	}

	var raw []string
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			raw = append(raw, stringify(item))
		}
	case []string:
		raw = t
	case string:
		// Some models answer with a comma separated string
		raw = strings.Split(t, ",")
	default:
		raw = []string{stringify(t)}
	}
	return tags.Dedup(raw)
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
