package slug

import (
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"title with punctuation", "Hello, World!", "hello-world"},
		{"accents transliterated", "Café München", "cafe-munchen"},
		{"symbols dropped", "Hello@#$%World", "helloworld"},
		{"separators collapse", "  Go_Concurrency   --  Patterns ", "go-concurrency-patterns"},
		{"path separators", "example.com/blog/2024/post", "example-com-blog-2024-post"},
		{"only special characters", "@#$%^&*()", ""},
		{"non latin script removed", "Привет Мир", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Generate(tt.input); got != tt.expected {
				t.Errorf("Generate(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestGenerateMaxLength(t *testing.T) {
	input := strings.Repeat("segment ", 40)

	got := Generate(input)
	if len(got) > MaxLength {
		t.Errorf("Slug length %d exceeds maximum of %d", len(got), MaxLength)
	}
	if strings.HasSuffix(got, "-") {
		t.Errorf("Truncated slug ends with a hyphen: %q", got)
	}
}

func TestGenerateWithFallback(t *testing.T) {
	tests := []struct {
		name     string
		primary  string
		fallback string
		expected string
	}{
		{
			name:     "use primary when valid",
			primary:  "Test Article",
			fallback: "https://example.com/article",
			expected: "test-article",
		},
		{
			name:     "use fallback when primary empty",
			primary:  "",
			fallback: "https://example.com/article",
			expected: "https-example-com-article",
		},
		{
			name:     "use fallback when primary only special chars",
			primary:  "@#$%",
			fallback: "fallback-value",
			expected: "fallback-value",
		},
		{
			name:     "both empty returns empty",
			primary:  "",
			fallback: "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateWithFallback(tt.primary, tt.fallback)
			if result != tt.expected {
				t.Errorf("GenerateWithFallback(%q, %q) = %q, want %q", tt.primary, tt.fallback, result, tt.expected)
			}
		})
	}
}

func TestFromURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{
			name:     "host and path",
			url:      "https://example.com/blog/my-post",
			expected: "example-com-blog-my-post",
		},
		{
			name:     "www stripped and query ignored",
			url:      "https://www.Example.com/a?x=1#top",
			expected: "example-com-a",
		},
		{
			name:     "root path",
			url:      "http://example.com/",
			expected: "example-com",
		},
		{
			name:     "port dropped",
			url:      "http://localhost:8080/docs/index.html",
			expected: "localhost-docs-index-html",
		},
		{
			name:     "not a url",
			url:      "@@@",
			expected: "page",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FromURL(tt.url)
			if result != tt.expected {
				t.Errorf("FromURL(%q) = %q, want %q", tt.url, result, tt.expected)
			}
		})
	}
}

func TestFromPage(t *testing.T) {
	if got := FromPage("Go Concurrency Patterns", "https://example.com/x"); got != "go-concurrency-patterns" {
		t.Errorf("FromPage with title = %q", got)
	}
	if got := FromPage("", "https://example.com/x"); got != "example-com-x" {
		t.Errorf("FromPage without title = %q", got)
	}
	if got := FromPage("???", "https://example.com/x"); got != "example-com-x" {
		t.Errorf("FromPage with unusable title = %q", got)
	}
}
