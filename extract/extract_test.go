package extract

import (
	"strings"
	"testing"
)

func TestParseText(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{
			name:     "script removed, inner spacing kept",
			html:     `<html><script>x()</script><body> Hello   World </body></html>`,
			expected: "Hello   World",
		},
		{
			name: "lines trimmed and joined",
			html: `<html>
<head><title>Test Page</title></head>
<body>
	<h1>Heading</h1>
	<p>
		First paragraph.
	</p>

	<p>Second paragraph.</p>
</body>
</html>`,
			expected: "Test Page Heading First paragraph. Second paragraph.",
		},
		{
			name:     "style removed",
			html:     `<html><head><style>body { color: red; }</style></head><body><p>Visible</p></body></html>`,
			expected: "Visible",
		},
		{
			name:     "nested script removed",
			html:     "<div>Before<script type=\"text/javascript\">\nvar secret = 1;\n</script>\nAfter</div>",
			expected: "Before After",
		},
		{
			name:     "empty document",
			html:     "",
			expected: "",
		},
		{
			name:     "entities decoded",
			html:     `<p>Fish &amp; Chips</p>`,
			expected: "Fish & Chips",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseText(t, tt.html)
			if got != tt.expected {
				t.Errorf("Parse().Text = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestParseTextNeverContainsScriptContent(t *testing.T) {
	html := `<html><head><script>trackUser("abc")</script><style>.x{}</style></head>
<body><p>Content</p><script>alert("hi")</script></body></html>`

	got := parseText(t, html)
	for _, forbidden := range []string{"trackUser", "alert", ".x{}"} {
		if strings.Contains(got, forbidden) {
			t.Errorf("output %q contains %q", got, forbidden)
		}
	}
}

func TestParseTextDeterministic(t *testing.T) {
	html := `<html><body><ul><li>One</li>
<li>Two</li></ul>
<div>  Three  </div></body></html>`

	first := parseText(t, html)
	for i := 0; i < 5; i++ {
		again := parseText(t, html)
		if again != first {
			t.Fatalf("run %d produced %q, want %q", i, again, first)
		}
	}
}

func parseText(t *testing.T, html string) string {
	t.Helper()
	page, err := Parse(html)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	return page.Text
}

func TestParseTitle(t *testing.T) {
	page, err := Parse(`<html><head><title>  My Title </title></head><body>Body</body></html>`)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if page.Title != "My Title" {
		t.Errorf("Title = %q, want %q", page.Title, "My Title")
	}
	if page.Text != "My Title Body" {
		t.Errorf("Text = %q, want %q", page.Text, "My Title Body")
	}
}

func TestCollapseLines(t *testing.T) {
	got := CollapseLines("  a  \n\n\t b\r\n   \nc")
	if got != "a b c" {
		t.Errorf("CollapseLines = %q, want %q", got, "a b c")
	}
}
