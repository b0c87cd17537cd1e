// Package extract turns fetched HTML into the plain text blob sent for annotation.
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// removedSelectors never contribute text
var removedSelectors = []string{"script", "style"}

// Page is the extracted form of an HTML document
type Page struct {
	Title string
	Text  string
}

// Parse extracts the title and the collapsed text of html. Script and style
// elements are dropped; every remaining line is trimmed, empty lines are
// discarded and the survivors are joined with a single space.
func Parse(html string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	for _, sel := range removedSelectors {
		doc.Find(sel).Remove()
	}

	return &Page{
		Title: title,
		Text:  CollapseLines(doc.Text()),
	}, nil
}

// CollapseLines trims each line of s and joins the non-empty ones with a space
func CollapseLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, " ")
}
