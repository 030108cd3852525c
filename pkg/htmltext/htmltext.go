// Package htmltext reduces markup-bearing descriptions to plain text before
// they are sent to the reasoning model.
package htmltext

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var removeTags = []string{
	"script", "style", "noscript", "iframe", "object", "embed",
	"form", "input", "button", "select", "textarea", "svg",
}

var whitespace = regexp.MustCompile(`[ \t]+`)
var blankLines = regexp.MustCompile(`\n{3,}`)

// Strip removes tags and collapses whitespace. Input that fails to parse as
// HTML is returned unescaped rather than dropped: a dirty description is
// still more useful downstream than none.
func Strip(raw string) string {

	unescaped := html.UnescapeString(raw)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(unescaped))
	if err != nil {
		return strings.TrimSpace(unescaped)
	}

	for _, tag := range removeTags {
		doc.Find(tag).Remove()
	}

	// keep line structure for block elements so lists survive flattening
	doc.Find("br, p, div, li, h1, h2, h3, h4, h5, h6, tr").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	text := doc.Text()
	text = whitespace.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
