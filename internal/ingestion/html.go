package ingestion

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// blockElements end a line when flattening markup.
const blockElements = "p, div, li, br, h1, h2, h3, h4, h5, h6, tr, section, article"

// LooksLikeHTML reports whether text appears to carry markup.
func LooksLikeHTML(text string) bool {
	lt := strings.Index(text, "<")
	if lt < 0 {
		return false
	}
	gt := strings.Index(text[lt:], ">")
	return gt > 1
}

// StripHTML flattens markup to plain text, one line per block element.
// Text without markup is returned cleaned but otherwise unchanged.
func StripHTML(text string) string {
	if !LooksLikeHTML(text) {
		return CleanText(text)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return CleanText(text)
	}

	doc.Find("script, style, noscript").Remove()
	doc.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	return CleanText(doc.Text())
}
