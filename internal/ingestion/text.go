// Package ingestion turns loose CV and JD documents into typed records with
// clean section text.
package ingestion

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	whitespaceRun  = regexp.MustCompile(`[ \t\f\v]+`)
	blankLineRun   = regexp.MustCompile(`\n\n\n+`)
	sentenceBreak  = regexp.MustCompile(`([.!?;])\s+`)
	bulletPrefixes = []string{"- ", "* ", "• ", "· ", "– "}
)

// CleanText normalizes line endings and whitespace while keeping line structure.
func CleanText(content string) string {
	if content == "" {
		return ""
	}

	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	lines := strings.Split(content, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		cleaned = append(cleaned, cleanLine(line))
	}

	result := strings.Join(cleaned, "\n")
	result = blankLineRun.ReplaceAllString(result, "\n\n")
	return strings.TrimSpace(result)
}

// cleanLine collapses inner whitespace and drops bullet markers.
func cleanLine(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return ""
	}
	trimmed = stripBullet(trimmed)
	return whitespaceRun.ReplaceAllString(trimmed, " ")
}

func stripBullet(line string) string {
	for _, prefix := range bulletPrefixes {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix))
		}
	}
	return line
}

// SplitItems splits section text into its non-empty lines. List-valued
// sections are stored one item per line, so each item becomes a chunk.
func SplitItems(text string) []string {
	text = CleanText(text)
	if text == "" {
		return nil
	}
	var items []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			items = append(items, line)
		}
	}
	return items
}

// SplitSentences splits text into sentences on terminal punctuation and line breaks.
func SplitSentences(text string) []string {
	var sentences []string
	for _, item := range SplitItems(text) {
		marked := sentenceBreak.ReplaceAllString(item, "$1\n")
		for _, s := range strings.Split(marked, "\n") {
			s = strings.TrimSpace(s)
			if s != "" && hasLetter(s) {
				sentences = append(sentences, s)
			}
		}
	}
	return sentences
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
