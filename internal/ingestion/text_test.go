package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "crlf and spaces", input: "Go   and\tSQL\r\nPython  ", want: "Go and SQL\nPython"},
		{name: "bullets stripped", input: "- Built APIs\n• Led team\n* Wrote docs", want: "Built APIs\nLed team\nWrote docs"},
		{name: "blank lines collapsed", input: "a\n\n\n\n\nb", want: "a\n\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.input))
		})
	}
}

func TestSplitItems(t *testing.T) {
	assert.Nil(t, SplitItems("   \n "))
	assert.Equal(t, []string{"Go", "SQL", "Docker"}, SplitItems("- Go\n\n- SQL\n  Docker  "))
}

func TestSplitSentences(t *testing.T) {
	text := "Increased revenue by 2.5% in Q1. Led a team of 12 engineers; shipped weekly!\nReduced costs"
	got := SplitSentences(text)
	assert.Equal(t, []string{
		"Increased revenue by 2.5% in Q1.",
		"Led a team of 12 engineers;",
		"shipped weekly!",
		"Reduced costs",
	}, got)
}

func TestSplitSentences_DropsNumericNoise(t *testing.T) {
	assert.Empty(t, SplitSentences("2019 - 2021\n---"))
}

func TestStripHTML(t *testing.T) {
	html := `<div><h2>Requirements</h2><ul><li>Go</li><li>PostgreSQL</li></ul><script>alert(1)</script></div>`
	got := StripHTML(html)
	assert.Contains(t, got, "Requirements")
	assert.Contains(t, got, "Go\nPostgreSQL")
	assert.NotContains(t, got, "alert")

	assert.Equal(t, "plain text", StripHTML("  plain   text "))
	assert.Equal(t, "a < b", StripHTML("a < b"))
}

func TestLooksLikeHTML(t *testing.T) {
	assert.True(t, LooksLikeHTML("<p>x</p>"))
	assert.False(t, LooksLikeHTML("x <> y"))
	assert.False(t, LooksLikeHTML("3 < 4"))
}
