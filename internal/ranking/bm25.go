package ranking

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// BM25 parameters.
const (
	BM25K1 = 1.5
	BM25B  = 0.75
)

var wordPattern = regexp.MustCompile(`\w+`)

// BM25 is an Okapi BM25 index over a fixed document set.
type BM25 struct {
	docs  []map[string]int
	lens  []int
	df    map[string]int
	avgdl float64
}

// NewBM25 indexes docs.
func NewBM25(docs []string) *BM25 {
	idx := &BM25{
		docs: make([]map[string]int, len(docs)),
		lens: make([]int, len(docs)),
		df:   make(map[string]int),
	}
	total := 0
	for i, d := range docs {
		tokens := Tokenize(d)
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		for tok := range tf {
			idx.df[tok]++
		}
		idx.docs[i] = tf
		idx.lens[i] = len(tokens)
		total += len(tokens)
	}
	if len(docs) > 0 {
		idx.avgdl = float64(total) / float64(len(docs))
	}
	return idx
}

// Tokenize lowercases text and splits it into word tokens.
func Tokenize(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

// Score returns the raw BM25 score of document i for the query.
func (idx *BM25) Score(query string, i int) float64 {
	if i < 0 || i >= len(idx.docs) || idx.avgdl == 0 {
		return 0
	}
	n := float64(len(idx.docs))
	tf := idx.docs[i]
	dl := float64(idx.lens[i])

	score := 0.0
	seen := make(map[string]bool)
	for _, term := range Tokenize(query) {
		if seen[term] {
			continue
		}
		seen[term] = true
		f := float64(tf[term])
		if f == 0 {
			continue
		}
		df := float64(idx.df[term])
		idf := math.Log((n-df+0.5)/(df+0.5) + 1)
		score += idf * f * (BM25K1 + 1) / (f + BM25K1*(1-BM25B+BM25B*dl/idx.avgdl))
	}
	return score
}

// LexicalScores scores every document against the query and maps raw scores
// into [0,1) with raw/(raw+k), k being the median raw score floored at 1.
func LexicalScores(query string, docs []string) []float64 {
	idx := NewBM25(docs)
	raw := make([]float64, len(docs))
	for i := range docs {
		raw[i] = idx.Score(query, i)
	}

	k := math.Max(median(raw), 1)
	out := make([]float64, len(raw))
	for i, r := range raw {
		out[i] = r / (r + k)
	}
	return out
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
