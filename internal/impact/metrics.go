package impact

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jonathan/cv-ranker/internal/types"
)

var (
	percentRangePattern = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)\s*[-–]\s*(\d{1,3}(?:\.\d+)?)\s*%`)
	percentPattern      = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)\s*%`)
	currencyPattern     = regexp.MustCompile(`(?i)(\$)?(\d{1,3}(?:,\d{3})+|\d+)(\.\d+)?(?:\s*(thousand|million|billion|k|m|b)\b)?`)
	integerPattern      = regexp.MustCompile(`\b\d{1,9}\b`)
	contextPattern      = regexp.MustCompile(`\b(revenue|arr|sales|pipeline|costs?|expenses?|downtime|latency|hours|time|customers|users|transactions)\b`)
)

type span struct{ start, end int }

func (s span) overlaps(o span) bool {
	return s.start < o.end && o.start < s.end
}

func overlapsAny(s span, taken []span) bool {
	for _, t := range taken {
		if s.overlaps(t) {
			return true
		}
	}
	return false
}

// precededByNumber reports whether the match at start continues a longer number.
func precededByNumber(s string, start int) bool {
	if start == 0 {
		return false
	}
	c := s[start-1]
	return (c >= '0' && c <= '9') || c == '.' || c == ','
}

func normalizePercent(v float64) float64  { return v / 50.0 }
func normalizeCurrency(v float64) float64 { return math.Min(v/1000.0, 10000.0) }
func normalizeCount(v float64) float64    { return math.Min(v, 100000.0) }

// extractMetrics finds percentages, money and counts in a sentence. Each
// character span yields at most one metric; the more specific pattern wins.
func extractMetrics(sentence string) []types.Metric {
	lower := strings.ToLower(sentence)
	var metrics []types.Metric
	var taken []span
	positions := make([]int, 0)

	add := func(m types.Metric, s span) {
		metrics = append(metrics, m)
		taken = append(taken, s)
		positions = append(positions, s.start)
	}

	for _, idx := range percentRangePattern.FindAllStringSubmatchIndex(sentence, -1) {
		s := span{idx[0], idx[1]}
		if precededByNumber(sentence, s.start) {
			continue
		}
		a, errA := strconv.ParseFloat(sentence[idx[2]:idx[3]], 64)
		b, errB := strconv.ParseFloat(sentence[idx[4]:idx[5]], 64)
		if errA != nil || errB != nil {
			continue
		}
		mid := (a + b) / 2
		add(types.Metric{
			Raw:        strings.TrimSpace(sentence[s.start:s.end]),
			Value:      mid,
			Type:       types.MetricPercent,
			Normalized: normalizePercent(mid),
		}, s)
	}

	for _, idx := range percentPattern.FindAllStringSubmatchIndex(sentence, -1) {
		s := span{idx[0], idx[1]}
		if precededByNumber(sentence, s.start) || overlapsAny(s, taken) {
			continue
		}
		v, err := strconv.ParseFloat(sentence[idx[2]:idx[3]], 64)
		if err != nil {
			continue
		}
		add(types.Metric{
			Raw:        sentence[s.start:s.end],
			Value:      v,
			Type:       types.MetricPercent,
			Normalized: normalizePercent(v),
		}, s)
	}

	for _, idx := range currencyPattern.FindAllStringSubmatchIndex(sentence, -1) {
		s := span{idx[0], idx[1]}
		hasDollar := idx[2] >= 0
		hasQualifier := idx[8] >= 0
		if (!hasDollar && !hasQualifier) || precededByNumber(sentence, s.start) || overlapsAny(s, taken) {
			continue
		}
		digits := strings.ReplaceAll(sentence[idx[4]:idx[5]], ",", "")
		if idx[6] >= 0 {
			digits += sentence[idx[6]:idx[7]]
		}
		v, err := strconv.ParseFloat(digits, 64)
		if err != nil {
			continue
		}
		if hasQualifier {
			v *= qualifiers[strings.ToLower(sentence[idx[8]:idx[9]])]
		}
		add(types.Metric{
			Raw:        strings.TrimSpace(sentence[s.start:s.end]),
			Value:      v,
			Type:       types.MetricCurrency,
			Normalized: normalizeCurrency(v),
		}, s)
	}

	for _, m := range textualMetrics(lower) {
		add(m.metric, m.span)
	}

	for _, idx := range integerPattern.FindAllStringIndex(sentence, -1) {
		s := span{idx[0], idx[1]}
		if overlapsAny(s, taken) {
			continue
		}
		raw := sentence[s.start:s.end]
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 10 || looksLikeYear(raw) {
			continue
		}
		add(types.Metric{
			Raw:        raw,
			Value:      v,
			Type:       types.MetricCount,
			Normalized: normalizeCount(v),
		}, s)
	}

	contexts := contextPattern.FindAllStringIndex(lower, -1)
	for i := range metrics {
		metrics[i].Context = nearestContext(lower, positions[i], contexts)
	}

	order := make([]int, len(metrics))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return positions[order[a]] < positions[order[b]] })
	sorted := make([]types.Metric, len(metrics))
	for i, j := range order {
		sorted[i] = metrics[j]
	}
	return sorted
}

type spannedMetric struct {
	metric types.Metric
	span   span
}

// textualMetrics handles spelled-out amounts such as "ten percent" and "two million".
func textualMetrics(lower string) []spannedMetric {
	var out []spannedMetric
	words := wordPattern.FindAllStringIndex(lower, -1)
	for i := 0; i+1 < len(words); i++ {
		word := lower[words[i][0]:words[i][1]]
		base, ok := textualNumbers[word]
		if !ok {
			continue
		}
		next := lower[words[i+1][0]:words[i+1][1]]
		s := span{words[i][0], words[i+1][1]}
		switch {
		case strings.HasPrefix(next, "percent") || next == "pct":
			out = append(out, spannedMetric{types.Metric{
				Raw:        lower[s.start:s.end],
				Value:      base,
				Type:       types.MetricPercent,
				Normalized: normalizePercent(base),
			}, s})
		case next == "thousand" || next == "million" || next == "billion":
			v := base * qualifiers[next]
			out = append(out, spannedMetric{types.Metric{
				Raw:        lower[s.start:s.end],
				Value:      v,
				Type:       types.MetricCurrency,
				Normalized: normalizeCurrency(v),
			}, s})
		}
	}
	return out
}

var wordPattern = regexp.MustCompile(`[a-z]+`)

func looksLikeYear(raw string) bool {
	if len(raw) != 4 {
		return false
	}
	return (raw[:2] == "19" || raw[:2] == "20")
}

func nearestContext(lower string, pos int, contexts [][]int) string {
	best := -1
	context := ""
	for _, c := range contexts {
		d := c[0] - pos
		if d < 0 {
			d = -d
		}
		if best < 0 || d < best {
			best = d
			context = contextKeywords[lower[c[0]:c[1]]]
		}
	}
	return context
}

// magnitude is the strongest normalized metric.
func magnitude(metrics []types.Metric) float64 {
	best := 0.0
	for _, m := range metrics {
		if m.Normalized > best {
			best = m.Normalized
		}
	}
	return best
}
