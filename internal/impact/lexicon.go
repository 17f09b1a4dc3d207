package impact

import "sort"

// Event directions.
const (
	DirectionIncrease = "increase"
	DirectionDecrease = "decrease"
	DirectionNeutral  = "neutral"
)

// verbWeights rates achievement verbs; efficiency verbs rank highest.
var verbWeights = map[string]float64{
	// growth and optimization
	"increased": 1.25, "grew": 1.25, "expanded": 1.2, "boosted": 1.25, "accelerated": 1.3,
	"optimized": 1.3, "improved": 1.25, "enhanced": 1.2, "scaled": 1.3, "launched": 1.15,
	"delivered": 1.15, "implemented": 1.15, "developed": 1.1, "built": 1.1, "designed": 1.1,
	"architected": 1.2, "automated": 1.25,
	// reduction
	"reduced": 1.3, "decreased": 1.3, "cut": 1.3, "lowered": 1.25, "saved": 1.35, "eliminated": 1.3,
	// ownership
	"led": 1.2, "managed": 1.15, "owned": 1.15, "directed": 1.2, "spearheaded": 1.3,
	"coordinated": 1.1, "negotiated": 1.25, "secured": 1.3, "won": 1.25, "achieved": 1.3,
}

// sortedVerbs fixes detection order so events are reproducible.
var sortedVerbs = func() []string {
	verbs := make([]string, 0, len(verbWeights))
	for v := range verbWeights {
		verbs = append(verbs, v)
	}
	sort.Strings(verbs)
	return verbs
}()

var decreaseVerbs = map[string]bool{
	"reduced": true, "decreased": true, "cut": true, "lowered": true, "saved": true, "eliminated": true,
}

var increaseVerbs = map[string]bool{
	"increased": true, "grew": true, "expanded": true, "boosted": true, "accelerated": true, "scaled": true,
}

// outcomeConnectors introduce the result clause of an achievement.
var outcomeConnectors = []string{
	"resulting in", "resulted in", "leading to", "led to", "yielding",
	"achieving", "delivering", "producing", "creating",
}

// contextKeywords classify what a metric measures.
var contextKeywords = map[string]string{
	"revenue": "revenue", "arr": "revenue", "sales": "revenue", "pipeline": "revenue",
	"cost": "cost", "costs": "cost", "expense": "cost", "expenses": "cost",
	"downtime": "time", "latency": "time", "hours": "time", "time": "time",
	"customers": "customers", "users": "users", "transactions": "transactions",
}

var textualNumbers = map[string]float64{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
	"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50, "sixty": 60, "seventy": 70,
	"eighty": 80, "ninety": 90, "hundred": 100,
}

var qualifiers = map[string]float64{
	"k": 1e3, "thousand": 1e3,
	"m": 1e6, "million": 1e6,
	"b": 1e9, "billion": 1e9,
}

func direction(verbs []string) string {
	for _, v := range verbs {
		if decreaseVerbs[v] {
			return DirectionDecrease
		}
	}
	for _, v := range verbs {
		if increaseVerbs[v] {
			return DirectionIncrease
		}
	}
	return DirectionNeutral
}
