package resolve

import (
	"github.com/agext/levenshtein"
)

// Similarity scores two normalized names on a 0-100 scale. Implementations
// must be symmetric.
type Similarity interface {
	Score(a, b string) float64
}

// SimilarityFunc adapts a function to Similarity.
type SimilarityFunc func(a, b string) float64

// Score calls f(a, b).
func (f SimilarityFunc) Score(a, b string) float64 { return f(a, b) }

// indelParams counts a substitution as a deletion plus an insertion.
var indelParams = levenshtein.NewParams().SubCost(2)

// IndelRatio is the normalized insert/delete similarity
// 100 * (1 - distance / (len(a) + len(b))), measured in runes.
// Two empty strings are identical.
func IndelRatio(a, b string) float64 {
	total := len([]rune(a)) + len([]rune(b))
	if total == 0 {
		return 100
	}
	d := levenshtein.Distance(a, b, indelParams)
	return 100 * (1 - float64(d)/float64(total))
}

// DefaultSimilarity is the backend used when none is configured.
var DefaultSimilarity Similarity = SimilarityFunc(IndelRatio)
