package aggregate

import "strings"

// Similarity is the lexical word-overlap (Jaccard) ratio between two
// answers. Deliberately simple and replaceable: an embedding-based measure
// can be substituted without touching the aggregator's control flow.
func Similarity(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for word := range setA {
		if setB[word] {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?\"'()[]{}")
		if word != "" {
			set[word] = true
		}
	}
	return set
}
