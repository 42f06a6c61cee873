package patterns

import "sort"

const (
	// SimilarityThreshold gates candidates: only cosine similarity strictly above
	// this value counts as a match.
	SimilarityThreshold = 0.70

	// MinMatches is the minimum number of surviving candidates required to emit a
	// prediction; below it the security yields "insufficient evidence".
	MinMatches = 3

	// TopMatches caps how many matches feed the aggregation statistics.
	TopMatches = 20

	// TopSimilars caps the explainability list carried on the prediction.
	TopSimilars = 10

	// MinLibrarySize is the cold-start safeguard: with fewer subpatterns
	// system-wide, every prediction is suppressed for the run.
	MinLibrarySize = 10
)

// Matcher finds historical subpatterns whose shape resembles the current curve
type Matcher struct{}

// NewMatcher creates a new matcher
func NewMatcher() *Matcher {
	return &Matcher{}
}

// Match compares the current open-interval embedding against every library
// subpattern and returns the surviving matches, descending by similarity, capped
// at TopMatches.
//
// Each comparison truncates both curves to their shared minimum length (the
// shorter curve decides); candidates whose common length falls below
// MinWindowBars are discarded. Fewer than MinMatches survivors returns nil:
// insufficient evidence, not an error. Equal similarities keep library order
// (arbitrary but stable).
func (m *Matcher) Match(current []float64, library []Subpattern) []Match {
	if len(current) < MinWindowBars {
		return nil
	}

	var matches []Match
	for _, sp := range library {
		minLen := len(current)
		if len(sp.Embedding) < minLen {
			minLen = len(sp.Embedding)
		}
		if minLen < MinWindowBars {
			continue
		}

		sim := CosineSimilarity(current[:minLen], sp.Embedding[:minLen])
		if sim > SimilarityThreshold {
			matches = append(matches, Match{Similarity: sim, Subpattern: sp})
		}
	}

	if len(matches) < MinMatches {
		return nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if len(matches) > TopMatches {
		matches = matches[:TopMatches]
	}

	return matches
}
