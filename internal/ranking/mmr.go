// Package ranking re-ranks scored matches for diversity using greedy
// Maximal Marginal Relevance. Relevance comes from the composite score;
// diversity penalizes repeated companies, clustered locations and clustered
// industries among the already-selected results.
package ranking

import (
	"math"
	"strings"

	"job-match-go/internal/domain"
)

const (
	// DefaultLambda biases selection toward relevance over diversity.
	DefaultLambda = 0.7

	// companyPenaltyBase is raised to the count of already-selected results
	// from the same company. 0.3^2 is steep enough that a third pick from
	// one company only wins when nothing else is left.
	companyPenaltyBase = 0.3

	// locationPenalty applies once more than locationThreshold selected
	// results share the candidate's location.
	locationPenalty   = 0.8
	locationThreshold = 2

	// industryPenalty applies once more than industryThreshold selected
	// results share the candidate's industry.
	industryPenalty   = 0.9
	industryThreshold = 3
)

// Diversifier performs greedy MMR re-ranking over scored matches.
type Diversifier struct {
	lambda float64
}

// DiversifierOption customizes a Diversifier.
type DiversifierOption func(*Diversifier)

// WithLambda overrides the relevance/diversity trade-off. 1.0 is pure
// relevance, 0.0 pure diversity.
func WithLambda(lambda float64) DiversifierOption {
	return func(d *Diversifier) {
		d.lambda = lambda
	}
}

// NewDiversifier creates a Diversifier with lambda 0.7 unless overridden.
func NewDiversifier(opts ...DiversifierOption) *Diversifier {
	d := &Diversifier{lambda: DefaultLambda}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Diversify selects up to maxResults matches from the ranked input. When the
// input already fits within maxResults it is returned unchanged. Selection is
// greedy: the highest-relevance match first, then repeatedly the candidate
// maximizing lambda*relevance + (1-lambda)*diversity. Ties break on input
// order, which keeps runs deterministic.
func (d *Diversifier) Diversify(matches []*domain.MatchResult, maxResults int) []*domain.MatchResult {
	if maxResults <= 0 {
		return nil
	}
	if len(matches) <= maxResults {
		return matches
	}

	selected := make([]*domain.MatchResult, 0, maxResults)
	remaining := make([]*domain.MatchResult, len(matches))
	copy(remaining, matches)

	companyCounts := make(map[string]int)
	locationCounts := make(map[string]int)
	industryCounts := make(map[string]int)

	for len(selected) < maxResults && len(remaining) > 0 {
		bestIdx := 0
		bestValue := math.Inf(-1)
		for i, cand := range remaining {
			value := d.lambda*cand.Score + (1-d.lambda)*d.diversity(cand, companyCounts, locationCounts, industryCounts)
			if value > bestValue {
				bestValue = value
				bestIdx = i
			}
		}

		pick := remaining[bestIdx]
		selected = append(selected, pick)
		companyCounts[normalizeKey(pick.Company)]++
		if pick.Location != "" {
			locationCounts[normalizeKey(pick.Location)]++
		}
		if pick.Industry != "" {
			industryCounts[normalizeKey(pick.Industry)]++
		}
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

// diversity starts at 1.0 and shrinks multiplicatively for each kind of
// repetition among the already-selected results.
func (d *Diversifier) diversity(cand *domain.MatchResult, companies, locations, industries map[string]int) float64 {
	score := 1.0
	if n := companies[normalizeKey(cand.Company)]; n > 0 {
		score *= math.Pow(companyPenaltyBase, float64(n))
	}
	if cand.Location != "" && locations[normalizeKey(cand.Location)] > locationThreshold {
		score *= locationPenalty
	}
	if cand.Industry != "" && industries[normalizeKey(cand.Industry)] > industryThreshold {
		score *= industryPenalty
	}
	return score
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
