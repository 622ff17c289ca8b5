package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-match-go/internal/domain"
)

func match(jobID, company, location, industry string, score float64) *domain.MatchResult {
	return &domain.MatchResult{
		JobID:    jobID,
		Company:  company,
		Location: location,
		Industry: industry,
		Score:    score,
	}
}

func TestDiversifyReturnsInputWhenWithinLimit(t *testing.T) {
	d := NewDiversifier()
	matches := []*domain.MatchResult{
		match("a", "Acme", "", "", 0.9),
		match("b", "Globex", "", "", 0.8),
	}

	out := d.Diversify(matches, 5)
	assert.Equal(t, matches, out)
}

func TestDiversifyNeverExceedsMaxResults(t *testing.T) {
	d := NewDiversifier()
	var matches []*domain.MatchResult
	for i := 0; i < 20; i++ {
		matches = append(matches, match(string(rune('a'+i)), "Acme", "", "", 0.9-float64(i)*0.01))
	}

	out := d.Diversify(matches, 7)
	assert.Len(t, out, 7)
}

func TestDiversifyNoDuplicates(t *testing.T) {
	d := NewDiversifier()
	matches := []*domain.MatchResult{
		match("a", "Acme", "NYC", "tech", 0.9),
		match("b", "Globex", "NYC", "tech", 0.85),
		match("c", "Initech", "SF", "fintech", 0.8),
		match("d", "Acme", "NYC", "tech", 0.75),
		match("e", "Hooli", "SF", "tech", 0.7),
	}

	out := d.Diversify(matches, 4)
	require.Len(t, out, 4)

	seen := make(map[string]bool)
	for _, m := range out {
		assert.False(t, seen[m.JobID], "duplicate job %s", m.JobID)
		seen[m.JobID] = true
	}
}

func TestDiversifyPrefersNewCompany(t *testing.T) {
	d := NewDiversifier()
	matches := []*domain.MatchResult{
		match("a1", "Acme", "", "", 0.90),
		match("a2", "Acme", "", "", 0.85),
		match("g1", "Globex", "", "", 0.80),
		match("a3", "Acme", "", "", 0.75),
	}

	out := d.Diversify(matches, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "a1", out[0].JobID)
	// Acme's second pick carries a 0.3 diversity penalty:
	// a2: 0.7*0.85 + 0.3*0.3 = 0.685 vs g1: 0.7*0.80 + 0.3*1.0 = 0.86.
	assert.Equal(t, "g1", out[1].JobID)
}

func TestDiversifySameCompanyLastResort(t *testing.T) {
	// All five candidates share one company: the penalty cannot exclude
	// them, it only orders them, so the top three by score are selected.
	d := NewDiversifier()
	matches := []*domain.MatchResult{
		match("a", "Acme Corp", "", "", 0.90),
		match("b", "Acme Corp", "", "", 0.85),
		match("c", "Acme Corp", "", "", 0.80),
		match("d", "Acme Corp", "", "", 0.75),
		match("e", "Acme Corp", "", "", 0.70),
	}

	out := d.Diversify(matches, 3)
	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].JobID)
	assert.Equal(t, "b", out[1].JobID)
	assert.Equal(t, "c", out[2].JobID)
}

func TestDiversifyPureRelevanceWhenPenaltiesEqual(t *testing.T) {
	// With lambda=1.0 the diversity term drops out of the comparison and
	// the output is plain relevance order.
	d := NewDiversifier(WithLambda(1.0))
	matches := []*domain.MatchResult{
		match("b", "Globex", "NYC", "tech", 0.85),
		match("a", "Acme", "NYC", "tech", 0.90),
		match("c", "Initech", "NYC", "tech", 0.80),
		match("d", "Hooli", "NYC", "tech", 0.75),
	}

	out := d.Diversify(matches, 3)
	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].JobID)
	assert.Equal(t, "b", out[1].JobID)
	assert.Equal(t, "c", out[2].JobID)
}

func TestDiversifyLocationClusterPenalty(t *testing.T) {
	d := NewDiversifier()
	matches := []*domain.MatchResult{
		match("n1", "A", "NYC", "", 0.90),
		match("n2", "B", "NYC", "", 0.89),
		match("n3", "C", "NYC", "", 0.88),
		match("n4", "D", "NYC", "", 0.87),
		match("s1", "E", "SF", "", 0.80),
	}

	// After three NYC picks the fourth NYC candidate takes the 0.8
	// location penalty: n4: 0.7*0.87 + 0.3*0.8 = 0.849 vs
	// s1: 0.7*0.80 + 0.3*1.0 = 0.86.
	out := d.Diversify(matches, 4)
	require.Len(t, out, 4)
	assert.Equal(t, "s1", out[3].JobID)
}

func TestDiversifyZeroMaxResults(t *testing.T) {
	d := NewDiversifier()
	out := d.Diversify([]*domain.MatchResult{match("a", "Acme", "", "", 0.9)}, 0)
	assert.Nil(t, out)
}
