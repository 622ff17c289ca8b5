package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-match-go/internal/domain"
)

func testResume(skills []string, level domain.ExperienceLevel, embedding []float64) *domain.Resume {
	return &domain.Resume{
		ID: "resume-1",
		Profile: domain.ResumeProfile{
			Skills:          skills,
			ExperienceLevel: level,
		},
		Embedding: embedding,
	}
}

func testJob(id, title, company string, skills []string, level domain.ExperienceLevel, embedding []float64) *domain.Job {
	return &domain.Job{
		ID:              id,
		Title:           title,
		Company:         company,
		RequiredSkills:  skills,
		ExperienceLevel: level,
		Embedding:       embedding,
	}
}

func TestScoreWithoutVectors(t *testing.T) {
	scorer := NewCompositeScorer()
	resume := testResume([]string{"react", "node.js", "aws"}, domain.ExperienceMid, nil)

	jobA := testJob("job-a", "Frontend Engineer", "Acme", []string{"react", "typescript", "node.js"}, domain.ExperienceMid, nil)
	resultA, err := scorer.Score(jobA, resume)
	require.NoError(t, err)

	// 0.7 * 2/3 + 0.3 * 1.0 = 0.7667 -> 0.77
	assert.Equal(t, 0.77, resultA.Score)
	assert.Equal(t, domain.ConfidenceMedium, resultA.Confidence)
	assert.False(t, resultA.UsedVectors)
	assert.Equal(t, []string{"react", "node.js"}, resultA.MatchedSkills)

	jobB := testJob("job-b", "CRM Lead", "Globex", []string{"salesforce", "crm"}, domain.ExperienceLeadership, nil)
	resultB, err := scorer.Score(jobB, resume)
	require.NoError(t, err)

	// 0.7 * 0 + 0.3 * (1 - 2/3) = 0.1
	assert.Equal(t, 0.10, resultB.Score)
	assert.Equal(t, domain.ConfidenceLow, resultB.Confidence)

	assert.Greater(t, resultA.Score, resultB.Score)
}

func TestScoreWithVectors(t *testing.T) {
	scorer := NewCompositeScorer()
	embedding := []float64{0.3, 0.4, 0.5}
	resume := testResume([]string{"go", "kubernetes"}, domain.ExperienceSenior, embedding)
	job := testJob("job-1", "Platform Engineer", "Initech", []string{"go", "kubernetes", "terraform"}, domain.ExperienceSenior, embedding)

	result, err := scorer.Score(job, resume)
	require.NoError(t, err)

	// vector 1.0, skills 2/3, experience 1.0 -> 0.5 + 0.2 + 0.2 = 0.9
	assert.Equal(t, 0.9, result.Score)
	assert.True(t, result.UsedVectors)
	assert.Equal(t, domain.ConfidenceHigh, result.Confidence)
}

func TestScoreMonotonicInSkillOverlap(t *testing.T) {
	scorer := NewCompositeScorer()
	resume := testResume([]string{"go", "kubernetes", "terraform"}, domain.ExperienceMid, nil)

	low := testJob("low", "Engineer", "Acme", []string{"go", "rust", "c++"}, domain.ExperienceMid, nil)
	high := testJob("high", "Engineer", "Acme", []string{"go", "kubernetes", "terraform"}, domain.ExperienceMid, nil)

	lowResult, err := scorer.Score(low, resume)
	require.NoError(t, err)
	highResult, err := scorer.Score(high, resume)
	require.NoError(t, err)

	assert.Greater(t, highResult.Score, lowResult.Score)
}

func TestScoreMonotonicInVectorSimilarity(t *testing.T) {
	scorer := NewCompositeScorer()
	resume := testResume([]string{"go"}, domain.ExperienceMid, []float64{1, 0, 0})

	near := testJob("near", "Engineer", "Acme", []string{"go"}, domain.ExperienceMid, []float64{0.9, 0.1, 0})
	far := testJob("far", "Engineer", "Acme", []string{"go"}, domain.ExperienceMid, []float64{0.4, 0.9, 0})

	nearResult, err := scorer.Score(near, resume)
	require.NoError(t, err)
	farResult, err := scorer.Score(far, resume)
	require.NoError(t, err)

	assert.Greater(t, nearResult.Score, farResult.Score)
}

func TestScoreInvalidInput(t *testing.T) {
	scorer := NewCompositeScorer()
	resume := testResume([]string{"go"}, domain.ExperienceMid, nil)

	_, err := scorer.Score(&domain.Job{ID: "job-1"}, resume)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	job := testJob("job-1", "Engineer", "Acme", []string{"go"}, domain.ExperienceMid, nil)
	_, err = scorer.Score(job, &domain.Resume{ID: "resume-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestScoreDimensionMismatch(t *testing.T) {
	scorer := NewCompositeScorer()
	resume := testResume([]string{"go"}, domain.ExperienceMid, []float64{1, 0})
	job := testJob("job-1", "Engineer", "Acme", []string{"go"}, domain.ExperienceMid, []float64{1, 0, 0})

	_, err := scorer.Score(job, resume)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestScoreClampsBonusOverflow(t *testing.T) {
	// Custom weights can push the raw sum past 1.0; the result must clamp.
	scorer := NewCompositeScorer(WithWeights(Weights{
		Vector:             0.8,
		Skill:              0.5,
		Experience:         0.3,
		FallbackSkill:      1.2,
		FallbackExperience: 0.3,
	}))
	resume := testResume([]string{"go"}, domain.ExperienceMid, nil)
	job := testJob("job-1", "Engineer", "Acme", []string{"go"}, domain.ExperienceMid, nil)

	result, err := scorer.Score(job, resume)
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Score)
}

func TestScoreCarriesExplanation(t *testing.T) {
	scorer := NewCompositeScorer()
	resume := testResume([]string{"react", "node.js", "aws"}, domain.ExperienceMid, nil)

	job := testJob("job-a", "Frontend Engineer", "Acme", []string{"react", "typescript", "node.js"}, domain.ExperienceMid, nil)
	result, err := scorer.Score(job, resume)
	require.NoError(t, err)
	assert.Equal(t, "score 0.77 (MEDIUM confidence), 2 overlapping skills", result.Explanation)

	noOverlap := testJob("job-b", "CRM Lead", "Globex", []string{"salesforce"}, domain.ExperienceMid, nil)
	result, err = scorer.Score(noOverlap, resume)
	require.NoError(t, err)
	assert.Contains(t, result.Explanation, "no overlapping skills")
}

func TestConfidenceLadderWithoutVectors(t *testing.T) {
	scorer := NewCompositeScorer()
	resume := testResume([]string{"react", "node.js", "aws", "docker"}, domain.ExperienceMid, nil)

	// 3 of 4 job skills matched: overlap 0.75 >= 0.6, matches 3 -> High.
	job := testJob("job-1", "Engineer", "Acme", []string{"react", "node.js", "aws", "cobol"}, domain.ExperienceMid, nil)
	result, err := scorer.Score(job, resume)
	require.NoError(t, err)
	assert.Equal(t, domain.ConfidenceHigh, result.Confidence)
}
