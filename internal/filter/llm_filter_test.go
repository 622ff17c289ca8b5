package filter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-match-go/internal/domain"
	"job-match-go/internal/llm"
)

func filterProfile() *domain.ResumeProfile {
	return &domain.ResumeProfile{
		Skills:          []string{"react", "node.js", "aws"},
		ExperienceLevel: domain.ExperienceMid,
		YearsExperience: 4,
		Titles:          []string{"Frontend Engineer"},
	}
}

func filterCandidates() []*domain.MatchResult {
	return []*domain.MatchResult{
		{JobID: "job-1", Title: "Frontend Engineer", Company: "Acme", Score: 0.85, Confidence: domain.ConfidenceMedium},
		{JobID: "job-2", Title: "VP of Engineering", Company: "Globex", Score: 0.60, Confidence: domain.ConfidenceMedium},
		{JobID: "job-3", Title: "React Developer", Company: "Initech", Score: 0.55, Confidence: domain.ConfidenceLow},
	}
}

func TestLLMFilterAppliesDecisions(t *testing.T) {
	mock := llm.NewMockChatClient(`{
		"decisions": [
			{"job_id": "job-1", "decision": "KEEP", "reason": "strong skill fit", "confidence_adjustment": "INCREASE"},
			{"job_id": "job-2", "decision": "FILTER_OUT", "reason": "seniority mismatch", "confidence_adjustment": "NONE"},
			{"job_id": "job-3", "decision": "KEEP", "reason": "adjacent role", "confidence_adjustment": "NONE"}
		]
	}`, nil)

	f := NewLLMFilter(mock)
	result, err := f.Filter(context.Background(), filterProfile(), filterCandidates(), 10)
	require.NoError(t, err)
	require.NotNil(t, result)

	require.Len(t, result.Kept, 2)
	assert.Equal(t, "job-1", result.Kept[0].JobID)
	assert.Equal(t, domain.ConfidenceHigh, result.Kept[0].Confidence)
	assert.Equal(t, "strong skill fit", result.Kept[0].FilterReason)
	assert.Equal(t, "job-3", result.Kept[1].JobID)
	assert.Equal(t, domain.ConfidenceLow, result.Kept[1].Confidence)

	require.Len(t, result.Rejected, 1)
	assert.Equal(t, "job-2", result.Rejected[0].Match.JobID)
	assert.Equal(t, "seniority mismatch", result.Rejected[0].Reason)
	assert.False(t, result.FailedOpen)
}

func TestLLMFilterFailsOpenOnServiceError(t *testing.T) {
	mock := llm.NewMockChatClient("", errors.New("service unavailable"))
	candidates := filterCandidates()

	f := NewLLMFilter(mock)
	result, err := f.Filter(context.Background(), filterProfile(), candidates, 2)
	require.NoError(t, err)

	assert.True(t, result.FailedOpen)
	require.Len(t, result.Kept, 2)
	assert.Equal(t, "job-1", result.Kept[0].JobID)
	assert.Equal(t, "job-2", result.Kept[1].JobID)
	// Confidence must pass through unmodified on the fail-open path.
	assert.Equal(t, domain.ConfidenceMedium, result.Kept[0].Confidence)
}

func TestLLMFilterFailsOpenOnMalformedResponse(t *testing.T) {
	mock := llm.NewMockChatClient("I could not produce a decision today.", nil)

	f := NewLLMFilter(mock)
	result, err := f.Filter(context.Background(), filterProfile(), filterCandidates(), 10)
	require.NoError(t, err)

	assert.True(t, result.FailedOpen)
	assert.Len(t, result.Kept, 3)
	assert.Empty(t, result.Rejected)
}

func TestLLMFilterFailsOpenOnEmptyResponse(t *testing.T) {
	mock := llm.NewMockChatClient("", nil)

	f := NewLLMFilter(mock)
	result, err := f.Filter(context.Background(), filterProfile(), filterCandidates(), 10)
	require.NoError(t, err)
	assert.True(t, result.FailedOpen)
	assert.Len(t, result.Kept, 3)
}

func TestLLMFilterSurvivesMarkdownFences(t *testing.T) {
	mock := llm.NewMockChatClient("```json\n{\"decisions\": [{\"job_id\": \"job-1\", \"decision\": \"KEEP\", \"reason\": \"fit\", \"confidence_adjustment\": \"NONE\"}]}\n```", nil)

	f := NewLLMFilter(mock)
	result, err := f.Filter(context.Background(), filterProfile(), filterCandidates()[:1], 10)
	require.NoError(t, err)

	assert.False(t, result.FailedOpen)
	require.Len(t, result.Kept, 1)
	assert.Equal(t, "fit", result.Kept[0].FilterReason)
}

func TestLLMFilterConfidenceClampsAtBounds(t *testing.T) {
	mock := llm.NewMockChatClient(`{"decisions": [
		{"job_id": "high", "decision": "KEEP", "reason": "r", "confidence_adjustment": "INCREASE"},
		{"job_id": "low", "decision": "KEEP", "reason": "r", "confidence_adjustment": "DECREASE"}
	]}`, nil)

	candidates := []*domain.MatchResult{
		{JobID: "high", Score: 0.9, Confidence: domain.ConfidenceHigh},
		{JobID: "low", Score: 0.2, Confidence: domain.ConfidenceLow},
	}

	f := NewLLMFilter(mock)
	result, err := f.Filter(context.Background(), filterProfile(), candidates, 10)
	require.NoError(t, err)

	require.Len(t, result.Kept, 2)
	assert.Equal(t, domain.ConfidenceHigh, result.Kept[0].Confidence)
	assert.Equal(t, domain.ConfidenceLow, result.Kept[1].Confidence)
}

func TestLLMFilterUnmentionedJobsAreKept(t *testing.T) {
	mock := llm.NewMockChatClient(`{"decisions": [{"job_id": "job-2", "decision": "FILTER_OUT", "reason": "too senior", "confidence_adjustment": "NONE"}]}`, nil)

	f := NewLLMFilter(mock)
	result, err := f.Filter(context.Background(), filterProfile(), filterCandidates(), 10)
	require.NoError(t, err)

	require.Len(t, result.Kept, 2)
	assert.Equal(t, "job-1", result.Kept[0].JobID)
	assert.Equal(t, "job-3", result.Kept[1].JobID)
}

func TestLLMFilterSanitizesUnescapedQuotes(t *testing.T) {
	// The reason string carries raw inner quotes; the sanitization pass
	// must repair them before unmarshalling.
	mock := llm.NewMockChatClient(`{"decisions": [{"job_id": "job-1", "decision": "KEEP", "reason": "matches the "core" stack", "confidence_adjustment": "NONE"}]}`, nil)

	f := NewLLMFilter(mock)
	result, err := f.Filter(context.Background(), filterProfile(), filterCandidates()[:1], 10)
	require.NoError(t, err)

	assert.False(t, result.FailedOpen)
	require.Len(t, result.Kept, 1)
	assert.Equal(t, `matches the "core" stack`, result.Kept[0].FilterReason)
}

func TestLLMFilterTruncatesToTopK(t *testing.T) {
	mock := llm.NewMockChatClient(`{"decisions": [
		{"job_id": "job-1", "decision": "KEEP", "reason": "r", "confidence_adjustment": "NONE"},
		{"job_id": "job-2", "decision": "KEEP", "reason": "r", "confidence_adjustment": "NONE"},
		{"job_id": "job-3", "decision": "KEEP", "reason": "r", "confidence_adjustment": "NONE"}
	]}`, nil)

	f := NewLLMFilter(mock)
	result, err := f.Filter(context.Background(), filterProfile(), filterCandidates(), 2)
	require.NoError(t, err)
	assert.Len(t, result.Kept, 2)
}

func TestLLMFilterEmptyCandidates(t *testing.T) {
	f := NewLLMFilter(llm.NewMockChatClient("unused", nil))
	result, err := f.Filter(context.Background(), filterProfile(), nil, 5)
	require.NoError(t, err)
	assert.Empty(t, result.Kept)
	assert.Empty(t, result.Rejected)
}

func TestKeepAllFilter(t *testing.T) {
	f := NewKeepAllFilter()
	result, err := f.Filter(context.Background(), filterProfile(), filterCandidates(), 2)
	require.NoError(t, err)
	assert.Len(t, result.Kept, 2)
	assert.Empty(t, result.Rejected)
	assert.False(t, result.FailedOpen)
}
