package matching

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-match-go/internal/domain"
	"job-match-go/internal/filter"
	"job-match-go/internal/ranking"
	"job-match-go/internal/scoring"
)

type fakeMatchStore struct {
	resumes map[string]*domain.Resume
	jobs    []*domain.Job

	persisted     []*domain.MatchResult
	persistErr    error
	corpusErr     error
	allJobsCalled bool
}

func (f *fakeMatchStore) GetResumeByID(ctx context.Context, resumeID string) (*domain.Resume, error) {
	resume, ok := f.resumes[resumeID]
	if !ok {
		return nil, fmt.Errorf("resume %s not found", resumeID)
	}
	return resume, nil
}

func (f *fakeMatchStore) GetAllJobs(ctx context.Context) ([]*domain.Job, error) {
	f.allJobsCalled = true
	if f.corpusErr != nil {
		return nil, f.corpusErr
	}
	return f.jobs, nil
}

func (f *fakeMatchStore) CountJobs(ctx context.Context) (int64, error) {
	return int64(len(f.jobs)), nil
}

func (f *fakeMatchStore) CreateJobMatches(ctx context.Context, resumeID string, matches []*domain.MatchResult) error {
	if f.persistErr != nil {
		return f.persistErr
	}
	f.persisted = append(f.persisted, matches...)
	return nil
}

type erroringRetriever struct {
	called bool
}

func (e *erroringRetriever) Retrieve(ctx context.Context, embedding []float64, k int) ([]*domain.Job, error) {
	e.called = true
	return nil, fmt.Errorf("index down")
}

type stubRetriever struct {
	jobs []*domain.Job
}

func (s *stubRetriever) Retrieve(ctx context.Context, embedding []float64, k int) ([]*domain.Job, error) {
	return s.jobs, nil
}

type rejectingFilter struct {
	rejectJobID string
}

func (r *rejectingFilter) Filter(ctx context.Context, profile *domain.ResumeProfile, candidates []*domain.MatchResult, topK int) (*filter.Result, error) {
	result := &filter.Result{}
	for _, c := range candidates {
		if c.JobID == r.rejectJobID {
			result.Rejected = append(result.Rejected, filter.Rejection{Match: c, Reason: "rejected in test"})
			continue
		}
		if len(result.Kept) < topK {
			result.Kept = append(result.Kept, c)
		}
	}
	return result, nil
}

func midResume(id string) *domain.Resume {
	return &domain.Resume{
		ID: id,
		Profile: domain.ResumeProfile{
			Skills:          []string{"react", "node.js", "aws"},
			ExperienceLevel: domain.ExperienceMid,
			YearsExperience: 4,
		},
	}
}

func corpusJobs() []*domain.Job {
	return []*domain.Job{
		{
			ID:              "job-a",
			Title:           "Frontend Engineer",
			Company:         "Acme",
			RequiredSkills:  []string{"react", "typescript", "node.js"},
			ExperienceLevel: domain.ExperienceMid,
		},
		{
			ID:              "job-b",
			Title:           "Salesforce Director",
			Company:         "Globex",
			RequiredSkills:  []string{"salesforce", "crm"},
			ExperienceLevel: domain.ExperienceLeadership,
		},
	}
}

func newTestOrchestrator(store *fakeMatchStore, opts ...OrchestratorOption) *Orchestrator {
	return NewOrchestrator(store, scoring.NewCompositeScorer(), ranking.NewDiversifier(), opts...)
}

func TestFindMatchesFullCorpusScoring(t *testing.T) {
	store := &fakeMatchStore{
		resumes: map[string]*domain.Resume{"resume-1": midResume("resume-1")},
		jobs:    corpusJobs(),
	}
	o := newTestOrchestrator(store)

	matches, stats, err := o.FindMatches(context.Background(), "resume-1", 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "job-a", matches[0].JobID)
	assert.InDelta(t, 0.77, matches[0].Score, 1e-9)
	assert.Equal(t, domain.ConfidenceMedium, matches[0].Confidence)

	assert.Equal(t, "job-b", matches[1].JobID)
	assert.InDelta(t, 0.10, matches[1].Score, 1e-9)
	assert.Equal(t, domain.ConfidenceLow, matches[1].Confidence)

	assert.Equal(t, 2, stats.TotalJobs)
	assert.Equal(t, 2, stats.MatchesFound)
	assert.InDelta(t, 0.44, stats.AvgMatchScore, 1e-9)
	assert.Greater(t, stats.ProcessingTime.Nanoseconds(), int64(0))
	assert.Equal(t, PhaseDone, o.CurrentPhase())
}

func TestFindMatchesPersistsResults(t *testing.T) {
	store := &fakeMatchStore{
		resumes: map[string]*domain.Resume{"resume-1": midResume("resume-1")},
		jobs:    corpusJobs(),
	}
	o := newTestOrchestrator(store)

	_, _, err := o.FindMatches(context.Background(), "resume-1", 10)
	require.NoError(t, err)
	assert.Len(t, store.persisted, 2)
}

func TestFindMatchesPersistenceFailureIsNotFatal(t *testing.T) {
	store := &fakeMatchStore{
		resumes:    map[string]*domain.Resume{"resume-1": midResume("resume-1")},
		jobs:       corpusJobs(),
		persistErr: fmt.Errorf("disk full"),
	}
	o := newTestOrchestrator(store)

	matches, _, err := o.FindMatches(context.Background(), "resume-1", 10)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
	assert.Equal(t, PhaseDone, o.CurrentPhase())
}

func TestFindMatchesRetrievalFailureFallsBack(t *testing.T) {
	resume := midResume("resume-1")
	resume.Embedding = []float64{0.5, 0.5}
	store := &fakeMatchStore{
		resumes: map[string]*domain.Resume{"resume-1": resume},
		jobs:    corpusJobs(),
	}
	retriever := &erroringRetriever{}
	o := newTestOrchestrator(store, WithRetriever(retriever))

	matches, _, err := o.FindMatches(context.Background(), "resume-1", 10)
	require.NoError(t, err)
	assert.True(t, retriever.called)
	assert.True(t, store.allJobsCalled, "should score full corpus when retrieval fails")
	assert.Len(t, matches, 2)
}

func TestFindMatchesUsesRetrieverCandidates(t *testing.T) {
	resume := midResume("resume-1")
	resume.Embedding = []float64{0.5, 0.5}
	store := &fakeMatchStore{
		resumes: map[string]*domain.Resume{"resume-1": resume},
		jobs:    corpusJobs(),
	}
	retriever := &stubRetriever{jobs: corpusJobs()[:1]}
	o := newTestOrchestrator(store, WithRetriever(retriever))

	matches, _, err := o.FindMatches(context.Background(), "resume-1", 10)
	require.NoError(t, err)
	assert.False(t, store.allJobsCalled)
	require.Len(t, matches, 1)
	assert.Equal(t, "job-a", matches[0].JobID)
}

func TestFindMatchesFilterRejection(t *testing.T) {
	store := &fakeMatchStore{
		resumes: map[string]*domain.Resume{"resume-1": midResume("resume-1")},
		jobs:    corpusJobs(),
	}
	o := newTestOrchestrator(store, WithFilter(&rejectingFilter{rejectJobID: "job-b"}))

	matches, stats, err := o.FindMatches(context.Background(), "resume-1", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "job-a", matches[0].JobID)
	assert.Equal(t, 1, stats.MatchesFound)
}

func TestFindMatchesLimitClamping(t *testing.T) {
	jobs := make([]*domain.Job, 0, 8)
	for i := 0; i < 8; i++ {
		jobs = append(jobs, &domain.Job{
			ID:              fmt.Sprintf("job-%d", i),
			Title:           "Engineer",
			Company:         fmt.Sprintf("Company-%d", i),
			RequiredSkills:  []string{"react"},
			ExperienceLevel: domain.ExperienceMid,
		})
	}
	store := &fakeMatchStore{
		resumes: map[string]*domain.Resume{"resume-1": midResume("resume-1")},
		jobs:    jobs,
	}
	o := newTestOrchestrator(store, WithLimits(3, 5))

	matches, _, err := o.FindMatches(context.Background(), "resume-1", 0)
	require.NoError(t, err)
	assert.Len(t, matches, 3, "zero limit uses the default")

	matches, _, err = o.FindMatches(context.Background(), "resume-1", 100)
	require.NoError(t, err)
	assert.Len(t, matches, 5, "oversized limit clamps to the maximum")
}

func TestFindMatchesUnknownResume(t *testing.T) {
	store := &fakeMatchStore{resumes: map[string]*domain.Resume{}}
	o := newTestOrchestrator(store)

	_, _, err := o.FindMatches(context.Background(), "missing", 10)
	require.Error(t, err)
	assert.Equal(t, PhaseFailed, o.CurrentPhase())
}

func TestFindMatchesEmptyResumeID(t *testing.T) {
	o := newTestOrchestrator(&fakeMatchStore{})
	_, _, err := o.FindMatches(context.Background(), "", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", PhaseIdle.String())
	assert.Equal(t, "retrieving", PhaseRetrieving.String())
	assert.Equal(t, "done", PhaseDone.String())
	assert.Equal(t, "failed", PhaseFailed.String())
}
