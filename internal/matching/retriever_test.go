package matching

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-match-go/internal/domain"
	"job-match-go/internal/storage"
)

type fakeIndex struct {
	hits []storage.VectorSearchResult
	err  error

	lastTopK int
}

func (f *fakeIndex) Upsert(ctx context.Context, jobID string, vector []float64, metadata map[string]interface{}) error {
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, vector []float64, topK int, filter map[string]interface{}) ([]storage.VectorSearchResult, error) {
	f.lastTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func (f *fakeIndex) DeleteAll(ctx context.Context) error {
	return nil
}

func (f *fakeIndex) Stats(ctx context.Context) (*storage.IndexStats, error) {
	return &storage.IndexStats{}, nil
}

type fakeResolver struct {
	jobs map[string]*domain.Job
	err  error
}

func (f *fakeResolver) GetJobsByIDs(ctx context.Context, jobIDs []string) ([]*domain.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*domain.Job
	for _, id := range jobIDs {
		if job, ok := f.jobs[id]; ok {
			out = append(out, job)
		}
	}
	return out, nil
}

func TestCandidatePool(t *testing.T) {
	assert.Equal(t, 50, CandidatePool(10), "2.5x10 is below the floor")
	assert.Equal(t, 50, CandidatePool(20))
	assert.Equal(t, 75, CandidatePool(30))
	assert.Equal(t, 125, CandidatePool(50))
	assert.Equal(t, 50, CandidatePool(0))
}

func TestRetrievePreservesIndexOrder(t *testing.T) {
	index := &fakeIndex{hits: []storage.VectorSearchResult{
		{ID: "job-b", Score: 0.9},
		{ID: "job-a", Score: 0.8},
		{ID: "job-c", Score: 0.7},
	}}
	resolver := &fakeResolver{jobs: map[string]*domain.Job{
		"job-a": {ID: "job-a", Title: "A", Company: "Acme"},
		"job-b": {ID: "job-b", Title: "B", Company: "Acme"},
		"job-c": {ID: "job-c", Title: "C", Company: "Acme"},
	}}

	r := NewRetriever(index, resolver)
	jobs, err := r.Retrieve(context.Background(), []float64{0.1, 0.2}, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "job-b", jobs[0].ID)
	assert.Equal(t, "job-a", jobs[1].ID)
	assert.Equal(t, "job-c", jobs[2].ID)
	assert.Equal(t, 50, index.lastTopK)
}

func TestRetrieveDropsUnresolvableIDs(t *testing.T) {
	index := &fakeIndex{hits: []storage.VectorSearchResult{
		{ID: "job-a", Score: 0.9},
		{ID: "job-gone", Score: 0.8},
		{ID: "job-b", Score: 0.7},
	}}
	resolver := &fakeResolver{jobs: map[string]*domain.Job{
		"job-a": {ID: "job-a"},
		"job-b": {ID: "job-b"},
	}}

	r := NewRetriever(index, resolver)
	jobs, err := r.Retrieve(context.Background(), []float64{0.1}, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-a", jobs[0].ID)
	assert.Equal(t, "job-b", jobs[1].ID)
}

func TestRetrieveEmptyEmbedding(t *testing.T) {
	r := NewRetriever(&fakeIndex{}, &fakeResolver{})
	_, err := r.Retrieve(context.Background(), nil, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRetrieveNoIndex(t *testing.T) {
	r := NewRetriever(nil, &fakeResolver{})
	_, err := r.Retrieve(context.Background(), []float64{0.1}, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestRetrieveSearchError(t *testing.T) {
	index := &fakeIndex{err: fmt.Errorf("index unavailable")}
	r := NewRetriever(index, &fakeResolver{})
	_, err := r.Retrieve(context.Background(), []float64{0.1}, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vector search")
}

func TestRetrieveEmptyHits(t *testing.T) {
	r := NewRetriever(&fakeIndex{}, &fakeResolver{})
	jobs, err := r.Retrieve(context.Background(), []float64{0.1}, 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}
