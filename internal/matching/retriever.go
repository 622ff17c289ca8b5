// Package matching runs the candidate-to-job pipeline: retrieve, score,
// diversify, filter, persist.
package matching

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"job-match-go/internal/domain"
	"job-match-go/internal/logger"
	"job-match-go/internal/storage"
)

var matchingTracer = otel.Tracer("job-match-go/matching")

const (
	// overfetchFactor widens the vector search so downstream diversification
	// and filtering still have enough candidates after dropping some.
	overfetchFactor = 2.5

	// minCandidatePool floors the overfetch for small K.
	minCandidatePool = 50
)

// jobResolver is the slice of the relational store the retriever needs.
type jobResolver interface {
	GetJobsByIDs(ctx context.Context, jobIDs []string) ([]*domain.Job, error)
}

// Retriever fetches candidate jobs from the vector index and resolves them
// to full records.
type Retriever struct {
	index storage.VectorIndex
	store jobResolver
}

// NewRetriever wires the retriever against the vector index and store.
func NewRetriever(index storage.VectorIndex, store jobResolver) *Retriever {
	return &Retriever{
		index: index,
		store: store,
	}
}

// CandidatePool computes the number of vector hits requested for a target of
// k final results.
func CandidatePool(k int) int {
	pool := int(math.Ceil(overfetchFactor * float64(k)))
	if pool < minCandidatePool {
		pool = minCandidatePool
	}
	return pool
}

// Retrieve returns candidate jobs for the résumé embedding, most similar
// first. IDs the store cannot resolve are dropped with a log line; the
// pipeline must not fail because the index briefly outruns the database.
func (r *Retriever) Retrieve(ctx context.Context, embedding []float64, k int) ([]*domain.Job, error) {
	if r.index == nil {
		return nil, fmt.Errorf("%w: vector index not configured", domain.ErrServiceUnavailable)
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: resume embedding is empty", domain.ErrInvalidInput)
	}

	ctx, span := matchingTracer.Start(ctx, "Retriever.Retrieve")
	defer span.End()

	pool := CandidatePool(k)
	span.SetAttributes(
		attribute.Int("matching.k", k),
		attribute.Int("matching.candidate_pool", pool),
	)

	hits, err := r.index.Query(ctx, embedding, pool, nil)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(hits))
	for _, hit := range hits {
		ids = append(ids, hit.ID)
	}

	jobs, err := r.store.GetJobsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve candidate jobs: %w", err)
	}

	byID := make(map[string]*domain.Job, len(jobs))
	for _, job := range jobs {
		byID[job.ID] = job
	}

	// Preserve similarity order from the index.
	ordered := make([]*domain.Job, 0, len(hits))
	dropped := 0
	for _, hit := range hits {
		job, ok := byID[hit.ID]
		if !ok {
			dropped++
			continue
		}
		ordered = append(ordered, job)
	}

	if dropped > 0 {
		logger.Ctx(ctx).Warn().
			Int("dropped", dropped).
			Int("resolved", len(ordered)).
			Msg("Vector hits not found in relational store")
		span.SetAttributes(attribute.Int("matching.dropped_hits", dropped))
	}

	return ordered, nil
}
