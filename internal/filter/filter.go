// Package filter applies a semantic appropriateness pass over scored matches.
// The production implementation delegates to an external reasoning service;
// a deterministic keep-all implementation exists so the rest of the pipeline
// can be tested without network calls.
package filter

import (
	"context"

	"job-match-go/internal/domain"
)

// Rejection records a match the filter dropped, with the reason given by the
// reasoning service.
type Rejection struct {
	Match  *domain.MatchResult
	Reason string
}

// Result is the output of one filter pass.
type Result struct {
	Kept     []*domain.MatchResult
	Rejected []Rejection

	// FailedOpen is true when the reasoning service was unavailable or
	// returned malformed output and the candidates passed through
	// unmodified.
	FailedOpen bool
}

// AppropriatenessFilter decides which scored matches are genuinely suitable
// for a candidate. Implementations must never block the pipeline: on any
// internal failure they return the input truncated to topK with no error.
type AppropriatenessFilter interface {
	Filter(ctx context.Context, profile *domain.ResumeProfile, candidates []*domain.MatchResult, topK int) (*Result, error)
}

// KeepAllFilter keeps every candidate up to topK. It is the deterministic
// fallback used in tests and when no reasoning service is configured.
type KeepAllFilter struct{}

var _ AppropriatenessFilter = (*KeepAllFilter)(nil)

// NewKeepAllFilter returns a filter that never rejects anything.
func NewKeepAllFilter() *KeepAllFilter {
	return &KeepAllFilter{}
}

// Filter truncates the candidates to topK and keeps them all.
func (f *KeepAllFilter) Filter(_ context.Context, _ *domain.ResumeProfile, candidates []*domain.MatchResult, topK int) (*Result, error) {
	return &Result{Kept: truncate(candidates, topK)}, nil
}

func truncate(matches []*domain.MatchResult, topK int) []*domain.MatchResult {
	if topK >= 0 && len(matches) > topK {
		return matches[:topK]
	}
	return matches
}
