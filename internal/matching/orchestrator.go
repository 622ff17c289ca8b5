package matching

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"job-match-go/internal/domain"
	"job-match-go/internal/filter"
	"job-match-go/internal/logger"
	"job-match-go/internal/ranking"
	"job-match-go/internal/scoring"
	"job-match-go/internal/tracing"
)

// Phase is the pipeline stage an orchestrator run is in.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseRetrieving
	PhaseScoring
	PhaseDiversifying
	PhaseFiltering
	PhasePersisting
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRetrieving:
		return "retrieving"
	case PhaseScoring:
		return "scoring"
	case PhaseDiversifying:
		return "diversifying"
	case PhaseFiltering:
		return "filtering"
	case PhasePersisting:
		return "persisting"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// matchStore is the relational surface the orchestrator needs.
type matchStore interface {
	GetResumeByID(ctx context.Context, resumeID string) (*domain.Resume, error)
	GetAllJobs(ctx context.Context) ([]*domain.Job, error)
	CountJobs(ctx context.Context) (int64, error)
	CreateJobMatches(ctx context.Context, resumeID string, matches []*domain.MatchResult) error
}

// candidateRetriever abstracts the vector retrieval stage so the
// orchestrator can run without an index.
type candidateRetriever interface {
	Retrieve(ctx context.Context, embedding []float64, k int) ([]*domain.Job, error)
}

// Orchestrator drives a match run through its phases. Every stage after
// scoring degrades instead of failing: retrieval falls back to scoring the
// full corpus, filtering is skipped on reasoning errors, and persistence
// errors are logged without affecting the response.
type Orchestrator struct {
	store       matchStore
	retriever   candidateRetriever
	scorer      *scoring.CompositeScorer
	diversifier *ranking.Diversifier
	filter      filter.AppropriatenessFilter

	defaultLimit int
	maxLimit     int

	phase atomic.Int32
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithRetriever attaches the vector retrieval stage.
func WithRetriever(r candidateRetriever) OrchestratorOption {
	return func(o *Orchestrator) {
		o.retriever = r
	}
}

// WithFilter attaches the appropriateness filter stage.
func WithFilter(f filter.AppropriatenessFilter) OrchestratorOption {
	return func(o *Orchestrator) {
		o.filter = f
	}
}

// WithLimits overrides the default and maximum result counts.
func WithLimits(defaultLimit, maxLimit int) OrchestratorOption {
	return func(o *Orchestrator) {
		if defaultLimit > 0 {
			o.defaultLimit = defaultLimit
		}
		if maxLimit > 0 {
			o.maxLimit = maxLimit
		}
	}
}

// NewOrchestrator builds the pipeline. Store, scorer and diversifier are
// required; retrieval and filtering are optional stages.
func NewOrchestrator(store matchStore, scorer *scoring.CompositeScorer, diversifier *ranking.Diversifier, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		store:        store,
		scorer:       scorer,
		diversifier:  diversifier,
		defaultLimit: 10,
		maxLimit:     50,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CurrentPhase reports the stage of the run in progress.
func (o *Orchestrator) CurrentPhase() Phase {
	return Phase(o.phase.Load())
}

func (o *Orchestrator) setPhase(ctx context.Context, span trace.Span, p Phase) {
	o.phase.Store(int32(p))
	span.AddEvent("phase", trace.WithAttributes(attribute.String("matching.phase", p.String())))
	logger.Ctx(ctx).Debug().Str("phase", p.String()).Msg("Match pipeline phase")
}

// FindMatches runs the full pipeline for one résumé and returns the top
// matches plus run statistics.
func (o *Orchestrator) FindMatches(ctx context.Context, resumeID string, limit int) ([]*domain.MatchResult, *domain.MatchStats, error) {
	start := time.Now()

	ctx, span := matchingTracer.Start(ctx, "Orchestrator.FindMatches")
	defer span.End()
	span.SetAttributes(
		attribute.String("matching.resume_id", resumeID),
		attribute.Int("matching.limit", limit),
	)

	if resumeID == "" {
		o.phase.Store(int32(PhaseFailed))
		return nil, nil, fmt.Errorf("%w: resume ID is required", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = o.defaultLimit
	}
	if limit > o.maxLimit {
		limit = o.maxLimit
	}

	resume, err := o.store.GetResumeByID(ctx, resumeID)
	if err != nil {
		o.phase.Store(int32(PhaseFailed))
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, nil, err
	}
	if err := domain.ValidateResume(resume); err != nil {
		o.phase.Store(int32(PhaseFailed))
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, nil, err
	}
	span.SetAttributes(attribute.String("matching.resume_summary",
		tracing.SafeAttributeValue("matching.resume_summary", resume.Profile.Summary, tracing.MaxProfileLength)))

	// Retrieval. A missing index, a missing embedding or a search failure
	// all degrade to scoring the whole corpus in process.
	o.setPhase(ctx, span, PhaseRetrieving)
	candidates, usedIndex := o.retrieveCandidates(ctx, resume, limit)
	if len(candidates) == 0 {
		var corpusErr error
		candidates, corpusErr = o.store.GetAllJobs(ctx)
		if corpusErr != nil {
			o.phase.Store(int32(PhaseFailed))
			tracing.RecordError(span, corpusErr, tracing.ErrorTypeDB)
			return nil, nil, corpusErr
		}
		usedIndex = false
	}
	span.SetAttributes(
		attribute.Int("matching.candidates", len(candidates)),
		attribute.Bool("matching.used_vector_index", usedIndex),
	)

	totalJobs64, countErr := o.store.CountJobs(ctx)
	if countErr != nil {
		logger.Ctx(ctx).Warn().Err(countErr).Msg("Failed to count job corpus")
		totalJobs64 = int64(len(candidates))
	}
	totalJobs := int(totalJobs64)

	// Scoring.
	o.setPhase(ctx, span, PhaseScoring)
	scored := o.scoreCandidates(ctx, resume, candidates)
	if len(scored) == 0 {
		o.phase.Store(int32(PhaseDone))
		return []*domain.MatchResult{}, &domain.MatchStats{
			TotalJobs:      totalJobs,
			ProcessingTime: time.Since(start),
		}, nil
	}

	// Diversification over the ranked pool.
	o.setPhase(ctx, span, PhaseDiversifying)
	diversified := o.diversifier.Diversify(scored, limit)

	// Appropriateness filtering. Any failure keeps the diversified list.
	o.setPhase(ctx, span, PhaseFiltering)
	final := o.filterCandidates(ctx, &resume.Profile, diversified, limit)

	// Persistence is best-effort; the caller still gets results.
	o.setPhase(ctx, span, PhasePersisting)
	if err := o.store.CreateJobMatches(ctx, resumeID, final); err != nil {
		logger.Ctx(ctx).Error().
			Err(err).
			Str("resume_id", resumeID).
			Msg("Failed to persist match records")
		tracing.RecordErrorWithInfo(span, err, tracing.ErrorTypeDB,
			attribute.Int("matching.persist_attempted", len(final)))
	}

	o.setPhase(ctx, span, PhaseDone)

	stats := &domain.MatchStats{
		TotalJobs:      totalJobs,
		MatchesFound:   len(final),
		AvgMatchScore:  averageScore(final),
		ProcessingTime: time.Since(start),
	}
	span.SetAttributes(
		attribute.Int("matching.matches_found", stats.MatchesFound),
		attribute.Float64("matching.avg_score", stats.AvgMatchScore),
	)
	return final, stats, nil
}

// retrieveCandidates returns vector-index candidates, or nil when the
// fallback path should load the full corpus.
func (o *Orchestrator) retrieveCandidates(ctx context.Context, resume *domain.Resume, limit int) ([]*domain.Job, bool) {
	if o.retriever == nil || len(resume.Embedding) == 0 {
		return nil, false
	}
	candidates, err := o.retriever.Retrieve(ctx, resume.Embedding, limit)
	if err != nil {
		logger.Ctx(ctx).Warn().
			Err(err).
			Str("resume_id", resume.ID).
			Msg("Vector retrieval failed, falling back to full corpus scan")
		return nil, false
	}
	return candidates, len(candidates) > 0
}

// scoreCandidates scores every candidate and returns them ranked by score,
// ties keeping candidate order.
func (o *Orchestrator) scoreCandidates(ctx context.Context, resume *domain.Resume, candidates []*domain.Job) []*domain.MatchResult {
	scored := make([]*domain.MatchResult, 0, len(candidates))
	for _, job := range candidates {
		result, err := o.scorer.Score(job, resume)
		if err != nil {
			logger.Ctx(ctx).Warn().
				Err(err).
				Str("job_id", job.ID).
				Msg("Skipping unscorable job")
			continue
		}
		scored = append(scored, result)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

// filterCandidates runs the appropriateness filter, keeping the diversified
// list on any failure. With no filter configured the list is truncated to
// limit and returned as-is.
func (o *Orchestrator) filterCandidates(ctx context.Context, profile *domain.ResumeProfile, diversified []*domain.MatchResult, limit int) []*domain.MatchResult {
	if o.filter == nil {
		if len(diversified) > limit {
			return diversified[:limit]
		}
		return diversified
	}

	result, err := o.filter.Filter(ctx, profile, diversified, limit)
	if err != nil || result == nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("Appropriateness filter failed, keeping diversified list")
		if len(diversified) > limit {
			return diversified[:limit]
		}
		return diversified
	}
	if result.FailedOpen {
		logger.Ctx(ctx).Info().Msg("Appropriateness filter failed open")
	}
	for _, rejection := range result.Rejected {
		logger.Ctx(ctx).Debug().
			Str("job_id", rejection.Match.JobID).
			Str("reason", rejection.Reason).
			Msg("Job filtered out")
	}
	return result.Kept
}

func averageScore(matches []*domain.MatchResult) float64 {
	if len(matches) == 0 {
		return 0
	}
	var sum float64
	for _, m := range matches {
		sum += m.Score
	}
	avg := sum / float64(len(matches))
	// Keep the same two-decimal rounding as individual scores.
	return float64(int(avg*100+0.5)) / 100
}
