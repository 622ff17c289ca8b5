package scoring

import (
	"fmt"
	"math"

	"job-match-go/internal/domain"
)

// Default signal weights. Vectors carry the most signal when present; when a
// résumé or job has no embedding the weight shifts onto skills.
const (
	DefaultVectorWeight     = 0.5
	DefaultSkillWeight      = 0.3
	DefaultExperienceWeight = 0.2

	FallbackSkillWeight      = 0.7
	FallbackExperienceWeight = 0.3
)

// Weights holds the signal weights of the composite scorer. Two sets exist:
// one used when a vector score is available, one used without vectors. Each
// set should sum to 1.0.
type Weights struct {
	Vector     float64
	Skill      float64
	Experience float64

	FallbackSkill      float64
	FallbackExperience float64
}

// DefaultWeights returns the standard production weighting.
func DefaultWeights() Weights {
	return Weights{
		Vector:             DefaultVectorWeight,
		Skill:              DefaultSkillWeight,
		Experience:         DefaultExperienceWeight,
		FallbackSkill:      FallbackSkillWeight,
		FallbackExperience: FallbackExperienceWeight,
	}
}

// CompositeScorer combines vector similarity, skill overlap and experience
// alignment into a single match score with a confidence tier. It is a pure
// computation with no I/O; the weights are fixed at construction.
type CompositeScorer struct {
	weights Weights
}

// CompositeScorerOption customizes a CompositeScorer.
type CompositeScorerOption func(*CompositeScorer)

// WithWeights overrides the default signal weights.
func WithWeights(w Weights) CompositeScorerOption {
	return func(s *CompositeScorer) {
		s.weights = w
	}
}

// NewCompositeScorer creates a scorer with the default weights unless
// overridden by options.
func NewCompositeScorer(opts ...CompositeScorerOption) *CompositeScorer {
	s := &CompositeScorer{weights: DefaultWeights()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score evaluates one job against a résumé profile. A vector score of 0 is
// treated as "unavailable" and switches the weighting to the skill-heavy
// fallback set. The final score is clamped to [0,1] and rounded to two
// decimals so that downstream sort ties are stable.
func (s *CompositeScorer) Score(job *domain.Job, resume *domain.Resume) (*domain.MatchResult, error) {
	if err := domain.ValidateJob(job); err != nil {
		return nil, err
	}
	if err := domain.ValidateResume(resume); err != nil {
		return nil, err
	}

	var vectorScore float64
	if len(job.Embedding) > 0 && len(resume.Embedding) > 0 {
		v, err := CosineSimilarity(resume.Embedding, job.Embedding)
		if err != nil {
			return nil, err
		}
		vectorScore = v
	}

	skillScore, matchedSkills := SkillOverlap(resume.Profile.Skills, job.RequiredSkills)
	expScore := ExperienceAlignment(job.ExperienceLevel, resume.Profile.ExperienceLevel)

	usedVectors := vectorScore > 0
	var final float64
	if usedVectors {
		final = s.weights.Vector*vectorScore + s.weights.Skill*skillScore + s.weights.Experience*expScore
	} else {
		final = s.weights.FallbackSkill*skillScore + s.weights.FallbackExperience*expScore
	}

	final = clamp01(final)
	final = round2(final)

	result := &domain.MatchResult{
		JobID:         job.ID,
		Title:         job.Title,
		Company:       job.Company,
		Score:         final,
		VectorScore:   round2(vectorScore),
		SkillScore:    round2(skillScore),
		ExpScore:      round2(expScore),
		MatchedSkills: matchedSkills,
		Confidence:    confidenceFor(final, skillScore, len(matchedSkills), usedVectors),
		UsedVectors:   usedVectors,
		Location:      job.Location,
		Industry:      job.Industry,
		ExperienceGap: job.ExperienceLevel.Ordinal() - resume.Profile.ExperienceLevel.Ordinal(),
	}
	result.Explanation = Explain(result)
	return result, nil
}

// confidenceFor applies the tier ladder. The ladder differs between the
// vector and non-vector paths: without vectors the skill overlap itself is
// the gate, with a higher matched-skill bar.
func confidenceFor(final, skillOverlap float64, matchedSkills int, usedVectors bool) domain.Confidence {
	if usedVectors {
		switch {
		case final >= 0.75 && matchedSkills >= 2:
			return domain.ConfidenceHigh
		case final >= 0.55 && matchedSkills >= 1:
			return domain.ConfidenceMedium
		default:
			return domain.ConfidenceLow
		}
	}
	switch {
	case skillOverlap >= 0.6 && matchedSkills >= 3:
		return domain.ConfidenceHigh
	case skillOverlap >= 0.3 && matchedSkills >= 2:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// Explain renders a short human-readable explanation for a scored match.
func Explain(r *domain.MatchResult) string {
	base := fmt.Sprintf("score %.2f (%s confidence)", r.Score, r.Confidence)
	if len(r.MatchedSkills) > 0 {
		return fmt.Sprintf("%s, %d overlapping skills", base, len(r.MatchedSkills))
	}
	return base + ", no overlapping skills"
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
