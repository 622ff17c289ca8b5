package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance. validator.New is expensive, so
// boundary checks reuse this one.
var validate = validator.New(validator.WithRequiredStructEnabled())

// ExperienceLevel is the seniority band of a job or candidate. Levels form a
// strict order used by the alignment scorer.
type ExperienceLevel string

const (
	ExperienceEntry      ExperienceLevel = "ENTRY"
	ExperienceMid        ExperienceLevel = "MID"
	ExperienceSenior     ExperienceLevel = "SENIOR"
	ExperienceLeadership ExperienceLevel = "LEADERSHIP"
)

// experienceOrdinals maps each level to its rank. Unknown values rank as
// Entry so that malformed upstream data degrades instead of erroring.
var experienceOrdinals = map[ExperienceLevel]int{
	ExperienceEntry:      0,
	ExperienceMid:        1,
	ExperienceSenior:     2,
	ExperienceLeadership: 3,
}

// Ordinal returns the rank of the level. Unrecognized levels return 0.
func (e ExperienceLevel) Ordinal() int {
	return experienceOrdinals[ExperienceLevel(strings.ToUpper(string(e)))]
}

// ParseExperienceLevel normalizes a free-form level string. Unknown input
// maps to ExperienceEntry.
func ParseExperienceLevel(s string) ExperienceLevel {
	lvl := ExperienceLevel(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := experienceOrdinals[lvl]; ok {
		return lvl
	}
	return ExperienceEntry
}

// Confidence is the qualitative trust band attached to a match score.
// It is an ordered enum rather than a free string: the reasoning filter
// shifts it by single steps and the shift must clamp at the bounds.
type Confidence int

const (
	ConfidenceLow Confidence = iota
	ConfidenceMedium
	ConfidenceHigh
)

var confidenceNames = [...]string{"LOW", "MEDIUM", "HIGH"}

func (c Confidence) String() string {
	if c < ConfidenceLow || c > ConfidenceHigh {
		return "LOW"
	}
	return confidenceNames[c]
}

// Bump shifts the confidence by delta steps, clamped to [Low, High].
func (c Confidence) Bump(delta int) Confidence {
	v := int(c) + delta
	if v < int(ConfidenceLow) {
		return ConfidenceLow
	}
	if v > int(ConfidenceHigh) {
		return ConfidenceHigh
	}
	return Confidence(v)
}

// ParseConfidence maps a label back to the enum. Unknown labels map to Low.
func ParseConfidence(s string) Confidence {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HIGH":
		return ConfidenceHigh
	case "MEDIUM":
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// MarshalJSON encodes the confidence as its label.
func (c Confidence) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts a label and tolerates unknown values as Low.
func (c *Confidence) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = ParseConfidence(s)
	return nil
}

// WorkType is the work arrangement of a job posting.
type WorkType string

const (
	WorkTypeOnsite WorkType = "ONSITE"
	WorkTypeRemote WorkType = "REMOTE"
	WorkTypeHybrid WorkType = "HYBRID"
)

// Job is one posting in the corpus.
type Job struct {
	ID              string          `json:"id" validate:"required"`
	Title           string          `json:"title" validate:"required"`
	Company         string          `json:"company" validate:"required"`
	Description     string          `json:"description"`
	RequiredSkills  []string        `json:"required_skills"`
	ExperienceLevel ExperienceLevel `json:"experience_level"`
	Location        string          `json:"location"`
	Industry        string          `json:"industry"`
	WorkType        WorkType        `json:"work_type"`
	SalaryMin       *int            `json:"salary_min,omitempty"`
	SalaryMax       *int            `json:"salary_max,omitempty"`
	Embedding       []float64       `json:"embedding,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ResumeProfile is the structured extraction of a résumé.
type ResumeProfile struct {
	Skills          []string        `json:"skills"`
	YearsExperience float64         `json:"years_experience"`
	ExperienceLevel ExperienceLevel `json:"experience_level"`
	Titles          []string        `json:"titles"`
	Education       []string        `json:"education"`
	Summary         string          `json:"summary"`
}

// Resume is a candidate résumé together with its parsed profile. RawTextKey
// points at the full text object; the text itself is not carried inline.
type Resume struct {
	ID         string        `json:"id" validate:"required"`
	Profile    ResumeProfile `json:"profile"`
	Embedding  []float64     `json:"embedding,omitempty"`
	RawTextKey string        `json:"raw_text_key,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// MatchResult is one scored job for a résumé. Scores are already rounded to
// two decimals when the result leaves the composite scorer.
type MatchResult struct {
	JobID         string     `json:"job_id"`
	Title         string     `json:"title"`
	Company       string     `json:"company"`
	Score         float64    `json:"score"`
	VectorScore   float64    `json:"vector_score"`
	SkillScore    float64    `json:"skill_score"`
	ExpScore      float64    `json:"experience_score"`
	MatchedSkills []string   `json:"matched_skills"`
	Confidence    Confidence `json:"confidence"`
	Explanation   string     `json:"explanation,omitempty"`
	FilterReason  string     `json:"filter_reason,omitempty"`
	UsedVectors   bool       `json:"used_vectors"`
	Location      string     `json:"location,omitempty"`
	Industry      string     `json:"industry,omitempty"`
	ExperienceGap int        `json:"experience_gap"`
}

// MatchStats summarizes one matching run.
type MatchStats struct {
	TotalJobs      int           `json:"total_jobs"`
	MatchesFound   int           `json:"matches_found"`
	AvgMatchScore  float64       `json:"avg_match_score"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// ValidateJob checks a job at the ingestion boundary.
func ValidateJob(job *Job) error {
	if job == nil {
		return fmt.Errorf("%w: job is nil", ErrInvalidInput)
	}
	if err := validate.Struct(job); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if job.SalaryMin != nil && job.SalaryMax != nil && *job.SalaryMin > *job.SalaryMax {
		return fmt.Errorf("%w: salary_min exceeds salary_max", ErrInvalidInput)
	}
	return nil
}

// ValidateResume checks a résumé before matching. A résumé with neither
// skills nor an embedding cannot be scored at all.
func ValidateResume(resume *Resume) error {
	if resume == nil {
		return fmt.Errorf("%w: resume is nil", ErrInvalidInput)
	}
	if err := validate.Struct(resume); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(resume.Profile.Skills) == 0 && len(resume.Embedding) == 0 {
		return fmt.Errorf("%w: resume %s has no skills and no embedding", ErrInvalidInput, resume.ID)
	}
	return nil
}
