package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-match-go/internal/domain"
	"job-match-go/internal/storage/models"
)

func TestJobModelRoundTrip(t *testing.T) {
	min, max := 90000, 130000
	job := &domain.Job{
		ID:              "job-1",
		Title:           "Platform Engineer",
		Company:         "Initech",
		Description:     "Build the platform.",
		RequiredSkills:  []string{"go", "kubernetes"},
		ExperienceLevel: domain.ExperienceSenior,
		Location:        "Berlin",
		Industry:        "Tech",
		WorkType:        domain.WorkTypeHybrid,
		SalaryMin:       &min,
		SalaryMax:       &max,
		Embedding:       []float64{0.1, 0.2},
	}

	record, err := jobToModel(job)
	require.NoError(t, err)
	require.NotNil(t, record.SalaryMin)
	require.NotNil(t, record.SalaryMax)
	assert.Equal(t, 90000, *record.SalaryMin)
	assert.Equal(t, 130000, *record.SalaryMax)
	assert.NotNil(t, record.EmbeddedAt)

	got, err := jobFromModel(record)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, job.RequiredSkills, got.RequiredSkills)
	assert.Equal(t, job.ExperienceLevel, got.ExperienceLevel)
	assert.Equal(t, job.SalaryMin, got.SalaryMin)
	assert.Equal(t, job.SalaryMax, got.SalaryMax)
	assert.Equal(t, job.Embedding, got.Embedding)
}

func TestJobModelRoundTripWithoutSalary(t *testing.T) {
	job := &domain.Job{
		ID:      "job-2",
		Title:   "Engineer",
		Company: "Acme",
	}

	record, err := jobToModel(job)
	require.NoError(t, err)
	assert.Nil(t, record.SalaryMin)
	assert.Nil(t, record.SalaryMax)
	assert.Nil(t, record.EmbeddedAt)

	got, err := jobFromModel(record)
	require.NoError(t, err)
	assert.Nil(t, got.SalaryMin)
	assert.Nil(t, got.SalaryMax)
}

func TestJobMatchToModel(t *testing.T) {
	match := &domain.MatchResult{
		JobID:         "job-1",
		Title:         "Platform Engineer",
		Company:       "Initech",
		Score:         0.82,
		VectorScore:   0.9,
		SkillScore:    0.67,
		ExpScore:      1.0,
		MatchedSkills: []string{"go", "kubernetes"},
		Confidence:    domain.ConfidenceHigh,
		Explanation:   "score 0.82 (HIGH confidence), 2 overlapping skills",
		UsedVectors:   true,
	}

	record, err := jobMatchToModel("resume-1", match)
	require.NoError(t, err)
	assert.Equal(t, "resume-1", record.ResumeID)
	assert.Equal(t, "job-1", record.JobID)
	assert.Equal(t, 0.82, record.Score)
	assert.Equal(t, "HIGH", record.Confidence)
	assert.Equal(t, match.Explanation, record.Explanation)
	assert.True(t, record.UsedVectors)

	skills, err := models.JSONToStrings(record.MatchedSkills)
	require.NoError(t, err)
	assert.Equal(t, match.MatchedSkills, skills)
}
