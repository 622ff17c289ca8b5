package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Job is one posting in the corpus. Immutable after creation except for the
// embedding, which is attached once generated.
type Job struct {
	JobID           string         `gorm:"type:char(36);primaryKey"`
	Title           string         `gorm:"type:varchar(255);not null"`
	Company         string         `gorm:"type:varchar(255);not null;index:idx_jobs_company"`
	Description     string         `gorm:"type:text"`
	RequiredSkills  datatypes.JSON `gorm:"type:json"`
	ExperienceLevel string         `gorm:"type:varchar(20);index:idx_jobs_experience_level"`
	Location        string         `gorm:"type:varchar(255)"`
	Industry        string         `gorm:"type:varchar(255);index:idx_jobs_industry"`
	WorkType        string         `gorm:"type:varchar(20)"`
	SalaryMin       *int           `gorm:"type:int"`
	SalaryMax       *int           `gorm:"type:int"`
	Embedding       datatypes.JSON `gorm:"type:json"`
	EmbeddedAt      *time.Time     `gorm:"type:datetime(6)"`
	CreatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Job) TableName() string {
	return "jobs"
}

// Resume is a candidate résumé snapshot. The raw text lives in object
// storage under RawTextKey; only the parsed profile is stored inline.
type Resume struct {
	ResumeID   string         `gorm:"type:char(36);primaryKey"`
	Profile    datatypes.JSON `gorm:"type:json;not null"`
	Embedding  datatypes.JSON `gorm:"type:json"`
	RawTextKey string         `gorm:"type:varchar(1024)"`
	CreatedAt  time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt  time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Resume) TableName() string {
	return "resumes"
}

// JobMatch is one persisted match record. The table is append-only match
// history: re-running matching for the same résumé adds new rows, it never
// updates old ones. The (resume_id, job_id) index is deliberately not
// unique.
type JobMatch struct {
	MatchID       uint64         `gorm:"primaryKey;autoIncrement"`
	ResumeID      string         `gorm:"type:char(36);not null;index:idx_jm_resume_job,priority:1"`
	JobID         string         `gorm:"type:char(36);not null;index:idx_jm_resume_job,priority:2"`
	Score         float64        `gorm:"type:float;not null;index:idx_jm_score"`
	VectorScore   float64        `gorm:"type:float"`
	SkillScore    float64        `gorm:"type:float"`
	ExpScore      float64        `gorm:"type:float"`
	MatchedSkills datatypes.JSON `gorm:"type:json"`
	Confidence    string         `gorm:"type:varchar(10);not null"`
	Explanation   string         `gorm:"type:text"`
	FilterReason  string         `gorm:"type:text"`
	UsedVectors   bool           `gorm:"default:false"`
	CreatedAt     time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_jm_created_at"`

	Resume *Resume `gorm:"foreignKey:ResumeID;references:ResumeID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Job    *Job    `gorm:"foreignKey:JobID;references:JobID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (JobMatch) TableName() string {
	return "job_matches"
}

// StringsToJSON converts a string slice to a JSON column value.
func StringsToJSON(values []string) (datatypes.JSON, error) {
	bytes, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}

// JSONToStrings converts a JSON column value back to a string slice.
func JSONToStrings(data datatypes.JSON) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// FloatsToJSON converts an embedding vector to a JSON column value.
func FloatsToJSON(values []float64) (datatypes.JSON, error) {
	if values == nil {
		return nil, nil
	}
	bytes, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}

// JSONToFloats converts a JSON column value back to an embedding vector.
func JSONToFloats(data datatypes.JSON) ([]float64, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var values []float64
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}
