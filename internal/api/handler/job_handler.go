package handler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"

	"job-match-go/internal/config"
	"job-match-go/internal/constants"
	"job-match-go/internal/domain"
	"job-match-go/internal/embedding"
	"job-match-go/internal/logger"
	"job-match-go/internal/storage"
)

// CreateJobRequest is the ingestion payload for one posting.
type CreateJobRequest struct {
	ID              string   `json:"id,omitempty"`
	Title           string   `json:"title"`
	Company         string   `json:"company"`
	Description     string   `json:"description,omitempty"`
	RequiredSkills  []string `json:"required_skills,omitempty"`
	ExperienceLevel string   `json:"experience_level,omitempty"`
	Location        string   `json:"location,omitempty"`
	Industry        string   `json:"industry,omitempty"`
	WorkType        string   `json:"work_type,omitempty"`
	SalaryMin       *int     `json:"salary_min,omitempty"`
	SalaryMax       *int     `json:"salary_max,omitempty"`
}

// CorpusStatsResponse reports corpus and index health.
type CorpusStatsResponse struct {
	TotalJobs      int64 `json:"total_jobs"`
	IndexedVectors int64 `json:"indexed_vectors"`
	Dimension      int   `json:"dimension,omitempty"`
}

// JobHandler serves the job corpus endpoints.
type JobHandler struct {
	cfg            *config.Config
	storage        *storage.Storage
	corpusEmbedder *embedding.CorpusEmbedder
}

// NewJobHandler creates the handler. The corpus embedder may be nil when no
// embedding provider is configured; the admin embed endpoint then refuses.
func NewJobHandler(cfg *config.Config, storage *storage.Storage, corpusEmbedder *embedding.CorpusEmbedder) *JobHandler {
	return &JobHandler{
		cfg:            cfg,
		storage:        storage,
		corpusEmbedder: corpusEmbedder,
	}
}

// HandleCreateJob ingests one posting.
// POST /api/v1/jobs
func (h *JobHandler) HandleCreateJob(ctx context.Context, c *app.RequestContext) {
	var req CreateJobRequest
	if err := json.Unmarshal(c.Request.Body(), &req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	jobID := req.ID
	if jobID == "" {
		jobID = uuid.NewString()
	}

	job := &domain.Job{
		ID:              jobID,
		Title:           req.Title,
		Company:         req.Company,
		Description:     req.Description,
		RequiredSkills:  req.RequiredSkills,
		ExperienceLevel: domain.ParseExperienceLevel(req.ExperienceLevel),
		Location:        req.Location,
		Industry:        req.Industry,
		WorkType:        domain.WorkType(req.WorkType),
		SalaryMin:       req.SalaryMin,
		SalaryMax:       req.SalaryMax,
		CreatedAt:       time.Now(),
	}
	if err := domain.ValidateJob(job); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if h.storage.MySQL == nil {
		c.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "relational store is not configured"})
		return
	}
	if err := h.storage.MySQL.CreateJob(ctx, job); err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	// A new posting changes the stats and can change any résumé's ranking,
	// so both cache families are dropped.
	if h.storage.Redis != nil {
		if err := h.storage.Redis.Client.Del(ctx, constants.KeyCorpusStats).Err(); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("Failed to invalidate corpus stats cache")
		}
		if err := h.storage.Redis.InvalidateAllMatchResponses(ctx); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("Failed to invalidate cached match responses")
		}
	}

	c.JSON(consts.StatusCreated, map[string]interface{}{
		"message": "job created",
		"job_id":  job.ID,
	})
}

// HandleGetJob returns one posting.
// GET /api/v1/jobs/:job_id
func (h *JobHandler) HandleGetJob(ctx context.Context, c *app.RequestContext) {
	jobID := c.Param("job_id")
	if jobID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "job_id is required"})
		return
	}
	if h.storage.MySQL == nil {
		c.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "relational store is not configured"})
		return
	}

	job, err := h.storage.MySQL.GetJobByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(consts.StatusNotFound, map[string]string{"error": "job not found"})
			return
		}
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	// The embedding is an internal artifact, not part of the read model.
	job.Embedding = nil
	c.JSON(consts.StatusOK, job)
}

// HandleCorpusStats reports corpus size and vector index counts.
// GET /api/v1/jobs/stats
func (h *JobHandler) HandleCorpusStats(ctx context.Context, c *app.RequestContext) {
	if h.storage.Redis != nil {
		if cached, err := h.storage.Redis.Get(ctx, constants.KeyCorpusStats); err == nil {
			var resp CorpusStatsResponse
			if json.Unmarshal([]byte(cached), &resp) == nil {
				c.JSON(consts.StatusOK, resp)
				return
			}
		}
	}

	if h.storage.MySQL == nil {
		c.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "relational store is not configured"})
		return
	}

	totalJobs, err := h.storage.MySQL.CountJobs(ctx)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	resp := CorpusStatsResponse{TotalJobs: totalJobs}
	if h.storage.Qdrant != nil {
		if indexStats, statsErr := h.storage.Qdrant.Stats(ctx); statsErr == nil {
			resp.IndexedVectors = indexStats.Count
			resp.Dimension = indexStats.Dimension
		} else {
			logger.Ctx(ctx).Warn().Err(statsErr).Msg("Failed to read vector index stats")
		}
	}

	if h.storage.Redis != nil {
		if payload, marshalErr := json.Marshal(resp); marshalErr == nil {
			if err := h.storage.Redis.Set(ctx, constants.KeyCorpusStats, string(payload), 5*time.Minute); err != nil {
				logger.Ctx(ctx).Warn().Err(err).Msg("Failed to cache corpus stats")
			}
		}
	}

	c.JSON(consts.StatusOK, resp)
}

// HandleEmbedCorpus embeds every job still missing a vector.
// POST /api/v1/admin/jobs/embed
func (h *JobHandler) HandleEmbedCorpus(ctx context.Context, c *app.RequestContext) {
	if h.corpusEmbedder == nil {
		c.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "embedding provider is not configured"})
		return
	}

	stats, err := h.corpusEmbedder.EmbedPending(ctx)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	// Freshly embedded jobs move cached rankings onto the vector path.
	if stats.Embedded > 0 && h.storage.Redis != nil {
		if err := h.storage.Redis.InvalidateAllMatchResponses(ctx); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("Failed to invalidate cached match responses")
		}
	}

	c.JSON(consts.StatusOK, map[string]interface{}{
		"processed":  stats.Processed,
		"embedded":   stats.Embedded,
		"failed":     stats.Failed,
		"elapsed_ms": stats.Elapsed.Milliseconds(),
	})
}
