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
	"job-match-go/internal/domain"
	"job-match-go/internal/embedding"
	"job-match-go/internal/logger"
	"job-match-go/internal/matching"
	"job-match-go/internal/storage"
)

// CreateResumeRequest is the résumé ingestion payload. The profile is the
// already-parsed structure; RawText is the full résumé text, stored in object
// storage rather than the database.
type CreateResumeRequest struct {
	ID      string               `json:"id,omitempty"`
	Profile domain.ResumeProfile `json:"profile"`
	RawText string               `json:"raw_text,omitempty"`
}

// ResumeHandler serves the résumé endpoints.
type ResumeHandler struct {
	cfg       *config.Config
	storage   *storage.Storage
	embedder  *embedding.OpenAIEmbedder
	publisher *matching.EventPublisher
}

// NewResumeHandler creates the handler. Embedder and publisher may be nil;
// ingestion then skips vectorization and the auto-match enqueue.
func NewResumeHandler(cfg *config.Config, storage *storage.Storage, embedder *embedding.OpenAIEmbedder, publisher *matching.EventPublisher) *ResumeHandler {
	return &ResumeHandler{
		cfg:       cfg,
		storage:   storage,
		embedder:  embedder,
		publisher: publisher,
	}
}

// HandleCreateResume ingests a résumé.
// POST /api/v1/resumes
func (h *ResumeHandler) HandleCreateResume(ctx context.Context, c *app.RequestContext) {
	var req CreateResumeRequest
	if err := json.Unmarshal(c.Request.Body(), &req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	resumeID := req.ID
	if resumeID == "" {
		resumeID = uuid.NewString()
	}

	resume := &domain.Resume{
		ID:      resumeID,
		Profile: req.Profile,
	}

	if h.storage.MySQL == nil {
		c.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "relational store is not configured"})
		return
	}

	// Raw text goes to object storage; only the key is persisted.
	if req.RawText != "" && h.storage.MinIO != nil {
		key, err := h.storage.MinIO.UploadResumeText(ctx, resumeID, req.RawText)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("resume_id", resumeID).Msg("Failed to store raw resume text")
		} else {
			resume.RawTextKey = key
		}
	}

	// Vectorize the profile when a provider is available. Ingestion still
	// succeeds without it; matching then runs on skills and experience only.
	if h.embedder != nil {
		vector, err := h.embedder.EmbedStrings(ctx, []string{embedding.ResumeText(&req.Profile)})
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("resume_id", resumeID).Msg("Failed to embed resume profile")
		} else if len(vector) == 1 {
			resume.Embedding = vector[0]
		}
	}

	if err := domain.ValidateResume(resume); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if err := h.storage.MySQL.CreateResume(ctx, resume); err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	// auto_match=true enqueues a background match run right away.
	autoMatch := string(c.Query("auto_match")) == "true"
	if autoMatch && h.publisher != nil {
		if err := h.publisher.PublishMatchNeeded(ctx, resumeID, h.cfg.Matching.DefaultLimit); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("resume_id", resumeID).Msg("Failed to enqueue auto match")
		}
	}

	c.JSON(consts.StatusCreated, map[string]interface{}{
		"message":       "resume created",
		"resume_id":     resumeID,
		"has_embedding": len(resume.Embedding) > 0,
	})
}

// HandleGetResume returns one résumé with its profile.
// GET /api/v1/resumes/:resume_id
func (h *ResumeHandler) HandleGetResume(ctx context.Context, c *app.RequestContext) {
	resumeID := c.Param("resume_id")
	if resumeID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "resume_id is required"})
		return
	}
	if h.storage.MySQL == nil {
		c.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "relational store is not configured"})
		return
	}

	resume, err := h.storage.MySQL.GetResumeByID(ctx, resumeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(consts.StatusNotFound, map[string]string{"error": "resume not found"})
			return
		}
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	resume.Embedding = nil
	c.JSON(consts.StatusOK, resume)
}

// resumeTextURLExpiry bounds how long a presigned download link stays valid.
const resumeTextURLExpiry = 15 * time.Minute

// HandleGetResumeText streams the stored raw text back. With presigned=true
// the response carries a time-limited download URL instead of the text, so
// large documents don't flow through the API process.
// GET /api/v1/resumes/:resume_id/text
func (h *ResumeHandler) HandleGetResumeText(ctx context.Context, c *app.RequestContext) {
	resumeID := c.Param("resume_id")
	if resumeID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "resume_id is required"})
		return
	}
	if h.storage.MySQL == nil || h.storage.MinIO == nil {
		c.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "storage is not configured"})
		return
	}

	resume, err := h.storage.MySQL.GetResumeByID(ctx, resumeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(consts.StatusNotFound, map[string]string{"error": "resume not found"})
			return
		}
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if resume.RawTextKey == "" {
		c.JSON(consts.StatusNotFound, map[string]string{"error": "no raw text stored for this resume"})
		return
	}

	if string(c.Query("presigned")) == "true" {
		url, err := h.storage.MinIO.GetPresignedURL(ctx, resume.RawTextKey, resumeTextURLExpiry)
		if err != nil {
			c.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		c.JSON(consts.StatusOK, map[string]interface{}{
			"url":                url,
			"expires_in_seconds": int(resumeTextURLExpiry.Seconds()),
		})
		return
	}

	text, err := h.storage.MinIO.GetResumeText(ctx, resume.RawTextKey)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	c.Data(consts.StatusOK, "text/plain; charset=utf-8", []byte(text))
}

// HandleDeleteResume removes a résumé, its match history, its raw text
// object and any cached match responses. Object and cache cleanup are
// best-effort; the relational delete is the source of truth.
// DELETE /api/v1/resumes/:resume_id
func (h *ResumeHandler) HandleDeleteResume(ctx context.Context, c *app.RequestContext) {
	resumeID := c.Param("resume_id")
	if resumeID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "resume_id is required"})
		return
	}
	if h.storage.MySQL == nil {
		c.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "relational store is not configured"})
		return
	}

	resume, err := h.storage.MySQL.GetResumeByID(ctx, resumeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(consts.StatusNotFound, map[string]string{"error": "resume not found"})
			return
		}
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if err := h.storage.MySQL.DeleteResume(ctx, resumeID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(consts.StatusNotFound, map[string]string{"error": "resume not found"})
			return
		}
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if resume.RawTextKey != "" && h.storage.MinIO != nil {
		if err := h.storage.MinIO.DeleteObject(ctx, resume.RawTextKey); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("resume_id", resumeID).Msg("Failed to delete raw resume text")
		}
	}
	if h.storage.Redis != nil {
		if err := h.storage.Redis.InvalidateMatchResponses(ctx, resumeID); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("resume_id", resumeID).Msg("Failed to invalidate cached match responses")
		}
	}

	c.JSON(consts.StatusOK, map[string]string{
		"message":   "resume deleted",
		"resume_id": resumeID,
	})
}
