package handler

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"job-match-go/internal/config"
	"job-match-go/internal/domain"
	"job-match-go/internal/logger"
	"job-match-go/internal/matching"
	"job-match-go/internal/storage"
)

// MatchResponse is the wire shape of a match run.
type MatchResponse struct {
	ResumeID string                `json:"resume_id"`
	Matches  []*domain.MatchResult `json:"matches"`
	Stats    matchStatsPayload     `json:"stats"`
	Cached   bool                  `json:"cached"`
}

// matchStatsPayload renders processing time in milliseconds instead of
// Go duration encoding.
type matchStatsPayload struct {
	TotalJobs        int     `json:"total_jobs"`
	MatchesFound     int     `json:"matches_found"`
	AvgMatchScore    float64 `json:"avg_match_score"`
	ProcessingTimeMS int64   `json:"processing_time_ms"`
}

// MatchHandler serves the matching endpoints.
type MatchHandler struct {
	cfg          *config.Config
	storage      *storage.Storage
	orchestrator *matching.Orchestrator
	publisher    *matching.EventPublisher
}

// NewMatchHandler creates the handler. The publisher may be nil; the async
// endpoint then reports the broker as unavailable.
func NewMatchHandler(cfg *config.Config, storage *storage.Storage, orchestrator *matching.Orchestrator, publisher *matching.EventPublisher) *MatchHandler {
	return &MatchHandler{
		cfg:          cfg,
		storage:      storage,
		orchestrator: orchestrator,
		publisher:    publisher,
	}
}

func (h *MatchHandler) resolveLimit(c *app.RequestContext) int {
	limitStr := c.Query("limit")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = h.cfg.Matching.DefaultLimit
	}
	if limit > h.cfg.Matching.MaxLimit {
		limit = h.cfg.Matching.MaxLimit
	}
	return limit
}

// HandleFindMatches runs the match pipeline synchronously.
// POST /api/v1/resumes/:resume_id/matches
func (h *MatchHandler) HandleFindMatches(ctx context.Context, c *app.RequestContext) {
	resumeID := c.Param("resume_id")
	if resumeID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "resume_id is required"})
		return
	}
	limit := h.resolveLimit(c)

	// Cache read-through keyed by (resume, limit).
	if h.storage.Redis != nil {
		if cached, err := h.storage.Redis.GetCachedMatchResponse(ctx, resumeID, limit); err == nil {
			var resp MatchResponse
			if json.Unmarshal([]byte(cached), &resp) == nil {
				resp.Cached = true
				c.JSON(consts.StatusOK, resp)
				return
			}
		}
	}

	// A per-résumé lock keeps concurrent requests from running the same
	// pipeline twice; losers get a retry hint.
	if h.storage.Redis != nil {
		lockValue, err := h.storage.Redis.AcquireMatchLock(ctx, resumeID, 2*time.Minute)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("resume_id", resumeID).Msg("Match lock unavailable, continuing unlocked")
		} else if lockValue == "" {
			c.JSON(consts.StatusAccepted, map[string]interface{}{
				"message":     "matching already in progress for this resume",
				"status":      "processing",
				"resume_id":   resumeID,
				"retry_after": 2,
			})
			return
		} else {
			defer func() {
				released, relErr := h.storage.Redis.ReleaseMatchLock(ctx, resumeID, lockValue)
				if relErr != nil || !released {
					logger.Ctx(ctx).Warn().
						Err(relErr).
						Str("resume_id", resumeID).
						Msg("Failed to release match lock")
				}
			}()
		}
	}

	matches, stats, err := h.orchestrator.FindMatches(ctx, resumeID, limit)
	if err != nil {
		status := consts.StatusInternalServerError
		if errors.Is(err, storage.ErrNotFound) {
			status = consts.StatusNotFound
		} else if errors.Is(err, domain.ErrInvalidInput) {
			status = consts.StatusBadRequest
		}
		c.JSON(status, map[string]string{"error": err.Error()})
		return
	}

	resp := MatchResponse{
		ResumeID: resumeID,
		Matches:  matches,
		Stats: matchStatsPayload{
			TotalJobs:        stats.TotalJobs,
			MatchesFound:     stats.MatchesFound,
			AvgMatchScore:    stats.AvgMatchScore,
			ProcessingTimeMS: stats.ProcessingTime.Milliseconds(),
		},
	}

	if h.storage.Redis != nil {
		if payload, marshalErr := json.Marshal(resp); marshalErr == nil {
			if cacheErr := h.storage.Redis.CacheMatchResponse(ctx, resumeID, limit, string(payload)); cacheErr != nil {
				logger.Ctx(ctx).Warn().Err(cacheErr).Str("resume_id", resumeID).Msg("Failed to cache match response")
			}
		}
	}

	c.JSON(consts.StatusOK, resp)
}

// HandleFindMatchesAsync enqueues a background match run.
// POST /api/v1/resumes/:resume_id/matches/async
func (h *MatchHandler) HandleFindMatchesAsync(ctx context.Context, c *app.RequestContext) {
	resumeID := c.Param("resume_id")
	if resumeID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "resume_id is required"})
		return
	}
	if h.publisher == nil {
		c.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "message broker is not configured"})
		return
	}
	limit := h.resolveLimit(c)

	if err := h.publisher.PublishMatchNeeded(ctx, resumeID, limit); err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	c.JSON(consts.StatusAccepted, map[string]interface{}{
		"message":   "match run enqueued",
		"resume_id": resumeID,
		"limit":     limit,
	})
}
