package router

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/cors"
	"github.com/hertz-contrib/keyauth"

	"job-match-go/internal/api/handler"
	"job-match-go/internal/config"
)

// Handlers bundles the route handlers.
type Handlers struct {
	Resume *handler.ResumeHandler
	Job    *handler.JobHandler
	Match  *handler.MatchHandler
}

// RegisterRoutes registers the API surface. Cross-origin access is limited
// to the configured origins; with none configured no CORS headers are sent.
// Admin routes require the configured API key; an empty key leaves them open
// for local development.
func RegisterRoutes(h *server.Hertz, handlers *Handlers, cfg *config.Config) {
	if len(cfg.Server.CORSOrigins) > 0 {
		h.Use(cors.New(cors.Config{
			AllowOrigins: cfg.Server.CORSOrigins,
			AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders: []string{"Content-Type", "X-API-Key"},
			MaxAge:       12 * time.Hour,
		}))
	}

	api := h.Group("/api/v1")

	api.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})

	api.POST("/resumes", handlers.Resume.HandleCreateResume)
	api.GET("/resumes/:resume_id", handlers.Resume.HandleGetResume)
	api.DELETE("/resumes/:resume_id", handlers.Resume.HandleDeleteResume)
	api.GET("/resumes/:resume_id/text", handlers.Resume.HandleGetResumeText)
	api.POST("/resumes/:resume_id/matches", handlers.Match.HandleFindMatches)
	api.POST("/resumes/:resume_id/matches/async", handlers.Match.HandleFindMatchesAsync)

	api.POST("/jobs", handlers.Job.HandleCreateJob)
	api.GET("/jobs/stats", handlers.Job.HandleCorpusStats)
	api.GET("/jobs/:job_id", handlers.Job.HandleGetJob)

	admin := api.Group("/admin")
	if cfg.Server.AdminAPIKey != "" {
		adminAPIKey := cfg.Server.AdminAPIKey
		admin.Use(keyauth.New(
			keyauth.WithKeyLookUp("header:X-API-Key", ""),
			keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, key string) (bool, error) {
				return key == adminAPIKey, nil
			}),
		))
	}
	admin.POST("/jobs/embed", handlers.Job.HandleEmbedCorpus)
}
