package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/hertz/pkg/app/server"
	hlog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"

	"job-match-go/internal/api/handler"
	"job-match-go/internal/api/router"
	"job-match-go/internal/config"
	"job-match-go/internal/embedding"
	"job-match-go/internal/filter"
	"job-match-go/internal/llm"
	"job-match-go/internal/logger"
	"job-match-go/internal/matching"
	"job-match-go/internal/ranking"
	"job-match-go/internal/scoring"
	"job-match-go/internal/storage"
	"job-match-go/internal/tracing"
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "config.yaml", "Path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.Init(cfg.Logger)
	hlog.SetLogger(hertzadapter.From(logger.Logger))
	logger.Info().Msg("Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize tracing")
	}
	defer func() {
		flushCtx, cancelFlush := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelFlush()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("Failed to flush traces")
		}
	}()

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer storageManager.Close()
	if storageManager.MySQL == nil {
		logger.Fatal().Msg("Relational store is required")
	}
	logger.Info().Msg("Storage initialized")

	// Embedding provider is optional; matching degrades to skill and
	// experience signals without it.
	var embedder *embedding.OpenAIEmbedder
	if cfg.Embedding.APIKey != "" {
		embedder, err = embedding.NewOpenAIEmbedder(cfg.Embedding.APIKey, cfg.Embedding)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize embedder")
		}
		logger.Info().Str("model", cfg.Embedding.Model).Msg("Embedding provider initialized")
	} else {
		logger.Warn().Msg("No embedding API key configured, vector features disabled")
	}

	var corpusEmbedder *embedding.CorpusEmbedder
	if embedder != nil {
		if storageManager.Qdrant != nil {
			corpusEmbedder = embedding.NewCorpusEmbedder(embedder, storageManager.MySQL, storageManager.Qdrant, cfg.Embedding)
		} else {
			corpusEmbedder = embedding.NewCorpusEmbedder(embedder, storageManager.MySQL, nil, cfg.Embedding)
		}
	}

	// Reasoning model for the appropriateness filter. The filter fails open
	// on every error, so an unconfigured model only means no filtering.
	var appropriatenessFilter filter.AppropriatenessFilter
	if cfg.LLM.Enabled && cfg.LLM.APIKey != "" {
		var chatModel model.ToolCallingChatModel
		chatModel, err = llm.NewOpenAIChatModel(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.APIURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize chat model")
		}
		appropriatenessFilter = filter.NewLLMFilter(chatModel,
			filter.WithCallTimeout(config.GetDuration(cfg.LLM.CallTimeout, 30*time.Second)))
		logger.Info().Str("model", cfg.LLM.Model).Msg("Appropriateness filter initialized")
	} else {
		logger.Info().Msg("LLM filter disabled")
	}

	scorer := scoring.NewCompositeScorer()
	diversifier := ranking.NewDiversifier(ranking.WithLambda(cfg.Matching.Lambda))

	orchestratorOpts := []matching.OrchestratorOption{
		matching.WithLimits(cfg.Matching.DefaultLimit, cfg.Matching.MaxLimit),
	}
	if storageManager.Qdrant != nil {
		orchestratorOpts = append(orchestratorOpts,
			matching.WithRetriever(matching.NewRetriever(storageManager.Qdrant, storageManager.MySQL)))
	}
	if appropriatenessFilter != nil {
		orchestratorOpts = append(orchestratorOpts, matching.WithFilter(appropriatenessFilter))
	}
	orchestrator := matching.NewOrchestrator(storageManager.MySQL, scorer, diversifier, orchestratorOpts...)
	logger.Info().Msg("Match orchestrator initialized")

	// Broker wiring for async matching.
	var publisher *matching.EventPublisher
	var consumer *matching.Consumer
	if storageManager.RabbitMQ != nil {
		publisher, err = matching.NewEventPublisher(storageManager.RabbitMQ, &cfg.RabbitMQ)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize event publisher")
		}
		consumer, err = matching.NewConsumer(storageManager.RabbitMQ, orchestrator, &cfg.RabbitMQ)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize match consumer")
		}
		if err := consumer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start match consumer")
		}
		defer consumer.Stop()
		logger.Info().Msg("Match event consumer started")
	} else {
		logger.Warn().Msg("Message broker not configured, async matching disabled")
	}

	handlers := &router.Handlers{
		Resume: handler.NewResumeHandler(cfg, storageManager, embedder, publisher),
		Job:    handler.NewJobHandler(cfg, storageManager, corpusEmbedder),
		Match:  handler.NewMatchHandler(cfg, storageManager, orchestrator, publisher),
	}

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))

	router.RegisterRoutes(h, handlers, cfg)
	logger.Info().Str("address", cfg.Server.Address).Msg("HTTP server starting")

	go func() {
		if err := h.Run(); err != nil {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}
	logger.Info().Msg("Shutdown complete")
}
