package storage

import (
	"context"
	"fmt"
	"strings"

	"job-match-go/internal/config"
	"job-match-go/internal/logger"
)

// Storage aggregates every backing service. Components are optional; each
// initializes only when configured, so a degraded deployment (no broker, no
// vector index) still serves the fallback matching path.
type Storage struct {
	MinIO    *MinIO
	RabbitMQ *RabbitMQ
	Qdrant   *Qdrant
	MySQL    *MySQL
	Redis    *Redis
}

// NewStorage initializes the configured components. It fails only when every
// component fails; partial failures are logged and left nil.
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	storage := &Storage{}
	var err error
	var initErrors []string

	storage.MinIO, err = NewMinIO(&cfg.MinIO)
	if err != nil {
		logger.Logger.Warn().Err(err).Msg("MinIO initialization failed")
		initErrors = append(initErrors, fmt.Sprintf("MinIO: %v", err))
	}

	if cfg.RabbitMQ.URL != "" {
		storage.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ)
		if err != nil {
			logger.Logger.Warn().Err(err).Msg("RabbitMQ initialization failed")
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
		}
	}

	if cfg.Qdrant.Endpoint != "" {
		storage.Qdrant, err = NewQdrant(&cfg.Qdrant)
		if err != nil {
			logger.Logger.Warn().Err(err).Msg("Qdrant initialization failed")
			initErrors = append(initErrors, fmt.Sprintf("Qdrant: %v", err))
		}
	}

	if cfg.MySQL.Host != "" {
		storage.MySQL, err = NewMySQL(&cfg.MySQL)
		if err != nil {
			logger.Logger.Warn().Err(err).Msg("MySQL initialization failed")
			initErrors = append(initErrors, fmt.Sprintf("MySQL: %v", err))
		}
	}

	if cfg.Redis.Address != "" {
		storage.Redis, err = NewRedisAdapter(&cfg.Redis)
		if err != nil {
			logger.Logger.Warn().Err(err).Msg("Redis initialization failed")
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		}
	}

	if storage.MinIO == nil && storage.RabbitMQ == nil && storage.Qdrant == nil &&
		storage.MySQL == nil && storage.Redis == nil {
		return nil, fmt.Errorf("all storage components failed to initialize: %s", strings.Join(initErrors, "; "))
	}

	if len(initErrors) > 0 {
		logger.Logger.Warn().
			Str("failures", strings.Join(initErrors, "; ")).
			Msg("Some storage components failed to initialize")
	}

	return storage, nil
}

// Close shuts down every open connection.
func (s *Storage) Close() {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			logger.Logger.Error().Err(err).Msg("Failed to close RabbitMQ connection")
		}
	}

	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			logger.Logger.Error().Err(err).Msg("Failed to close MySQL connection")
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logger.Logger.Error().Err(err).Msg("Failed to close Redis connection")
		}
	}
	// Qdrant and MinIO are HTTP clients without explicit Close.
}
