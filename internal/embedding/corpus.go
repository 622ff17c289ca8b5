package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"job-match-go/internal/config"
	"job-match-go/internal/domain"
	"job-match-go/internal/logger"
)

const (
	defaultBatchSize  = 10
	defaultBatchDelay = 200 * time.Millisecond
)

// jobLister is the slice of the relational store the corpus embedder needs.
type jobLister interface {
	ListJobsWithoutEmbedding(ctx context.Context, limit int) ([]*domain.Job, error)
	SetJobEmbedding(ctx context.Context, jobID string, embedding []float64) error
}

// vectorUpserter is the slice of the vector index the corpus embedder needs.
type vectorUpserter interface {
	Upsert(ctx context.Context, jobID string, vector []float64, metadata map[string]interface{}) error
}

// CorpusEmbedder vectorizes jobs that don't have an embedding yet, in fixed
// batches with a delay between them to stay inside provider quotas.
type CorpusEmbedder struct {
	embedder   *OpenAIEmbedder
	store      jobLister
	index      vectorUpserter
	batchSize  int
	batchDelay time.Duration
}

// CorpusStats summarizes one embedding run.
type CorpusStats struct {
	Processed int
	Embedded  int
	Failed    int
	Elapsed   time.Duration
}

// NewCorpusEmbedder wires the embedder against the store and vector index.
// The index may be nil; embeddings are then only persisted relationally.
func NewCorpusEmbedder(embedder *OpenAIEmbedder, store jobLister, index vectorUpserter, cfg config.EmbeddingConfig) *CorpusEmbedder {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	batchDelay := defaultBatchDelay
	if cfg.BatchDelayMS > 0 {
		batchDelay = time.Duration(cfg.BatchDelayMS) * time.Millisecond
	}
	return &CorpusEmbedder{
		embedder:   embedder,
		store:      store,
		index:      index,
		batchSize:  batchSize,
		batchDelay: batchDelay,
	}
}

// EmbedPending embeds every job still missing a vector. A failed batch is
// logged and skipped; those jobs stay un-embedded and are retried on the next
// run. Per-job persistence failures are likewise skipped.
func (c *CorpusEmbedder) EmbedPending(ctx context.Context) (*CorpusStats, error) {
	start := time.Now()
	stats := &CorpusStats{}

	jobs, err := c.store.ListJobsWithoutEmbedding(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("list jobs without embedding: %w", err)
	}
	if len(jobs) == 0 {
		stats.Elapsed = time.Since(start)
		return stats, nil
	}

	logger.Logger.Info().
		Int("pending", len(jobs)).
		Int("batch_size", c.batchSize).
		Msg("Embedding job corpus")

	for batchStart := 0; batchStart < len(jobs); batchStart += c.batchSize {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		batchEnd := batchStart + c.batchSize
		if batchEnd > len(jobs) {
			batchEnd = len(jobs)
		}
		batch := jobs[batchStart:batchEnd]

		texts := make([]string, len(batch))
		for i, job := range batch {
			texts[i] = JobText(job)
		}

		vectors, embedErr := c.embedder.EmbedStrings(ctx, texts)
		if embedErr != nil {
			logger.Logger.Warn().
				Err(embedErr).
				Int("batch_start", batchStart).
				Int("batch_len", len(batch)).
				Msg("Embedding batch failed, skipping")
			stats.Processed += len(batch)
			stats.Failed += len(batch)
			c.sleepBetweenBatches(ctx, batchEnd, len(jobs))
			continue
		}

		for i, job := range batch {
			stats.Processed++
			if err := c.persistEmbedding(ctx, job, vectors[i]); err != nil {
				logger.Logger.Warn().
					Err(err).
					Str("job_id", job.ID).
					Msg("Failed to persist embedding, skipping job")
				stats.Failed++
				continue
			}
			stats.Embedded++
		}

		c.sleepBetweenBatches(ctx, batchEnd, len(jobs))
	}

	stats.Elapsed = time.Since(start)
	logger.Logger.Info().
		Int("embedded", stats.Embedded).
		Int("failed", stats.Failed).
		Dur("elapsed", stats.Elapsed).
		Msg("Corpus embedding run finished")
	return stats, nil
}

func (c *CorpusEmbedder) persistEmbedding(ctx context.Context, job *domain.Job, vector []float64) error {
	if err := c.store.SetJobEmbedding(ctx, job.ID, vector); err != nil {
		return err
	}
	if c.index != nil {
		metadata := map[string]interface{}{
			"title":            job.Title,
			"company":          job.Company,
			"experience_level": string(job.ExperienceLevel),
			"location":         job.Location,
			"industry":         job.Industry,
		}
		if err := c.index.Upsert(ctx, job.ID, vector, metadata); err != nil {
			return fmt.Errorf("upsert into vector index: %w", err)
		}
	}
	return nil
}

func (c *CorpusEmbedder) sleepBetweenBatches(ctx context.Context, processed, total int) {
	if processed >= total || c.batchDelay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(c.batchDelay):
	}
}

// JobText builds the text that represents a job for embedding. Title, skills
// and description carry most of the signal.
func JobText(job *domain.Job) string {
	var b strings.Builder
	b.WriteString(job.Title)
	if job.Company != "" {
		b.WriteString(" at ")
		b.WriteString(job.Company)
	}
	b.WriteString("\n")
	if len(job.RequiredSkills) > 0 {
		b.WriteString("Skills: ")
		b.WriteString(strings.Join(job.RequiredSkills, ", "))
		b.WriteString("\n")
	}
	if job.ExperienceLevel != "" {
		b.WriteString("Level: ")
		b.WriteString(string(job.ExperienceLevel))
		b.WriteString("\n")
	}
	if job.Description != "" {
		b.WriteString(job.Description)
	}
	return b.String()
}

// ResumeText builds the text that represents a résumé profile for embedding.
func ResumeText(profile *domain.ResumeProfile) string {
	var b strings.Builder
	if len(profile.Titles) > 0 {
		b.WriteString(strings.Join(profile.Titles, ", "))
		b.WriteString("\n")
	}
	if len(profile.Skills) > 0 {
		b.WriteString("Skills: ")
		b.WriteString(strings.Join(profile.Skills, ", "))
		b.WriteString("\n")
	}
	if profile.ExperienceLevel != "" {
		b.WriteString("Level: ")
		b.WriteString(string(profile.ExperienceLevel))
		b.WriteString("\n")
	}
	if profile.Summary != "" {
		b.WriteString(profile.Summary)
	}
	return b.String()
}
