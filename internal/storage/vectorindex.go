package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"job-match-go/internal/config"
	"job-match-go/internal/domain"
	"job-match-go/internal/logger"
	"job-match-go/internal/tracing"
)

var qdrantTracer = otel.Tracer("job-match-go/storage/qdrant")

// JobPointIDNamespace is the namespace for deterministic job point IDs.
// The same job ID always maps to the same point ID, so re-upserting a job
// overwrites its vector instead of duplicating it.
var JobPointIDNamespace = uuid.Must(uuid.FromString("9b1f62d4-7c35-4a8e-b2d1-f04a6c93e5b8"))

// VectorSearchResult is one hit from the nearest-neighbor index.
type VectorSearchResult struct {
	ID      string
	Score   float64
	Payload map[string]interface{}
}

// IndexStats describes the current state of the index collection.
type IndexStats struct {
	Count     int64 `json:"count"`
	Dimension int   `json:"dimension"`
}

// VectorIndex is the nearest-neighbor service boundary consumed by the
// retriever and the ingestion pipeline.
type VectorIndex interface {
	// Upsert stores or replaces one job vector with its metadata payload.
	Upsert(ctx context.Context, jobID string, vector []float64, metadata map[string]interface{}) error

	// Query returns up to topK nearest neighbors of the query vector. The
	// optional filter is an equality predicate over payload attributes.
	Query(ctx context.Context, vector []float64, topK int, filter map[string]interface{}) ([]VectorSearchResult, error)

	// DeleteAll drops every point in the collection.
	DeleteAll(ctx context.Context) error

	// Stats reports the point count and configured dimension.
	Stats(ctx context.Context) (*IndexStats, error)
}

var _ VectorIndex = (*Qdrant)(nil)

// Qdrant talks to a Qdrant server over its HTTP API.
type Qdrant struct {
	endpoint       string
	collectionName string
	vectorSize     int
	distanceMetric string
	httpClient     *http.Client
}

// QdrantOption customizes a Qdrant client.
type QdrantOption func(*Qdrant)

// WithDistanceMetric overrides the collection distance metric.
func WithDistanceMetric(metric string) QdrantOption {
	return func(q *Qdrant) {
		q.distanceMetric = metric
	}
}

// WithHTTPTimeout overrides the HTTP client timeout.
func WithHTTPTimeout(timeout time.Duration) QdrantOption {
	return func(q *Qdrant) {
		q.httpClient = &http.Client{Timeout: timeout}
	}
}

// NewQdrant connects to Qdrant and makes sure the job collection exists.
func NewQdrant(cfg *config.QdrantConfig, opts ...QdrantOption) (*Qdrant, error) {
	if cfg == nil {
		return nil, fmt.Errorf("qdrant config must not be nil")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:6333"
	}

	collectionName := cfg.Collection
	if collectionName == "" {
		collectionName = "job_postings"
	}

	vectorSize := cfg.Dimension
	if vectorSize <= 0 {
		vectorSize = 1536
	}

	q := &Qdrant{
		endpoint:       endpoint,
		collectionName: collectionName,
		vectorSize:     vectorSize,
		distanceMetric: "Cosine",
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(q)
	}

	if err := q.ensureCollectionExists(context.Background()); err != nil {
		return nil, fmt.Errorf("ensure collection %q exists: %w", collectionName, err)
	}

	logger.Logger.Info().
		Str("endpoint", endpoint).
		Str("collection", collectionName).
		Int("dimension", vectorSize).
		Msg("connected to qdrant")
	return q, nil
}

// ensureCollectionExists creates the collection on first use and warns when
// an existing collection was created with a different configuration.
func (q *Qdrant) ensureCollectionExists(ctx context.Context) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.EnsureCollectionExists",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("net.peer.name", q.endpoint),
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "check_collection"),
		attribute.String("db.collection", q.collectionName),
		attribute.Int("db.vector_size", q.vectorSize),
	)

	url := fmt.Sprintf("%s/collections/%s", q.endpoint, q.collectionName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("build check-collection request: %w", err)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := q.httpClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("check collection: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		span.AddEvent("collection_not_found")
		return q.createCollection(ctx)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("check collection failed, status %d: %s", resp.StatusCode, string(body))
		tracing.RecordHTTPError(span, err, resp.StatusCode)
		return err
	}

	var collectionInfo struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size     int    `json:"size"`
						Distance string `json:"distance"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("read collection info: %w", err)
	}
	if err := json.Unmarshal(body, &collectionInfo); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("parse collection info: %w", err)
	}

	existingSize := collectionInfo.Result.Config.Params.Vectors.Size
	existingDistance := collectionInfo.Result.Config.Params.Vectors.Distance
	if existingSize != q.vectorSize || existingDistance != q.distanceMetric {
		logger.Logger.Warn().
			Int("existing_size", existingSize).
			Str("existing_distance", existingDistance).
			Int("configured_size", q.vectorSize).
			Str("configured_distance", q.distanceMetric).
			Msg("existing qdrant collection config does not match configuration")
		span.AddEvent("collection_config_mismatch")
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

func (q *Qdrant) createCollection(ctx context.Context) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.CreateCollection",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "create_collection"),
		attribute.String("db.collection", q.collectionName),
		attribute.Int("db.vector_size", q.vectorSize),
		attribute.String("db.vector.distance", q.distanceMetric),
	)

	createReqBody := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     q.vectorSize,
			"distance": q.distanceMetric,
		},
		"optimizers_config": map[string]interface{}{
			"default_segment_number": 2,
		},
	}

	jsonData, err := json.Marshal(createReqBody)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("marshal create-collection request: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", q.endpoint, q.collectionName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewBuffer(jsonData))
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("build create-collection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := q.httpClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("create collection: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("create collection failed, status %d: %s", resp.StatusCode, string(body))
		tracing.RecordHTTPError(span, err, resp.StatusCode)
		return err
	}

	span.SetStatus(codes.Ok, "")
	logger.Logger.Info().
		Str("collection", q.collectionName).
		Int("dimension", q.vectorSize).
		Msg("created qdrant collection")
	return nil
}

// Upsert stores one job vector under a deterministic point ID derived from
// the job ID.
func (q *Qdrant) Upsert(ctx context.Context, jobID string, vector []float64, metadata map[string]interface{}) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.Upsert",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "upsert"),
		attribute.String("db.collection", q.collectionName),
		attribute.String("job.id", jobID),
	)

	if len(vector) != q.vectorSize {
		err := fmt.Errorf("%w: vector dimension %d, collection dimension %d", domain.ErrDimensionMismatch, len(vector), q.vectorSize)
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}

	payload := make(map[string]interface{}, len(metadata)+1)
	for k, v := range metadata {
		payload[k] = v
	}
	payload["job_id"] = jobID

	pointID := uuid.NewV5(JobPointIDNamespace, jobID).String()
	reqBody := map[string]interface{}{
		"points": []interface{}{
			map[string]interface{}{
				"id":      pointID,
				"vector":  vector,
				"payload": payload,
			},
		},
	}

	var result struct {
		Status string  `json:"status"`
		Time   float64 `json:"time"`
	}
	err := q.doRequest(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", q.collectionName), reqBody, &result)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}

	span.SetAttributes(attribute.String("qdrant.response_status", result.Status))
	span.SetStatus(codes.Ok, "")
	return nil
}

// Query runs a nearest-neighbor search. Hits carry the job_id from their
// payload when present, falling back to the raw point ID.
func (q *Qdrant) Query(ctx context.Context, vector []float64, topK int, filter map[string]interface{}) ([]VectorSearchResult, error) {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.Query",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "search"),
		attribute.String("db.collection", q.collectionName),
		attribute.Int("search.limit", topK),
		attribute.Int("query_vector.size", len(vector)),
	)

	if len(vector) != q.vectorSize {
		err := fmt.Errorf("%w: query dimension %d, collection dimension %d", domain.ErrDimensionMismatch, len(vector), q.vectorSize)
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, err
	}
	if topK <= 0 {
		topK = 10
	}

	searchReq := map[string]interface{}{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if len(filter) > 0 {
		must := make([]map[string]interface{}, 0, len(filter))
		for key, value := range filter {
			must = append(must, map[string]interface{}{
				"key":   key,
				"match": map[string]interface{}{"value": value},
			})
		}
		searchReq["filter"] = map[string]interface{}{"must": must}
	}

	var result struct {
		Result []struct {
			ID      string                 `json:"id"`
			Score   float64                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
		Status string  `json:"status"`
		Time   float64 `json:"time"`
	}
	err := q.doRequest(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", q.collectionName), searchReq, &result)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, err
	}

	hits := make([]VectorSearchResult, 0, len(result.Result))
	for _, point := range result.Result {
		id := point.ID
		if jobID, ok := point.Payload["job_id"].(string); ok && jobID != "" {
			id = jobID
		}
		hits = append(hits, VectorSearchResult{
			ID:      id,
			Score:   point.Score,
			Payload: point.Payload,
		})
	}

	span.SetAttributes(
		attribute.Int("search.results.count", len(hits)),
		attribute.String("qdrant.response_status", result.Status),
	)
	span.SetStatus(codes.Ok, "")
	return hits, nil
}

// DeleteAll removes every point by filtering on nothing. Used when the
// corpus is re-ingested from scratch.
func (q *Qdrant) DeleteAll(ctx context.Context) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.DeleteAll",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "delete_all"),
		attribute.String("db.collection", q.collectionName),
	)

	reqBody := map[string]interface{}{
		"filter": map[string]interface{}{},
	}

	var result struct {
		Status string  `json:"status"`
		Time   float64 `json:"time"`
	}
	err := q.doRequest(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/delete?wait=true", q.collectionName), reqBody, &result)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}

	span.SetAttributes(attribute.String("qdrant.response_status", result.Status))
	span.SetStatus(codes.Ok, "")
	return nil
}

// Stats reports the exact point count plus the configured dimension.
func (q *Qdrant) Stats(ctx context.Context) (*IndexStats, error) {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.Stats",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "count"),
		attribute.String("db.collection", q.collectionName),
	)

	countReqBody := map[string]interface{}{
		"exact": true,
	}

	var result struct {
		Result struct {
			Count int64 `json:"count"`
		} `json:"result"`
		Status string  `json:"status"`
		Time   float64 `json:"time"`
	}
	err := q.doRequest(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/count", q.collectionName), countReqBody, &result)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, err
	}

	span.SetAttributes(attribute.Int64("qdrant.points.count", result.Result.Count))
	span.SetStatus(codes.Ok, "")
	return &IndexStats{Count: result.Result.Count, Dimension: q.vectorSize}, nil
}

// doRequest sends one JSON request to Qdrant and decodes the response into
// result when non-nil.
func (q *Qdrant) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	ctx, span := qdrantTracer.Start(ctx, fmt.Sprintf("%s %s", method, path),
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("net.peer.name", q.endpoint),
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", path),
	)

	var req *http.Request
	var err error
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return err
		}
		req, err = http.NewRequestWithContext(ctx, method, q.endpoint+path, bytes.NewBuffer(jsonBody))
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		span.SetAttributes(attribute.Int("http.request.body.size", len(jsonBody)))
	} else {
		req, err = http.NewRequestWithContext(ctx, method, q.endpoint+path, nil)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return err
		}
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := q.httpClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return err
	}
	span.SetAttributes(attribute.Int("http.response.body.size", len(respBody)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = fmt.Errorf("qdrant API error: status=%d, body=%s", resp.StatusCode, string(respBody))
		tracing.RecordHTTPError(span, err, resp.StatusCode)
		return err
	}

	if result != nil && len(respBody) > 0 {
		if err = json.Unmarshal(respBody, result); err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return err
		}
	}

	span.SetStatus(codes.Ok, "")
	return nil
}
