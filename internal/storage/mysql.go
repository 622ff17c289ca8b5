package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"job-match-go/internal/config"
	"job-match-go/internal/domain"
	"job-match-go/internal/storage/models"
	"job-match-go/internal/tracing"
)

var mysqlTracer = otel.Tracer("job-match-go/storage/mysql")

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// GormTracingPlugin adds an OpenTelemetry span around every GORM operation.
type GormTracingPlugin struct {
	tracer         trace.Tracer
	dbName         string
	dbSystem       string
	disableErrSkip bool
}

// Name returns the plugin name.
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize registers the GORM callbacks that open and close spans.
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}

	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}

	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}

	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}

	if err := cb.Row().Before("gorm:row").Register("otel:before_row", p.before("ROW")); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("otel:after_row", p.after()); err != nil {
		return err
	}

	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	if err := cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after()); err != nil {
		return err
	}

	return nil
}

func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if p.disableErrSkip && db.Statement.SkipHooks {
			return
		}

		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		spanName := fmt.Sprintf("%s %s", operation, tableName)
		opts := []trace.SpanStartOption{
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		}

		sqlStatement := db.Statement.SQL.String()
		if sqlStatement != "" {
			opts = append(opts, trace.WithAttributes(
				attribute.String("db.statement", tracing.SafeSQL(sqlStatement)),
			))
		}

		newCtx, span := p.tracer.Start(ctx, spanName, opts...)

		// Stash the span so the after callback can close it.
		db.Statement.Context = context.WithValue(newCtx, "otel-span", span)
	}
}

func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value("otel-span").(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		if db.Statement.RowsAffected > 0 {
			span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		} else {
			span.SetAttributes(attribute.Int64("db.rows_affected", 0))
		}

		if db.Error != nil {
			if errors.Is(db.Error, gorm.ErrRecordNotFound) {
				// Not-found is part of normal flow, don't fail the span.
				span.SetAttributes(attribute.String("error.type", "record_not_found"))
				span.SetStatus(codes.Ok, "record not found")
			} else {
				span.SetAttributes(attribute.String("error.type", "database_error"))
				span.SetAttributes(attribute.String("error.message", db.Error.Error()))
				span.RecordError(db.Error)
				span.SetStatus(codes.Error, db.Error.Error())
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// NewGormTracingPlugin creates the tracing plugin for the given database name.
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:         mysqlTracer,
		dbName:         dbName,
		dbSystem:       "mysql",
		disableErrSkip: true,
	}
}

// WithDisableErrSkip controls whether hook-skipped statements are traced.
func (p *GormTracingPlugin) WithDisableErrSkip(disable bool) *GormTracingPlugin {
	p.disableErrSkip = disable
	return p
}

// JobStore is the relational persistence surface the matching pipeline needs.
type JobStore interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJobByID(ctx context.Context, jobID string) (*domain.Job, error)
	GetJobsByIDs(ctx context.Context, jobIDs []string) ([]*domain.Job, error)
	GetAllJobs(ctx context.Context) ([]*domain.Job, error)
	ListJobsWithoutEmbedding(ctx context.Context, limit int) ([]*domain.Job, error)
	SetJobEmbedding(ctx context.Context, jobID string, embedding []float64) error
	CountJobs(ctx context.Context) (int64, error)

	CreateResume(ctx context.Context, resume *domain.Resume) error
	GetResumeByID(ctx context.Context, resumeID string) (*domain.Resume, error)
	DeleteResume(ctx context.Context, resumeID string) error

	CreateJobMatches(ctx context.Context, resumeID string, matches []*domain.MatchResult) error
	Close() error
}

var _ JobStore = (*MySQL)(nil)

// MySQL backs JobStore with GORM over a MySQL connection.
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL opens the connection, registers the tracing plugin and migrates
// the schema.
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mysql config is nil")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = logger.Silent
	case 2:
		logLevel = logger.Error
	case 3:
		logLevel = logger.Warn
	case 4:
		logLevel = logger.Info
	default:
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	m := &MySQL{
		db:  db,
		cfg: cfg,
	}

	tracingPlugin := NewGormTracingPlugin(cfg.Database).WithDisableErrSkip(true)
	if err := db.Use(tracingPlugin); err != nil {
		return nil, fmt.Errorf("register tracing plugin: %w", err)
	}

	if err := m.autoMigrateSchema(); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("auto-migrate schema: %w", err)
	}

	return m, nil
}

// autoMigrateSchema migrates the table structures with SQL logging silenced.
func (m *MySQL) autoMigrateSchema() error {
	currentLogger := m.db.Logger

	silentLogger := logger.New(
		log.New(log.Writer(), "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	silentDB := m.db.Session(&gorm.Session{Logger: silentLogger})

	err := silentDB.AutoMigrate(
		&models.Job{},
		&models.Resume{},
		&models.JobMatch{},
	)

	m.db = m.db.Session(&gorm.Session{Logger: currentLogger})

	if err != nil {
		return fmt.Errorf("gorm auto-migrate: %w", err)
	}
	return nil
}

// DB returns the underlying GORM handle.
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close closes the database connection pool.
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// CreateJob inserts a new job posting.
func (m *MySQL) CreateJob(ctx context.Context, job *domain.Job) error {
	record, err := jobToModel(job)
	if err != nil {
		return fmt.Errorf("%w: encode job %s: %v", domain.ErrPersistenceFailure, job.ID, err)
	}
	if err := m.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("%w: create job %s: %v", domain.ErrPersistenceFailure, job.ID, err)
	}
	return nil
}

// GetJobByID loads one job; ErrNotFound when it does not exist.
func (m *MySQL) GetJobByID(ctx context.Context, jobID string) (*domain.Job, error) {
	var record models.Job
	err := m.db.WithContext(ctx).First(&record, "job_id = ?", jobID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: job %s", ErrNotFound, jobID)
		}
		return nil, fmt.Errorf("%w: query job %s: %v", domain.ErrPersistenceFailure, jobID, err)
	}
	return jobFromModel(&record)
}

// GetJobsByIDs loads the jobs that exist among jobIDs, in database order.
// Missing IDs are simply absent from the result.
func (m *MySQL) GetJobsByIDs(ctx context.Context, jobIDs []string) ([]*domain.Job, error) {
	if len(jobIDs) == 0 {
		return nil, nil
	}
	var records []models.Job
	err := m.db.WithContext(ctx).Where("job_id IN ?", jobIDs).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("%w: query jobs by ids: %v", domain.ErrPersistenceFailure, err)
	}
	jobs := make([]*domain.Job, 0, len(records))
	for i := range records {
		job, convErr := jobFromModel(&records[i])
		if convErr != nil {
			return nil, convErr
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// GetAllJobs loads the full corpus. Used by the in-process scoring fallback
// and the batch embedder.
func (m *MySQL) GetAllJobs(ctx context.Context) ([]*domain.Job, error) {
	var records []models.Job
	err := m.db.WithContext(ctx).Order("created_at ASC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("%w: query all jobs: %v", domain.ErrPersistenceFailure, err)
	}
	jobs := make([]*domain.Job, 0, len(records))
	for i := range records {
		job, convErr := jobFromModel(&records[i])
		if convErr != nil {
			return nil, convErr
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// ListJobsWithoutEmbedding returns jobs still waiting for a vector, oldest
// first. limit <= 0 means no limit.
func (m *MySQL) ListJobsWithoutEmbedding(ctx context.Context, limit int) ([]*domain.Job, error) {
	query := m.db.WithContext(ctx).Where("embedding IS NULL").Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var records []models.Job
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("%w: query jobs without embedding: %v", domain.ErrPersistenceFailure, err)
	}
	jobs := make([]*domain.Job, 0, len(records))
	for i := range records {
		job, convErr := jobFromModel(&records[i])
		if convErr != nil {
			return nil, convErr
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// SetJobEmbedding attaches a generated vector to an existing job.
func (m *MySQL) SetJobEmbedding(ctx context.Context, jobID string, embedding []float64) error {
	embeddingJSON, err := models.FloatsToJSON(embedding)
	if err != nil {
		return fmt.Errorf("%w: encode embedding for job %s: %v", domain.ErrPersistenceFailure, jobID, err)
	}
	now := time.Now()
	result := m.db.WithContext(ctx).Model(&models.Job{}).
		Where("job_id = ?", jobID).
		Updates(map[string]interface{}{
			"embedding":   embeddingJSON,
			"embedded_at": &now,
		})
	if result.Error != nil {
		return fmt.Errorf("%w: update embedding for job %s: %v", domain.ErrPersistenceFailure, jobID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: job %s", ErrNotFound, jobID)
	}
	return nil
}

// CountJobs returns the corpus size.
func (m *MySQL) CountJobs(ctx context.Context) (int64, error) {
	var count int64
	err := m.db.WithContext(ctx).Model(&models.Job{}).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("%w: count jobs: %v", domain.ErrPersistenceFailure, err)
	}
	return count, nil
}

// CreateResume inserts a new résumé snapshot.
func (m *MySQL) CreateResume(ctx context.Context, resume *domain.Resume) error {
	record, err := resumeToModel(resume)
	if err != nil {
		return fmt.Errorf("%w: encode resume %s: %v", domain.ErrPersistenceFailure, resume.ID, err)
	}
	if err := m.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("%w: create resume %s: %v", domain.ErrPersistenceFailure, resume.ID, err)
	}
	return nil
}

// GetResumeByID loads one résumé; ErrNotFound when it does not exist.
func (m *MySQL) GetResumeByID(ctx context.Context, resumeID string) (*domain.Resume, error) {
	var record models.Resume
	err := m.db.WithContext(ctx).First(&record, "resume_id = ?", resumeID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: resume %s", ErrNotFound, resumeID)
		}
		return nil, fmt.Errorf("%w: query resume %s: %v", domain.ErrPersistenceFailure, resumeID, err)
	}
	return resumeFromModel(&record)
}

// CreateJobMatches appends one match record per result. The match table is
// append-only history, so repeated runs for the same résumé insert new rows.
func (m *MySQL) CreateJobMatches(ctx context.Context, resumeID string, matches []*domain.MatchResult) error {
	if len(matches) == 0 {
		return nil
	}

	records := make([]models.JobMatch, 0, len(matches))
	for _, match := range matches {
		record, err := jobMatchToModel(resumeID, match)
		if err != nil {
			return err
		}
		records = append(records, record)
	}

	if err := m.db.WithContext(ctx).Create(&records).Error; err != nil {
		return fmt.Errorf("%w: create %d job matches for resume %s: %v",
			domain.ErrPersistenceFailure, len(records), resumeID, err)
	}
	return nil
}

// DeleteResume removes a résumé and its match history. Match rows go first
// so a failure between the two deletes never strands history for a résumé
// that still exists.
func (m *MySQL) DeleteResume(ctx context.Context, resumeID string) error {
	if err := m.db.WithContext(ctx).Where("resume_id = ?", resumeID).Delete(&models.JobMatch{}).Error; err != nil {
		return fmt.Errorf("%w: delete matches for resume %s: %v", domain.ErrPersistenceFailure, resumeID, err)
	}
	result := m.db.WithContext(ctx).Where("resume_id = ?", resumeID).Delete(&models.Resume{})
	if result.Error != nil {
		return fmt.Errorf("%w: delete resume %s: %v", domain.ErrPersistenceFailure, resumeID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: resume %s", ErrNotFound, resumeID)
	}
	return nil
}

func jobMatchToModel(resumeID string, match *domain.MatchResult) (models.JobMatch, error) {
	matchedJSON, err := models.StringsToJSON(match.MatchedSkills)
	if err != nil {
		return models.JobMatch{}, fmt.Errorf("%w: encode matched skills for job %s: %v", domain.ErrPersistenceFailure, match.JobID, err)
	}
	return models.JobMatch{
		ResumeID:      resumeID,
		JobID:         match.JobID,
		Score:         match.Score,
		VectorScore:   match.VectorScore,
		SkillScore:    match.SkillScore,
		ExpScore:      match.ExpScore,
		MatchedSkills: matchedJSON,
		Confidence:    match.Confidence.String(),
		Explanation:   match.Explanation,
		FilterReason:  match.FilterReason,
		UsedVectors:   match.UsedVectors,
	}, nil
}

func jobToModel(job *domain.Job) (*models.Job, error) {
	skillsJSON, err := models.StringsToJSON(job.RequiredSkills)
	if err != nil {
		return nil, err
	}
	embeddingJSON, err := models.FloatsToJSON(job.Embedding)
	if err != nil {
		return nil, err
	}
	record := &models.Job{
		JobID:           job.ID,
		Title:           job.Title,
		Company:         job.Company,
		Description:     job.Description,
		RequiredSkills:  skillsJSON,
		ExperienceLevel: string(job.ExperienceLevel),
		Location:        job.Location,
		Industry:        job.Industry,
		WorkType:        string(job.WorkType),
		SalaryMin:       job.SalaryMin,
		SalaryMax:       job.SalaryMax,
		Embedding:       embeddingJSON,
	}
	if len(job.Embedding) > 0 {
		now := time.Now()
		record.EmbeddedAt = &now
	}
	return record, nil
}

func jobFromModel(record *models.Job) (*domain.Job, error) {
	skills, err := models.JSONToStrings(record.RequiredSkills)
	if err != nil {
		return nil, fmt.Errorf("%w: decode skills for job %s: %v", domain.ErrPersistenceFailure, record.JobID, err)
	}
	embedding, err := models.JSONToFloats(record.Embedding)
	if err != nil {
		return nil, fmt.Errorf("%w: decode embedding for job %s: %v", domain.ErrPersistenceFailure, record.JobID, err)
	}
	return &domain.Job{
		ID:              record.JobID,
		Title:           record.Title,
		Company:         record.Company,
		Description:     record.Description,
		RequiredSkills:  skills,
		ExperienceLevel: domain.ParseExperienceLevel(record.ExperienceLevel),
		Location:        record.Location,
		Industry:        record.Industry,
		WorkType:        domain.WorkType(record.WorkType),
		SalaryMin:       record.SalaryMin,
		SalaryMax:       record.SalaryMax,
		Embedding:       embedding,
		CreatedAt:       record.CreatedAt,
	}, nil
}

func resumeToModel(resume *domain.Resume) (*models.Resume, error) {
	profileJSON, err := json.Marshal(resume.Profile)
	if err != nil {
		return nil, err
	}
	embeddingJSON, err := models.FloatsToJSON(resume.Embedding)
	if err != nil {
		return nil, err
	}
	return &models.Resume{
		ResumeID:   resume.ID,
		Profile:    profileJSON,
		Embedding:  embeddingJSON,
		RawTextKey: resume.RawTextKey,
	}, nil
}

func resumeFromModel(record *models.Resume) (*domain.Resume, error) {
	var profile domain.ResumeProfile
	if len(record.Profile) > 0 {
		if err := json.Unmarshal(record.Profile, &profile); err != nil {
			return nil, fmt.Errorf("%w: decode profile for resume %s: %v", domain.ErrPersistenceFailure, record.ResumeID, err)
		}
	}
	embedding, err := models.JSONToFloats(record.Embedding)
	if err != nil {
		return nil, fmt.Errorf("%w: decode embedding for resume %s: %v", domain.ErrPersistenceFailure, record.ResumeID, err)
	}
	return &domain.Resume{
		ID:         record.ResumeID,
		Profile:    profile,
		Embedding:  embedding,
		RawTextKey: record.RawTextKey,
		CreatedAt:  record.CreatedAt,
	}, nil
}
