package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"job-match-go/internal/config"
	"job-match-go/internal/logger"
)

// ObjectStorage stores raw résumé text. The relational store only keeps the
// object key; the text itself lives here.
type ObjectStorage interface {
	UploadResumeText(ctx context.Context, resumeID string, text string) (string, error)
	GetResumeText(ctx context.Context, objectName string) (string, error)
	GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
	DeleteObject(ctx context.Context, objectName string) error
}

var _ ObjectStorage = (*MinIO)(nil)

// MinIO provides object storage for raw résumé text.
type MinIO struct {
	client       *minio.Client
	cfg          *config.MinIOConfig
	resumeBucket string
}

// NewMinIO creates the MinIO client and ensures the résumé bucket exists.
func NewMinIO(cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("minio config cannot be nil")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create MinIO client: %w", err)
	}

	resumeBucket := cfg.ResumeBucket
	if resumeBucket == "" {
		resumeBucket = "resume-raw-text"
	}

	m := &MinIO{
		client:       client,
		cfg:          cfg,
		resumeBucket: resumeBucket,
	}

	if err := m.ensureBucketExists(resumeBucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("ensure resume bucket %s exists: %w", resumeBucket, err)
	}

	logger.Logger.Info().
		Str("endpoint", cfg.Endpoint).
		Str("bucket", resumeBucket).
		Msg("MinIO client initialized")
	return m, nil
}

func (m *MinIO) ensureBucketExists(bucketName, location string) error {
	exists, err := m.client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucketName, err)
	}
	if !exists {
		err = m.client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{Region: location})
		if err != nil {
			return fmt.Errorf("create bucket %s: %w", bucketName, err)
		}
		logger.Logger.Info().Str("bucket", bucketName).Msg("Bucket created")
	}
	return nil
}

// UploadResumeText stores the raw text for one résumé and returns the object
// key to persist alongside the résumé record.
func (m *MinIO) UploadResumeText(ctx context.Context, resumeID string, text string) (string, error) {
	if resumeID == "" {
		return "", fmt.Errorf("resume ID cannot be empty")
	}

	objectName := fmt.Sprintf("%s/raw.txt", resumeID)
	reader := strings.NewReader(text)

	_, err := m.client.PutObject(ctx, m.resumeBucket, objectName, reader, int64(len(text)),
		minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
	if err != nil {
		return "", fmt.Errorf("upload resume text %s: %w", objectName, err)
	}

	logger.Logger.Debug().
		Str("resume_id", resumeID).
		Str("object", objectName).
		Int("size", len(text)).
		Msg("Resume text uploaded")
	return objectName, nil
}

// GetResumeText fetches the raw text stored under objectName.
func (m *MinIO) GetResumeText(ctx context.Context, objectName string) (string, error) {
	obj, err := m.client.GetObject(ctx, m.resumeBucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("get resume text %s: %w", objectName, err)
	}
	defer obj.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, obj); err != nil {
		return "", fmt.Errorf("read resume text %s: %w", objectName, err)
	}
	return buf.String(), nil
}

// GetPresignedURL returns a temporary download URL for an object.
func (m *MinIO) GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.resumeBucket, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign object %s: %w", objectName, err)
	}
	return u.String(), nil
}

// DeleteObject removes one object from the résumé bucket.
func (m *MinIO) DeleteObject(ctx context.Context, objectName string) error {
	err := m.client.RemoveObject(ctx, m.resumeBucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", objectName, err)
	}
	return nil
}
