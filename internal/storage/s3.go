package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mfenderov/bam-rec/pkg/models"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// Config holds S3/MinIO client configuration.
type Config struct {
	Endpoint        string // "localhost:9000" for MinIO
	Bucket          string // "bam-rec"
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// Client stores project snapshots and their intent analyses as JSON objects:
//
//	projects/<id>/project.json
//	projects/<id>/intent.json
type Client struct {
	minioClient *minio.Client
	bucket      string
}

// New creates a new S3/MinIO client.
func New(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	minioClient, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &Client{
		minioClient: minioClient,
		bucket:      config.Bucket,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.minioClient.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}

	err = c.minioClient.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func projectObject(id string) string { return path.Join("projects", id, "project.json") }
func intentObject(id string) string  { return path.Join("projects", id, "intent.json") }

// GetProject reads a project snapshot.
func (c *Client) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	if err := c.getJSON(ctx, projectObject(id), &p); err != nil {
		return nil, fmt.Errorf("failed to get project %s: %w", id, err)
	}
	return &p, nil
}

// SaveProject writes a project snapshot.
func (c *Client) SaveProject(ctx context.Context, p models.Project) error {
	if err := c.putJSON(ctx, projectObject(p.ID), p); err != nil {
		return fmt.Errorf("failed to put project %s: %w", p.ID, err)
	}
	return nil
}

// GetStoredIntent reads the intent analysis stored for a project.
func (c *Client) GetStoredIntent(ctx context.Context, projectID string) (*models.StoredIntent, error) {
	var s models.StoredIntent
	if err := c.getJSON(ctx, intentObject(projectID), &s); err != nil {
		return nil, fmt.Errorf("failed to get stored intent %s: %w", projectID, err)
	}
	return &s, nil
}

// SaveStoredIntent writes a project's intent analysis.
func (c *Client) SaveStoredIntent(ctx context.Context, s models.StoredIntent) error {
	if err := c.putJSON(ctx, intentObject(s.ProjectID), s); err != nil {
		return fmt.Errorf("failed to put stored intent %s: %w", s.ProjectID, err)
	}
	return nil
}

func (c *Client) putJSON(ctx context.Context, objectName string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}

	_, err = c.minioClient.PutObject(ctx, c.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

func (c *Client) getJSON(ctx context.Context, objectName string, v any) error {
	object, err := c.minioClient.GetObject(ctx, c.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return notFound(err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return notFound(err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal: %w", err)
	}
	return nil
}

// notFound maps S3 missing-key errors to ErrNotFound.
func notFound(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return ErrNotFound
	}
	return err
}

// Bucket returns the bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}
