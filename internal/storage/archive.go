package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/eagleeye/backend/internal/download"
	"github.com/eagleeye/backend/internal/media"
)

// ============================================================================
// Archive (aws-sdk-go-v2) - uploads finished downloads to object storage
// ============================================================================

// ArchiveConfig holds the configuration for the archive uploader.
type ArchiveConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
}

// Archive copies finished downloads into S3-compatible object storage, with
// a metadata sidecar describing where the file came from.
type Archive struct {
	client *s3.Client
	bucket string
}

// NewArchive creates a new archive uploader.
func NewArchive(cfg *ArchiveConfig) (*Archive, error) {
	opts := s3.Options{
		Region:      cfg.Region,
		Credentials: awscreds.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
	}

	// Custom endpoint means MinIO or another non-AWS backend, which needs
	// path-style addressing.
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}

	return &Archive{
		client: s3.New(opts),
		bucket: cfg.Bucket,
	}, nil
}

// archiveMetadata is the sidecar JSON stored next to each archived file.
type archiveMetadata struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Kind    string `json:"kind"`
	Quality string `json:"quality"`
}

func contentTypeFor(kind media.Kind) string {
	if kind == media.KindAudio {
		return "audio/mpeg"
	}
	return "video/mp4"
}

// fileKey returns the archive key for a job's media file.
func fileKey(job *download.Job) string {
	name := job.Title
	if name == "" {
		name = job.ID
	}
	return fmt.Sprintf("downloads/%s/%s", job.ID, media.SafeFilename(name, job.Kind))
}

// metadataKeyFor returns the sibling metadata key for an archived file key.
func metadataKeyFor(key string) string {
	return path.Join(path.Dir(key), "metadata.json")
}

// Archive uploads the job's file and metadata sidecar, returning the file's
// archive key. Implements download.Archiver.
func (a *Archive) Archive(ctx context.Context, job *download.Job) (string, error) {
	file, err := os.Open(job.FilePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat file: %w", err)
	}

	key := fileKey(job)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(fileInfo.Size()),
		ContentType:   aws.String(contentTypeFor(job.Kind)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	metadataJSON, err := json.Marshal(archiveMetadata{
		URL:     job.URL,
		Title:   job.Title,
		Kind:    string(job.Kind),
		Quality: job.Quality,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(metadataKeyFor(key)),
		Body:        strings.NewReader(string(metadataJSON)),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		// Drop the orphaned file so a retry starts clean.
		_ = a.Delete(ctx, key)
		return "", fmt.Errorf("failed to upload metadata: %w", err)
	}

	return key, nil
}

// Delete removes an archived file and its metadata sidecar.
func (a *Archive) Delete(ctx context.Context, key string) error {
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	_, err = a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(metadataKeyFor(key)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete metadata: %w", err)
	}

	return nil
}
