package clients

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type ArchiveConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
	Prefix          string
}

// ScheduleArchive keeps an immutable copy of every schedule as it was
// generated at disbursement, in S3-compatible storage. Dashboards never read
// these objects; they exist so the schedule a client signed off on can always
// be produced later, even after rows were mutated by payments.
type ScheduleArchive struct {
	raw    *minio.Client
	bucket string
	prefix string
}

func NewScheduleArchive(ctx context.Context, cfg ArchiveConfig) (*ScheduleArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create archive client: %w", err)
	}

	return &ScheduleArchive{
		raw:    client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// SaveSnapshot uploads the serialized schedule and returns the object key.
func (c *ScheduleArchive) SaveSnapshot(ctx context.Context, loanID string, data []byte) (string, error) {
	if c == nil || c.raw == nil {
		return "", fmt.Errorf("archive client is nil")
	}

	key := fmt.Sprintf("%sschedules/%s/%s.json", c.prefix, loanID, uuid.NewString())

	reader := bytes.NewReader(data)
	size := int64(len(data))

	_, err := c.raw.PutObject(ctx, c.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("put object %q failed: %w", key, err)
	}

	return key, nil
}
