package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/finsig/transaction-approval-backend/interfaces"
)

// S3AuditArchiver writes audit entries to an Amazon S3 (or compatible)
// bucket for long-term retention. Each entry becomes one object keyed by
// transaction id and entry id, so entries are never overwritten.
type S3AuditArchiver struct {
	client     *s3.S3
	bucketName string
	prefix     string
	log        *slog.Logger
}

// NewS3AuditArchiver creates an archiver for the given bucket. A custom
// endpoint supports S3-compatible services.
func NewS3AuditArchiver(bucketName, prefix, region, endpoint, accessKey, secretKey string, log *slog.Logger) (*S3AuditArchiver, error) {
	cfg := aws.Config{
		Region: aws.String(region),
	}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
	}
	if accessKey != "" && secretKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, "")
	} else {
		log.Warn("No S3 credentials provided - audit archiving may fail unless the bucket allows anonymous writes")
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3AuditArchiver{
		client:     s3.New(sess),
		bucketName: bucketName,
		prefix:     strings.TrimSuffix(prefix, "/"),
		log:        log,
	}, nil
}

// Append uploads the entry as a JSON object.
func (a *S3AuditArchiver) Append(ctx context.Context, entry interfaces.AuditEntry) error {
	start := time.Now()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode audit entry: %w", err)
	}

	key := a.objectKey(entry)
	_, err = a.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		a.log.Error("Failed to upload audit entry to S3",
			slog.String("bucket", a.bucketName),
			slog.String("key", key),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return fmt.Errorf("failed to upload audit entry to S3: %w", err)
	}

	a.log.Debug("Archived audit entry in S3",
		slog.String("bucket", a.bucketName),
		slog.String("key", key),
		slog.Duration("duration", time.Since(start)))

	return nil
}

// Available checks if the bucket is accessible.
func (a *S3AuditArchiver) Available(ctx context.Context) bool {
	_, err := a.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(a.bucketName),
	})
	if err != nil {
		a.log.Warn("S3 audit archive unavailable",
			slog.String("bucket", a.bucketName),
			"err", err)
		return false
	}
	return true
}

// objectKey builds the object key for one entry.
func (a *S3AuditArchiver) objectKey(entry interfaces.AuditEntry) string {
	name := fmt.Sprintf("%s/%s.json", entry.TransactionID, entry.ID)
	if a.prefix == "" {
		return name
	}
	return path.Join(a.prefix, name)
}
