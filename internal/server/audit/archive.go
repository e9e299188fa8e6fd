package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/config"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// maxArchiveEntries bounds one export; a range holding more must be split.
const maxArchiveEntries = 50000

var ErrArchiveTooLarge = errors.New("audit range exceeds archive limit, use a narrower range")

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// Uploader is the part of the S3 client the archiver needs.
type Uploader interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type lister interface {
	List(ctx context.Context, f models.AuditFilter) ([]*models.AuditEntry, error)
}

// Archiver copies audit entries to object storage as JSON lines. Entries are
// never removed from the database.
type Archiver struct {
	trail    lister
	uploader Uploader
	bucket   string
}

func NewArchiver(trail lister, uploader Uploader, bucket string) *Archiver {
	return &Archiver{trail: trail, uploader: uploader, bucket: bucket}
}

// NewS3Client builds an S3 client for an S3-compatible endpoint using the
// static credentials from cfg.
func NewS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}

// Archive exports entries created in [since, before) and returns the object
// key and the number of entries written. An empty range uploads nothing.
func (a *Archiver) Archive(ctx context.Context, since, before time.Time) (string, int, error) {
	entries, err := a.trail.List(ctx, models.AuditFilter{Since: since, Until: before, Limit: maxArchiveEntries + 1})
	if err != nil {
		return "", 0, err
	}
	if len(entries) > maxArchiveEntries {
		return "", 0, ErrArchiveTooLarge
	}
	if len(entries) == 0 {
		return "", 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return "", 0, fmt.Errorf("encode audit entry %s: %w", e.ID, err)
		}
	}

	key := ObjectKey(since, before)
	_, err = a.uploader.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", 0, fmt.Errorf("upload audit archive: %w", err)
	}
	return key, len(entries), nil
}

// ObjectKey names the archive object for a time range.
func ObjectKey(since, before time.Time) string {
	const layout = "20060102T150405Z"
	return fmt.Sprintf("audit/%s_%s.jsonl", since.UTC().Format(layout), before.UTC().Format(layout))
}
