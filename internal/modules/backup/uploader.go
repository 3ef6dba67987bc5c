// Package backup streams the SQLite database file to an S3-compatible
// bucket (Cloudflare R2) once a day, in the same 04:00 slot as the
// market-data sync job, using the same aws-sdk-go-v2 manager.Uploader pattern
// the teacher carries in its own dependency set.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/aristath/arduino-trader/internal/database/repositories"
)

// Config describes the bucket a backup is uploaded to.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string // non-empty for R2/S3-compatible stores
	AccessKey string
	SecretKey string
}

// Uploader streams the live database file to object storage and records
// the result so operators can see when the last successful backup ran.
type Uploader struct {
	log      zerolog.Logger
	bucket   string
	client   *s3.Client
	uploader *manager.Uploader
	records  *repositories.BackupRepository
}

// New builds an Uploader, or returns (nil, nil) when no bucket is
// configured — backups are optional, not a hard requirement to boot.
func New(ctx context.Context, cfg Config, records *repositories.BackupRepository, log zerolog.Logger) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	return &Uploader{
		log:      log.With().Str("component", "backup_uploader").Logger(),
		bucket:   cfg.Bucket,
		client:   client,
		uploader: manager.NewUploader(client),
		records:  records,
	}, nil
}

// Upload streams dbPath to the configured bucket under a date-stamped key
// and records the outcome. Safe to call on a live SQLite file opened in
// WAL mode; it reads the main file only, matching the teacher's own
// daily-snapshot (not live-replication) backup policy.
func (u *Uploader) Upload(ctx context.Context, dbPath string) error {
	f, err := os.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat database file: %w", err)
	}

	now := time.Now().UTC()
	key := fmt.Sprintf("backups/%s/%s", now.Format("2006-01-02"), filepath.Base(dbPath))

	if _, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   f,
	}); err != nil {
		return fmt.Errorf("upload backup: %w", err)
	}

	if err := u.records.Record(repositories.BackupRecord{
		Filename:   filepath.Base(dbPath),
		UploadedAt: now,
		SizeBytes:  info.Size(),
		RemoteKey:  key,
	}); err != nil {
		return fmt.Errorf("record backup: %w", err)
	}

	u.log.Info().Str("key", key).Int64("size_bytes", info.Size()).Msg("database backup uploaded")
	return nil
}
