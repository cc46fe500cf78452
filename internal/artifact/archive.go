// Package artifact archives annotation export files in S3-compatible object
// storage.
package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/dgallion1/markview/internal/annotation"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config locates the archive bucket.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// ObjectPutter is the subset of the minio client the archive needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucket, object string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Archive uploads export files under "<session id>/<file name>".
type Archive struct {
	client  ObjectPutter
	bucket  string
	log     *slog.Logger
	backoff func(attempt int) time.Duration
}

// Connect builds a minio client for cfg and creates the bucket if missing.
func Connect(ctx context.Context, cfg Config, log *slog.Logger) (*Archive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		log.Info("archive bucket created", "bucket", cfg.Bucket)
	}
	return New(client, cfg.Bucket, log), nil
}

func New(client ObjectPutter, bucket string, log *slog.Logger) *Archive {
	return &Archive{client: client, bucket: bucket, log: log, backoff: backoff}
}

// ObjectKey returns the object name for a session's export file.
func ObjectKey(sessionID, filename string) string {
	return path.Join(strings.ReplaceAll(sessionID, "/", "_"), path.Base(filename))
}

// Store uploads f and returns its "bucket/key" location. Transient
// failures are retried with backoff.
func (a *Archive) Store(ctx context.Context, sessionID string, f *annotation.File) (string, error) {
	key := ObjectKey(sessionID, f.Name)
	opts := minio.PutObjectOptions{
		ContentType: f.MimeType,
		UserMetadata: map[string]string{
			"annotation-count": fmt.Sprint(f.Count),
		},
	}

	var lastErr error
	for attempt := range maxAttempts {
		info, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(f.Data), int64(len(f.Data)), opts)
		if err == nil {
			a.log.Info("export archived", "bucket", a.bucket, "key", key, "size", info.Size, "attempts", attempt+1)
			return a.bucket + "/" + key, nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == maxAttempts-1 {
			break
		}
		a.log.Warn("retryable archive error", "key", key, "attempt", attempt, "error", err)
		select {
		case <-time.After(a.backoff(attempt)):
		case <-ctx.Done():
			return "", fmt.Errorf("upload %s: %w", key, ctx.Err())
		}
	}
	return "", fmt.Errorf("upload %s: %w", key, lastErr)
}
