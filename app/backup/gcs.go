package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/option"
)

var _ Backend = (*GCSBackend)(nil)

type GCSBackend struct {
	client *storage.Client
	bucket string
	logger *slog.Logger
}

// NewGCSClient uses application default credentials unless credentialsFile is set.
func NewGCSClient(ctx context.Context, credentialsFile string) (*storage.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return client, nil
}

func NewGCSBackend(client *storage.Client, bucket string, logger *slog.Logger) *GCSBackend {
	return &GCSBackend{
		client: client,
		bucket: bucket,
		logger: logger,
	}
}

func (b *GCSBackend) Name() string {
	return "gcs"
}

func (b *GCSBackend) Upload(ctx context.Context, object, srcPath string) error {
	err := retry.Do(
		func() error {
			src, err := os.Open(srcPath)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("open source: %w", err))
			}
			defer src.Close()

			w := b.client.Bucket(b.bucket).Object(object).NewWriter(ctx)
			w.ContentType = "application/vnd.sqlite3"
			if _, err := io.Copy(w, src); err != nil {
				if closeErr := w.Close(); closeErr != nil {
					b.logger.Warn("Failed to close writer after error", "error", closeErr)
				}
				return fmt.Errorf("write to storage: %w", err)
			}
			if err := w.Close(); err != nil {
				return fmt.Errorf("close storage writer: %w", err)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			b.logger.Info("Retrying backup upload after error", "attempt", n, "object", object, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("upload after retries: %w", err)
	}
	return nil
}

func (b *GCSBackend) Download(ctx context.Context, object, dstPath string) error {
	notFound := false

	err := retry.Do(
		func() error {
			r, err := b.client.Bucket(b.bucket).Object(object).NewReader(ctx)
			if err != nil {
				if errors.Is(err, storage.ErrObjectNotExist) {
					notFound = true
					return retry.Unrecoverable(err)
				}
				return fmt.Errorf("open storage reader: %w", err)
			}
			defer func() {
				if closeErr := r.Close(); closeErr != nil {
					b.logger.Warn("Failed to close storage reader", "error", closeErr)
				}
			}()

			return writeFileAtomic(dstPath, func(w io.Writer) error {
				if _, err := io.Copy(w, r); err != nil {
					return fmt.Errorf("read from storage: %w", err)
				}
				return nil
			})
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			b.logger.Info("Retrying backup download after error", "attempt", n, "object", object, "error", err)
		}),
	)
	if notFound {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("download after retries: %w", err)
	}
	return nil
}
