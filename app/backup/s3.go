package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

var _ Backend = (*S3Backend)(nil)

type S3Backend struct {
	bucket     string
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
}

// NewS3Backend reads AWS credentials from the default provider chain.
func NewS3Backend(region, bucket string) (*S3Backend, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Backend{
		bucket:     bucket,
		uploader:   s3manager.NewUploader(sess),
		downloader: s3manager.NewDownloader(sess),
	}, nil
}

func (b *S3Backend) Name() string {
	return "s3"
}

func (b *S3Backend) Upload(ctx context.Context, object, srcPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	_, err = b.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(object),
		Body:   src,
	})
	if err != nil {
		return fmt.Errorf("upload to s3: %w", err)
	}
	return nil
}

func (b *S3Backend) Download(ctx context.Context, object, dstPath string) error {
	notFound := false

	err := writeFileAtomic(dstPath, func(w io.Writer) error {
		// The downloader writes ranges concurrently and needs WriterAt.
		file, ok := w.(io.WriterAt)
		if !ok {
			return errors.New("destination does not support WriteAt")
		}

		_, err := b.downloader.DownloadWithContext(ctx, file, &s3.GetObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(object),
		})
		if err != nil {
			var aerr awserr.Error
			if errors.As(err, &aerr) && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound") {
				notFound = true
			}
			return fmt.Errorf("download from s3: %w", err)
		}
		return nil
	})
	if notFound {
		return ErrNotFound
	}
	return err
}
