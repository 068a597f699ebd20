package s3blob

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

// minPartSize is the S3 minimum multipart part size (5 MiB).
const minPartSize int64 = 5 * 1024 * 1024

// Writer implements domain.BlobWriter.
type Writer struct {
	api    objectAPI
	bucket string
}

// NewWriter creates a Writer for the client's bucket.
func NewWriter(c *Client) *Writer {
	return &Writer{api: c.api, bucket: c.bucket}
}

// Put uploads data with a single PutObject call.
func (w *Writer) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	_, err := w.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(path),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3blob: put object %s: %w", path, err)
	}
	return nil
}

// PutMultipart streams data through the upload manager. partSize is raised
// to the S3 minimum when smaller.
func (w *Writer) PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error {
	uploader := manager.NewUploader(w.api, func(u *manager.Uploader) {
		u.PartSize = max(partSize, minPartSize)
	})
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(path),
		Body:   data,
	})
	if err != nil {
		return fmt.Errorf("s3blob: multipart upload %s: %w", path, err)
	}
	return nil
}

var _ domain.BlobWriter = (*Writer)(nil)
