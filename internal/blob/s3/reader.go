package s3blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

// Reader implements domain.BlobReader.
type Reader struct {
	api    objectAPI
	bucket string
}

// NewReader creates a Reader for the client's bucket.
func NewReader(c *Client) *Reader {
	return &Reader{api: c.api, bucket: c.bucket}
}

// Get returns the object body; the caller closes it. Missing objects yield
// domain.ErrNotFound.
func (r *Reader) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := r.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("s3blob: get %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("s3blob: get %s: %w", path, err)
	}
	return out.Body, nil
}

// List returns every object under prefix, following pagination.
func (r *Reader) List(ctx context.Context, prefix string) ([]domain.BlobInfo, error) {
	var infos []domain.BlobInfo
	paginator := s3.NewListObjectsV2Paginator(r.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3blob: list prefix %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			info := domain.BlobInfo{
				Path: aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			infos = append(infos, info)
		}
	}
	return infos, nil
}

// Exists issues a HeadObject for path.
func (r *Reader) Exists(ctx context.Context, path string) (bool, error) {
	_, err := r.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("s3blob: exists %s: %w", path, err)
	}
	return true, nil
}

// isNotFound recognises NoSuchKey, the bare 404 HeadObject returns, and 404
// responses from compatible providers.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var httpErr interface{ HTTPStatusCode() int }
	return errors.As(err, &httpErr) && httpErr.HTTPStatusCode() == http.StatusNotFound
}

var _ domain.BlobReader = (*Reader)(nil)
