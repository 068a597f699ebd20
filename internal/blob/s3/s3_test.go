package s3blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

// fakeAPI stores objects in memory. Unused SDK methods panic through the nil
// embedded interface.
type fakeAPI struct {
	objectAPI
	objects map[string][]byte
	types   map[string]string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeAPI) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeAPI) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeAPI) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{}
	for k, v := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(k), Size: aws.Int64(int64(len(v)))})
		}
	}
	return out, nil
}

func TestReaderWriter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := &Client{api: newFakeAPI(), bucket: "matchcast"}
	w, r := NewWriter(c), NewReader(c)

	require.NoError(t, w.Put(ctx, "matches/epl.csv", strings.NewReader("date,team\n"), "text/csv"))

	ok, err := r.Exists(ctx, "matches/epl.csv")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.Exists(ctx, "matches/none.csv")
	require.NoError(t, err)
	assert.False(t, ok)

	body, err := r.Get(ctx, "matches/epl.csv")
	require.NoError(t, err)
	data, _ := io.ReadAll(body)
	_ = body.Close()
	assert.Equal(t, "date,team\n", string(data))

	_, err = r.Get(ctx, "matches/none.csv")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	infos, err := r.List(ctx, "matches/")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, int64(10), infos[0].Size)
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://minio:9000", normaliseEndpoint("minio:9000", true))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
	assert.Equal(t, "https://s3.example.com", normaliseEndpoint("https://s3.example.com", false))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&types.NoSuchKey{}))
	assert.True(t, isNotFound(&types.NotFound{}))
	assert.False(t, isNotFound(errors.New("timeout")))
}

type memWriter struct {
	puts map[string]string
	err  error
}

func (m *memWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if m.err != nil {
		return m.err
	}
	b, _ := io.ReadAll(data)
	if m.puts == nil {
		m.puts = map[string]string{}
	}
	m.puts[path] = string(b)
	return nil
}

func (m *memWriter) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return m.Put(ctx, path, data, "")
}

type fakePredictions struct {
	rows      []domain.Prediction
	deletedAt time.Time
}

func (f *fakePredictions) ListBefore(_ context.Context, before time.Time, limit int) ([]domain.Prediction, error) {
	var out []domain.Prediction
	for _, p := range f.rows {
		if p.CreatedAt.Before(before) && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePredictions) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	f.deletedAt = before
	return int64(len(f.rows)), nil
}

type fakeEvents struct{}

func (fakeEvents) ListBefore(context.Context, time.Time, int) ([]domain.LiveEventRecord, error) {
	return nil, nil
}
func (fakeEvents) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type fakeHistory []domain.RatingChange

func (f fakeHistory) ListAll(context.Context) ([]domain.RatingChange, error) { return f, nil }

type fakeAudit struct{ events []string }

func (f *fakeAudit) Log(_ context.Context, event string, _ map[string]any) error {
	f.events = append(f.events, event)
	return nil
}
func (f *fakeAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func TestArchiver(t *testing.T) {
	ctx := context.Background()
	cutoff := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	preds := &fakePredictions{rows: []domain.Prediction{
		{ID: "p1", Team: "A", CreatedAt: cutoff.Add(-48 * time.Hour)},
		{ID: "p2", Team: "B", CreatedAt: cutoff.Add(-24 * time.Hour)},
	}}
	history := fakeHistory{{Team: "A", Opponent: "B", Result: domain.ResultWin, Before: 1500, After: 1516}}
	w := &memWriter{}
	audit := &fakeAudit{}
	a := NewArchiver(w, preds, fakeEvents{}, history, audit)

	n, err := a.ArchivePredictions(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	body := w.puts["archive/predictions/2024-06-01T000000Z.jsonl"]
	assert.Equal(t, 2, strings.Count(body, "\n"))
	assert.Contains(t, body, `"id":"p1"`)
	assert.Equal(t, cutoff, preds.deletedAt)

	n, err = a.ArchiveLiveEvents(ctx, cutoff)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = a.SnapshotRatingHistory(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Contains(t, w.puts["archive/rating_history/2024-06-01T000000Z.jsonl"], `"after":1516`)

	assert.Equal(t, []string{"archive.predictions", "archive.rating_history"}, audit.events)
}

func TestArchiver_UploadFailureKeepsRows(t *testing.T) {
	preds := &fakePredictions{rows: []domain.Prediction{{ID: "p1", CreatedAt: time.Unix(0, 0)}}}
	a := NewArchiver(&memWriter{err: errors.New("denied")}, preds, fakeEvents{}, fakeHistory{}, &fakeAudit{})

	_, err := a.ArchivePredictions(context.Background(), time.Now())
	require.Error(t, err)
	assert.True(t, preds.deletedAt.IsZero())
}
