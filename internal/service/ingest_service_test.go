package service

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

const sampleCSV = `date,team,opponent,venue,gf,ga
2023-01-01,Arsenal,Chelsea,home,2,1
2023-01-01,Chelsea,Arsenal,away,1,2
2023-02-01,Chelsea,Arsenal,home,1,0
2023-02-08,Leeds,,home,1,0
2023-02-09,Leeds,Everton,middle,1,0
`

// blobMap is an in-memory domain.BlobReader.
type blobMap map[string]string

func (b blobMap) Get(_ context.Context, path string) (io.ReadCloser, error) {
	s, ok := b[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(s)), nil
}

func (b blobMap) List(context.Context, string) ([]domain.BlobInfo, error) { return nil, nil }

func (b blobMap) Exists(_ context.Context, path string) (bool, error) {
	_, ok := b[path]
	return ok, nil
}

func TestIngestService_ImportCSV(t *testing.T) {
	matches := &MockMatchStore{}
	audit := &MockAuditStore{}
	var stored []domain.MatchRecord
	matches.On("InsertBatch", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { stored = args.Get(1).([]domain.MatchRecord) }).
		Return(int64(4), nil)
	audit.On("Log", mock.Anything, "matches.imported", mock.Anything).Return(nil)

	svc := NewIngestService(matches, nil, audit, testLogger())
	summary, err := svc.ImportCSV(context.Background(), "upload", strings.NewReader(sampleCSV))
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Parsed)
	assert.Equal(t, 1, summary.Mirrored)
	assert.Equal(t, int64(4), summary.Inserted)
	assert.Equal(t, 2, summary.Rejected)
	require.Len(t, summary.Errors, 2)
	assert.Contains(t, summary.Errors[0], "line 5")

	require.Len(t, stored, 4)
	last := stored[3]
	assert.Equal(t, "Arsenal", last.Team)
	assert.Equal(t, domain.VenueAway, last.Venue)
	assert.Equal(t, 1, last.GoalsAgainst)
	for i, r := range stored {
		assert.Equal(t, int64(i), r.Seq)
	}
	matches.AssertExpectations(t)
	audit.AssertExpectations(t)
}

func TestIngestService_ImportCSVStoreError(t *testing.T) {
	matches := &MockMatchStore{}
	matches.On("InsertBatch", mock.Anything, mock.Anything).Return(int64(0), errors.New("disk full"))

	svc := NewIngestService(matches, nil, nil, testLogger())
	summary, err := svc.ImportCSV(context.Background(), "upload", strings.NewReader(sampleCSV))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 3, summary.Parsed)
}

func TestIngestService_EmptyLogSkipsInsert(t *testing.T) {
	matches := &MockMatchStore{}
	svc := NewIngestService(matches, nil, nil, testLogger())

	summary, err := svc.ImportCSV(context.Background(), "empty", strings.NewReader("date,team,opponent,venue,gf,ga\n"))
	require.NoError(t, err)
	assert.Zero(t, summary.Parsed)
	matches.AssertNotCalled(t, "InsertBatch", mock.Anything, mock.Anything)
}

func TestIngestService_ImportFileAndBlob(t *testing.T) {
	ctx := context.Background()
	matches := &MockMatchStore{}
	matches.On("InsertBatch", mock.Anything, mock.Anything).Return(int64(4), nil)

	path := filepath.Join(t.TempDir(), "matches.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))

	svc := NewIngestService(matches, blobMap{"raw/matches.csv": sampleCSV}, nil, testLogger())

	fromFile, err := svc.ImportFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, path, fromFile.Source)

	fromBlob, err := svc.ImportBlob(ctx, "raw/matches.csv")
	require.NoError(t, err)
	assert.Equal(t, "s3://raw/matches.csv", fromBlob.Source)
	assert.Equal(t, fromFile.Parsed, fromBlob.Parsed)

	_, err = svc.ImportBlob(ctx, "raw/missing.csv")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.ImportFile(ctx, filepath.Join(t.TempDir(), "nope.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	noBlobs := NewIngestService(matches, nil, nil, testLogger())
	_, err = noBlobs.ImportBlob(ctx, "raw/matches.csv")
	assert.Error(t, err)
}

func TestIngestService_Matches(t *testing.T) {
	ctx := context.Background()
	matches := &MockMatchStore{}
	rows := fixture(day(2023, 1, 1), "Arsenal", "Chelsea", 2, 1)[:1]
	matches.On("ListByTeam", mock.Anything, "Arsenal", domain.ListOpts{Limit: 10}).Return(rows, nil)
	matches.On("Count", mock.Anything).Return(int64(42), nil)

	svc := NewIngestService(matches, nil, nil, testLogger())
	got, err := svc.Matches(ctx, "Arsenal", domain.ListOpts{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	_, err = svc.Matches(ctx, "", domain.ListOpts{})
	assert.ErrorIs(t, err, domain.ErrInvalidRecord)

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}
