package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

// archiveBatch caps how many rows one archive run moves per table.
const archiveBatch = 20000

// PredictionArchiveStore is the part of domain.PredictionStore the archiver
// needs.
type PredictionArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.Prediction, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// LiveEventArchiveStore is the part of domain.LiveEventStore the archiver
// needs.
type LiveEventArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.LiveEventRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// RatingHistoryReader lists the current rating history projection.
type RatingHistoryReader interface {
	ListAll(ctx context.Context) ([]domain.RatingChange, error)
}

// ArchiveImpl implements domain.Archiver. Old predictions and live events are
// written to JSONL objects and then pruned from the database; the rating
// history is snapshotted without pruning since every rebuild regenerates it.
type ArchiveImpl struct {
	writer      domain.BlobWriter
	predictions PredictionArchiveStore
	events      LiveEventArchiveStore
	history     RatingHistoryReader
	audit       domain.AuditStore
}

// NewArchiver creates an ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	predictions PredictionArchiveStore,
	events LiveEventArchiveStore,
	history RatingHistoryReader,
	audit domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:      writer,
		predictions: predictions,
		events:      events,
		history:     history,
		audit:       audit,
	}
}

// ArchivePredictions uploads predictions older than before to
// archive/predictions/ and deletes them.
func (a *ArchiveImpl) ArchivePredictions(ctx context.Context, before time.Time) (int64, error) {
	rows, err := a.predictions.ListBefore(ctx, before, archiveBatch)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive predictions query: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	cut := before
	if len(rows) == archiveBatch {
		// Rows sharing the last timestamp stay behind and go out next run.
		cut = rows[len(rows)-1].CreatedAt
	}
	return archiveAndPrune(ctx, a, "predictions", before, rows, func() (int64, error) {
		return a.predictions.DeleteBefore(ctx, cut)
	})
}

// ArchiveLiveEvents uploads live events older than before to
// archive/live_events/ and deletes them.
func (a *ArchiveImpl) ArchiveLiveEvents(ctx context.Context, before time.Time) (int64, error) {
	rows, err := a.events.ListBefore(ctx, before, archiveBatch)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive live events query: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	cut := before
	if len(rows) == archiveBatch {
		cut = rows[len(rows)-1].CreatedAt
	}
	return archiveAndPrune(ctx, a, "live_events", before, rows, func() (int64, error) {
		return a.events.DeleteBefore(ctx, cut)
	})
}

// SnapshotRatingHistory uploads the whole rating history as of at.
func (a *ArchiveImpl) SnapshotRatingHistory(ctx context.Context, at time.Time) (int64, error) {
	rows, err := a.history.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("s3blob: snapshot rating history query: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return archiveAndPrune(ctx, a, "rating_history", at, rows, nil)
}

func archiveAndPrune[T any](ctx context.Context, a *ArchiveImpl, kind string, at time.Time, rows []T, prune func() (int64, error)) (int64, error) {
	buf, err := marshalJSONL(rows)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s marshal: %w", kind, err)
	}
	path := archivePath(kind, at)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
	}

	count := int64(len(rows))
	detail := map[string]any{"path": path, "count": count, "at": at.UTC().Format(time.RFC3339)}
	if prune != nil {
		deleted, err := prune()
		if err != nil {
			return count, fmt.Errorf("s3blob: archive %s prune: %w", kind, err)
		}
		detail["deleted"] = deleted
	}
	if err := a.audit.Log(ctx, "archive."+kind, detail); err != nil {
		return count, fmt.Errorf("s3blob: archive %s audit log: %w", kind, err)
	}
	return count, nil
}

// archivePath partitions archives by kind and cutoff:
//
//	archive/predictions/2025-01-31T000000Z.jsonl
func archivePath(kind string, at time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, at.UTC().Format("2006-01-02T150405Z"))
}

// marshalJSONL encodes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*ArchiveImpl)(nil)
