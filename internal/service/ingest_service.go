package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alanyoungcy/matchcast/internal/domain"
	"github.com/alanyoungcy/matchcast/internal/ingest"
)

// maxReportedErrors caps the line errors echoed back in an ImportSummary.
const maxReportedErrors = 20

// ImportSummary reports the outcome of one import.
type ImportSummary struct {
	Source   string   `json:"source"`
	Parsed   int      `json:"parsed"`
	Mirrored int      `json:"mirrored"`
	Inserted int64    `json:"inserted"`
	Rejected int      `json:"rejected"`
	Errors   []string `json:"errors,omitempty"`
}

// IngestService loads match logs into the match store.
type IngestService struct {
	matches domain.MatchStore
	blobs   domain.BlobReader
	audit   domain.AuditStore
	logger  *slog.Logger
}

// NewIngestService creates an IngestService. blobs and audit may be nil.
func NewIngestService(matches domain.MatchStore, blobs domain.BlobReader, audit domain.AuditStore, logger *slog.Logger) *IngestService {
	return &IngestService{
		matches: matches,
		blobs:   blobs,
		audit:   audit,
		logger:  logger.With(slog.String("component", "ingest_service")),
	}
}

// ImportCSV parses a CSV log, completes single-perspective fixtures and
// inserts the rows. Rows already stored are skipped.
func (s *IngestService) ImportCSV(ctx context.Context, source string, r io.Reader) (ImportSummary, error) {
	res, err := ingest.ParseCSV(r, ingest.Options{})
	if err != nil {
		return ImportSummary{}, fmt.Errorf("ingest_service: parse %s: %w", source, err)
	}

	records := ingest.MirrorMissing(res.Records)
	summary := ImportSummary{
		Source:   source,
		Parsed:   len(res.Records),
		Mirrored: len(records) - len(res.Records),
		Rejected: len(res.Errors),
	}
	for i, le := range res.Errors {
		if i == maxReportedErrors {
			break
		}
		summary.Errors = append(summary.Errors, le.Error())
	}

	if len(records) > 0 {
		n, err := s.matches.InsertBatch(ctx, records)
		if err != nil {
			return summary, fmt.Errorf("ingest_service: insert %s: %w", source, err)
		}
		summary.Inserted = n
	}

	s.logger.InfoContext(ctx, "match log imported",
		slog.String("source", source),
		slog.Int("parsed", summary.Parsed),
		slog.Int("mirrored", summary.Mirrored),
		slog.Int64("inserted", summary.Inserted),
		slog.Int("rejected", summary.Rejected),
	)
	if s.audit != nil {
		if err := s.audit.Log(ctx, "matches.imported", map[string]any{
			"source":   source,
			"parsed":   summary.Parsed,
			"inserted": summary.Inserted,
			"rejected": summary.Rejected,
		}); err != nil {
			s.logger.WarnContext(ctx, "audit import failed", slog.String("error", err.Error()))
		}
	}
	return summary, nil
}

// ImportFile imports a CSV log from the local filesystem.
func (s *IngestService) ImportFile(ctx context.Context, path string) (ImportSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("ingest_service: open %s: %w", path, err)
	}
	defer f.Close()
	return s.ImportCSV(ctx, path, f)
}

// ImportBlob imports a CSV log from object storage.
func (s *IngestService) ImportBlob(ctx context.Context, key string) (ImportSummary, error) {
	if s.blobs == nil {
		return ImportSummary{}, fmt.Errorf("ingest_service: import %s: object storage disabled", key)
	}
	rc, err := s.blobs.Get(ctx, key)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("ingest_service: fetch %s: %w", key, err)
	}
	defer rc.Close()
	return s.ImportCSV(ctx, "s3://"+key, rc)
}

// Matches lists a team's stored matches, newest first.
func (s *IngestService) Matches(ctx context.Context, team string, opts domain.ListOpts) ([]domain.MatchRecord, error) {
	if team == "" {
		return nil, fmt.Errorf("ingest_service: list matches: %w: team is required", domain.ErrInvalidRecord)
	}
	return s.matches.ListByTeam(ctx, team, opts)
}

// Count returns the number of stored match rows.
func (s *IngestService) Count(ctx context.Context) (int64, error) {
	return s.matches.Count(ctx)
}
