package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MatchStore persists the historical match log.
type MatchStore interface {
	InsertBatch(ctx context.Context, records []MatchRecord) (int64, error)
	ListAll(ctx context.Context) ([]MatchRecord, error)
	ListByTeam(ctx context.Context, team string, opts ListOpts) ([]MatchRecord, error)
	Count(ctx context.Context) (int64, error)
}

// RatingHistoryStore persists per-match rating movements.
type RatingHistoryStore interface {
	ReplaceAll(ctx context.Context, changes []RatingChange) error
	ListByTeam(ctx context.Context, team string, opts ListOpts) ([]RatingChange, error)
	ListAll(ctx context.Context) ([]RatingChange, error)
}

// PredictionStore persists classifier predictions.
type PredictionStore interface {
	Create(ctx context.Context, p Prediction) error
	GetByID(ctx context.Context, id string) (Prediction, error)
	ListRecent(ctx context.Context, opts ListOpts) ([]Prediction, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]Prediction, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// LiveEventRecord is one persisted live match event.
type LiveEventRecord struct {
	ID        int64
	MatchID   string
	Kind      EventKind
	Minute    int
	HomeScore int
	AwayScore int
	Status    MatchStatus
	Payload   []byte
	CreatedAt time.Time
}

// LiveEventStore persists the event history of live matches.
type LiveEventStore interface {
	Append(ctx context.Context, state LiveMatchState, events []MatchEvent) error
	ListByMatch(ctx context.Context, matchID string) ([]LiveEventRecord, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]LiveEventRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
