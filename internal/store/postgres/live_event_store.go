package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

const liveEventColumns = `id, match_id, kind, minute, home_score, away_score, status, payload, created_at`

// LiveEventStore implements domain.LiveEventStore using PostgreSQL.
type LiveEventStore struct {
	db  DBTX
	now func() time.Time
}

// NewLiveEventStore creates a new LiveEventStore.
func NewLiveEventStore(db DBTX) *LiveEventStore {
	return &LiveEventStore{db: db, now: time.Now}
}

// Append stores events emitted by one transition of state. Each row carries
// the score and status after the transition alongside the JSON event.
func (s *LiveEventStore) Append(ctx context.Context, state domain.LiveMatchState, events []domain.MatchEvent) error {
	if len(events) == 0 {
		return nil
	}
	now := s.now().UTC()
	err := inTx(ctx, s.db, func(tx pgx.Tx) error {
		for _, ev := range events {
			payload, err := json.Marshal(domain.EventLog{ev})
			if err != nil {
				return fmt.Errorf("marshal %s event: %w", ev.Kind(), err)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO live_events (match_id, kind, minute, home_score, away_score, status, payload, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				state.MatchID, string(ev.Kind()), ev.EventMinute(), state.HomeScore, state.AwayScore,
				string(state.Status), payload, now,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("postgres: append live events for %s: %w", state.MatchID, err)
	}
	return nil
}

// ListByMatch returns a match's events in the order they were stored.
func (s *LiveEventStore) ListByMatch(ctx context.Context, matchID string) ([]domain.LiveEventRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+liveEventColumns+` FROM live_events WHERE match_id = $1 ORDER BY id`, matchID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list live events for %s: %w", matchID, err)
	}
	return collectLiveEvents(rows)
}

// ListBefore returns up to limit events stored before the cutoff, oldest first.
func (s *LiveEventStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.LiveEventRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+liveEventColumns+` FROM live_events WHERE created_at < $1 ORDER BY id LIMIT $2`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list live events before %s: %w", before.Format(time.RFC3339), err)
	}
	return collectLiveEvents(rows)
}

// DeleteBefore removes events stored before the cutoff.
func (s *LiveEventStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM live_events WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete live events: %w", err)
	}
	return tag.RowsAffected(), nil
}

func collectLiveEvents(rows pgx.Rows) ([]domain.LiveEventRecord, error) {
	defer rows.Close()
	var out []domain.LiveEventRecord
	for rows.Next() {
		var (
			r            domain.LiveEventRecord
			kind, status string
		)
		if err := rows.Scan(&r.ID, &r.MatchID, &kind, &r.Minute, &r.HomeScore, &r.AwayScore,
			&status, &r.Payload, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan live event: %w", err)
		}
		r.Kind = domain.EventKind(kind)
		r.Status = domain.MatchStatus(status)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: live event rows: %w", err)
	}
	return out, nil
}

var _ domain.LiveEventStore = (*LiveEventStore)(nil)
