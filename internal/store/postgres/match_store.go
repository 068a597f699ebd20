package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

// matchInsertChunk bounds the rows per INSERT statement. Ten columns per row
// keeps a chunk well under the 65535 parameter limit.
const matchInsertChunk = 500

const matchColumns = `id, match_date, team, opponent, venue, goals_for, goals_against, shots, shots_on_target, season`

// MatchStore implements domain.MatchStore using PostgreSQL.
type MatchStore struct {
	db DBTX
}

// NewMatchStore creates a new MatchStore.
func NewMatchStore(db DBTX) *MatchStore {
	return &MatchStore{db: db}
}

// InsertBatch inserts records in one transaction. A record whose (date, team,
// opponent) already exists is skipped, so re-importing a file is harmless.
// It returns the number of rows actually inserted.
func (s *MatchStore) InsertBatch(ctx context.Context, records []domain.MatchRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	var inserted int64
	err := inTx(ctx, s.db, func(tx pgx.Tx) error {
		for start := 0; start < len(records); start += matchInsertChunk {
			end := min(start+matchInsertChunk, len(records))
			query, args := matchInsertQuery(records[start:end])
			tag, err := tx.Exec(ctx, query, args...)
			if err != nil {
				return err
			}
			inserted += tag.RowsAffected()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("postgres: insert matches: %w", err)
	}
	return inserted, nil
}

func matchInsertQuery(records []domain.MatchRecord) (string, []any) {
	var b strings.Builder
	b.WriteString(`INSERT INTO matches (match_date, team, opponent, venue, goals_for, goals_against, shots, shots_on_target, season) VALUES `)
	args := make([]any, 0, len(records)*9)
	for i, m := range records {
		if i > 0 {
			b.WriteString(", ")
		}
		n := len(args)
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8, n+9)
		args = append(args, m.MatchDate, m.Team, m.Opponent, string(m.Venue),
			m.GoalsFor, m.GoalsAgainst, m.Shots, m.ShotsOnTarget, m.Season)
	}
	b.WriteString(` ON CONFLICT (match_date, team, opponent) DO NOTHING`)
	return b.String(), args
}

// ListAll returns the whole log by date, ties in insertion order.
func (s *MatchStore) ListAll(ctx context.Context) ([]domain.MatchRecord, error) {
	rows, err := s.db.Query(ctx, `SELECT `+matchColumns+` FROM matches ORDER BY match_date, id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list matches: %w", err)
	}
	return collectMatches(rows)
}

// ListByTeam returns a team's rows, newest first.
func (s *MatchStore) ListByTeam(ctx context.Context, team string, opts domain.ListOpts) ([]domain.MatchRecord, error) {
	query, args := listClause(`SELECT `+matchColumns+` FROM matches WHERE team = $1`,
		[]any{team}, "match_date", "match_date DESC, id DESC", opts)
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list matches for %s: %w", team, err)
	}
	return collectMatches(rows)
}

// Count returns the number of stored rows.
func (s *MatchStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM matches`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count matches: %w", err)
	}
	return n, nil
}

func collectMatches(rows pgx.Rows) ([]domain.MatchRecord, error) {
	defer rows.Close()
	var out []domain.MatchRecord
	for rows.Next() {
		var (
			m     domain.MatchRecord
			venue string
		)
		if err := rows.Scan(&m.Seq, &m.MatchDate, &m.Team, &m.Opponent, &venue,
			&m.GoalsFor, &m.GoalsAgainst, &m.Shots, &m.ShotsOnTarget, &m.Season); err != nil {
			return nil, fmt.Errorf("postgres: scan match: %w", err)
		}
		m.Venue = domain.Venue(venue)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: match rows: %w", err)
	}
	return out, nil
}

var _ domain.MatchStore = (*MatchStore)(nil)
