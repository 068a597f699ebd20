package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

var ratingHistoryColumns = []string{"match_date", "team", "opponent", "result", "rating_before", "rating_after"}

// RatingHistoryStore implements domain.RatingHistoryStore. The table is a
// projection of the latest rebuild and is replaced wholesale each time.
type RatingHistoryStore struct {
	db DBTX
}

// NewRatingHistoryStore creates a new RatingHistoryStore.
func NewRatingHistoryStore(db DBTX) *RatingHistoryStore {
	return &RatingHistoryStore{db: db}
}

// ReplaceAll swaps the stored history for changes in a single transaction,
// loading the new rows with COPY.
func (s *RatingHistoryStore) ReplaceAll(ctx context.Context, changes []domain.RatingChange) error {
	err := inTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM rating_history`); err != nil {
			return err
		}
		if len(changes) == 0 {
			return nil
		}
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"rating_history"}, ratingHistoryColumns,
			pgx.CopyFromSlice(len(changes), func(i int) ([]any, error) {
				c := changes[i]
				return []any{c.MatchDate, c.Team, c.Opponent, string(c.Result), c.Before, c.After}, nil
			}))
		return err
	})
	if err != nil {
		return fmt.Errorf("postgres: replace rating history: %w", err)
	}
	return nil
}

// ListByTeam returns one team's movements, oldest first.
func (s *RatingHistoryStore) ListByTeam(ctx context.Context, team string, opts domain.ListOpts) ([]domain.RatingChange, error) {
	query, args := listClause(
		`SELECT match_date, team, opponent, result, rating_before, rating_after FROM rating_history WHERE team = $1`,
		[]any{team}, "match_date", "id", opts)
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list rating history for %s: %w", team, err)
	}
	return collectRatingChanges(rows)
}

// ListAll returns every movement in processing order.
func (s *RatingHistoryStore) ListAll(ctx context.Context) ([]domain.RatingChange, error) {
	rows, err := s.db.Query(ctx,
		`SELECT match_date, team, opponent, result, rating_before, rating_after FROM rating_history ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list rating history: %w", err)
	}
	return collectRatingChanges(rows)
}

func collectRatingChanges(rows pgx.Rows) ([]domain.RatingChange, error) {
	defer rows.Close()
	var out []domain.RatingChange
	for rows.Next() {
		var (
			c      domain.RatingChange
			result string
		)
		if err := rows.Scan(&c.MatchDate, &c.Team, &c.Opponent, &result, &c.Before, &c.After); err != nil {
			return nil, fmt.Errorf("postgres: scan rating change: %w", err)
		}
		c.Result = domain.Result(result)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rating history rows: %w", err)
	}
	return out, nil
}

var _ domain.RatingHistoryStore = (*RatingHistoryStore)(nil)
