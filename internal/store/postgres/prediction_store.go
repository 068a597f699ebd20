package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

const predictionColumns = `id, team, opponent, match_date, venue, win, draw, loss, label, model_id, features, created_at`

// PredictionStore implements domain.PredictionStore using PostgreSQL.
type PredictionStore struct {
	db DBTX
}

// NewPredictionStore creates a new PredictionStore.
func NewPredictionStore(db DBTX) *PredictionStore {
	return &PredictionStore{db: db}
}

// Create inserts a prediction. A duplicate id yields domain.ErrAlreadyExists.
func (s *PredictionStore) Create(ctx context.Context, p domain.Prediction) error {
	features, err := json.Marshal(p.Features)
	if err != nil {
		return fmt.Errorf("postgres: marshal prediction features: %w", err)
	}
	tag, err := s.db.Exec(ctx, `
		INSERT INTO predictions (`+predictionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`,
		p.ID, p.Team, p.Opponent, p.MatchDate, string(p.Venue),
		p.Probabilities.Win, p.Probabilities.Draw, p.Probabilities.Loss,
		string(p.Label), p.ModelID, features, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create prediction %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: create prediction %s: %w", p.ID, domain.ErrAlreadyExists)
	}
	return nil
}

// GetByID returns domain.ErrNotFound for an unknown id.
func (s *PredictionStore) GetByID(ctx context.Context, id string) (domain.Prediction, error) {
	rows, err := s.db.Query(ctx, `SELECT `+predictionColumns+` FROM predictions WHERE id = $1`, id)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("postgres: get prediction %s: %w", id, err)
	}
	out, err := collectPredictions(rows)
	if err != nil {
		return domain.Prediction{}, err
	}
	if len(out) == 0 {
		return domain.Prediction{}, fmt.Errorf("postgres: prediction %s: %w", id, domain.ErrNotFound)
	}
	return out[0], nil
}

// ListRecent returns predictions newest first.
func (s *PredictionStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Prediction, error) {
	query, args := listClause(`SELECT `+predictionColumns+` FROM predictions WHERE 1=1`,
		nil, "created_at", "created_at DESC", opts)
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list predictions: %w", err)
	}
	return collectPredictions(rows)
}

// ListBefore returns up to limit predictions created before the cutoff,
// oldest first.
func (s *PredictionStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.Prediction, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+predictionColumns+` FROM predictions WHERE created_at < $1 ORDER BY created_at LIMIT $2`,
		before, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list predictions before %s: %w", before.Format(time.RFC3339), err)
	}
	return collectPredictions(rows)
}

// DeleteBefore removes predictions created before the cutoff.
func (s *PredictionStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM predictions WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete predictions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func collectPredictions(rows pgx.Rows) ([]domain.Prediction, error) {
	defer rows.Close()
	var out []domain.Prediction
	for rows.Next() {
		var (
			p            domain.Prediction
			venue, label string
			features     []byte
		)
		if err := rows.Scan(&p.ID, &p.Team, &p.Opponent, &p.MatchDate, &venue,
			&p.Probabilities.Win, &p.Probabilities.Draw, &p.Probabilities.Loss,
			&label, &p.ModelID, &features, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan prediction: %w", err)
		}
		p.Venue = domain.Venue(venue)
		p.Label = domain.Result(label)
		if len(features) > 0 {
			if err := json.Unmarshal(features, &p.Features); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal prediction %s features: %w", p.ID, err)
			}
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: prediction rows: %w", err)
	}
	return out, nil
}

var _ domain.PredictionStore = (*PredictionStore)(nil)
