package live

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/alanyoungcy/matchcast/internal/domain"
	"github.com/alanyoungcy/matchcast/internal/rating"
)

// Updater is the part of Manager the simulator drives.
type Updater interface {
	Update(ctx context.Context, matchID string, u domain.LiveUpdate) (domain.Transition, error)
}

// Simulator produces plausible score/minute sequences for demo matches. All
// randomness comes from the injected source so runs are reproducible.
type Simulator struct {
	rng      *rand.Rand
	step     int     // minutes per update
	homeRate float64 // expected home goals per 90 minutes
	awayRate float64
}

// NewSimulator creates a simulator. homeRate and awayRate are expected goals
// per 90 minutes.
func NewSimulator(rng *rand.Rand, step int, homeRate, awayRate float64) *Simulator {
	if step <= 0 {
		step = 5
	}
	return &Simulator{rng: rng, step: step, homeRate: homeRate, awayRate: awayRate}
}

// Tilt scales the expected goals by the Elo expectation of a pre-match
// rating difference, home minus away. A zero difference changes nothing.
func (s *Simulator) Tilt(ratingDiff float64) *Simulator {
	e := rating.ExpectedScore(ratingDiff, 0)
	s.homeRate *= 2 * e
	s.awayRate *= 2 * (1 - e)
	return s
}

// Script returns the whole sequence of updates from kick-off to full time.
func (s *Simulator) Script() []domain.LiveUpdate {
	var (
		out        []domain.LiveUpdate
		home, away int
	)
	pHome := s.homeRate * float64(s.step) / regulationMinutes
	pAway := s.awayRate * float64(s.step) / regulationMinutes
	for minute := s.step; ; minute += s.step {
		if minute > regulationMinutes {
			minute = regulationMinutes
		}
		if s.rng.Float64() < pHome {
			home++
		}
		if s.rng.Float64() < pAway {
			away++
		}
		out = append(out, domain.LiveUpdate{HomeScore: home, AwayScore: away, Minute: minute})
		if minute == regulationMinutes {
			return out
		}
	}
}

// Run plays a script against a live match, one update per interval.
func (s *Simulator) Run(ctx context.Context, u Updater, matchID string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for _, upd := range s.Script() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if _, err := u.Update(ctx, matchID, upd); err != nil {
			if errors.Is(err, domain.ErrMatchAlreadyFinished) {
				return nil
			}
			return fmt.Errorf("live: simulate %s: %w", matchID, err)
		}
	}
	return nil
}
