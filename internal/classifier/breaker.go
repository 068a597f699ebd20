package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

// BreakerConfig tunes the circuit breaker around a classifier.
type BreakerConfig struct {
	Name     string
	Failures uint32        // consecutive failures that open the circuit
	OpenFor  time.Duration // how long the circuit stays open
}

type modelPredictor interface {
	PredictModel(ctx context.Context, fv domain.FeatureVector) (domain.Probabilities, string, error)
}

type answer struct {
	p     domain.Probabilities
	model string
}

// Breaker guards a classifier with a gobreaker circuit. When the inner call
// fails or the circuit is open, the optional fallback answers instead.
type Breaker struct {
	inner    domain.Classifier
	fallback domain.Classifier
	cb       *gobreaker.CircuitBreaker
	logger   *slog.Logger
}

// NewBreaker wraps inner. fallback may be nil.
func NewBreaker(inner, fallback domain.Classifier, cfg BreakerConfig, logger *slog.Logger) *Breaker {
	if cfg.Name == "" {
		cfg.Name = "classifier"
	}
	if cfg.Failures == 0 {
		cfg.Failures = 5
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 30 * time.Second
	}
	logger = logger.With(slog.String("component", "classifier_breaker"))
	return &Breaker{
		inner:    inner,
		fallback: fallback,
		logger:   logger,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        cfg.Name,
			MaxRequests: 1,
			Timeout:     cfg.OpenFor,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= cfg.Failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed",
					slog.String("breaker", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
			},
		}),
	}
}

// ModelID reports the inner classifier's id.
func (b *Breaker) ModelID() string { return b.inner.ModelID() }

// State exposes the circuit state for status reporting.
func (b *Breaker) State() string { return b.cb.State().String() }

// Predict implements domain.Classifier.
func (b *Breaker) Predict(ctx context.Context, fv domain.FeatureVector) (domain.Probabilities, error) {
	p, _, err := b.PredictModel(ctx, fv)
	return p, err
}

// PredictModel returns the probabilities together with the id of the model
// that produced them, which is the fallback's when it answered.
func (b *Breaker) PredictModel(ctx context.Context, fv domain.FeatureVector) (domain.Probabilities, string, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		p, model, err := Predict(ctx, b.inner, fv)
		if err != nil {
			return nil, err
		}
		return answer{p: p, model: model}, nil
	})
	if err == nil {
		a := res.(answer)
		return a.p, a.model, nil
	}

	open := errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
	if b.fallback == nil || ctx.Err() != nil {
		return domain.Probabilities{}, "", fmt.Errorf("classifier: %s: %w", b.inner.ModelID(), err)
	}
	b.logger.WarnContext(ctx, "classifier unavailable, using fallback",
		slog.Bool("circuit_open", open),
		slog.String("error", err.Error()),
	)
	return Predict(ctx, b.fallback, fv)
}

// Predict asks c for probabilities and the id of the model that answered.
func Predict(ctx context.Context, c domain.Classifier, fv domain.FeatureVector) (domain.Probabilities, string, error) {
	if mp, ok := c.(modelPredictor); ok {
		return mp.PredictModel(ctx, fv)
	}
	p, err := c.Predict(ctx, fv)
	if err != nil {
		return domain.Probabilities{}, "", err
	}
	return p, c.ModelID(), nil
}

var _ domain.Classifier = (*Breaker)(nil)
