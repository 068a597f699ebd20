package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/matchcast/internal/classifier"
	"github.com/alanyoungcy/matchcast/internal/domain"
)

// MockFeatureSource is a mock implementation of FeatureSource.
type MockFeatureSource struct {
	mock.Mock
}

func (m *MockFeatureSource) FeaturesFor(ctx context.Context, team, opponent string, date time.Time, venue domain.Venue) (domain.FeatureVector, error) {
	args := m.Called(ctx, team, opponent, date, venue)
	return args.Get(0).(domain.FeatureVector), args.Error(1)
}

// failingClassifier always errors.
type failingClassifier struct{}

func (failingClassifier) Predict(context.Context, domain.FeatureVector) (domain.Probabilities, error) {
	return domain.Probabilities{}, errors.New("model offline")
}

func (failingClassifier) ModelID() string { return "failing" }

func sampleVector(date time.Time) domain.FeatureVector {
	return domain.FeatureVector{
		MatchDate:      date,
		Team:           "Arsenal",
		Opponent:       "Chelsea",
		Venue:          domain.VenueHome,
		TeamRating:     1600,
		OpponentRating: 1450,
		RatingDiff:     150,
	}
}

func TestPredictionService_Predict(t *testing.T) {
	ctx := context.Background()
	date := day(2024, 3, 2)
	fv := sampleVector(date)

	src := &MockFeatureSource{}
	src.On("FeaturesFor", mock.Anything, "Arsenal", "Chelsea", date, domain.VenueHome).Return(fv, nil).Once()
	store := &MockPredictionStore{}
	store.On("Create", mock.Anything, mock.MatchedBy(func(p domain.Prediction) bool {
		return p.ID != "" && p.Team == "Arsenal" && p.ModelID == classifier.BaselineModelID
	})).Return(nil)
	cache := newMemFeatureCache()
	bus := &fakeBus{}

	svc := NewPredictionService(src, cache, classifier.NewBaseline(0), store, bus, testLogger())
	req := PredictRequest{Team: "Arsenal", Opponent: "Chelsea", Date: date, Venue: domain.VenueHome}

	p, err := svc.Predict(ctx, req)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, p.Probabilities.Sum(), 1e-9)
	assert.Greater(t, p.Probabilities.Win, p.Probabilities.Loss)
	assert.Equal(t, domain.ResultWin, p.Label)
	assert.Equal(t, fv, p.Features)
	assert.False(t, p.CreatedAt.IsZero())

	// second call is served from the cache
	p2, err := svc.Predict(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, p.ID, p2.ID)
	assert.Equal(t, p.Probabilities, p2.Probabilities)
	assert.Equal(t, 1, cache.hits)

	assert.Equal(t, []string{domain.MsgPredictionReady, domain.MsgPredictionReady}, bus.types(domain.TopicPredictions))
	src.AssertExpectations(t)
	store.AssertNumberOfCalls(t, "Create", 2)
}

func TestPredictionService_Validation(t *testing.T) {
	svc := NewPredictionService(&MockFeatureSource{}, nil, classifier.NewBaseline(0), nil, nil, testLogger())
	date := day(2024, 3, 2)

	cases := map[string]PredictRequest{
		"missing team":  {Opponent: "Chelsea", Date: date, Venue: domain.VenueHome},
		"same teams":    {Team: "Arsenal", Opponent: "Arsenal", Date: date, Venue: domain.VenueHome},
		"missing date":  {Team: "Arsenal", Opponent: "Chelsea", Venue: domain.VenueHome},
		"unknown venue": {Team: "Arsenal", Opponent: "Chelsea", Date: date, Venue: "neutral"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Predict(context.Background(), req)
			assert.ErrorIs(t, err, domain.ErrInvalidRecord)
		})
	}
}

func TestPredictionService_UnknownTeam(t *testing.T) {
	date := day(2024, 3, 2)
	src := &MockFeatureSource{}
	src.On("FeaturesFor", mock.Anything, "Arsenal", "Leeds", date, domain.VenueAway).
		Return(domain.FeatureVector{}, domain.ErrNotFound)
	store := &MockPredictionStore{}

	svc := NewPredictionService(src, nil, classifier.NewBaseline(0), store, nil, testLogger())
	_, err := svc.Predict(context.Background(), PredictRequest{Team: "Arsenal", Opponent: "Leeds", Date: date, Venue: domain.VenueAway})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPredictionService_ClassifierError(t *testing.T) {
	date := day(2024, 3, 2)
	src := &MockFeatureSource{}
	src.On("FeaturesFor", mock.Anything, "Arsenal", "Chelsea", date, domain.VenueHome).Return(sampleVector(date), nil)
	bus := &fakeBus{}

	svc := NewPredictionService(src, nil, failingClassifier{}, nil, bus, testLogger())
	_, err := svc.Predict(context.Background(), PredictRequest{Team: "Arsenal", Opponent: "Chelsea", Date: date, Venue: domain.VenueHome})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model offline")
	assert.Empty(t, bus.types(domain.TopicPredictions))
}

func TestPredictionService_GetAndRecent(t *testing.T) {
	ctx := context.Background()
	store := &MockPredictionStore{}
	want := domain.Prediction{ID: "p-1", Team: "Arsenal"}
	store.On("GetByID", mock.Anything, "p-1").Return(want, nil)
	store.On("GetByID", mock.Anything, "missing").Return(domain.Prediction{}, domain.ErrNotFound)
	store.On("ListRecent", mock.Anything, domain.ListOpts{Limit: 5}).Return([]domain.Prediction{want}, nil)

	svc := NewPredictionService(&MockFeatureSource{}, nil, classifier.NewBaseline(0), store, nil, testLogger())
	got, err := svc.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	recent, err := svc.Recent(ctx, domain.ListOpts{Limit: 5})
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	bare := NewPredictionService(&MockFeatureSource{}, nil, classifier.NewBaseline(0), nil, nil, testLogger())
	_, err = bare.Get(ctx, "p-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
