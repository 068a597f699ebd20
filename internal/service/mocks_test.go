package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fixture(date time.Time, home, away string, hg, ag int) []domain.MatchRecord {
	return []domain.MatchRecord{
		{MatchDate: date, Team: home, Opponent: away, Venue: domain.VenueHome, GoalsFor: hg, GoalsAgainst: ag},
		{MatchDate: date, Team: away, Opponent: home, Venue: domain.VenueAway, GoalsFor: ag, GoalsAgainst: hg},
	}
}

func sampleLog() []domain.MatchRecord {
	var log []domain.MatchRecord
	log = append(log, fixture(day(2023, 1, 1), "Arsenal", "Chelsea", 2, 1)...)
	log = append(log, fixture(day(2023, 2, 1), "Chelsea", "Arsenal", 1, 0)...)
	return log
}

// MockMatchStore is a mock implementation of domain.MatchStore.
type MockMatchStore struct {
	mock.Mock
}

func (m *MockMatchStore) InsertBatch(ctx context.Context, records []domain.MatchRecord) (int64, error) {
	args := m.Called(ctx, records)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMatchStore) ListAll(ctx context.Context) ([]domain.MatchRecord, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.MatchRecord), args.Error(1)
}

func (m *MockMatchStore) ListByTeam(ctx context.Context, team string, opts domain.ListOpts) ([]domain.MatchRecord, error) {
	args := m.Called(ctx, team, opts)
	return args.Get(0).([]domain.MatchRecord), args.Error(1)
}

func (m *MockMatchStore) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockHistoryStore is a mock implementation of domain.RatingHistoryStore.
type MockHistoryStore struct {
	mock.Mock
}

func (m *MockHistoryStore) ReplaceAll(ctx context.Context, changes []domain.RatingChange) error {
	return m.Called(ctx, changes).Error(0)
}

func (m *MockHistoryStore) ListByTeam(ctx context.Context, team string, opts domain.ListOpts) ([]domain.RatingChange, error) {
	args := m.Called(ctx, team, opts)
	return args.Get(0).([]domain.RatingChange), args.Error(1)
}

func (m *MockHistoryStore) ListAll(ctx context.Context) ([]domain.RatingChange, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.RatingChange), args.Error(1)
}

// MockPredictionStore is a mock implementation of domain.PredictionStore.
type MockPredictionStore struct {
	mock.Mock
}

func (m *MockPredictionStore) Create(ctx context.Context, p domain.Prediction) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockPredictionStore) GetByID(ctx context.Context, id string) (domain.Prediction, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Prediction), args.Error(1)
}

func (m *MockPredictionStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Prediction, error) {
	args := m.Called(ctx, opts)
	return args.Get(0).([]domain.Prediction), args.Error(1)
}

func (m *MockPredictionStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.Prediction, error) {
	args := m.Called(ctx, before, limit)
	return args.Get(0).([]domain.Prediction), args.Error(1)
}

func (m *MockPredictionStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// MockLiveEventStore is a mock implementation of domain.LiveEventStore.
type MockLiveEventStore struct {
	mock.Mock
}

func (m *MockLiveEventStore) Append(ctx context.Context, state domain.LiveMatchState, events []domain.MatchEvent) error {
	return m.Called(ctx, state, events).Error(0)
}

func (m *MockLiveEventStore) ListByMatch(ctx context.Context, matchID string) ([]domain.LiveEventRecord, error) {
	args := m.Called(ctx, matchID)
	return args.Get(0).([]domain.LiveEventRecord), args.Error(1)
}

func (m *MockLiveEventStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.LiveEventRecord, error) {
	args := m.Called(ctx, before, limit)
	return args.Get(0).([]domain.LiveEventRecord), args.Error(1)
}

func (m *MockLiveEventStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// MockAuditStore is a mock implementation of domain.AuditStore.
type MockAuditStore struct {
	mock.Mock
}

func (m *MockAuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	return m.Called(ctx, event, detail).Error(0)
}

func (m *MockAuditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	args := m.Called(ctx, opts)
	return args.Get(0).([]domain.AuditEntry), args.Error(1)
}

// MockNotifier is a mock implementation of Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, event, title, message string) error {
	return m.Called(ctx, event, title, message).Error(0)
}

// fakeBus records published messages.
type fakeBus struct {
	mu   sync.Mutex
	msgs []domain.BusMessage
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	var msg domain.BusMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	msg.Topic = channel
	b.mu.Lock()
	b.msgs = append(b.msgs, msg)
	b.mu.Unlock()
	return nil
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return make(chan []byte), nil
}

func (b *fakeBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *fakeBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func (b *fakeBus) types(topic string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, m := range b.msgs {
		if m.Topic == topic {
			out = append(out, m.Type)
		}
	}
	return out
}

// memFeatureCache is an in-memory domain.FeatureCache.
type memFeatureCache struct {
	mu   sync.Mutex
	data map[string]domain.FeatureVector
	hits int
}

func newMemFeatureCache() *memFeatureCache {
	return &memFeatureCache{data: make(map[string]domain.FeatureVector)}
}

func cacheKey(team, opponent string, date time.Time) string {
	return team + "|" + opponent + "|" + date.Format(domain.DateLayout)
}

func (c *memFeatureCache) Get(_ context.Context, team, opponent string, date time.Time) (domain.FeatureVector, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fv, ok := c.data[cacheKey(team, opponent, date)]
	if !ok {
		return domain.FeatureVector{}, domain.ErrNotFound
	}
	c.hits++
	return fv, nil
}

func (c *memFeatureCache) Set(_ context.Context, fv domain.FeatureVector) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[cacheKey(fv.Team, fv.Opponent, fv.MatchDate)] = fv
	return nil
}

func (c *memFeatureCache) Flush(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := int64(len(c.data))
	c.data = make(map[string]domain.FeatureVector)
	return n, nil
}

// heldLock always reports the lock as taken.
type heldLock struct{}

func (heldLock) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, domain.ErrLockHeld
}
