package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

// memBus is an in-process domain.SignalBus.
type memBus struct {
	mu   sync.Mutex
	subs map[string][]chan []byte
}

func newMemBus() *memBus { return &memBus{subs: make(map[string][]chan []byte)} }

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[channel] {
		ch <- payload
	}
	return nil
}

func (b *memBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan []byte, 16)
	b.subs[channel] = append(b.subs[channel], ch)
	return ch, nil
}

func (b *memBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *memBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func startHub(t *testing.T, bus domain.SignalBus) (*Hub, string) {
	t.Helper()
	hub := NewHub(bus, Config{Mode: "serve"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(done)
	}()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) domain.BusMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg domain.BusMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_LocalPublishRespectsTopics(t *testing.T) {
	hub, url := startHub(t, nil)
	conn := dial(t, url)

	hello := readMsg(t, conn)
	assert.Equal(t, "connected", hello.Type)

	ctx := context.Background()
	require.NoError(t, hub.Publish(ctx, domain.BusMessage{Type: domain.MsgPredictionReady, Topic: domain.TopicPredictions}))
	require.NoError(t, hub.Publish(ctx, domain.BusMessage{Type: domain.MsgRebuildCompleted, Topic: domain.TopicGeneral}))

	msg := readMsg(t, conn)
	assert.Equal(t, domain.MsgRebuildCompleted, msg.Type, "predictions topic was not subscribed")

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "subscribe", "topics": []string{domain.TopicPredictions, "nope"}}))
	assert.Equal(t, "error", readMsg(t, conn).Type)
	ack := readMsg(t, conn)
	assert.Equal(t, "subscribed", ack.Type)

	require.NoError(t, hub.Publish(ctx, domain.BusMessage{Type: domain.MsgPredictionReady, Topic: domain.TopicPredictions}))
	assert.Equal(t, domain.MsgPredictionReady, readMsg(t, conn).Type)

	assert.Eventually(t, func() bool {
		st := hub.Stats()
		return st.Clients == 1 && st.Subscribers[domain.TopicPredictions] == 1 && st.Subscribers[domain.TopicLiveMatches] == 0
	}, time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, hub.Publish(ctx, domain.BusMessage{Topic: "secret"}), domain.ErrNotFound)
}

func TestHub_RelaysBus(t *testing.T) {
	bus := newMemBus()
	hub, url := startHub(t, bus)
	conn := dial(t, url+"?topics=live_matches")

	hello := readMsg(t, conn)
	require.Equal(t, "connected", hello.Type)

	assert.Eventually(t, func() bool {
		bus.mu.Lock()
		defer bus.mu.Unlock()
		return len(bus.subs[domain.TopicLiveMatches]) == 1
	}, time.Second, 10*time.Millisecond)

	payload, err := json.Marshal(domain.BusMessage{Type: domain.MsgScoreUpdate, Topic: domain.TopicLiveMatches})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), domain.TopicLiveMatches, payload))
	assert.Equal(t, domain.MsgScoreUpdate, readMsg(t, conn).Type)

	// Publish goes through the bus and comes back through the relay.
	require.NoError(t, hub.Publish(context.Background(), domain.BusMessage{Type: domain.MsgMatchFinished, Topic: domain.TopicLiveMatches}))
	assert.Equal(t, domain.MsgMatchFinished, readMsg(t, conn).Type)
	assert.Eventually(t, func() bool { return hub.Stats().Sent >= 2 }, time.Second, 10*time.Millisecond)
}

func TestHub_Disconnect(t *testing.T) {
	hub, url := startHub(t, nil)
	conn := dial(t, url)
	readMsg(t, conn)

	assert.Eventually(t, func() bool { return hub.Stats().Clients == 1 }, time.Second, 10*time.Millisecond)
	conn.Close()
	assert.Eventually(t, func() bool { return hub.Stats().Clients == 0 }, time.Second, 10*time.Millisecond)
}
