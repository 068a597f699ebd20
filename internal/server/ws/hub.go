// Package ws relays signal bus topics to WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Topics are the channels clients may subscribe to.
var Topics = []string{domain.TopicGeneral, domain.TopicPredictions, domain.TopicLiveMatches}

func knownTopic(t string) bool {
	for _, k := range Topics {
		if k == t {
			return true
		}
	}
	return false
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	closed chan struct{} // closed by the hub when the client is dropped
	mu     sync.RWMutex
	subs   map[string]bool
}

// controlMsg is what clients send to change their subscriptions.
type controlMsg struct {
	Action string   `json:"action"` // "subscribe" or "unsubscribe"
	Topics []string `json:"topics"`
}

type topicMsg struct {
	topic string
	data  []byte
}

// Config carries metadata sent to clients when they connect.
type Config struct {
	Mode      string
	StartedAt time.Time
}

// Stats is a point-in-time view of the hub.
type Stats struct {
	Clients     int            `json:"clients"`
	Subscribers map[string]int `json:"subscribers"`
	Sent        int64          `json:"messages_sent"`
	Dropped     int64          `json:"messages_dropped"`
	Uptime      string         `json:"uptime"`
}

// Hub fans messages out to connected clients by topic. When a signal bus is
// configured every topic is relayed from it, so messages published by any
// process reach every client.
type Hub struct {
	bus    domain.SignalBus
	cfg    Config
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*client]bool

	broadcast  chan topicMsg
	register   chan *client
	unregister chan *client
	done       chan struct{}

	sent    atomic.Int64
	dropped atomic.Int64
}

// NewHub creates a Hub. bus may be nil, in which case only Publish calls in
// this process reach clients.
func NewHub(bus domain.SignalBus, cfg Config, logger *slog.Logger) *Hub {
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now().UTC()
	}
	return &Hub{
		bus:        bus,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "ws_hub")),
		clients:    make(map[*client]bool),
		broadcast:  make(chan topicMsg, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

// Run relays bus topics and serves client registration until ctx is
// cancelled.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	if h.bus != nil {
		for _, t := range Topics {
			if err := h.relay(ctx, t); err != nil {
				return err
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.closed)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client connected", slog.Int("clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				close(c.closed)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client disconnected", slog.Int("clients", n))

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(msg topicMsg) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.subscribed(msg.topic) {
			continue
		}
		select {
		case c.send <- msg.data:
			h.sent.Add(1)
		default:
			h.dropped.Add(1)
			h.logger.Warn("ws dropping message for slow client", slog.String("topic", msg.topic))
		}
	}
}

func (h *Hub) relay(ctx context.Context, topic string) error {
	ch, err := h.bus.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("ws: subscribe %s: %w", topic, err)
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case data, ok := <-ch:
				if !ok {
					h.logger.Warn("ws bus subscription closed", slog.String("topic", topic))
					return
				}
				h.enqueue(ctx, topic, data)
			}
		}
	}()
	return nil
}

func (h *Hub) enqueue(ctx context.Context, topic string, data []byte) {
	select {
	case h.broadcast <- topicMsg{topic: topic, data: data}:
	case <-ctx.Done():
	case <-h.done:
	}
}

// Publish sends msg to every subscriber of its topic. With a bus configured
// the message goes through the bus and comes back via the relay.
func (h *Hub) Publish(ctx context.Context, msg domain.BusMessage) error {
	if !knownTopic(msg.Topic) {
		return fmt.Errorf("ws: topic %q: %w", msg.Topic, domain.ErrNotFound)
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("ws: marshal: %w", err)
	}
	if h.bus != nil {
		return h.bus.Publish(ctx, msg.Topic, data)
	}
	h.enqueue(ctx, msg.Topic, data)
	return nil
}

// Stats reports connected clients and per-topic subscriber counts.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	st := Stats{
		Clients:     len(h.clients),
		Subscribers: make(map[string]int, len(Topics)),
		Sent:        h.sent.Load(),
		Dropped:     h.dropped.Load(),
		Uptime:      time.Since(h.cfg.StartedAt).Truncate(time.Second).String(),
	}
	for _, t := range Topics {
		st.Subscribers[t] = 0
	}
	for c := range h.clients {
		for _, t := range c.topics() {
			st.Subscribers[t]++
		}
	}
	return st
}

// HandleWS upgrades the request and registers the client. New clients are
// subscribed to the general topic, plus any listed in ?topics=a,b.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		closed: make(chan struct{}),
		subs:   map[string]bool{domain.TopicGeneral: true},
	}
	for _, t := range strings.Split(r.URL.Query().Get("topics"), ",") {
		if knownTopic(t) {
			c.subs[t] = true
		}
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	c.reply("connected", map[string]any{
		"mode":   h.cfg.Mode,
		"topics": c.topics(),
		"uptime": time.Since(h.cfg.StartedAt).Truncate(time.Second).String(),
	})

	go c.writePump()
	go c.readPump()
}

func (c *client) subscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subs[topic]
}

func (c *client) topics() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.subs))
	for t := range c.subs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// reply queues a control message for this client only.
func (c *client) reply(msgType string, data any) {
	msg, err := json.Marshal(domain.BusMessage{Type: msgType, Data: data, Timestamp: time.Now().UTC()})
	if err != nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *client) handleControl(msg controlMsg) {
	var unknown []string
	c.mu.Lock()
	for _, t := range msg.Topics {
		if !knownTopic(t) {
			unknown = append(unknown, t)
			continue
		}
		if msg.Action == "subscribe" {
			c.subs[t] = true
		} else {
			delete(c.subs, t)
		}
	}
	c.mu.Unlock()

	if len(unknown) > 0 {
		c.reply("error", map[string]any{"unknown_topics": unknown})
	}
	c.reply(msg.Action+"d", map[string]any{"topics": c.topics()})
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws unexpected close", slog.String("error", err.Error()))
			}
			return
		}
		var msg controlMsg
		if err := json.Unmarshal(message, &msg); err != nil || (msg.Action != "subscribe" && msg.Action != "unsubscribe") {
			c.reply("error", map[string]string{"error": "expected {\"action\":\"subscribe|unsubscribe\",\"topics\":[...]}"})
			continue
		}
		c.handleControl(msg)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.closed:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
