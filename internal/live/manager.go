package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

// ManagerConfig tunes buffering of the live match manager.
type ManagerConfig struct {
	MailboxSize int // pending commands per match
	OutboxSize  int // transitions waiting for the broadcaster
}

// StartRequest describes a match to begin tracking.
type StartRequest struct {
	MatchID    string // generated when empty
	HomeTeam   string
	AwayTeam   string
	RatingDiff float64
}

// ErrClosed is returned by Start once Close has been called.
var ErrClosed = errors.New("live manager closed")

type commandKind int

const (
	cmdUpdate commandKind = iota
	cmdFinish
	cmdGet
	cmdStop
)

type command struct {
	kind   commandKind
	update domain.LiveUpdate
	reply  chan reply
}

type reply struct {
	tr  domain.Transition
	err error
}

type actor struct {
	id    string
	inbox chan command
	done  chan struct{}
}

// Manager runs each live match on its own goroutine. Commands for one match
// are applied in the order they arrive; different matches never wait on each
// other. Every accepted change is offered to Transitions without blocking.
type Manager struct {
	cfg    ManagerConfig
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	actors  map[string]*actor
	stopped map[string]struct{}
	closed  bool
	wg      sync.WaitGroup

	out     chan domain.Transition
	dropped atomic.Int64
}

// NewManager creates a Manager. Call Close to stop every match goroutine.
func NewManager(cfg ManagerConfig, logger *slog.Logger) *Manager {
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = 16
	}
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = 256
	}
	return &Manager{
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "live_manager")),
		now:     time.Now,
		actors:  make(map[string]*actor),
		stopped: make(map[string]struct{}),
		out:     make(chan domain.Transition, cfg.OutboxSize),
	}
}

// Transitions delivers every accepted change. When the consumer falls behind
// transitions are dropped rather than blocking the match.
func (m *Manager) Transitions() <-chan domain.Transition { return m.out }

// Count is the number of matches currently tracked.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.actors)
}

// Dropped is the number of transitions discarded because the outbox was full.
func (m *Manager) Dropped() int64 { return m.dropped.Load() }

// Start begins tracking a new match in the pre-match phase.
func (m *Manager) Start(ctx context.Context, req StartRequest) (domain.Transition, error) {
	if req.HomeTeam == "" || req.AwayTeam == "" || req.HomeTeam == req.AwayTeam {
		return domain.Transition{}, fmt.Errorf("live: start: %w: home and away teams must differ", domain.ErrInvalidRecord)
	}
	id := req.MatchID
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return domain.Transition{}, fmt.Errorf("live: start %s: %w", id, ErrClosed)
	}
	if _, ok := m.actors[id]; ok {
		m.mu.Unlock()
		return domain.Transition{}, fmt.Errorf("live: start %s: %w", id, domain.ErrAlreadyExists)
	}
	delete(m.stopped, id)
	machine := NewMachine(id, req.HomeTeam, req.AwayTeam, req.RatingDiff, m.now())
	a := &actor{id: id, inbox: make(chan command, m.cfg.MailboxSize), done: make(chan struct{})}
	m.actors[id] = a
	m.wg.Add(1)
	m.mu.Unlock()

	tr := machine.Snapshot()
	m.emit(tr)
	go m.run(a, machine)

	m.logger.InfoContext(ctx, "live match started",
		slog.String("match_id", id),
		slog.String("home", req.HomeTeam),
		slog.String("away", req.AwayTeam),
	)
	return tr, nil
}

// Update applies a score/minute observation to a match.
func (m *Manager) Update(ctx context.Context, matchID string, u domain.LiveUpdate) (domain.Transition, error) {
	return m.send(ctx, matchID, command{kind: cmdUpdate, update: u})
}

// Finish ends a match at its current minute.
func (m *Manager) Finish(ctx context.Context, matchID string) (domain.Transition, error) {
	return m.send(ctx, matchID, command{kind: cmdFinish})
}

// Get returns the current state of a match, ordered after any pending
// commands for it.
func (m *Manager) Get(ctx context.Context, matchID string) (domain.LiveMatchState, error) {
	tr, err := m.send(ctx, matchID, command{kind: cmdGet})
	if err != nil {
		return domain.LiveMatchState{}, err
	}
	return tr.State, nil
}

// Stop stops tracking a match. Stopping an unknown or already stopped match
// is not an error.
func (m *Manager) Stop(ctx context.Context, matchID string) error {
	m.mu.Lock()
	a, ok := m.actors[matchID]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	_, err := m.send(ctx, matchID, command{kind: cmdStop})
	if err != nil && !isGone(err) {
		return err
	}
	<-a.done
	return nil
}

// List returns the state of every tracked match ordered by start time.
func (m *Manager) List(ctx context.Context) []domain.LiveMatchState {
	m.mu.Lock()
	ids := make([]string, 0, len(m.actors))
	for id := range m.actors {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	out := make([]domain.LiveMatchState, 0, len(ids))
	for _, id := range ids {
		st, err := m.Get(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].MatchID < out[j].MatchID
	})
	return out
}

// Close stops every match and waits for their goroutines to exit. Start
// fails with ErrClosed afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	actors := make([]*actor, 0, len(m.actors))
	for _, a := range m.actors {
		actors = append(actors, a)
	}
	m.mu.Unlock()

	for _, a := range actors {
		_ = m.Stop(context.Background(), a.id)
	}
	m.wg.Wait()
}

func isGone(err error) bool {
	return err != nil && (errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrMatchAlreadyFinished))
}

func (m *Manager) send(ctx context.Context, matchID string, cmd command) (domain.Transition, error) {
	m.mu.Lock()
	a, ok := m.actors[matchID]
	_, wasStopped := m.stopped[matchID]
	m.mu.Unlock()
	if !ok {
		if wasStopped {
			return domain.Transition{}, fmt.Errorf("live: match %s stopped: %w", matchID, domain.ErrMatchAlreadyFinished)
		}
		return domain.Transition{}, fmt.Errorf("live: match %s: %w", matchID, domain.ErrNotFound)
	}

	cmd.reply = make(chan reply, 1)
	select {
	case a.inbox <- cmd:
	case <-a.done:
		return domain.Transition{}, fmt.Errorf("live: match %s stopped: %w", matchID, domain.ErrMatchAlreadyFinished)
	case <-ctx.Done():
		return domain.Transition{}, ctx.Err()
	}

	select {
	case r := <-cmd.reply:
		return r.tr, r.err
	case <-a.done:
		select {
		case r := <-cmd.reply:
			return r.tr, r.err
		default:
			return domain.Transition{}, fmt.Errorf("live: match %s stopped: %w", matchID, domain.ErrMatchAlreadyFinished)
		}
	case <-ctx.Done():
		return domain.Transition{}, ctx.Err()
	}
}

func (m *Manager) run(a *actor, machine *Machine) {
	defer m.wg.Done()
	defer close(a.done)

	for cmd := range a.inbox {
		var r reply
		switch cmd.kind {
		case cmdUpdate:
			r.tr, r.err = machine.Apply(cmd.update, m.now())
		case cmdFinish:
			r.tr, r.err = machine.Finish(m.now())
		case cmdGet:
			r.tr = machine.Snapshot()
		case cmdStop:
			m.mu.Lock()
			delete(m.actors, a.id)
			m.stopped[a.id] = struct{}{}
			m.mu.Unlock()

			r.tr = machine.Snapshot()
			r.tr.Stopped = true
			m.emit(r.tr)
			cmd.reply <- r
			m.drain(a)
			m.logger.Info("live match stopped", slog.String("match_id", a.id))
			return
		}
		if r.err == nil && cmd.kind != cmdGet {
			m.emit(r.tr)
		}
		cmd.reply <- r
	}
}

// drain rejects commands that were queued behind a stop.
func (m *Manager) drain(a *actor) {
	for {
		select {
		case cmd := <-a.inbox:
			cmd.reply <- reply{err: fmt.Errorf("live: match %s stopped: %w", a.id, domain.ErrMatchAlreadyFinished)}
		default:
			return
		}
	}
}

func (m *Manager) emit(tr domain.Transition) {
	select {
	case m.out <- tr:
	default:
		n := m.dropped.Add(1)
		m.logger.Warn("live outbox full, dropping transition",
			slog.String("match_id", tr.State.MatchID),
			slog.Int64("dropped_total", n),
		)
	}
}
