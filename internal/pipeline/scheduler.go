package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

// Notifier forwards job failures to operators.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// EventJobFailed is the notification event for a failed scheduled job.
const EventJobFailed = "job_failed"

// Job is a named unit of scheduled work.
type Job struct {
	Name string
	Spec string // cron expression or @every/@daily descriptor
	Run  func(ctx context.Context) error
}

// Scheduler runs jobs on cron schedules until its context is cancelled.
// A job that is still running when its next tick fires is skipped.
type Scheduler struct {
	cron     *cron.Cron
	jobs     map[string]Job
	notifier Notifier
	logger   *slog.Logger

	mu  sync.Mutex
	ctx context.Context
}

// NewScheduler creates an empty Scheduler. notifier may be nil.
func NewScheduler(notifier Notifier, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		jobs:     make(map[string]Job),
		notifier: notifier,
		logger:   logger.With(slog.String("component", "scheduler")),
		ctx:      context.Background(),
	}
}

// Add registers a job. Jobs with an empty spec are only runnable via RunNow.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("scheduler: job needs a name and a func")
	}
	if _, dup := s.jobs[job.Name]; dup {
		return fmt.Errorf("scheduler: job %q: %w", job.Name, domain.ErrAlreadyExists)
	}
	if job.Spec != "" {
		if _, err := s.cron.AddFunc(job.Spec, func() { s.execute(s.runContext(), job) }); err != nil {
			return fmt.Errorf("scheduler: job %q: parse %q: %w", job.Name, job.Spec, err)
		}
	}
	s.jobs[job.Name] = job
	return nil
}

// RunNow runs a registered job synchronously.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("scheduler: job %q: %w", name, domain.ErrNotFound)
	}
	return s.execute(ctx, job)
}

// Entries returns the next run time of every scheduled job.
func (s *Scheduler) Entries() []time.Time {
	entries := s.cron.Entries()
	out := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Next)
	}
	return out
}

// Run starts the cron loop and blocks until ctx is cancelled, then waits
// for running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "scheduler started", slog.Int("jobs", len(s.cron.Entries())))
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Scheduler) execute(ctx context.Context, job Job) error {
	start := time.Now()
	log := s.logger.With(slog.String("job", job.Name))
	log.InfoContext(ctx, "job started")

	err := job.Run(ctx)
	if err != nil {
		log.ErrorContext(ctx, "job failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)),
		)
		if s.notifier != nil {
			_ = s.notifier.Notify(ctx, EventJobFailed, "Scheduled job failed", job.Name+": "+err.Error())
		}
		return fmt.Errorf("scheduler: job %q: %w", job.Name, err)
	}
	log.InfoContext(ctx, "job completed", slog.Duration("elapsed", time.Since(start)))
	return nil
}

// ArchiveJob returns a job func that moves predictions and live events older
// than retentionDays to cold storage and snapshots the rating history.
func ArchiveJob(archiver domain.Archiver, retentionDays int, logger *slog.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		now := time.Now().UTC()
		cutoff := now.Add(-time.Duration(retentionDays) * 24 * time.Hour)

		predictions, err := archiver.ArchivePredictions(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("archiving predictions before %v: %w", cutoff, err)
		}
		events, err := archiver.ArchiveLiveEvents(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("archiving live events before %v: %w", cutoff, err)
		}
		history, err := archiver.SnapshotRatingHistory(ctx, now)
		if err != nil {
			return fmt.Errorf("snapshotting rating history: %w", err)
		}

		logger.InfoContext(ctx, "archive run complete",
			slog.Time("cutoff", cutoff),
			slog.Int64("predictions_archived", predictions),
			slog.Int64("events_archived", events),
			slog.Int64("history_rows", history),
		)
		return nil
	}
}
