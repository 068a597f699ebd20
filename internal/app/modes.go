package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/matchcast/internal/live"
	"github.com/alanyoungcy/matchcast/internal/pipeline"
	"github.com/alanyoungcy/matchcast/internal/server"
	"github.com/alanyoungcy/matchcast/internal/server/handler"
	"github.com/alanyoungcy/matchcast/internal/server/ws"
	"github.com/alanyoungcy/matchcast/internal/service"
)

// services holds the application services built on top of Dependencies.
type services struct {
	ratings     *service.RatingService
	predictions *service.PredictionService
	live        *service.LiveService
	ingest      *service.IngestService
	manager     *live.Manager
}

func (a *App) buildServices(deps *Dependencies) *services {
	ratings := service.NewRatingService(
		deps.MatchStore, deps.HistoryStore, deps.FeatureCache, deps.LockManager,
		deps.SignalBus, deps.AuditStore, deps.Notifier,
		service.RatingConfig{Fold: pipeline.FoldConfig{
			KFactor:       a.cfg.Engine.KFactor,
			InitialRating: a.cfg.Engine.InitialRating,
			Windows:       a.cfg.Engine.Windows,
		}},
		a.logger,
	)
	manager := live.NewManager(live.ManagerConfig{
		MailboxSize: a.cfg.Live.MailboxSize,
		OutboxSize:  a.cfg.Live.OutboxSize,
	}, a.logger)
	a.closers = append(a.closers, manager.Close)

	return &services{
		ratings: ratings,
		predictions: service.NewPredictionService(
			ratings, deps.FeatureCache, deps.Classifier, deps.PredictionStore, deps.SignalBus, a.logger,
		),
		live: service.NewLiveService(
			manager, ratings, deps.LiveCache, deps.LiveEventStore, deps.SignalBus,
			deps.Mirror, deps.Notifier, a.logger,
		),
		ingest:  service.NewIngestService(deps.MatchStore, deps.BlobReader, deps.AuditStore, a.logger),
		manager: manager,
	}
}

// ServeMode runs the HTTP/WebSocket API and live match tracking.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)
	a.startServing(ctx, g, deps, svcs)
	return g.Wait()
}

// FullMode runs everything ServeMode does plus scheduled rebuilds and
// archival.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)
	a.startServing(ctx, g, deps, svcs)

	if !a.cfg.Pipeline.Enabled {
		a.logger.WarnContext(ctx, "pipeline.enabled is false; scheduler not started")
		return g.Wait()
	}

	sched := pipeline.NewScheduler(deps.Notifier, a.logger)
	if err := sched.Add(pipeline.Job{
		Name: "rating_rebuild",
		Spec: a.cfg.Pipeline.RebuildCron,
		Run: func(ctx context.Context) error {
			_, err := svcs.ratings.Rebuild(ctx)
			return err
		},
	}); err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	if deps.Archiver != nil {
		if err := sched.Add(pipeline.Job{
			Name: "archive",
			Spec: a.cfg.Pipeline.ArchiveCron,
			Run:  pipeline.ArchiveJob(deps.Archiver, a.cfg.Pipeline.ArchiveRetentionDays, a.logger),
		}); err != nil {
			return fmt.Errorf("full mode: %w", err)
		}
	} else {
		a.logger.WarnContext(ctx, "archive job disabled (requires s3 and postgres)")
	}
	g.Go(func() error {
		return sched.Run(ctx)
	})

	return g.Wait()
}

// RebuildMode replays the match log once and exits.
func (a *App) RebuildMode(ctx context.Context, deps *Dependencies) error {
	svcs := a.buildServices(deps)
	summary, err := svcs.ratings.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("rebuild mode: %w", err)
	}
	a.logger.InfoContext(ctx, "rebuild finished",
		slog.Int("fixtures", summary.Fixtures),
		slog.Int("teams", summary.Teams),
		slog.String("last_match", summary.LastMatch),
	)
	return nil
}

// IngestMode imports pipeline.source_key (or source_file) once, then
// rebuilds ratings when pipeline.rebuild_on_start is set.
func (a *App) IngestMode(ctx context.Context, deps *Dependencies) error {
	svcs := a.buildServices(deps)

	var (
		summary service.ImportSummary
		err     error
	)
	if key := a.cfg.Pipeline.SourceKey; key != "" {
		summary, err = svcs.ingest.ImportBlob(ctx, key)
	} else {
		summary, err = svcs.ingest.ImportFile(ctx, a.cfg.Pipeline.SourceFile)
	}
	if err != nil {
		return fmt.Errorf("ingest mode: %w", err)
	}
	a.logger.InfoContext(ctx, "ingest finished",
		slog.String("source", summary.Source),
		slog.Int("parsed", summary.Parsed),
		slog.Int("mirrored", summary.Mirrored),
		slog.Int64("inserted", summary.Inserted),
		slog.Int("rejected", summary.Rejected),
	)

	if a.cfg.Pipeline.RebuildOnStart && summary.Inserted > 0 {
		if _, err := svcs.ratings.Rebuild(ctx); err != nil {
			return fmt.Errorf("ingest mode: %w", err)
		}
	}
	return nil
}

// SimulateMode plays one simulated match through the live manager. When the
// server is enabled clients can follow it over /ws.
func (a *App) SimulateMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting simulate mode",
		slog.String("home", a.cfg.Live.SimulateHome),
		slog.String("away", a.cfg.Live.SimulateAway),
		slog.Int64("seed", a.cfg.Live.SimulateSeed),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)

	g.Go(func() error {
		return svcs.live.Run(ctx)
	})
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, svcs)
	}

	g.Go(func() error {
		defer cancel()
		tr, err := svcs.live.Start(ctx, service.StartMatchRequest{
			HomeTeam: a.cfg.Live.SimulateHome,
			AwayTeam: a.cfg.Live.SimulateAway,
		})
		if err != nil {
			return fmt.Errorf("simulate mode: %w", err)
		}
		id := tr.State.MatchID

		rng := rand.New(rand.NewSource(a.cfg.Live.SimulateSeed))
		sim := live.NewSimulator(rng, 5, a.cfg.Live.SimulateHomeXG, a.cfg.Live.SimulateAwayXG).
			Tilt(tr.State.RatingDiff)
		if err := sim.Run(ctx, svcs.live, id, a.cfg.Live.SimulateEvery.Duration); err != nil {
			return err
		}

		final, err := svcs.live.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("simulate mode: %w", err)
		}
		a.logger.InfoContext(ctx, "simulated match finished",
			slog.String("match_id", id),
			slog.Float64("rating_diff", final.RatingDiff),
			slog.Int("home_score", final.HomeScore),
			slog.Int("away_score", final.AwayScore),
		)
		return nil
	})

	return g.Wait()
}

// startServing starts the live fan-out loop, the optional rebuild on start
// and the HTTP server.
func (a *App) startServing(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	g.Go(func() error {
		return svcs.live.Run(ctx)
	})

	if a.cfg.Pipeline.RebuildOnStart {
		g.Go(func() error {
			if _, err := svcs.ratings.Rebuild(ctx); err != nil {
				a.logger.WarnContext(ctx, "initial rating rebuild failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, svcs)
	}
}

func (a *App) healthChecks(deps *Dependencies) map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{
		"redis": deps.Redis.Ping,
	}
	if deps.Postgres != nil {
		checks["postgres"] = deps.Postgres.Ping
	}
	if deps.S3 != nil {
		checks["s3"] = deps.S3.Health
	}
	return checks
}

func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	startedAt := time.Now().UTC()

	hub := ws.NewHub(deps.SignalBus, ws.Config{Mode: a.cfg.Mode, StartedAt: startedAt}, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(a.healthChecks(deps), a.logger),
		Status:    handler.NewStatusHandler(a.cfg.Mode, startedAt, svcs.ratings, svcs.live),
		Live:      handler.NewLiveHandler(svcs.live, a.logger),
		Broadcast: handler.NewBroadcastHandler(hub, a.logger),
	}
	if deps.MatchStore != nil {
		handlers.Ratings = handler.NewRatingHandler(svcs.ratings, a.logger)
		handlers.Predictions = handler.NewPredictionHandler(svcs.predictions, a.logger)
		handlers.Matches = handler.NewMatchHandler(svcs.ingest, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:             a.cfg.Server.Port,
		CORSOrigins:      a.cfg.Server.CORSOrigins,
		APIKey:           a.cfg.Server.APIKey,
		PredictPerMinute: a.cfg.Server.PredictPerMinute,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
